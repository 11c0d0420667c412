// Package hotpath holds the two hot path load scenarios against the chat
// platform: the single-service chat path and the cross-service MSA path.
package hotpath

import (
	"fmt"
	"net/url"
	"sort"
	"text/template"

	"go.uber.org/zap"

	"hotpath/internal/config"
	"hotpath/internal/runner"
)

const (
	PathSessionStatus = "/api/v1/session/status"
	PathTenants       = "/api/v1/tenants"
)

// Metric names of the cross-service trends.
const (
	TrendOrgHubLogin         = "msa_orghub_login_ms"
	TrendChatCreateMessage   = "msa_chat_create_message_ms"
	TrendSessionUpdateStatus = "msa_session_update_status_ms"
	TrendTenantHubList       = "msa_tenanthub_list_ms"
)

type factory struct {
	defaults config.Defaults
	build    func(cfg config.RunConfig, c *Client, log *zap.Logger) (runner.Scenario, error)
}

var scenarios = map[string]factory{
	ChatName: {
		defaults: config.Defaults{
			MessageTemplate: "k6-message-{{.VU}}-{{.Iter}}",
			Thresholds: map[string][]string{
				"http_req_failed":   {"rate<0.01"},
				"http_req_duration": {"p(95)<500", "p(99)<1000"},
			},
		},
		build: func(cfg config.RunConfig, c *Client, log *zap.Logger) (runner.Scenario, error) {
			return NewChatScenario(cfg, c, log)
		},
	},
	MSAName: {
		defaults: config.Defaults{
			MessageTemplate: "msa-k6-message-{{.VU}}-{{.Iter}}",
			Thresholds: map[string][]string{
				"http_req_failed":        {"rate<0.02"},
				"http_req_duration":      {"p(95)<700", "p(99)<1500"},
				TrendChatCreateMessage:   {"p(95)<500", "p(99)<1200"},
				TrendSessionUpdateStatus: {"p(95)<500"},
				TrendTenantHubList:       {"p(95)<600"},
			},
		},
		build: func(cfg config.RunConfig, c *Client, log *zap.Logger) (runner.Scenario, error) {
			return NewMSAScenario(cfg, c, log)
		},
	},
}

// Names lists the available scenarios.
func Names() []string {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Defaults(name string) (config.Defaults, error) {
	f, ok := scenarios[name]
	if !ok {
		return config.Defaults{}, fmt.Errorf("unknown scenario %q", name)
	}
	return f.defaults, nil
}

func New(name string, cfg config.RunConfig, c *Client, log *zap.Logger) (runner.Scenario, error) {
	f, ok := scenarios[name]
	if !ok {
		return nil, fmt.Errorf("unknown scenario %q", name)
	}
	return f.build(cfg, c, log)
}

type messageRequest struct {
	Body    string   `json:"body"`
	FileIDs []string `json:"file_ids"`
	Emojis  []string `json:"emojis"`
}

func newMessage(body string) messageRequest {
	return messageRequest{Body: body, FileIDs: []string{}, Emojis: []string{}}
}

func messagesPath(roomID string) string {
	return PathRooms + "/" + url.PathEscape(roomID) + "/messages"
}

// messageBody renders the unique per-iteration payload.
type messageBody struct {
	engine   *TemplateEngine
	tmpl     *template.Template
	scenario string
	log      *zap.Logger
}

func newMessageBody(scenario, text string, log *zap.Logger) (messageBody, error) {
	engine := NewTemplateEngine()
	tmpl, err := engine.Parse(scenario+"-message", text)
	if err != nil {
		return messageBody{}, err
	}
	return messageBody{engine: engine, tmpl: tmpl, scenario: scenario, log: log}, nil
}

func (m messageBody) render(vu, iter int) string {
	s, err := m.engine.Execute(m.tmpl, TemplateData{VU: vu, Iter: iter, Scenario: m.scenario})
	if err != nil {
		m.log.Debug("message template failed", zap.Int("vu", vu), zap.Int("iter", iter), zap.Error(err))
		return fmt.Sprintf("%s-message-%d-%d", m.scenario, vu, iter)
	}
	return s
}
