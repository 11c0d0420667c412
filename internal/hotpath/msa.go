package hotpath

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"hotpath/internal/config"
	"hotpath/internal/runner"
)

const MSAName = "msa"

type statusUpdateRequest struct {
	Status     Status `json:"status"`
	StatusNote string `json:"status_note"`
}

// MSAScenario walks one request through chat, session and tenantHub per
// iteration, all authenticated with the orgHub token.
type MSAScenario struct {
	cfg    config.RunConfig
	client *Client
	log    *zap.Logger
	body   messageBody
}

func NewMSAScenario(cfg config.RunConfig, c *Client, log *zap.Logger) (*MSAScenario, error) {
	if log == nil {
		log = zap.NewNop()
	}
	body, err := newMessageBody(MSAName, cfg.MessageTemplate, log)
	if err != nil {
		return nil, err
	}
	// Thresholds name these trends, so they must exist before the first sample.
	if c != nil {
		for _, name := range MSATrends() {
			c.reg.Trend(name)
		}
	}
	return &MSAScenario{cfg: cfg, client: c, log: log, body: body}, nil
}

// MSATrends lists the per-service latency trends of the MSA path.
func MSATrends() []string {
	return []string{TrendOrgHubLogin, TrendChatCreateMessage, TrendSessionUpdateStatus, TrendTenantHubList}
}

func (s *MSAScenario) Name() string { return MSAName }

func (s *MSAScenario) Setup(ctx context.Context) (runner.SetupContext, error) {
	return provisioner{
		client:       s.client,
		cfg:          s.cfg,
		log:          s.log,
		loginBaseURL: s.cfg.OrgHubBaseURL,
		loginLabel:   "orghub login",
		loginTrend:   TrendOrgHubLogin,
		roomLabel:    "chat create room",
		roomName:     "k6-msa-room",
	}.provision(ctx)
}

// Iterate issues the three calls strictly in order; a failed call is
// recorded and the next one still runs.
func (s *MSAScenario) Iterate(ctx context.Context, vu, iter int, sc runner.SetupContext) {
	reg := s.client.reg

	msgRes := s.client.PostJSON(ctx, s.cfg.ChatBaseURL, messagesPath(sc.RoomID),
		newMessage(s.body.render(vu, iter)), sc.Token)
	reg.AddTrend(TrendChatCreateMessage, msgRes.Duration)

	status := StatusFor(vu, iter)
	sessionRes := s.client.PatchJSON(ctx, s.cfg.SessionBaseURL, PathSessionStatus, statusUpdateRequest{
		Status:     status,
		StatusNote: fmt.Sprintf("k6-%s-%d-%d", status, vu, iter),
	}, sc.Token)
	reg.AddTrend(TrendSessionUpdateStatus, sessionRes.Duration)

	tenantRes := s.client.GetJSON(ctx, s.cfg.TenantHubBaseURL, PathTenants, sc.Token)
	reg.AddTrend(TrendTenantHubList, tenantRes.Duration)

	s.check(vu, iter, "chat message status 201", msgRes, http.StatusCreated)
	s.check(vu, iter, "session status update 200", sessionRes, http.StatusOK)
	s.check(vu, iter, "tenanthub list status 200", tenantRes, http.StatusOK)
}

func (s *MSAScenario) check(vu, iter int, name string, res Response, want int) {
	if s.client.reg.Check(name, res.Status == want) {
		return
	}
	s.log.Debug("check failed",
		zap.String("check", name),
		zap.Int("vu", vu),
		zap.Int("iter", iter),
		zap.Int("status", res.Status),
		zap.Error(res.Err))
}
