package hotpath

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"hotpath/internal/config"
	"hotpath/internal/runner"
)

const ChatName = "chat"

// ChatScenario hammers message creation in one shared room.
type ChatScenario struct {
	cfg    config.RunConfig
	client *Client
	log    *zap.Logger
	body   messageBody
}

func NewChatScenario(cfg config.RunConfig, c *Client, log *zap.Logger) (*ChatScenario, error) {
	if log == nil {
		log = zap.NewNop()
	}
	body, err := newMessageBody(ChatName, cfg.MessageTemplate, log)
	if err != nil {
		return nil, err
	}
	return &ChatScenario{cfg: cfg, client: c, log: log, body: body}, nil
}

func (s *ChatScenario) Name() string { return ChatName }

// Setup logs in against the chat service itself and creates the room.
func (s *ChatScenario) Setup(ctx context.Context) (runner.SetupContext, error) {
	return provisioner{
		client:       s.client,
		cfg:          s.cfg,
		log:          s.log,
		loginBaseURL: s.cfg.ChatBaseURL,
		loginLabel:   "login",
		roomLabel:    "create room",
		roomName:     "k6-hotpath-room",
	}.provision(ctx)
}

func (s *ChatScenario) Iterate(ctx context.Context, vu, iter int, sc runner.SetupContext) {
	res := s.client.PostJSON(ctx, s.cfg.ChatBaseURL, messagesPath(sc.RoomID),
		newMessage(s.body.render(vu, iter)), sc.Token)

	if !s.client.reg.Check("message status 201", res.Status == http.StatusCreated) {
		s.log.Debug("check failed",
			zap.String("check", "message status 201"),
			zap.Int("vu", vu),
			zap.Int("iter", iter),
			zap.Int("status", res.Status))
	}
}
