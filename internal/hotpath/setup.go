package hotpath

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"hotpath/internal/config"
	"hotpath/internal/runner"
)

const (
	PathLogin = "/api/v1/auth/login"
	PathRooms = "/api/v1/rooms"
)

// SetupError aborts a run before any load is generated.
type SetupError struct {
	Step   string
	Status int
	Body   string
	Err    error
}

func (e *SetupError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
	}
	return fmt.Sprintf("%s failed: status=%d body=%s", e.Step, e.Status, e.Body)
}

func (e *SetupError) Unwrap() error { return e.Err }

type loginRequest struct {
	TenantID string `json:"tenant_id"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type createRoomRequest struct {
	Name      string   `json:"name"`
	RoomType  string   `json:"room_type"`
	MemberIDs []string `json:"member_ids"`
}

// provisioner runs the two setup calls. Labels prefix check names and
// error steps, e.g. "orghub login status 200".
type provisioner struct {
	client *Client
	cfg    config.RunConfig
	log    *zap.Logger

	loginBaseURL string
	loginLabel   string
	loginTrend   string
	roomLabel    string
	roomName     string
}

func (p provisioner) provision(ctx context.Context) (runner.SetupContext, error) {
	token, err := p.login(ctx)
	if err != nil {
		return runner.SetupContext{}, err
	}
	roomID, err := p.createRoom(ctx, token)
	if err != nil {
		return runner.SetupContext{}, err
	}
	return runner.SetupContext{Token: token, RoomID: roomID}, nil
}

func (p provisioner) login(ctx context.Context) (string, error) {
	res := p.client.PostJSON(ctx, p.loginBaseURL, PathLogin, loginRequest{
		TenantID: p.cfg.TenantID,
		Email:    p.cfg.Email,
		Password: p.cfg.Password,
	}, "")
	if p.loginTrend != "" {
		p.client.reg.AddTrend(p.loginTrend, res.Duration)
	}

	token, hasToken := res.JSONString("access_token")
	reg := p.client.reg
	statusOK := reg.Check(p.loginLabel+" status 200", res.Status == http.StatusOK)
	tokenOK := reg.Check(p.loginLabel+" has token", hasToken)
	if !statusOK || !tokenOK || res.Err != nil {
		err := &SetupError{Step: p.loginLabel, Status: res.Status, Body: bodyText(res.Body), Err: res.Err}
		p.log.Error("setup aborted", zap.String("step", p.loginLabel), zap.Int("status", res.Status), zap.Error(err))
		return "", err
	}
	return token, nil
}

func (p provisioner) createRoom(ctx context.Context, token string) (string, error) {
	res := p.client.PostJSON(ctx, p.cfg.ChatBaseURL, PathRooms, createRoomRequest{
		Name:      p.roomName,
		RoomType:  "group",
		MemberIDs: []string{},
	}, token)

	id, hasID := res.JSONString("id")
	reg := p.client.reg
	statusOK := reg.Check(p.roomLabel+" status 201", res.Status == http.StatusCreated)
	idOK := reg.Check(p.roomLabel+" has id", hasID)
	if !statusOK || !idOK || res.Err != nil {
		err := &SetupError{Step: p.roomLabel, Status: res.Status, Body: bodyText(res.Body), Err: res.Err}
		p.log.Error("setup aborted", zap.String("step", p.roomLabel), zap.Int("status", res.Status), zap.Error(err))
		return "", err
	}
	return id, nil
}
