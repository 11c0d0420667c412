// Package dummy fakes the chat, session, orgHub and tenantHub endpoints the
// hot path scenarios hit, so a run can be smoke-tested without the platform.
package dummy

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ServerConfig struct {
	Port     int
	Email    string
	Password string
	// Latency adds 0..Latency of random delay to every response.
	Latency time.Duration
	// ErrorRate is the share of load-path calls answered with 500.
	ErrorRate float64
	// KeepMessages caps the bodies kept per room; zero means
	// DefaultKeepMessages. Counts are never capped.
	KeepMessages int
}

const DefaultKeepMessages = 1000

// Counters are observable from tests.
type Counters struct {
	Logins        atomic.Int64
	Rooms         atomic.Int64
	Messages      atomic.Int64
	StatusUpdates atomic.Int64
	TenantLists   atomic.Int64
}

type Server struct {
	cfg      ServerConfig
	log      *zap.Logger
	Counters Counters

	mu       sync.RWMutex
	tokens   map[string]string // token -> tenant
	rooms    map[string]*room
	statuses map[string]int
}

type room struct {
	ID       string
	Name     string
	Messages []string
	Tokens   map[string]int
}

func New(cfg ServerConfig, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.KeepMessages <= 0 {
		cfg.KeepMessages = DefaultKeepMessages
	}
	return &Server{
		cfg:      cfg,
		log:      log,
		tokens:   make(map[string]string),
		rooms:    make(map[string]*room),
		statuses: make(map[string]int),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// orgHub / chat
	mux.HandleFunc("POST /api/v1/auth/login", s.handleLogin)
	// chat
	mux.HandleFunc("POST /api/v1/rooms", s.authed(s.handleCreateRoom))
	mux.HandleFunc("POST /api/v1/rooms/{roomID}/messages", s.authed(s.flaky(s.handleCreateMessage)))
	// session
	mux.HandleFunc("PATCH /api/v1/session/status", s.authed(s.flaky(s.handleStatus)))
	// tenantHub
	mux.HandleFunc("GET /api/v1/tenants", s.authed(s.flaky(s.handleTenants)))

	return s.jitter(mux)
}

// Start serves on cfg.Port in the background.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.log.Info("dummy server listening",
		zap.String("addr", addr),
		zap.Strings("endpoints", []string{
			"POST /api/v1/auth/login",
			"POST /api/v1/rooms",
			"POST /api/v1/rooms/{roomID}/messages",
			"PATCH /api/v1/session/status",
			"GET /api/v1/tenants",
		}))

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("dummy server failed", zap.Error(err))
		}
	}()
	return server
}

// Messages returns the most recent bodies posted to a room, oldest first.
func (s *Server) Messages(roomID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rooms[roomID]
	if !ok {
		return nil
	}
	return append([]string(nil), r.Messages...)
}

// MessagesByToken counts messages a bearer token posted to a room.
func (s *Server) MessagesByToken(roomID, token string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.rooms[roomID]; ok {
		return r.Tokens[token]
	}
	return 0
}

// StatusCounts returns how often each presence status was set.
func (s *Server) StatusCounts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.statuses))
	for k, v := range s.statuses {
		out[k] = v
	}
	return out
}

func (s *Server) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if ok {
			s.mu.RLock()
			_, ok = s.tokens[token]
			s.mu.RUnlock()
		}
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r, token)
	}
}

func (s *Server) flaky(next func(http.ResponseWriter, *http.Request, string)) func(http.ResponseWriter, *http.Request, string) {
	return func(w http.ResponseWriter, r *http.Request, token string) {
		if s.cfg.ErrorRate > 0 && rand.Float64() < s.cfg.ErrorRate {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "injected failure"})
			return
		}
		next(w, r, token)
	}
}

func (s *Server) jitter(next http.Handler) http.Handler {
	if s.cfg.Latency <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Duration(rand.Int63n(int64(s.cfg.Latency))))
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TenantID string `json:"tenant_id"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Email != s.cfg.Email || req.Password != s.cfg.Password || req.TenantID == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	s.Counters.Logins.Add(1)
	token := uuid.NewString()
	s.mu.Lock()
	s.tokens[token] = req.TenantID
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"tenant_id":    req.TenantID,
	})
}

func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request, _ string) {
	var req struct {
		Name      string   `json:"name"`
		RoomType  string   `json:"room_type"`
		MemberIDs []string `json:"member_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" || req.RoomType == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid room"})
		return
	}

	s.Counters.Rooms.Add(1)
	rm := &room{ID: uuid.NewString(), Name: req.Name, Tokens: make(map[string]int)}
	s.mu.Lock()
	s.rooms[rm.ID] = rm
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{
		"id":        rm.ID,
		"name":      rm.Name,
		"room_type": req.RoomType,
	})
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request, token string) {
	var req struct {
		Body    string   `json:"body"`
		FileIDs []string `json:"file_ids"`
		Emojis  []string `json:"emojis"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Body == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message"})
		return
	}

	roomID := r.PathValue("roomID")
	s.mu.Lock()
	rm, ok := s.rooms[roomID]
	if ok {
		rm.Messages = append(rm.Messages, req.Body)
		if n := len(rm.Messages); n > s.cfg.KeepMessages {
			rm.Messages = append(rm.Messages[:0], rm.Messages[n-s.cfg.KeepMessages:]...)
		}
		rm.Tokens[token]++
	}
	s.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}

	s.Counters.Messages.Add(1)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":      uuid.NewString(),
		"room_id": roomID,
		"body":    req.Body,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ string) {
	var req struct {
		Status     string `json:"status"`
		StatusNote string `json:"status_note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	switch req.Status {
	case "online", "busy", "away":
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status"})
		return
	}

	s.Counters.StatusUpdates.Add(1)
	s.mu.Lock()
	s.statuses[req.Status]++
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status, "status_note": req.StatusNote})
}

func (s *Server) handleTenants(w http.ResponseWriter, r *http.Request, token string) {
	s.Counters.TenantLists.Add(1)
	s.mu.RLock()
	tenant := s.tokens[token]
	s.mu.RUnlock()

	writeJSON(w, http.StatusOK, []map[string]string{{"id": tenant, "name": tenant}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
