package api

import (
	"context"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/vtour-agent-core/server/internal/agent/graph"
	"github.com/vtour-agent-core/server/internal/agent/model"
	errx "github.com/vtour-agent-core/server/internal/core/error"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const maxBodyBytes = 64 << 10

// Agent is the engine surface the HTTP layer needs.
type Agent interface {
	Handle(ctx context.Context, req model.AgentRequest) (*model.AgentResponse, error)
	ErrorResponse(req model.AgentRequest) *model.AgentResponse
	History(ctx context.Context, sessionID string) (*graph.History, error)
	ClearHistory(ctx context.Context, sessionID string) error
	Health(ctx context.Context) graph.Health
}

// Server exposes the agent over HTTP.
type Server struct {
	agent         Agent
	allowedOrigin string
}

func NewServer(agent Agent, allowedOrigin string) *Server {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return &Server{agent: agent, allowedOrigin: allowedOrigin}
}

// Handler returns the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/ai-agent", s.handleMessage)
	mux.HandleFunc("GET /api/ai-agent", s.handleHealth)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/ai-agent/history", s.handleHistory)
	mux.HandleFunc("DELETE /api/ai-agent/history", s.handleClearHistory)
	return s.cors(mux)
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", s.allowedOrigin)
		h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, errx.BadRequest("unreadable body"))
		return
	}
	var req model.AgentRequest
	if err := sonic.Unmarshal(body, &req); err != nil {
		writeError(w, errx.BadRequest("invalid JSON body"))
		return
	}
	req.CallerID = clientIP(r)

	resp, err := s.agent.Handle(r.Context(), req)
	if err != nil {
		status := errx.StatusOf(err)
		if status < http.StatusInternalServerError {
			writeError(w, err)
			return
		}
		logx.Error().Err(err).Str("demo_id", req.DemoID).Str("session_id", req.SessionID).Int("status", status).Msg("agent request failed")
		writeJSON(w, http.StatusInternalServerError, s.agent.ErrorResponse(req))
		return
	}
	if resp.RateLimit != nil {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RateLimit.RetryAfterSeconds))
		writeJSON(w, http.StatusTooManyRequests, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.agent.Health(r.Context()))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}
	hist, err := s.agent.History(r.Context(), id)
	if err != nil {
		logx.Error().Err(err).Str("session_id", id).Msg("history read failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionParam(w, r)
	if !ok {
		return
	}
	if err := s.agent.ClearHistory(r.Context(), id); err != nil {
		logx.Error().Err(err).Str("session_id", id).Msg("history clear failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "sessionId": id})
}

func sessionParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.URL.Query().Get("sessionId"))
	if id == "" {
		writeError(w, errx.BadRequest("sessionId is required"))
		return "", false
	}
	return id, true
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, errx.StatusOf(err), errorBody{Error: errx.PublicMessage(err)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := sonic.Marshal(v)
	if err != nil {
		logx.Error().Err(err).Msg("response encoding failed")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
