package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cloudwego/eino/compose"
	"github.com/google/uuid"

	"github.com/vtour-agent-core/server/internal/agent/catalog"
	"github.com/vtour-agent-core/server/internal/agent/graph/conversations"
	"github.com/vtour-agent-core/server/internal/agent/graph/formatter"
	"github.com/vtour-agent-core/server/internal/agent/graph/observers"
	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/intent"
	"github.com/vtour-agent-core/server/internal/agent/memory"
	"github.com/vtour-agent-core/server/internal/agent/model"
	"github.com/vtour-agent-core/server/internal/agent/router"
	"github.com/vtour-agent-core/server/internal/agent/usage"
	errx "github.com/vtour-agent-core/server/internal/core/error"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const (
	EngineName = "ai-agent-v1"

	MaxMessageLen   = 2000
	sessionIDPrefix = "session_"
	anonymousCaller = "anonymous"
	statusOK        = "ok"
	statusDegraded  = "degraded"
)

// CatalogStore is the read side of the catalog cache.
type CatalogStore interface {
	Get(ctx context.Context, slug string) (*model.Catalog, error)
	Stats() catalog.Stats
}

// Deps are the components an Engine is assembled from.
type Deps struct {
	Catalog    CatalogStore
	Memory     *memory.Manager
	Usage      *usage.Tracker
	Classifier *intent.Classifier
	Router     *router.Router
	Tools      *tools.Executor
	Builder    *conversations.Builder
	Formatter  *formatter.Formatter
}

// Engine runs one visitor turn end to end: validation, catalog, rate
// limiting, the turn graph and the session write.
type Engine struct {
	deps     Deps
	runnable compose.Runnable[*model.Turn, *model.Turn]
	started  time.Time
	now      func() time.Time
}

func NewEngine(ctx context.Context, deps Deps) (*Engine, error) {
	if deps.Catalog == nil || deps.Memory == nil || deps.Usage == nil {
		return nil, fmt.Errorf("engine needs catalog, memory and usage")
	}
	if deps.Formatter == nil {
		deps.Formatter = formatter.New()
	}
	runnable, err := BuildGraph(ctx, &GraphConfig{
		Classifier: deps.Classifier,
		Tools:      deps.Tools,
		Builder:    deps.Builder,
		Router:     deps.Router,
		Formatter:  deps.Formatter,
	})
	if err != nil {
		return nil, err
	}
	return &Engine{deps: deps, runnable: runnable, started: time.Now(), now: time.Now}, nil
}

// Handle answers one message. Business outcomes, rate-limit denials
// included, come back as responses; only system faults are errors.
func (e *Engine) Handle(ctx context.Context, req model.AgentRequest) (*model.AgentResponse, error) {
	start := e.now()
	if err := normalize(&req); err != nil {
		return nil, err
	}

	cat, err := e.deps.Catalog.Get(ctx, req.DemoID)
	if err != nil {
		logx.Error().Err(err).Str("demo_id", req.DemoID).Msg("catalog unavailable")
		return nil, asAppError(err)
	}

	rl := e.deps.Usage.CheckRateLimit(callerOf(req), req.SessionID, req.DemoID, cat.Demo.DailyMessageLimit)
	if !rl.Allowed {
		logx.Info().
			Str("session_id", req.SessionID).
			Str("demo_id", req.DemoID).
			Str("scope", string(rl.Scope)).
			Int("retry_after", rl.RetryAfterSeconds).
			Msg("rate limited")
		return e.deps.Formatter.RateLimited(rl, req.Locale, req.SessionID), nil
	}

	var out *model.Turn
	_, err = e.deps.Memory.Update(ctx, req.SessionID, req.DemoID, req.Locale,
		func(ctx context.Context, sess *model.SessionMemory) (*memory.TurnUpdate, error) {
			turn, err := e.runnable.Invoke(ctx, &model.Turn{
				Request: req,
				Locale:  sess.Locale,
				Session: sess,
				Catalog: cat,
			}, compose.WithCallbacks(observers.NewAllCallbacks()))
			if err != nil {
				return nil, err
			}
			if turn == nil || turn.Response == nil {
				return nil, fmt.Errorf("turn graph produced no response")
			}
			out = turn
			return turnUpdate(req, turn), nil
		})
	if err != nil {
		logx.Error().Err(err).Str("session_id", req.SessionID).Str("demo_id", req.DemoID).Msg("turn failed")
		return nil, asAppError(err)
	}

	if m := out.Model; m != nil && !m.Canned {
		e.deps.Usage.TrackUsage(req.DemoID, m.Tier, m.TokensEstimate)
	}

	resp := out.Response
	resp.SessionID = req.SessionID
	logx.Info().
		Str("session_id", req.SessionID).
		Str("demo_id", req.DemoID).
		Str("intent", string(out.Intent.Type)).
		Str("tool", string(out.Tool)).
		Str("tier", string(out.Tier)).
		Int("actions", len(resp.Actions)).
		Dur("elapsed", e.now().Sub(start)).
		Msg("turn handled")
	return resp, nil
}

// ErrorResponse is the localized body sent for a system fault.
func (e *Engine) ErrorResponse(req model.AgentRequest) *model.AgentResponse {
	return e.deps.Formatter.SystemError(model.ParseLocale(string(req.Locale)), req.SessionID)
}

func normalize(req *model.AgentRequest) error {
	req.Message = strings.TrimSpace(req.Message)
	req.DemoID = strings.TrimSpace(req.DemoID)
	req.SessionID = strings.TrimSpace(req.SessionID)
	switch {
	case req.Message == "":
		return errx.BadRequest("message is required")
	case req.DemoID == "":
		return errx.BadRequest("demoId is required")
	case utf8.RuneCountInString(req.Message) > MaxMessageLen:
		return errx.BadRequest(fmt.Sprintf("message exceeds %d characters", MaxMessageLen))
	}
	req.Locale = model.ParseLocale(string(req.Locale))
	if req.SessionID == "" {
		req.SessionID = sessionIDPrefix + uuid.NewString()
	}
	return nil
}

func callerOf(req model.AgentRequest) string {
	switch {
	case req.CallerID != "":
		return req.CallerID
	case req.UserID != "":
		return req.UserID
	}
	return anonymousCaller
}

func turnUpdate(req model.AgentRequest, t *model.Turn) *memory.TurnUpdate {
	meta := map[string]string{model.MetaLastIntent: string(t.Intent.Type)}
	if req.UserID != "" {
		meta[model.MetaUserID] = req.UserID
	}
	if t.ToolResult != nil {
		for k, v := range t.ToolResult.MetadataPatch {
			meta[k] = v
		}
	}
	return &memory.TurnUpdate{
		Messages: []model.ConversationMessage{
			{Role: model.RoleUser, Content: req.Message, Intent: t.Intent.Type},
			{Role: model.RoleAssistant, Content: t.Response.Text, Intent: t.Intent.Type, Actions: t.Response.Actions},
		},
		Metadata: meta,
	}
}

func asAppError(err error) error {
	var ae *errx.AppError
	if errors.As(err, &ae) {
		return ae
	}
	return errx.Internal(err)
}

// History is the read-only view of a session's conversation.
type History struct {
	SessionID string                      `json:"sessionId"`
	Messages  []model.ConversationMessage `json:"messages"`
	Valid     bool                        `json:"valid"`
	Count     int                         `json:"count"`
}

func (e *Engine) History(ctx context.Context, sessionID string) (*History, error) {
	msgs, err := e.deps.Memory.History(ctx, sessionID)
	if err != nil {
		return nil, asAppError(err)
	}
	if msgs == nil {
		msgs = []model.ConversationMessage{}
	}
	return &History{
		SessionID: sessionID,
		Messages:  msgs,
		Valid:     e.deps.Memory.IsSessionValid(ctx, sessionID),
		Count:     len(msgs),
	}, nil
}

func (e *Engine) ClearHistory(ctx context.Context, sessionID string) error {
	if err := e.deps.Memory.ClearSession(ctx, sessionID); err != nil {
		return asAppError(err)
	}
	logx.Info().Str("session_id", sessionID).Msg("history cleared")
	return nil
}

// Health summarises the engine's components.
type Health struct {
	Status    string             `json:"status"`
	Engine    string             `json:"engine"`
	Providers []string           `json:"providers"`
	Uptime    string             `json:"uptime"`
	Cache     catalog.Stats      `json:"cache"`
	Sessions  model.SessionStats `json:"sessions"`
	Usage     model.UsageStats   `json:"usage"`
}

// Health is degraded when no external provider is configured or the session
// store cannot be read.
func (e *Engine) Health(ctx context.Context) Health {
	h := Health{
		Status:    statusOK,
		Engine:    EngineName,
		Providers: e.deps.Router.Providers(),
		Uptime:    e.now().Sub(e.started).Truncate(time.Second).String(),
		Cache:     e.deps.Catalog.Stats(),
		Usage:     e.deps.Usage.Stats(),
	}
	sessions, err := e.deps.Memory.Stats(ctx)
	if err != nil {
		logx.Warn().Err(err).Msg("session stats unavailable")
		h.Status = statusDegraded
	}
	h.Sessions = sessions
	if len(h.Providers) == 0 {
		h.Status = statusDegraded
	}
	return h
}
