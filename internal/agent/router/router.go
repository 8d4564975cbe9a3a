package router

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// UsageReader exposes today's usage record of a demo for budget decisions.
type UsageReader interface {
	Usage(demoID string) model.UsageRecord
}

type link struct {
	provider Provider
	timeout  time.Duration
}

// Router picks a tier per intent and walks the provider chain, falling back
// to canned local replies so a turn always gets text.
type Router struct {
	cfg   model.RouterConfig
	chain []link
	local LocalProvider
	usage UsageReader
}

// New builds a router over providers in priority order. The first gets the
// primary timeout, the rest the secondary one.
func New(cfg model.RouterConfig, usage UsageReader, providers ...Provider) *Router {
	r := &Router{cfg: cfg, usage: usage}
	for i, p := range providers {
		if p == nil {
			continue
		}
		timeout := cfg.SecondaryTimeout
		if i == 0 {
			timeout = cfg.PrimaryTimeout
		}
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		r.chain = append(r.chain, link{provider: p, timeout: timeout})
	}
	return r
}

// NewFromConfig wires the configured primary and secondary providers. A
// provider without credentials is left out of the chain.
func NewFromConfig(ctx context.Context, cfg model.RouterConfig, usage UsageReader, client *http.Client) (*Router, error) {
	var providers []Provider
	for _, name := range []string{cfg.Primary, cfg.Secondary} {
		p, err := buildProvider(ctx, strings.ToLower(strings.TrimSpace(name)), cfg, client)
		if err != nil {
			return nil, err
		}
		if p != nil {
			providers = append(providers, p)
		}
	}
	if len(providers) == 0 {
		logx.Warn().Msg("no model provider configured, serving canned replies only")
	}
	return New(cfg, usage, providers...), nil
}

func buildProvider(ctx context.Context, name string, cfg model.RouterConfig, client *http.Client) (Provider, error) {
	switch name {
	case "poe":
		if cfg.Poe.APIKey == "" {
			return nil, nil
		}
		return NewPoeProvider(cfg.Poe, client), nil
	case "openrouter":
		if cfg.OpenRouter.APIKey == "" {
			return nil, nil
		}
		return NewOpenRouterProvider(ctx, cfg.OpenRouter, cfg.Temperature, cfg.MaxTokens)
	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, nil
		}
		return NewGeminiProvider(ctx, cfg.Gemini, cfg.Temperature, cfg.MaxTokens)
	case "":
		return nil, nil
	}
	return nil, errors.New("router: unknown provider " + name)
}

// Providers lists the external chain in order.
func (r *Router) Providers() []string {
	names := make([]string, len(r.chain))
	for i, l := range r.chain {
		names[i] = l.provider.Name()
	}
	return names
}

// Choice is the routing decision for one turn.
type Choice struct {
	Tier   model.Tier
	Reason string
}

func (c Choice) Local() bool { return c.Tier == model.TierLocal }

// RouteToModel maps intent to a tier and downgrades it when the demo has
// spent its daily model budget.
func (r *Router) RouteToModel(intent model.IntentType, demoID string) Choice {
	tier := model.TierStandard
	switch {
	case intent.SmallTalk():
		return Choice{Tier: model.TierLocal, Reason: "small_talk"}
	case intent == model.IntentCompare, intent == model.IntentLeadCapture:
		tier = model.TierAdvanced
	}
	if len(r.chain) == 0 {
		return Choice{Tier: model.TierLocal, Reason: "no_provider"}
	}
	if r.usage == nil {
		return Choice{Tier: tier, Reason: "intent"}
	}

	u := r.usage.Usage(demoID)
	if r.cfg.TotalDailyBudget > 0 && u.TotalModelCalls() >= r.cfg.TotalDailyBudget {
		return Choice{Tier: model.TierLocal, Reason: "total_budget"}
	}
	reason := "intent"
	if tier == model.TierAdvanced && r.cfg.AdvancedDailyBudget > 0 && u.ModelCalls[model.TierAdvanced] >= r.cfg.AdvancedDailyBudget {
		tier, reason = model.TierStandard, "advanced_budget"
	}
	if tier == model.TierStandard && r.cfg.StandardDailyBudget > 0 && u.ModelCalls[model.TierStandard] >= r.cfg.StandardDailyBudget {
		return Choice{Tier: model.TierLocal, Reason: "standard_budget"}
	}
	return Choice{Tier: tier, Reason: reason}
}

// Generate returns model text for req. Each external attempt has its own
// deadline; when all fail the local provider answers. The text is never empty.
func (r *Router) Generate(ctx context.Context, req *model.ModelRequest) *model.ModelResult {
	r.defaults(req)
	if req.Tier != model.TierLocal {
		res, err := r.walk(ctx, req)
		if err == nil {
			return res
		}
		logx.Warn().Err(err).Str("demo_id", req.DemoID).Str("intent", string(req.Intent)).Msg("model chain exhausted, using local reply")
		return &model.ModelResult{
			Text:     r.local.Reply(req),
			Provider: r.local.Name(),
			Tier:     model.TierLocal,
			Attempts: append(res.Attempts, model.ProviderAttempt{Provider: r.local.Name()}),
			Canned:   true,
		}
	}
	return &model.ModelResult{
		Text:     r.local.Reply(req),
		Provider: r.local.Name(),
		Tier:     model.TierLocal,
		Attempts: []model.ProviderAttempt{{Provider: r.local.Name()}},
		Canned:   true,
	}
}

// Complete walks the external chain only. The intent classifier uses it for
// its model pass, where a canned reply would be meaningless.
func (r *Router) Complete(ctx context.Context, req *model.ModelRequest) (*model.ModelResult, error) {
	r.defaults(req)
	if req.Tier == model.TierLocal {
		req.Tier = model.TierStandard
	}
	res, err := r.walk(ctx, req)
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Router) defaults(req *model.ModelRequest) {
	if req.Temperature == 0 {
		req.Temperature = r.cfg.Temperature
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = r.cfg.MaxTokens
	}
}

// walk tries each provider in order. It always returns a result carrying the
// attempts made, and an error when none produced text.
func (r *Router) walk(ctx context.Context, req *model.ModelRequest) (*model.ModelResult, error) {
	res := &model.ModelResult{Tier: req.Tier}
	if len(r.chain) == 0 {
		return res, ErrNoProvider
	}
	var lastErr error
	for _, l := range r.chain {
		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}
		start := time.Now()
		text, err := r.attempt(ctx, l, req)
		att := model.ProviderAttempt{Provider: l.provider.Name(), Duration: time.Since(start)}
		if err == nil && strings.TrimSpace(text) == "" {
			err = providerErr(l.provider.Name(), KindMalformed, 0, errors.New("empty text"))
		}
		if err != nil {
			att.Err = err.Error()
			res.Attempts = append(res.Attempts, att)
			lastErr = err
			logProviderError(err, l.provider.Name(), req)
			continue
		}
		res.Attempts = append(res.Attempts, att)
		res.Text = strings.TrimSpace(text)
		res.Provider = l.provider.Name()
		res.TokensEstimate = estimate(req, res.Text)
		logx.Debug().
			Str("provider", res.Provider).
			Str("tier", string(req.Tier)).
			Int("tokens_estimate", res.TokensEstimate).
			Dur("took", att.Duration).
			Msg("model call succeeded")
		return res, nil
	}
	return res, lastErr
}

func (r *Router) attempt(ctx context.Context, l link, req *model.ModelRequest) (string, error) {
	actx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()
	text, err := l.provider.Call(actx, req)
	if err != nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		var pe *ProviderError
		if errors.As(err, &pe) {
			pe.Kind = KindTimeout
			return "", pe
		}
		return "", providerErr(l.provider.Name(), KindTimeout, 0, err)
	}
	return text, err
}

func logProviderError(err error, provider string, req *model.ModelRequest) {
	ev := logx.Warn().Err(err).Str("provider", provider).Str("tier", string(req.Tier)).Str("demo_id", req.DemoID)
	var pe *ProviderError
	if errors.As(err, &pe) {
		ev = ev.Str("kind", string(pe.Kind))
		if pe.Status != 0 {
			ev = ev.Int("status", pe.Status)
		}
	}
	ev.Msg("model provider failed")
}

func estimate(req *model.ModelRequest, text string) int {
	n := model.EstimateTokens(text)
	for _, m := range req.Messages {
		if m != nil {
			n += model.EstimateTokens(m.Content)
		}
	}
	return n
}
