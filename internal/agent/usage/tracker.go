package usage

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// window is a fixed counting window for one scope key.
type window struct {
	count   int
	resetAt time.Time
}

type scopeLimit struct {
	scope  model.RateLimitScope
	limit  int
	window time.Duration
}

// Tracker enforces the ip, session, demo and global ceilings and keeps the
// per-demo daily usage records. State lives in process memory only.
type Tracker struct {
	cfg model.RateLimitConfig
	now func() time.Time

	mu      sync.Mutex
	windows map[model.RateLimitScope]map[string]*window
	records map[string]*model.UsageRecord // demo|day
	denied  map[model.RateLimitScope]int
	allowed int
}

func NewTracker(cfg model.RateLimitConfig) *Tracker {
	return &Tracker{
		cfg: cfg,
		now: time.Now,
		windows: map[model.RateLimitScope]map[string]*window{
			model.ScopeIP:      {},
			model.ScopeSession: {},
			model.ScopeDemo:    {},
			model.ScopeGlobal:  {},
		},
		records: make(map[string]*model.UsageRecord),
		denied:  make(map[model.RateLimitScope]int),
	}
}

// CheckRateLimit evaluates the four scopes in order (ip, session, demo, global)
// and stops at the first one that is exhausted. When every scope passes, all
// four counters are incremented before the lock is released, so concurrent
// requests can neither lose increments nor overshoot a ceiling.
// demoDailyLimit overrides the configured demo ceiling when positive.
func (t *Tracker) CheckRateLimit(callerID, sessionID, demoID string, demoDailyLimit int) model.RateLimitResult {
	demoLimit := t.cfg.DemoDailyLimit
	if demoDailyLimit > 0 {
		demoLimit = demoDailyLimit
	}
	checks := []struct {
		scopeLimit
		key string
	}{
		{scopeLimit{model.ScopeIP, t.cfg.IPLimit, t.cfg.IPWindow}, callerID},
		{scopeLimit{model.ScopeSession, t.cfg.SessionLimit, t.cfg.SessionWindow}, sessionID},
		{scopeLimit{model.ScopeDemo, demoLimit, t.cfg.DemoWindow}, demoID},
		{scopeLimit{model.ScopeGlobal, t.cfg.GlobalLimit, t.cfg.GlobalWindow}, "global"},
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()

	result := model.RateLimitResult{Allowed: true, Remaining: math.MaxInt}
	active := make([]*window, 0, len(checks))
	for _, c := range checks {
		if c.limit <= 0 || c.key == "" {
			continue
		}
		w := t.windowFor(c.scope, c.key, c.window, now)
		if w.count >= c.limit {
			t.denied[c.scope]++
			retry := int(math.Ceil(w.resetAt.Sub(now).Seconds()))
			if retry < 1 {
				retry = 1
			}
			logx.Debug().
				Str("scope", string(c.scope)).
				Str("key", c.key).
				Int("limit", c.limit).
				Int("retry_after_s", retry).
				Msg("rate limit exceeded")
			return model.RateLimitResult{
				Allowed:           false,
				Remaining:         0,
				ResetAt:           w.resetAt,
				RetryAfterSeconds: retry,
				Scope:             c.scope,
			}
		}
		if left := c.limit - w.count - 1; left < result.Remaining {
			result.Remaining = left
			result.ResetAt = w.resetAt
		}
		active = append(active, w)
	}

	for _, w := range active {
		w.count++
	}
	t.allowed++
	t.recordLocked(demoID, now).MessageCount++
	if result.Remaining == math.MaxInt {
		result.Remaining = -1
	}
	return result
}

func (t *Tracker) windowFor(scope model.RateLimitScope, key string, d time.Duration, now time.Time) *window {
	w, ok := t.windows[scope][key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(d)}
		t.windows[scope][key] = w
	}
	return w
}

// TrackUsage records a model call of the given tier for demoID today.
func (t *Tracker) TrackUsage(demoID string, tier model.Tier, tokens int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.recordLocked(demoID, t.now())
	rec.ModelCalls[tier]++
	rec.TokensEstimate += tokens
}

// Usage returns a copy of today's record for demoID.
func (t *Tracker) Usage(demoID string) model.UsageRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec := t.recordLocked(demoID, t.now())
	out := *rec
	out.ModelCalls = make(map[model.Tier]int, len(rec.ModelCalls))
	for k, v := range rec.ModelCalls {
		out.ModelCalls[k] = v
	}
	return out
}

func (t *Tracker) recordLocked(demoID string, now time.Time) *model.UsageRecord {
	day := now.UTC().Format("2006-01-02")
	key := demoID + "|" + day
	rec, ok := t.records[key]
	if !ok {
		rec = &model.UsageRecord{DemoID: demoID, Day: day, ModelCalls: map[model.Tier]int{}}
		t.records[key] = rec
	}
	return rec
}

// Sweep drops expired windows and usage records older than yesterday.
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	removed := 0
	for _, byKey := range t.windows {
		for k, w := range byKey {
			if !now.Before(w.resetAt) {
				delete(byKey, k)
				removed++
			}
		}
	}
	yesterday := now.UTC().Add(-24 * time.Hour).Format("2006-01-02")
	for k, rec := range t.records {
		if rec.Day < yesterday {
			delete(t.records, k)
		}
	}
	return removed
}

// Stats reports live window counts and denials per scope.
func (t *Tracker) Stats() model.UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	st := model.UsageStats{
		ActiveWindows: make(map[model.RateLimitScope]int, len(t.windows)),
		Denied:        make(map[model.RateLimitScope]int, len(t.denied)),
		Allowed:       t.allowed,
	}
	for scope, byKey := range t.windows {
		st.ActiveWindows[scope] = len(byKey)
	}
	for scope, n := range t.denied {
		st.Denied[scope] = n
	}
	return st
}

// Run sweeps expired windows every interval until ctx is done.
func (t *Tracker) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := t.Sweep(); n > 0 {
				logx.Debug().Int("removed", n).Msg("rate limit windows swept")
			}
		}
	}
}
