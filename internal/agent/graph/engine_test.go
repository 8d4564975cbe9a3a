package graph

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/catalog"
	"github.com/vtour-agent-core/server/internal/agent/graph/conversations"
	"github.com/vtour-agent-core/server/internal/agent/graph/formatter"
	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/intent"
	"github.com/vtour-agent-core/server/internal/agent/memory"
	"github.com/vtour-agent-core/server/internal/agent/model"
	"github.com/vtour-agent-core/server/internal/agent/router"
	"github.com/vtour-agent-core/server/internal/agent/usage"
	errx "github.com/vtour-agent-core/server/internal/core/error"
)

type fakeProvider struct {
	text  string
	calls atomic.Int32
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Call(context.Context, *model.ModelRequest) (string, error) {
	f.calls.Add(1)
	return f.text, nil
}

type fakeLeads struct{ calls atomic.Int32 }

func (f *fakeLeads) Submit(context.Context, *tools.Lead) error {
	f.calls.Add(1)
	return nil
}

func loc(en, ar string) model.Localized {
	return model.Localized{model.LocaleEN: en, model.LocaleAR: ar}
}

func showroom() *model.Catalog {
	return &model.Catalog{
		Demo: model.DemoConfig{
			Slug:      "showroom",
			Type:      model.BusinessFurniture,
			AgentName: loc("Nour", "نور"),
			Currency:  "EGP",
			Contact:   model.Contact{Phone: "+201000000000", WhatsApp: "+201111111111"},
		},
		Items: []model.TourItem{
			{ID: "1", Title: loc("Red Velvet Sofa", "كنبة قطيفة حمراء"), Category: "sofa", Price: 450, Available: true,
				Attributes: map[string]string{"color": "red"},
				Anchor:     &model.SpatialAnchor{SweepID: "s1"}},
			{ID: "2", Title: loc("Blue Sofa", "كنبة زرقاء"), Category: "sofa", Price: 800, Available: true,
				Attributes: map[string]string{"color": "blue"}},
		},
	}
}

type harness struct {
	engine   *Engine
	store    *memory.InMemoryStore
	tracker  *usage.Tracker
	provider *fakeProvider
	leads    *fakeLeads
}

var testLimits = model.RateLimitConfig{
	IPLimit:        30,
	IPWindow:       time.Minute,
	SessionLimit:   50,
	SessionWindow:  time.Hour,
	DemoDailyLimit: 200,
	DemoWindow:     24 * time.Hour,
	GlobalLimit:    10000,
	GlobalWindow:   24 * time.Hour,
}

func newHarness(t *testing.T, limits model.RateLimitConfig, source catalog.Source) *harness {
	t.Helper()
	if source == nil {
		source = catalog.SourceFunc(func(_ context.Context, slug string) (*model.Catalog, error) {
			if slug != "showroom" {
				return nil, catalog.ErrDemoNotFound
			}
			return showroom(), nil
		})
	}
	h := &harness{
		store:    memory.NewInMemoryStore(),
		tracker:  usage.NewTracker(limits),
		provider: &fakeProvider{text: "Our velvet sofa is a favourite. [[FLY_TO:1]]"},
		leads:    &fakeLeads{},
	}
	classifier, err := intent.New(model.ClassifierConfig{SmartThreshold: 0.6}, nil)
	require.NoError(t, err)

	h.engine, err = NewEngine(context.Background(), Deps{
		Catalog:    catalog.NewCache(source, time.Minute),
		Memory:     memory.NewManager(h.store, model.SessionConfig{TTL: 30 * time.Minute, MaxMessages: 20}),
		Usage:      h.tracker,
		Classifier: classifier,
		Router: router.New(model.RouterConfig{
			PrimaryTimeout:   time.Second,
			SecondaryTimeout: time.Second,
			MaxTokens:        800,
		}, h.tracker, h.provider),
		Tools:     tools.NewExecutor(model.ToolsConfig{SearchLimit: 10, CompareMax: 4}, h.leads),
		Builder:   conversations.NewBuilder(model.ContextConfig{HistoryTurns: 10, MaxChars: 12000, MaxItems: 8}),
		Formatter: formatter.New(),
	})
	require.NoError(t, err)
	return h
}

func ask(message, session string) model.AgentRequest {
	return model.AgentRequest{Message: message, DemoID: "showroom", SessionID: session, Locale: model.LocaleEN, CallerID: "10.0.0.1"}
}

func TestHandleValidation(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)

	cases := []struct {
		name string
		req  model.AgentRequest
	}{
		{"empty message", model.AgentRequest{Message: "   ", DemoID: "showroom"}},
		{"missing demo", model.AgentRequest{Message: "hello"}},
		{"too long", model.AgentRequest{Message: string(make([]rune, MaxMessageLen+1)) + "x", DemoID: "showroom"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			resp, err := h.engine.Handle(context.Background(), tc.req)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.Equal(t, http.StatusBadRequest, errx.StatusOf(err))
		})
	}

	stats, err := h.engine.deps.Memory.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Total)
}

func TestHandleToolOnlySearch(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)

	resp, err := h.engine.Handle(context.Background(), ask("show me red sofas under 500", ""))
	require.NoError(t, err)

	assert.Equal(t, model.IntentSearch, resp.Intent)
	assert.Contains(t, resp.Text, "Red Velvet Sofa")
	assert.NotContains(t, resp.Text, "Blue Sofa")
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, model.ActionHighlight, resp.Actions[0].Type)
	assert.Equal(t, "1", resp.Actions[0].ItemID)
	assert.Len(t, resp.Suggestions, 3)
	assert.Regexp(t, `^session_[0-9a-f-]{36}$`, resp.SessionID)
	assert.Zero(t, h.provider.calls.Load())
	assert.Zero(t, h.tracker.Usage("showroom").TotalModelCalls())
}

func TestHandleModelPath(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)

	resp, err := h.engine.Handle(context.Background(), ask("blorp zzz", "s-model"))
	require.NoError(t, err)

	assert.EqualValues(t, 1, h.provider.calls.Load())
	assert.Equal(t, "Our velvet sofa is a favourite.", resp.Text)
	require.Len(t, resp.Actions, 1)
	assert.Equal(t, model.ActionNavigate, resp.Actions[0].Type)
	require.NotNil(t, resp.Actions[0].Anchor)
	assert.Equal(t, "s1", resp.Actions[0].Anchor.SweepID)
	assert.Equal(t, 1, h.tracker.Usage("showroom").ModelCalls[model.TierStandard])
}

func TestHandleSmallTalkStaysLocal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)

	resp, err := h.engine.Handle(context.Background(), ask("Hello!", "s-hi"))
	require.NoError(t, err)

	assert.Equal(t, model.IntentGreeting, resp.Intent)
	assert.NotEmpty(t, resp.Text)
	assert.Zero(t, h.provider.calls.Load())
	assert.Zero(t, h.tracker.Usage("showroom").TotalModelCalls())
}

func TestHandleWritesHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)
	ctx := context.Background()

	_, err := h.engine.Handle(ctx, ask("blorp zzz", "s-hist"))
	require.NoError(t, err)

	hist, err := h.engine.History(ctx, "s-hist")
	require.NoError(t, err)
	assert.True(t, hist.Valid)
	require.Equal(t, 2, hist.Count)
	assert.Equal(t, model.RoleUser, hist.Messages[0].Role)
	assert.Equal(t, "blorp zzz", hist.Messages[0].Content)
	assert.Equal(t, model.RoleAssistant, hist.Messages[1].Role)
	assert.Len(t, hist.Messages[1].Actions, 1)

	sess, err := h.store.Get(ctx, "s-hist")
	require.NoError(t, err)
	assert.Equal(t, string(model.IntentUnknown), sess.Metadata[model.MetaLastIntent])
	assert.Equal(t, "2", sess.Metadata[model.MetaMessageCount])

	require.NoError(t, h.engine.ClearHistory(ctx, "s-hist"))
	hist, err = h.engine.History(ctx, "s-hist")
	require.NoError(t, err)
	assert.False(t, hist.Valid)
	assert.Empty(t, hist.Messages)
}

func TestHandleLeadIsCapturedOnce(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)
	ctx := context.Background()
	msg := "I want to buy the Oslo sofa, my name is Sara and my number is 0100 123 4567"

	first, err := h.engine.Handle(ctx, ask(msg, "s-lead"))
	require.NoError(t, err)
	assert.Equal(t, model.IntentLeadCapture, first.Intent)
	assert.Equal(t, "Thank you! Our team will contact you shortly.", first.Text)

	second, err := h.engine.Handle(ctx, ask(msg, "s-lead"))
	require.NoError(t, err)
	assert.Equal(t, "We already have your details. Our team will be in touch soon.", second.Text)

	assert.EqualValues(t, 1, h.leads.calls.Load())
	sess, err := h.store.Get(ctx, "s-lead")
	require.NoError(t, err)
	assert.Equal(t, "true", sess.Metadata[model.MetaLeadCaptured])
}

func TestHandleRateLimited(t *testing.T) {
	t.Parallel()
	limits := testLimits
	limits.IPLimit = 2
	h := newHarness(t, limits, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := h.engine.Handle(ctx, ask("Hello!", "s-rl"))
		require.NoError(t, err)
	}
	req := ask("Hello!", "s-rl")
	req.Locale = model.LocaleAR
	resp, err := h.engine.Handle(ctx, req)
	require.NoError(t, err)

	require.NotNil(t, resp.RateLimit)
	assert.Equal(t, model.ScopeIP, resp.RateLimit.Scope)
	assert.Positive(t, resp.RateLimit.RetryAfterSeconds)
	assert.Equal(t, model.LocaleAR, resp.Locale)
	assert.NotEmpty(t, resp.Text)

	hist, err := h.engine.History(ctx, "s-rl")
	require.NoError(t, err)
	assert.Equal(t, 4, hist.Count)
}

func TestHandleCatalogFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, catalog.SourceFunc(func(context.Context, string) (*model.Catalog, error) {
		return nil, errors.New("connection refused")
	}))

	resp, err := h.engine.Handle(context.Background(), ask("hello", "s-down"))
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Equal(t, http.StatusBadGateway, errx.StatusOf(err))
	assert.NotContains(t, errx.PublicMessage(err), "connection refused")

	body := h.engine.ErrorResponse(model.AgentRequest{Locale: model.LocaleAR, SessionID: "s-down"})
	assert.Equal(t, model.LocaleAR, body.Locale)
	assert.NotEmpty(t, body.Text)
}

func TestHandleUnknownDemoUsesFallback(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)

	req := ask("Hello!", "s-fallback")
	req.DemoID = "nowhere"
	resp, err := h.engine.Handle(context.Background(), req)
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Text)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	h := newHarness(t, testLimits, nil)
	ctx := context.Background()

	_, err := h.engine.Handle(ctx, ask("Hello!", "s-health"))
	require.NoError(t, err)

	got := h.engine.Health(ctx)
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, EngineName, got.Engine)
	assert.Equal(t, []string{"fake"}, got.Providers)
	assert.Equal(t, 1, got.Sessions.Total)
	assert.Equal(t, 1, got.Cache.Entries)
	assert.Equal(t, 1, got.Usage.Allowed)
}
