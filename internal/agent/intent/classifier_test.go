package intent

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

type fakeCompleter struct {
	calls atomic.Int32
	text  string
	err   error
}

func (f *fakeCompleter) Complete(_ context.Context, req *model.ModelRequest) (*model.ModelResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &model.ModelResult{Text: f.text, Provider: "fake", Tier: req.Tier}, nil
}

var testClassifierConfig = model.ClassifierConfig{SmartThreshold: 0.6, SmartEnabled: true}

func newTestClassifier(t *testing.T, c Completer) *Classifier {
	t.Helper()
	cl, err := New(testClassifierConfig, c)
	require.NoError(t, err)
	return cl
}

func TestFastPath(t *testing.T) {
	t.Parallel()

	cl := newTestClassifier(t, nil)
	tests := []struct {
		name     string
		text     string
		locale   model.Locale
		intent   model.IntentType
		minConf  float64
		entities model.Entities
	}{
		{
			name:     "greeting",
			text:     "Hello!",
			locale:   model.LocaleEN,
			intent:   model.IntentGreeting,
			minConf:  0.7,
			entities: model.Entities{},
		},
		{
			name:    "search with filters",
			text:    "Show me red sofas under 5,000",
			locale:  model.LocaleEN,
			intent:  model.IntentSearch,
			minConf: 0.85,
			entities: model.Entities{
				model.EntityCategory: {"sofa"},
				model.EntityColor:    {"red"},
				model.EntityMaxPrice: {"5000"},
				model.EntityQuery:    {"red sofas"},
			},
		},
		{
			name:    "price range",
			text:    "any chairs between 500 and 1500?",
			locale:  model.LocaleEN,
			intent:  model.IntentSearch,
			minConf: 0.6,
			entities: model.Entities{
				model.EntityCategory: {"chair"},
				model.EntityMinPrice: {"500"},
				model.EntityMaxPrice: {"1500"},
				model.EntityQuery:    {"chairs"},
			},
		},
		{
			name:    "arabic price question",
			text:    "بكم الكنبة الرمادية؟",
			locale:  model.LocaleAR,
			intent:  model.IntentPrice,
			minConf: 0.9,
			entities: model.Entities{
				model.EntityCategory: {"sofa"},
				model.EntityColor:    {"grey"},
				model.EntityItemName: {"الكنبه الرماديه"},
				model.EntityQuery:    {"الكنبه الرماديه"},
			},
		},
		{
			name:     "out of scope wins first",
			text:     "What's the weather like today? show me sofas",
			locale:   model.LocaleEN,
			intent:   model.IntentOutOfScope,
			minConf:  0.95,
			entities: model.Entities{model.EntityCategory: {"sofa"}},
		},
		{
			name:    "lead with contact details",
			text:    "I want to buy the Oslo sofa, my name is Sara and my number is 0100 123 4567",
			locale:  model.LocaleEN,
			intent:  model.IntentLeadCapture,
			minConf: 0.9,
			entities: model.Entities{
				model.EntityCategory: {"sofa"},
				model.EntityPhone:    {"01001234567"},
				model.EntityName:     {"Sara"},
			},
		},
		{
			name:    "compare by item ids",
			text:    "compare item 12 and item 15",
			locale:  model.LocaleEN,
			intent:  model.IntentCompare,
			minConf: 0.85,
			entities: model.Entities{
				model.EntityItemID: {"12", "15"},
			},
		},
		{
			name:    "navigate",
			text:    "take me to the kitchen",
			locale:  model.LocaleEN,
			intent:  model.IntentNavigate,
			minConf: 0.9,
			entities: model.Entities{
				model.EntityItemName: {"kitchen"},
			},
		},
		{
			name:     "arabic greeting",
			text:     "السلام عليكم",
			locale:   model.LocaleAR,
			intent:   model.IntentGreeting,
			minConf:  0.7,
			entities: model.Entities{},
		},
		{
			name:     "arabic text in english session",
			text:     "شكراً جزيلاً",
			locale:   model.LocaleEN,
			intent:   model.IntentFarewell,
			minConf:  0.7,
			entities: model.Entities{},
		},
		{
			name:     "gibberish",
			text:     "blorp zzz",
			locale:   model.LocaleEN,
			intent:   model.IntentUnknown,
			entities: model.Entities{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := cl.Classify(context.Background(), tt.text, tt.locale)
			assert.Equal(t, tt.intent, got.Type)
			assert.GreaterOrEqual(t, got.Confidence, tt.minConf)
			assert.Equal(t, model.TierFast, got.Tier)
			assert.Equal(t, tt.entities, got.Entities)
		})
	}
}

func TestSmartPath(t *testing.T) {
	t.Parallel()

	t.Run("low confidence goes to the model", func(t *testing.T) {
		t.Parallel()
		fc := &fakeCompleter{text: "(intent<||>product_search<||>0.9)##\n(entity<||>category<||>sofa)##\n<|COMPLETE|>"}
		got := newTestClassifier(t, fc).Classify(context.Background(), "wht cuches u hav", model.LocaleEN)

		assert.EqualValues(t, 1, fc.calls.Load())
		assert.Equal(t, model.IntentSearch, got.Type)
		assert.Equal(t, model.TierModel, got.Tier)
		assert.Equal(t, []string{"sofa"}, got.Entities[model.EntityCategory])
	})

	t.Run("confident fast path skips the model", func(t *testing.T) {
		t.Parallel()
		fc := &fakeCompleter{text: "(intent<||>contact<||>0.9)##"}
		got := newTestClassifier(t, fc).Classify(context.Background(), "hello", model.LocaleEN)

		assert.Zero(t, fc.calls.Load())
		assert.Equal(t, model.IntentGreeting, got.Type)
	})

	t.Run("model failure keeps the fast guess", func(t *testing.T) {
		t.Parallel()
		fc := &fakeCompleter{err: errors.New("all providers down")}
		got := newTestClassifier(t, fc).Classify(context.Background(), "blorp zzz", model.LocaleEN)

		assert.EqualValues(t, 1, fc.calls.Load())
		assert.Equal(t, model.IntentUnknown, got.Type)
		assert.Equal(t, model.TierFast, got.Tier)
	})

	t.Run("unparseable answer keeps the fast guess", func(t *testing.T) {
		t.Parallel()
		fc := &fakeCompleter{text: "The visitor seems to want furniture."}
		got := newTestClassifier(t, fc).Classify(context.Background(), "blorp zzz", model.LocaleEN)

		assert.Equal(t, model.IntentUnknown, got.Type)
		assert.Equal(t, model.TierFast, got.Tier)
	})

	t.Run("disabled smart tier", func(t *testing.T) {
		t.Parallel()
		fc := &fakeCompleter{text: "(intent<||>search<||>0.9)##"}
		cl, err := New(model.ClassifierConfig{SmartThreshold: 0.6}, fc)
		require.NoError(t, err)
		got := cl.Classify(context.Background(), "blorp zzz", model.LocaleEN)

		assert.Zero(t, fc.calls.Load())
		assert.Equal(t, model.IntentUnknown, got.Type)
	})
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"  Show ME the SOFAS!! ", "show me the sofas"},
		{"أَهْلاً بِكُم", "اهلا بكم"},
		{"مـــرحبا", "مرحبا"},
		{"الكنبة الرمادية؟", "الكنبه الرماديه"},
		{"سعر ١٢٠٠٠", "سعر 12000"},
		{"what's up", "what's up"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), tt.in)
	}
}

func TestSingular(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]string{
		"sofas":       "sofa",
		"couches":     "couch",
		"dresses":     "dress",
		"accessories": "accessory",
		"glass":       "glass",
		"sofa":        "sofa",
	} {
		assert.Equal(t, want, Singular(in), in)
	}
}

func TestRuleTablesLoad(t *testing.T) {
	t.Parallel()

	for _, l := range []model.Locale{model.LocaleEN, model.LocaleAR} {
		rules, err := loadRules(l)
		require.NoError(t, err)
		require.NotEmpty(t, rules)
		assert.Equal(t, model.IntentOutOfScope, rules[0].intent, "out_of_scope must come first in %s", l)
	}
}
