package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

func TestParseClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       string
		intent   model.IntentType
		conf     float64
		entities model.Entities
		wantErr  bool
	}{
		{
			name:   "tuples",
			in:     "(intent<||>search<||>0.9)##\n(entity<||>category<||>sofa)##\n(entity<||>color<||>grey)##\n<|COMPLETE|>",
			intent: model.IntentSearch,
			conf:   0.9,
			entities: model.Entities{
				model.EntityCategory: {"sofa"},
				model.EntityColor:    {"grey"},
			},
		},
		{
			name:     "alias label and trailing chatter",
			in:       "Sure!\n(intent<||>booking<||>0.8)##<|COMPLETE|> hope this helps",
			intent:   model.IntentLeadCapture,
			conf:     0.8,
			entities: model.Entities{},
		},
		{
			name:     "most confident intent wins",
			in:       "(intent<||>price<||>0.6)##(intent<||>detail<||>0.75)##",
			intent:   model.IntentDetail,
			conf:     0.75,
			entities: model.Entities{},
		},
		{
			name:     "bad records are skipped",
			in:       "(intent<||>contact<||>1.7)##(intent<||>contact<||>0.7)##garbage##(entity<||>phone)##",
			intent:   model.IntentContact,
			conf:     0.7,
			entities: model.Entities{},
		},
		{
			name:     "json fallback",
			in:       "```json\n{\"intent\": \"product_inquiry\", \"confidence\": 0.8, \"entities\": [\"tv\"]}\n```",
			intent:   model.IntentSearch,
			conf:     0.8,
			entities: model.Entities{model.EntityQuery: {"tv"}},
		},
		{
			name:     "broken json is repaired",
			in:       `{"intent": "business_info", "confidence": 0.9, "entities": {"category": "oven",}`,
			intent:   model.IntentContact,
			conf:     0.9,
			entities: model.Entities{model.EntityCategory: {"oven"}},
		},
		{
			name:    "nothing usable",
			in:      "I think the user wants a sofa.",
			wantErr: true,
		},
		{
			name:    "unknown label only",
			in:      "(intent<||>weather_report<||>0.9)##",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseClassification(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.intent, got.Intent)
			assert.InDelta(t, tt.conf, got.Confidence, 1e-9)
			assert.Equal(t, tt.entities, got.Entities)
		})
	}
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	got, ok := ExtractJSONObject("text {\"a\": {\"b\": 1}} tail")
	require.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, got)

	got, ok = ExtractJSONObject("```\n{\"a\": 1\n```")
	require.True(t, ok)
	assert.Equal(t, `{"a": 1`, got)

	_, ok = ExtractJSONObject("no braces")
	assert.False(t, ok)
}

func TestUnmarshalRepaired(t *testing.T) {
	t.Parallel()

	var v struct {
		Action string `json:"action"`
	}
	require.NoError(t, UnmarshalRepaired([]byte(`{action: 'navigate'`), &v))
	assert.Equal(t, "navigate", v.Action)

	// type errors are not repaired
	var n struct {
		N int `json:"n"`
	}
	assert.Error(t, UnmarshalRepaired([]byte(`{"n": "x"}`), &n))
}
