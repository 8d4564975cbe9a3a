package conversations

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

func testCatalog() *model.Catalog {
	items := make([]model.TourItem, 0, 12)
	for i := 1; i <= 12; i++ {
		items = append(items, model.TourItem{
			ID:          fmt.Sprint(i),
			Title:       model.Localized{model.LocaleEN: fmt.Sprintf("Sofa %d", i), model.LocaleAR: fmt.Sprintf("كنبة %d", i)},
			Description: model.Localized{model.LocaleEN: "Comfortable three seater"},
			Category:    "sofa",
			Price:       float64(100 * i),
			Available:   i != 2,
		})
	}
	return &model.Catalog{
		Demo: model.DemoConfig{
			Slug:      "casa",
			Name:      model.Localized{model.LocaleEN: "Casa Furniture", model.LocaleAR: "كازا للأثاث"},
			AgentName: model.Localized{model.LocaleEN: "Nour"},
			Persona:   model.Localized{model.LocaleEN: "A furniture consultant"},
			Currency:  "EGP",
			Contact:   model.Contact{Phone: "+20 2 1234", WhatsApp: "+201001234567"},
		},
		Items: items,
		Knowledge: []model.KnowledgeEntry{
			{Question: model.Localized{model.LocaleEN: "Do you deliver?"}, Answer: model.Localized{model.LocaleEN: "Yes, within Cairo."}},
			{Question: model.Localized{model.LocaleEN: "What is the warranty?"}, Answer: model.Localized{model.LocaleEN: "Two years."}},
		},
	}
}

func session(n int, size int) *model.SessionMemory {
	s := &model.SessionMemory{ID: "s1", DemoID: "casa"}
	for i := 0; i < n; i++ {
		role := model.RoleUser
		if i%2 == 1 {
			role = model.RoleAssistant
		}
		content := fmt.Sprintf("m%d ", i) + strings.Repeat("x", size)
		s.Messages = append(s.Messages, model.ConversationMessage{Role: role, Content: content})
	}
	return s
}

func TestBuildAssemblesPrompt(t *testing.T) {
	t.Parallel()
	b := NewBuilder(model.ContextConfig{})
	cat := testCatalog()

	pc, err := b.Build(context.Background(), BuildInput{
		Message:       "do you deliver sofas?",
		Locale:        model.LocaleEN,
		Catalog:       cat,
		Session:       session(14, 10),
		Intent:        model.IntentResult{Entities: model.Entities{model.EntityCategory: {"sofa"}}},
		Tools:         []*schema.ToolInfo{{Name: "search_items", Desc: "Search the catalog"}},
		CurrentItemID: "3",
	})
	require.NoError(t, err)

	require.Len(t, pc.Messages, 12)
	assert.Equal(t, schema.System, pc.Messages[0].Role)
	assert.Equal(t, schema.User, pc.Messages[11].Role)
	assert.Equal(t, "do you deliver sofas?", pc.Messages[11].Content)
	assert.True(t, strings.HasPrefix(pc.Messages[1].Content, "m4 "))
	assert.Equal(t, 10, pc.HistoryUsed)
	assert.False(t, pc.Trimmed)

	sys := pc.Messages[0].Content
	assert.Contains(t, sys, "You are Nour")
	assert.Contains(t, sys, "• Sofa 1 [ID: 1] - 100 EGP")
	assert.Contains(t, sys, "• Sofa 2 [ID: 2] - 200 EGP (out of stock)")
	assert.Contains(t, sys, "VISITOR POSITION: Sofa 3 [ID: 3]")
	assert.Contains(t, sys, "search_items: Search the catalog")
	assert.Contains(t, sys, "Q: Do you deliver?")
	assert.Contains(t, sys, "WhatsApp: +201001234567")
	assert.NotContains(t, sys, "[ID: 9]")
	assert.Len(t, pc.Items, 8)
	assert.Positive(t, pc.TokenEstimate)
}

func TestBuildPrefersToolItems(t *testing.T) {
	t.Parallel()
	b := NewBuilder(model.ContextConfig{})
	cat := testCatalog()
	it, _ := cat.Item("11")

	pc, err := b.Build(context.Background(), BuildInput{
		Message:    "tell me more",
		Locale:     model.LocaleAR,
		Catalog:    cat,
		ToolResult: &model.ToolResult{Status: model.ToolOK, Items: []model.TourItem{it}},
		Intent:     model.IntentResult{Entities: model.Entities{model.EntityCategory: {"sofa"}}},
	})
	require.NoError(t, err)
	require.Len(t, pc.Items, 1)
	assert.Contains(t, pc.Messages[0].Content, "• كنبة 11 [ID: 11] - 1100 EGP")
	assert.Contains(t, pc.Messages[0].Content, "أجب باللغة العربية.")
}

func TestBuildNeverSendsWholeCatalog(t *testing.T) {
	t.Parallel()
	b := NewBuilder(model.ContextConfig{})
	pc, err := b.Build(context.Background(), BuildInput{Message: "hello", Locale: model.LocaleEN, Catalog: testCatalog()})
	require.NoError(t, err)
	assert.Empty(t, pc.Items)
	assert.Contains(t, pc.Messages[0].Content, "No items match this question.")
}

func TestBuildTrimsHistoryBeforeItems(t *testing.T) {
	t.Parallel()
	cat := testCatalog()
	in := BuildInput{
		Message: "show sofas",
		Locale:  model.LocaleEN,
		Catalog: cat,
		Session: session(10, 400),
		Intent:  model.IntentResult{Entities: model.Entities{model.EntityCategory: {"sofa"}}},
	}

	full, err := NewBuilder(model.ContextConfig{MaxChars: 100000}).Build(context.Background(), in)
	require.NoError(t, err)
	systemSize := chars(full.Messages[0].Content) + chars(in.Message)

	// Room for the system prompt and three history messages.
	limit := systemSize + 3*chars(full.Messages[1].Content) + 10
	pc, err := NewBuilder(model.ContextConfig{MaxChars: limit}).Build(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, pc.Trimmed)
	assert.Equal(t, 3, pc.HistoryUsed)
	assert.Len(t, pc.Items, 8)
	assert.True(t, strings.HasPrefix(pc.Messages[1].Content, "m7 "))

	// Too small even for the full item list: history is gone, then items shrink.
	pc, err = NewBuilder(model.ContextConfig{MaxChars: systemSize - 100}).Build(context.Background(), in)
	require.NoError(t, err)
	assert.Zero(t, pc.HistoryUsed)
	assert.Less(t, len(pc.Items), 8)
	assert.Equal(t, "1", pc.Items[0].ID)
}
