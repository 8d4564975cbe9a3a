package conversations

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"

	"github.com/vtour-agent-core/server/internal/agent/graph/prompts"
	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/intent"
	"github.com/vtour-agent-core/server/internal/agent/model"
)

const maxKnowledge = 5

// BuildInput is everything the builder may draw from for one model call.
type BuildInput struct {
	Message         string
	Locale          model.Locale
	Catalog         *model.Catalog
	Session         *model.SessionMemory
	Intent          model.IntentResult
	ToolResult      *model.ToolResult
	Tools           []*schema.ToolInfo
	CurrentItemID   string
	CurrentLocation string
}

// Builder assembles a bounded prompt: system prompt, recent history and the
// current message.
type Builder struct {
	cfg model.ContextConfig
}

func NewBuilder(cfg model.ContextConfig) *Builder {
	if cfg.HistoryTurns <= 0 {
		cfg.HistoryTurns = 10
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 12000
	}
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = 8
	}
	return &Builder{cfg: cfg}
}

// Build renders the prompt context. When it exceeds the size ceiling the
// oldest history goes first; item excerpts are dropped only once history is
// exhausted, least relevant first.
func (b *Builder) Build(ctx context.Context, in BuildInput) (*model.PromptContext, error) {
	if in.Catalog == nil {
		return nil, fmt.Errorf("build context: no catalog")
	}
	items := b.relevantItems(in)
	history := trimTail(historyOf(in.Session), b.cfg.HistoryTurns)
	vars := b.systemVars(in)

	trimmed := false
	var system string
	rendered := -1
	for {
		if rendered != len(items) {
			vars.Items = itemLines(items, in.Locale, in.Catalog.Demo.Currency)
			var err error
			system, err = prompts.RenderSystem(ctx, in.Locale, vars)
			if err != nil {
				return nil, err
			}
			rendered = len(items)
		}
		size := chars(system) + chars(in.Message)
		for _, m := range history {
			size += chars(m.Content)
		}
		if size <= b.cfg.MaxChars {
			break
		}
		if len(history) > 0 {
			history = history[1:]
		} else if len(items) > 0 {
			items = items[:len(items)-1]
		} else {
			break
		}
		trimmed = true
	}

	msgs := make([]*schema.Message, 0, len(history)+2)
	msgs = append(msgs, schema.SystemMessage(system))
	msgs = append(msgs, history...)
	msgs = append(msgs, schema.UserMessage(in.Message))

	tokens := 0
	for _, m := range msgs {
		tokens += model.EstimateTokens(m.Content)
	}
	return &model.PromptContext{
		Messages:      msgs,
		Items:         items,
		HistoryUsed:   len(history),
		Trimmed:       trimmed,
		TokenEstimate: tokens,
	}, nil
}

func chars(s string) int { return utf8.RuneCountInString(s) }

func historyOf(s *model.SessionMemory) []*schema.Message {
	if s == nil {
		return nil
	}
	out := make([]*schema.Message, 0, len(s.Messages))
	for _, m := range s.Messages {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			out = append(out, schema.UserMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, schema.AssistantMessage(m.Content, nil))
		}
	}
	return out
}

func trimTail(messages []*schema.Message, maxTurns int) []*schema.Message {
	if len(messages) <= maxTurns {
		return messages
	}
	return messages[len(messages)-maxTurns:]
}

// relevantItems prefers what the tool found, then what the entities point at,
// and never hands over the whole catalog.
func (b *Builder) relevantItems(in BuildInput) []model.TourItem {
	var items []model.TourItem
	if in.ToolResult != nil && len(in.ToolResult.Items) > 0 {
		items = append(items, in.ToolResult.Items...)
	} else {
		ents := in.Intent.Entities
		items = tools.Match(in.Catalog, ents.First(model.EntityCategory), ents.First(model.EntityQuery), b.cfg.MaxItems)
		for _, id := range ents[model.EntityItemID] {
			if it, ok := in.Catalog.Item(id); ok {
				items = prepend(items, it)
			}
		}
	}
	if in.CurrentItemID != "" {
		if it, ok := in.Catalog.Item(in.CurrentItemID); ok {
			items = append(items, it)
		}
	}
	seen := map[string]bool{}
	out := items[:0:0]
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		out = append(out, it)
		if len(out) == b.cfg.MaxItems {
			break
		}
	}
	return out
}

func prepend(items []model.TourItem, it model.TourItem) []model.TourItem {
	return append([]model.TourItem{it}, items...)
}

var outOfStock = model.Localized{model.LocaleEN: "out of stock", model.LocaleAR: "غير متوفر"}

func itemLines(items []model.TourItem, l model.Locale, currency string) []string {
	lines := make([]string, 0, len(items))
	for _, it := range items {
		var sb strings.Builder
		sb.WriteString("• ")
		sb.WriteString(it.Title.Get(l))
		sb.WriteString(" [ID: ")
		sb.WriteString(it.ID)
		sb.WriteString("]")
		if it.Price > 0 {
			cur := it.Currency
			if cur == "" {
				cur = currency
			}
			sb.WriteString(" - ")
			sb.WriteString(strconv.FormatFloat(it.Price, 'f', -1, 64))
			if cur != "" {
				sb.WriteString(" " + cur)
			}
		}
		if !it.Available {
			sb.WriteString(" (" + outOfStock.Get(l) + ")")
		}
		if d := strings.TrimSpace(it.Description.Get(l)); d != "" {
			sb.WriteString(": " + truncate(d, 160))
		}
		lines = append(lines, sb.String())
	}
	return lines
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

var contactLabels = map[model.Locale][5]string{
	model.LocaleEN: {"Phone", "WhatsApp", "Email", "Address", "Hours"},
	model.LocaleAR: {"الهاتف", "واتساب", "البريد", "العنوان", "ساعات العمل"},
}

func contactLines(c model.Contact, l model.Locale) []string {
	labels := contactLabels[l]
	if labels[0] == "" {
		labels = contactLabels[model.LocaleEN]
	}
	var out []string
	for i, v := range []string{c.Phone, c.WhatsApp, c.Email, c.Address, c.Hours} {
		if v != "" {
			out = append(out, labels[i]+": "+v)
		}
	}
	return out
}

func navContext(in BuildInput) string {
	var parts []string
	if in.CurrentItemID != "" {
		if it, ok := in.Catalog.Item(in.CurrentItemID); ok {
			parts = append(parts, fmt.Sprintf("%s [ID: %s]", it.Title.Get(in.Locale), it.ID))
		}
	}
	if in.CurrentLocation != "" {
		parts = append(parts, in.CurrentLocation)
	}
	return strings.Join(parts, ", ")
}

func (b *Builder) systemVars(in BuildInput) prompts.SystemVars {
	demo := in.Catalog.Demo
	l := in.Locale
	vars := prompts.SystemVars{
		AgentName:    demo.AgentName.Get(l),
		BusinessName: demo.Name.Get(l),
		Persona:      demo.Persona.Get(l),
		Fragment:     demo.PromptFragment.Get(l),
		WhatsApp:     demo.Contact.WhatsApp,
		NavContext:   navContext(in),
		Contact:      contactLines(demo.Contact, l),
		Knowledge:    relevantKnowledge(in.Catalog.Knowledge, in.Message, l),
	}
	if vars.BusinessName == "" {
		vars.BusinessName = demo.Slug
	}
	if vars.AgentName == "" {
		vars.AgentName = vars.BusinessName
	}
	for _, t := range in.Tools {
		if t != nil {
			vars.Tools = append(vars.Tools, prompts.ToolLine{Name: t.Name, Desc: t.Desc})
		}
	}
	return vars
}

// relevantKnowledge ranks entries by word overlap with the message. With no
// overlap at all the first few entries are used.
func relevantKnowledge(entries []model.KnowledgeEntry, message string, l model.Locale) []prompts.KnowledgeLine {
	if len(entries) == 0 {
		return nil
	}
	words := map[string]bool{}
	for _, w := range intent.Stems(intent.Normalize(message)) {
		if len([]rune(w)) > 2 {
			words[w] = true
		}
	}
	type ranked struct {
		idx   int
		score int
	}
	rs := make([]ranked, len(entries))
	for i, e := range entries {
		rs[i].idx = i
		text := e.Question.Get(l) + " " + e.Category
		for _, w := range intent.Stems(intent.Normalize(text)) {
			if words[w] {
				rs[i].score++
			}
		}
	}
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].score > rs[j].score })

	var out []prompts.KnowledgeLine
	for _, r := range rs {
		if len(out) == maxKnowledge {
			break
		}
		e := entries[r.idx]
		out = append(out, prompts.KnowledgeLine{Question: e.Question.Get(l), Answer: e.Answer.Get(l)})
	}
	return out
}
