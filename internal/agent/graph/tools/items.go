package tools

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

// resolve finds the item addressed by id first, then by name.
func resolve(cat *model.Catalog, id, name string) (model.TourItem, bool) {
	if id != "" {
		if it, ok := cat.Item(id); ok {
			return it, true
		}
	}
	if name != "" {
		return bestTitleMatch(cat, name)
	}
	return model.TourItem{}, false
}

func (e *Executor) details(_ context.Context, ac *model.AgentContext, p Params) *model.ToolResult {
	if p.ItemID == "" && p.Name == "" {
		return &model.ToolResult{Status: model.ToolInvalid, Reason: "missing_item"}
	}
	it, ok := resolve(ac.Catalog, p.ItemID, p.Name)
	if !ok {
		return &model.ToolResult{Status: model.ToolNotFound, Reason: "unknown_item"}
	}
	res := &model.ToolResult{Status: model.ToolOK, Items: []model.TourItem{it}, Total: 1}
	if it.Anchor != nil {
		res.Actions = []model.AgentAction{{Type: model.ActionHighlight, ItemID: it.ID, Title: it.Title.Get(ac.Locale)}}
	}
	return res
}

func (e *Executor) navigate(_ context.Context, ac *model.AgentContext, p Params) *model.ToolResult {
	if p.ItemID == "" && p.Name == "" {
		return &model.ToolResult{Status: model.ToolInvalid, Reason: "missing_item"}
	}
	it, ok := resolve(ac.Catalog, p.ItemID, p.Name)
	if !ok {
		return &model.ToolResult{Status: model.ToolNotFound, Reason: "unknown_item"}
	}
	if it.Anchor == nil {
		return &model.ToolResult{Status: model.ToolUnavailable, Reason: "missing_anchor", Items: []model.TourItem{it}}
	}
	anchor := *it.Anchor
	return &model.ToolResult{
		Status: model.ToolOK,
		Items:  []model.TourItem{it},
		Total:  1,
		Actions: []model.AgentAction{{
			Type:   model.ActionNavigate,
			ItemID: it.ID,
			Title:  it.Title.Get(ac.Locale),
			Anchor: &anchor,
		}},
	}
}

var compareLabels = map[model.Locale][4]string{
	model.LocaleEN: {"Title", "Price", "Category", "Availability"},
	model.LocaleAR: {"الاسم", "السعر", "الفئة", "التوفر"},
}

func availabilityLabel(l model.Locale, ok bool) string {
	switch {
	case l.IsArabic() && ok:
		return "متوفر"
	case l.IsArabic():
		return "غير متوفر"
	case ok:
		return "In stock"
	}
	return "Out of stock"
}

// FormatPrice renders a price with its currency, or "-" when unpriced.
func FormatPrice(price float64, currency string) string {
	if price <= 0 {
		return "-"
	}
	s := strconv.FormatFloat(price, 'f', -1, 64)
	if currency == "" {
		return s
	}
	return s + " " + currency
}

func (e *Executor) compare(_ context.Context, ac *model.AgentContext, p Params) *model.ToolResult {
	cat := ac.Catalog
	var items []model.TourItem
	seen := map[string]bool{}
	add := func(it model.TourItem) {
		if !seen[it.ID] {
			seen[it.ID] = true
			items = append(items, it)
		}
	}

	for _, id := range p.ItemIDs {
		it, ok := cat.Item(id)
		if !ok {
			return &model.ToolResult{Status: model.ToolInvalid, Reason: "unknown_item:" + id}
		}
		add(it)
	}
	for _, name := range p.Names {
		it, ok := bestTitleMatch(cat, name)
		if !ok {
			return &model.ToolResult{Status: model.ToolInvalid, Reason: "unknown_item:" + name}
		}
		add(it)
	}
	if len(items) < 2 || len(items) > e.cfg.CompareMax {
		return &model.ToolResult{Status: model.ToolInvalid, Reason: "item_count", Items: items}
	}

	loc := ac.Locale
	labels := compareLabels[loc]
	if labels[0] == "" {
		labels = compareLabels[model.LocaleEN]
	}
	rows := []model.CompareRow{
		{Attribute: labels[0]}, {Attribute: labels[1]}, {Attribute: labels[2]}, {Attribute: labels[3]},
	}
	keys := map[string]bool{}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
		currency := it.Currency
		if currency == "" {
			currency = cat.Demo.Currency
		}
		rows[0].Values = append(rows[0].Values, it.Title.Get(loc))
		rows[1].Values = append(rows[1].Values, FormatPrice(it.Price, currency))
		rows[2].Values = append(rows[2].Values, it.Category)
		rows[3].Values = append(rows[3].Values, availabilityLabel(loc, it.Available))
		for k := range it.Attributes {
			keys[k] = true
		}
	}
	attrs := make([]string, 0, len(keys))
	for k := range keys {
		attrs = append(attrs, k)
	}
	sort.Strings(attrs)
	for _, k := range attrs {
		row := model.CompareRow{Attribute: k}
		for _, it := range items {
			v := strings.TrimSpace(it.Attributes[k])
			if v == "" {
				v = "-"
			}
			row.Values = append(row.Values, v)
		}
		rows = append(rows, row)
	}

	return &model.ToolResult{
		Status:  model.ToolOK,
		Items:   items,
		Total:   len(items),
		Table:   rows,
		Actions: []model.AgentAction{{Type: model.ActionCompare, ItemIDs: ids}},
	}
}

var whatsAppGreeting = model.Localized{
	model.LocaleEN: "Hello, I have a question",
	model.LocaleAR: "مرحباً، لدي استفسار",
}

func (e *Executor) contact(_ context.Context, ac *model.AgentContext, _ Params) *model.ToolResult {
	c := ac.Catalog.Demo.Contact
	if c.Empty() {
		return &model.ToolResult{Status: model.ToolUnavailable, Reason: "no_contact"}
	}
	res := &model.ToolResult{Status: model.ToolOK, Contact: &c}
	if c.WhatsApp != "" {
		res.Actions = []model.AgentAction{{
			Type:    model.ActionOpenWhatsApp,
			Phone:   c.WhatsApp,
			Message: whatsAppGreeting.Get(ac.Locale),
		}}
	}
	return res
}
