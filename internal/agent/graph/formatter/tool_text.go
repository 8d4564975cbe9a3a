package formatter

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/model"
)

const maxListed = 5

var toolTexts = map[string]model.Localized{
	"search.found":      {model.LocaleEN: "I found %d matching items:", model.LocaleAR: "وجدت %d من المنتجات المطابقة:"},
	"search.more":       {model.LocaleEN: "…and %d more.", model.LocaleAR: "…و%d غيرها."},
	"search.none":       {model.LocaleEN: "I couldn't find anything matching that. Try another name or category.", model.LocaleAR: "لم أجد شيئاً مطابقاً. جرّب اسماً أو فئة أخرى."},
	"item.unknown":      {model.LocaleEN: "I couldn't find that item. Could you tell me its name?", model.LocaleAR: "لم أجد هذا المنتج. هل يمكنك إخباري باسمه؟"},
	"item.price":        {model.LocaleEN: "Price", model.LocaleAR: "السعر"},
	"navigate.ok":       {model.LocaleEN: "Taking you to %s now.", model.LocaleAR: "سأنقلك إلى %s الآن."},
	"navigate.noanchor": {model.LocaleEN: "%s isn't placed in the tour yet, but here are its details:", model.LocaleAR: "%s غير موجود في الجولة بعد، وهذه تفاصيله:"},
	"compare.ok":        {model.LocaleEN: "Here's how they compare:", model.LocaleAR: "إليك المقارنة:"},
	"compare.count":     {model.LocaleEN: "Please name 2 to 4 items to compare.", model.LocaleAR: "يرجى ذكر من 2 إلى 4 منتجات للمقارنة."},
	"compare.unknown":   {model.LocaleEN: "I couldn't find one of those items. Could you check the names?", model.LocaleAR: "لم أجد أحد هذه المنتجات. هل يمكنك التحقق من الأسماء؟"},
	"contact.ok":        {model.LocaleEN: "Here's how to reach us:", model.LocaleAR: "يمكنك التواصل معنا عبر:"},
	"contact.none":      {model.LocaleEN: "Contact details aren't available right now.", model.LocaleAR: "معلومات التواصل غير متاحة حالياً."},
	"lead.ok":           {model.LocaleEN: "Thank you! Our team will contact you shortly.", model.LocaleAR: "شكراً لك! سيتواصل معك فريقنا قريباً."},
	"lead.already":      {model.LocaleEN: "We already have your details. Our team will be in touch soon.", model.LocaleAR: "لدينا بياناتك بالفعل. سيتواصل معك فريقنا قريباً."},
	"lead.missing":      {model.LocaleEN: "Please leave your phone number or email and we'll get back to you.", model.LocaleAR: "يرجى ترك رقم هاتفك أو بريدك الإلكتروني وسنعاود التواصل معك."},
	"lead.failed":       {model.LocaleEN: "Sorry, I couldn't send your request. Please try again or contact us directly.", model.LocaleAR: "عذراً، لم أتمكن من إرسال طلبك. يرجى المحاولة مرة أخرى أو التواصل معنا مباشرة."},
	"tool.disabled":     {model.LocaleEN: "That isn't available in this tour.", model.LocaleAR: "هذه الخدمة غير متاحة في هذه الجولة."},
	"tool.failed":       {model.LocaleEN: "Sorry, I couldn't complete that right now. Please try again.", model.LocaleAR: "عذراً، لم أتمكن من إتمام ذلك الآن. يرجى المحاولة مرة أخرى."},
	"availability.in":   {model.LocaleEN: "In stock", model.LocaleAR: "متوفر"},
	"availability.out":  {model.LocaleEN: "Out of stock", model.LocaleAR: "غير متوفر"},
	"contact.phone":     {model.LocaleEN: "Phone", model.LocaleAR: "الهاتف"},
	"contact.whatsapp":  {model.LocaleEN: "WhatsApp", model.LocaleAR: "واتساب"},
	"contact.email":     {model.LocaleEN: "Email", model.LocaleAR: "البريد الإلكتروني"},
	"contact.address":   {model.LocaleEN: "Address", model.LocaleAR: "العنوان"},
	"contact.hours":     {model.LocaleEN: "Hours", model.LocaleAR: "ساعات العمل"},
}

func tr(key string, loc model.Locale) string { return toolTexts[key].Get(loc) }

// FromTool renders a tool result directly, without a model call. The
// result's actions are passed through after the same target checks that
// model markers get.
func (f *Formatter) FromTool(res *model.ToolResult, in FormatInput) *model.AgentResponse {
	if res == nil {
		return f.Safe(in)
	}
	resp := f.base(in)
	resp.Text = CleanText(toolText(res, in))
	for _, a := range res.Actions {
		if resolved, ok := f.resolve(a, in); ok {
			resp.Actions = append(resp.Actions, resolved)
		}
	}
	resp.Actions = dedupe(resp.Actions)
	resp.Suggestions = Suggestions(in.Intent, in.Locale)
	return f.ensureValid(resp, in)
}

func toolText(res *model.ToolResult, in FormatInput) string {
	loc := in.Locale
	switch res.Reason {
	case "disabled":
		return tr("tool.disabled", loc)
	case "internal", "no_catalog", "unknown_tool":
		return tr("tool.failed", loc)
	}

	switch res.Tool {
	case model.ToolSearchItems:
		if !res.OK() || len(res.Items) == 0 {
			return tr("search.none", loc)
		}
		return searchText(res, in)
	case model.ToolGetItemDetails:
		if !res.OK() || len(res.Items) == 0 {
			return tr("item.unknown", loc)
		}
		return detailText(res.Items[0], in)
	case model.ToolNavigateToItem:
		if len(res.Items) == 0 {
			return tr("item.unknown", loc)
		}
		title := res.Items[0].Title.Get(loc)
		if res.OK() {
			return fmt.Sprintf(tr("navigate.ok", loc), title)
		}
		return fmt.Sprintf(tr("navigate.noanchor", loc), title) + "\n" + detailText(res.Items[0], in)
	case model.ToolCompareItems:
		switch {
		case res.OK():
			return compareText(res, loc)
		case res.Reason == "item_count":
			return tr("compare.count", loc)
		}
		return tr("compare.unknown", loc)
	case model.ToolGetContactInfo:
		if !res.OK() || res.Contact == nil {
			return tr("contact.none", loc)
		}
		return tr("contact.ok", loc) + "\n" + contactText(*res.Contact, loc)
	case model.ToolCaptureLead:
		switch {
		case res.Reason == "already_captured":
			return tr("lead.already", loc)
		case res.OK():
			return tr("lead.ok", loc)
		case res.Status == model.ToolInvalid:
			return tr("lead.missing", loc)
		}
		return tr("lead.failed", loc)
	}
	return tr("tool.failed", loc)
}

func currencyOf(it model.TourItem, cat *model.Catalog) string {
	if it.Currency != "" || cat == nil {
		return it.Currency
	}
	return cat.Demo.Currency
}

func itemLine(it model.TourItem, in FormatInput) string {
	line := "• " + it.Title.Get(in.Locale)
	if it.Price > 0 {
		line += " - " + tools.FormatPrice(it.Price, currencyOf(it, in.Catalog))
	}
	if !it.Available {
		line += " (" + tr("availability.out", in.Locale) + ")"
	}
	return line
}

func searchText(res *model.ToolResult, in FormatInput) string {
	total := max(res.Total, len(res.Items))
	lines := []string{fmt.Sprintf(tr("search.found", in.Locale), total)}
	for i, it := range res.Items {
		if i == maxListed {
			break
		}
		lines = append(lines, itemLine(it, in))
	}
	if rest := total - min(len(res.Items), maxListed); rest > 0 {
		lines = append(lines, fmt.Sprintf(tr("search.more", in.Locale), rest))
	}
	return strings.Join(lines, "\n")
}

func detailText(it model.TourItem, in FormatInput) string {
	loc := in.Locale
	lines := []string{it.Title.Get(loc)}
	if d := it.Description.Get(loc); d != "" {
		lines = append(lines, d)
	}
	if it.Price > 0 {
		lines = append(lines, tr("item.price", loc)+": "+tools.FormatPrice(it.Price, currencyOf(it, in.Catalog)))
	}
	if it.Available {
		lines = append(lines, tr("availability.in", loc))
	} else {
		lines = append(lines, tr("availability.out", loc))
	}
	keys := make([]string, 0, len(it.Attributes))
	for k := range it.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+it.Attributes[k])
	}
	return strings.Join(lines, "\n")
}

func compareText(res *model.ToolResult, loc model.Locale) string {
	lines := []string{tr("compare.ok", loc)}
	for _, row := range res.Table {
		lines = append(lines, "• "+row.Attribute+": "+strings.Join(row.Values, " | "))
	}
	return strings.Join(lines, "\n")
}

func contactText(c model.Contact, loc model.Locale) string {
	var lines []string
	add := func(key, v string) {
		if v != "" {
			lines = append(lines, "• "+tr(key, loc)+": "+v)
		}
	}
	add("contact.phone", c.Phone)
	add("contact.whatsapp", c.WhatsApp)
	add("contact.email", c.Email)
	add("contact.address", c.Address)
	add("contact.hours", c.Hours)
	return strings.Join(lines, "\n")
}
