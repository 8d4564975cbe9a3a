package formatter

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/vtour-agent-core/server/internal/agent/graph/parsers"
	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const MaxTextLen = 2000

// FormatInput carries the turn data the formatter resolves markers against.
type FormatInput struct {
	Locale    model.Locale
	SessionID string
	Intent    model.IntentType
	Catalog   *model.Catalog
}

// Formatter turns raw model text or tool results into an AgentResponse.
type Formatter struct {
	now func() time.Time
}

func New() *Formatter {
	return &Formatter{now: time.Now}
}

var (
	markerRe      = regexp.MustCompile(`\[\[([A-Za-z_]+)(?::([^\]]*))?\]\]`)
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(\\{.*?)\\s*```")
	inlineBlockRe = regexp.MustCompile(`\{[^{}]*"action"\s*:[^{}]*\}`)
	spaceRunRe    = regexp.MustCompile(`[ \t\f\v]+`)
	blankRunRe    = regexp.MustCompile(`\n\s*\n(\s*\n)+`)
	profanityRe   = regexp.MustCompile(`(?i)\b(fuck\w*|shit\w*|bitch\w*|asshole\w*|bastard\w*|damn)\b|اللعنه|اللعنة|يلعن`)
)

// actionBlock is the optional JSON directive a model may append.
type actionBlock struct {
	Action   string   `json:"action"`
	ItemID   string   `json:"itemId"`
	ItemIDSn string   `json:"item_id"`
	ItemIDs  []string `json:"itemIds"`
	Phone    string   `json:"phone"`
	Message  string   `json:"message"`
	FormType string   `json:"formType"`
	Quantity int      `json:"quantity"`
}

// Format parses markers and an optional JSON action block out of raw model
// text. Anything it cannot parse is dropped rather than failing the turn.
func (f *Formatter) Format(raw string, in FormatInput) *model.AgentResponse {
	text, actions := f.extractActionBlock(raw, in)
	text, markerActions := f.extractMarkers(text, in)
	actions = dedupe(append(actions, markerActions...))

	resp := f.base(in)
	resp.Text = CleanText(text)
	resp.Actions = actions
	resp.Suggestions = Suggestions(in.Intent, in.Locale)
	return f.ensureValid(resp, in)
}

func (f *Formatter) base(in FormatInput) *model.AgentResponse {
	return &model.AgentResponse{
		Intent:    in.Intent,
		SessionID: in.SessionID,
		Locale:    in.Locale,
		Timestamp: f.now().UTC(),
		Actions:   []model.AgentAction{},
	}
}

func (f *Formatter) ensureValid(resp *model.AgentResponse, in FormatInput) *model.AgentResponse {
	if err := Validate(resp); err != nil {
		logx.Warn().Err(err).Str("session_id", in.SessionID).Str("intent", string(in.Intent)).Msg("response failed validation, using safe reply")
		return f.Safe(in)
	}
	return resp
}

func (f *Formatter) extractActionBlock(raw string, in FormatInput) (string, []model.AgentAction) {
	loc := fencedBlockRe.FindStringSubmatchIndex(raw)
	var body string
	if loc != nil {
		body = raw[loc[2]:loc[3]]
	} else if loc = inlineBlockRe.FindStringIndex(raw); loc != nil {
		body = raw[loc[0]:loc[1]]
	} else {
		return raw, nil
	}
	text := raw[:loc[0]] + raw[loc[1]:]

	obj, ok := parsers.ExtractJSONObject(body)
	if !ok {
		return text, nil
	}
	var blk actionBlock
	if err := parsers.UnmarshalRepaired([]byte(obj), &blk); err != nil {
		logx.Debug().Err(err).Msg("dropping unparseable action block")
		return text, nil
	}
	if blk.ItemID == "" {
		blk.ItemID = blk.ItemIDSn
	}
	a, ok := f.resolve(model.AgentAction{
		Type:     model.ActionType(strings.ToLower(strings.TrimSpace(blk.Action))),
		ItemID:   blk.ItemID,
		ItemIDs:  blk.ItemIDs,
		Phone:    blk.Phone,
		Message:  blk.Message,
		FormType: blk.FormType,
		Quantity: blk.Quantity,
	}, in)
	if !ok {
		return text, nil
	}
	return text, []model.AgentAction{a}
}

func (f *Formatter) extractMarkers(text string, in FormatInput) (string, []model.AgentAction) {
	var actions []model.AgentAction
	whatsApp := false
	for _, m := range markerRe.FindAllStringSubmatch(text, -1) {
		name := strings.ToUpper(m[1])
		args := splitArgs(m[2])
		var a model.AgentAction
		switch name {
		case "FLY_TO":
			a = model.AgentAction{Type: model.ActionNavigate, ItemID: arg(args, 0), Title: arg(args, 1)}
		case "HIGHLIGHT":
			a = model.AgentAction{Type: model.ActionHighlight, ItemID: arg(args, 0)}
		case "COMPARE":
			var ids []string
			for _, id := range strings.Split(m[2], ",") {
				if id = strings.TrimSpace(id); id != "" {
					ids = append(ids, id)
				}
			}
			a = model.AgentAction{Type: model.ActionCompare, ItemIDs: ids}
		case "WHATSAPP":
			if whatsApp {
				continue
			}
			parts := append(strings.SplitN(m[2], ":", 2), "")
			a = model.AgentAction{Type: model.ActionOpenWhatsApp, Phone: strings.TrimSpace(parts[0]), Message: strings.TrimSpace(parts[1])}
		case "LEAD":
			a = model.AgentAction{Type: model.ActionOpenForm, FormType: arg(args, 0)}
		case "ADD_TO_CART":
			qty, _ := strconv.Atoi(arg(args, 1))
			a = model.AgentAction{Type: model.ActionAddToCart, ItemID: arg(args, 0), Quantity: qty}
		default:
			continue
		}
		if resolved, ok := f.resolve(a, in); ok {
			if resolved.Type == model.ActionOpenWhatsApp {
				whatsApp = true
			}
			actions = append(actions, resolved)
		}
	}
	return markerRe.ReplaceAllString(text, ""), actions
}

// resolve fills an action from the catalog and rejects it when its target
// does not exist.
func (f *Formatter) resolve(a model.AgentAction, in FormatInput) (model.AgentAction, bool) {
	cat := in.Catalog
	lookup := func(id string) (model.TourItem, bool) {
		if cat == nil || id == "" {
			return model.TourItem{}, false
		}
		return cat.Item(id)
	}
	switch a.Type {
	case model.ActionNavigate, model.ActionHighlight:
		it, ok := lookup(a.ItemID)
		if !ok {
			return a, false
		}
		a.ItemID = it.ID
		a.Title = it.Title.Get(in.Locale)
		if a.Type == model.ActionNavigate {
			if it.Anchor == nil {
				a.Type = model.ActionHighlight
			} else {
				anchor := *it.Anchor
				a.Anchor = &anchor
			}
		}
	case model.ActionAddToCart:
		it, ok := lookup(a.ItemID)
		if !ok {
			return a, false
		}
		a.ItemID = it.ID
		a.Title = it.Title.Get(in.Locale)
		if a.Quantity <= 0 {
			a.Quantity = 1
		}
	case model.ActionCompare:
		var ids []string
		for _, id := range a.ItemIDs {
			if it, ok := lookup(id); ok {
				ids = append(ids, it.ID)
			}
		}
		if len(ids) < 2 {
			return a, false
		}
		a.ItemIDs = ids
	case model.ActionOpenWhatsApp:
		if a.Phone == "" && cat != nil {
			a.Phone = cat.Demo.Contact.WhatsApp
			if a.Phone == "" {
				a.Phone = cat.Demo.Contact.Phone
			}
		}
		if a.Phone == "" {
			return a, false
		}
		if a.Message == "" {
			a.Message = whatsAppGreeting.Get(in.Locale)
		}
	case model.ActionOpenForm:
		a.FormType = string(tools.ParseLeadType(a.FormType))
	default:
		return a, false
	}
	return a, true
}

func splitArgs(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func arg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}

func dedupe(actions []model.AgentAction) []model.AgentAction {
	out := make([]model.AgentAction, 0, len(actions))
	seen := map[string]bool{}
	for _, a := range actions {
		key := string(a.Type) + "|" + a.ItemID + "|" + strings.Join(a.ItemIDs, ",") + "|" + a.FormType
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, a)
	}
	return out
}

// CleanText masks profanity, collapses whitespace and truncates overly long
// replies at a word boundary.
func CleanText(s string) string {
	s = profanityRe.ReplaceAllString(s, "***")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRunRe.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankRunRe.ReplaceAllString(s, "\n\n")
	s = strings.TrimSpace(s)
	return truncate(s, MaxTextLen)
}

func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	cut := limit - 1
	for i := cut; i > limit/2; i-- {
		if unicode.IsSpace(r[i]) {
			cut = i
			break
		}
	}
	return strings.TrimRightFunc(string(r[:cut]), unicode.IsSpace) + "…"
}
