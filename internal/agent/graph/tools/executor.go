package tools

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// Params is the union of every tool's arguments. Each tool reads the fields
// it understands and ignores the rest.
type Params struct {
	Query         string   `json:"query,omitempty"`
	Category      string   `json:"category,omitempty"`
	Color         string   `json:"color,omitempty"`
	MinPrice      float64  `json:"min_price,omitempty"`
	MaxPrice      float64  `json:"max_price,omitempty"`
	OnlyAvailable bool     `json:"in_stock_only,omitempty"`
	ItemID        string   `json:"item_id,omitempty"`
	Name          string   `json:"name,omitempty"`
	ItemIDs       []string `json:"item_ids,omitempty"`
	Names         []string `json:"names,omitempty"`
	LeadType      string   `json:"lead_type,omitempty"`
	ContactName   string   `json:"contact_name,omitempty"`
	Phone         string   `json:"phone,omitempty"`
	Email         string   `json:"email,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// Call is a resolved tool invocation.
type Call struct {
	Tool   model.ToolName
	Params Params
	// ToolOnly is set when the tool result alone answers the visitor.
	ToolOnly bool
}

type toolFunc func(ctx context.Context, ac *model.AgentContext, p Params) *model.ToolResult

// Executor runs the deterministic business tools against a catalog snapshot.
type Executor struct {
	cfg   model.ToolsConfig
	leads LeadSubmitter
	now   func() time.Time
	funcs map[model.ToolName]toolFunc
}

// NewExecutor builds an executor. A nil submitter logs leads instead of sending them.
func NewExecutor(cfg model.ToolsConfig, leads LeadSubmitter) *Executor {
	if cfg.SearchLimit <= 0 {
		cfg.SearchLimit = 10
	}
	if cfg.CompareMax < 2 {
		cfg.CompareMax = 4
	}
	if leads == nil {
		leads = LogSubmitter{}
	}
	e := &Executor{cfg: cfg, leads: leads, now: time.Now}
	e.funcs = map[model.ToolName]toolFunc{
		model.ToolSearchItems:    e.search,
		model.ToolGetItemDetails: e.details,
		model.ToolNavigateToItem: e.navigate,
		model.ToolCompareItems:   e.compare,
		model.ToolGetContactInfo: e.contact,
		model.ToolCaptureLead:    e.captureLead,
	}
	return e
}

// Select maps a classified intent onto at most one tool. It returns false
// when the intent needs no tool or the tool is disabled for the demo.
func (e *Executor) Select(it model.IntentResult, req *model.AgentRequest, demo *model.DemoConfig) (Call, bool) {
	ents := it.Entities
	p := paramsFromEntities(ents)
	if p.ItemID == "" && p.Name == "" && req != nil {
		p.ItemID = req.CurrentItemID
	}
	hasRef := p.ItemID != "" || p.Name != ""

	var call Call
	switch it.Type {
	case model.IntentSearch, model.IntentAvailability:
		call = Call{Tool: model.ToolSearchItems, ToolOnly: true}
	case model.IntentDetail, model.IntentPrice:
		if hasRef {
			call = Call{Tool: model.ToolGetItemDetails, ToolOnly: true}
		} else {
			call = Call{Tool: model.ToolSearchItems, ToolOnly: true}
		}
	case model.IntentNavigate:
		call = Call{Tool: model.ToolNavigateToItem, ToolOnly: true}
	case model.IntentCompare:
		call = Call{Tool: model.ToolCompareItems, ToolOnly: true}
	case model.IntentContact:
		call = Call{Tool: model.ToolGetContactInfo, ToolOnly: true}
	case model.IntentLeadCapture:
		call = Call{Tool: model.ToolCaptureLead, ToolOnly: true}
	case model.IntentUnknown:
		if ents.First(model.EntityCategory) == "" && ents.First(model.EntityQuery) == "" {
			return Call{}, false
		}
		call = Call{Tool: model.ToolSearchItems}
	default:
		return Call{}, false
	}
	if demo != nil && !demo.ToolEnabled(call.Tool) {
		logx.Debug().Str("tool", string(call.Tool)).Str("demo_id", demo.Slug).Msg("tool disabled for demo")
		return Call{}, false
	}
	call.Params = p
	return call, true
}

// Execute runs the named tool. Business outcomes are reported through the
// result status; a panicking tool is reported as failed.
func (e *Executor) Execute(ctx context.Context, name model.ToolName, ac *model.AgentContext, p Params) (res *model.ToolResult) {
	start := time.Now()
	fn, ok := e.funcs[name]
	if !ok {
		return &model.ToolResult{Tool: name, Status: model.ToolInvalid, Reason: "unknown_tool"}
	}
	if ac == nil || ac.Catalog == nil {
		return &model.ToolResult{Tool: name, Status: model.ToolFailed, Reason: "no_catalog"}
	}
	if !ac.Catalog.Demo.ToolEnabled(name) {
		return &model.ToolResult{Tool: name, Status: model.ToolUnavailable, Reason: "disabled"}
	}

	defer func() {
		if r := recover(); r != nil {
			logx.Error().Str("tool", string(name)).Str("panic", fmt.Sprint(r)).Msg("tool panicked")
			res = &model.ToolResult{Tool: name, Status: model.ToolFailed, Reason: "internal"}
		}
		logx.Debug().
			Str("tool", string(name)).
			Str("status", string(res.Status)).
			Str("reason", res.Reason).
			Int("items", len(res.Items)).
			Dur("took", time.Since(start)).
			Msg("tool executed")
	}()

	res = fn(ctx, ac, p)
	res.Tool = name
	return res
}

// Run is Select followed by Execute.
func (e *Executor) Run(ctx context.Context, it model.IntentResult, req *model.AgentRequest, ac *model.AgentContext) (*Call, *model.ToolResult) {
	var demo *model.DemoConfig
	if ac != nil && ac.Catalog != nil {
		demo = &ac.Catalog.Demo
	}
	call, ok := e.Select(it, req, demo)
	if !ok {
		return nil, nil
	}
	return &call, e.Execute(ctx, call.Tool, ac, call.Params)
}

func paramsFromEntities(ents model.Entities) Params {
	p := Params{
		Query:       ents.First(model.EntityQuery),
		Category:    ents.First(model.EntityCategory),
		Color:       ents.First(model.EntityColor),
		MinPrice:    parsePrice(ents.First(model.EntityMinPrice)),
		MaxPrice:    parsePrice(ents.First(model.EntityMaxPrice)),
		ItemID:      ents.First(model.EntityItemID),
		Name:        ents.First(model.EntityItemName),
		ItemIDs:     append([]string(nil), ents[model.EntityItemID]...),
		Names:       append([]string(nil), ents[model.EntityItemName]...),
		LeadType:    ents.First(model.EntityLeadType),
		ContactName: ents.First(model.EntityName),
		Phone:       ents.First(model.EntityPhone),
		Email:       ents.First(model.EntityEmail),
	}
	return p
}

func parsePrice(v string) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func (e *Executor) search(_ context.Context, ac *model.AgentContext, p Params) *model.ToolResult {
	items, total := searchItems(ac.Catalog, p, e.cfg.SearchLimit)
	if len(items) == 0 {
		return &model.ToolResult{Status: model.ToolNotFound, Reason: "no_match"}
	}
	res := &model.ToolResult{Status: model.ToolOK, Items: items, Total: total}
	for _, it := range items {
		if it.Anchor != nil {
			res.Actions = append(res.Actions, model.AgentAction{
				Type:   model.ActionHighlight,
				ItemID: it.ID,
				Title:  it.Title.Get(ac.Locale),
			})
			break
		}
	}
	return res
}
