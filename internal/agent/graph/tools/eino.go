package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

type agentContextKey struct{}

// WithAgentContext attaches the turn's catalog and session view for the eino tools.
func WithAgentContext(ctx context.Context, ac *model.AgentContext) context.Context {
	return context.WithValue(ctx, agentContextKey{}, ac)
}

func agentContextFrom(ctx context.Context) (*model.AgentContext, error) {
	ac, ok := ctx.Value(agentContextKey{}).(*model.AgentContext)
	if !ok || ac == nil {
		return nil, fmt.Errorf("no agent context on ctx")
	}
	return ac, nil
}

var itemIDParam = &schema.ParameterInfo{Type: schema.String, Desc: "Catalog item ID, as shown in [ID: ...]"}

var toolInfos = []*schema.ToolInfo{
	{
		Name: string(model.ToolSearchItems),
		Desc: "Search the tour catalog. Use when the visitor looks for items by type, color, price or availability.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query":         {Type: schema.String, Desc: "Free-text keywords in English or Arabic"},
			"category":      {Type: schema.String, Desc: "Item category, e.g. sofa, fridge, room"},
			"color":         {Type: schema.String, Desc: "Color filter"},
			"min_price":     {Type: schema.Number, Desc: "Lowest acceptable price"},
			"max_price":     {Type: schema.Number, Desc: "Highest acceptable price"},
			"in_stock_only": {Type: schema.Boolean, Desc: "Only return available items"},
		}),
	},
	{
		Name: string(model.ToolGetItemDetails),
		Desc: "Get full details and price of one item by ID or name.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"item_id": itemIDParam,
			"name":    {Type: schema.String, Desc: "Item name when the ID is not known"},
		}),
	},
	{
		Name: string(model.ToolNavigateToItem),
		Desc: "Move the visitor to an item inside the 3D tour. Use when they ask to see, go to or visit an item.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"item_id": itemIDParam,
			"name":    {Type: schema.String, Desc: "Item name when the ID is not known"},
		}),
	},
	{
		Name: string(model.ToolCompareItems),
		Desc: "Compare 2 to 4 items side by side.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"item_ids": {
				Type:     schema.Array,
				Desc:     "IDs of the items to compare",
				ElemInfo: &schema.ParameterInfo{Type: schema.String},
				Required: true,
			},
		}),
	},
	{
		Name:        string(model.ToolGetContactInfo),
		Desc:        "Get the business phone, WhatsApp, email and address.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{}),
	},
	{
		Name: string(model.ToolCaptureLead),
		Desc: "Record a booking, callback, quote or inquiry request with the visitor's contact details.",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"lead_type": {
				Type: schema.String,
				Desc: "Type of lead",
				Enum: []string{string(LeadInquiry), string(LeadBooking), string(LeadCallback), string(LeadQuote)},
			},
			"contact_name": {Type: schema.String, Desc: "Visitor name"},
			"phone":        {Type: schema.String, Desc: "Visitor phone number"},
			"email":        {Type: schema.String, Desc: "Visitor email"},
			"message":      {Type: schema.String, Desc: "Free-text request"},
		}),
	},
}

// Tools exposes every tool enabled for demo as an eino InvokableTool. The
// turn's AgentContext must be attached with WithAgentContext.
func (e *Executor) Tools(demo *model.DemoConfig) []tool.InvokableTool {
	var out []tool.InvokableTool
	for _, info := range toolInfos {
		name := model.ToolName(info.Name)
		if demo != nil && !demo.ToolEnabled(name) {
			continue
		}
		out = append(out, utils.NewTool(info, func(ctx context.Context, in *Params) (*model.ToolResult, error) {
			ac, err := agentContextFrom(ctx)
			if err != nil {
				return nil, err
			}
			return e.Execute(ctx, name, ac, *in), nil
		}))
	}
	return out
}

// Infos returns the descriptors of the tools enabled for demo.
func (e *Executor) Infos(ctx context.Context, demo *model.DemoConfig) ([]*schema.ToolInfo, error) {
	var infos []*schema.ToolInfo
	for _, t := range e.Tools(demo) {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, err
		}
		infos = append(infos, info)
	}
	return infos, nil
}
