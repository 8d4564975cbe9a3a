package nodes

import (
	"context"

	"github.com/cloudwego/eino/compose"

	"github.com/vtour-agent-core/server/internal/agent/graph/conversations"
	"github.com/vtour-agent-core/server/internal/agent/graph/formatter"
	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/intent"
	"github.com/vtour-agent-core/server/internal/agent/model"
	"github.com/vtour-agent-core/server/internal/agent/router"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

const (
	NodeClassify = "Classify"
	NodeTools    = "ToolExecutor"
	NodeContext  = "ContextBuilder"
	NodeModel    = "ModelRouter"
	NodeFormat   = "ResponseFormatter"
)

// NewClassifyNode resolves the intent of the turn. Classification never
// fails the turn.
func NewClassifyNode(c *intent.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		t.Intent = c.Classify(ctx, t.Request.Message, t.Locale)
		logx.Debug().
			Str("session_id", t.Session.ID).
			Str("intent", string(t.Intent.Type)).
			Float64("confidence", t.Intent.Confidence).
			Str("tier", string(t.Intent.Tier)).
			Msg("intent classified")
		return t, nil
	})
}

// NewToolsNode runs at most one deterministic tool for the intent.
func NewToolsNode(ex *tools.Executor) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		call, res := ex.Run(ctx, t.Intent, &t.Request, agentContext(t))
		if call == nil {
			return t, nil
		}
		t.Tool = call.Tool
		t.ToolResult = res
		// A failed tool leaves the answer to the model.
		t.ToolOnly = call.ToolOnly && res.Status != model.ToolFailed
		return t, nil
	})
}

// NewToolOnlyCondition sends tool-answered turns straight to the formatter.
func NewToolOnlyCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, t *model.Turn) (string, error) {
		if t.ToolOnly {
			return NodeFormat, nil
		}
		return NodeContext, nil
	}
}

// NewContextNode picks the model tier and, for external tiers, assembles the
// prompt. A prompt that cannot be rendered downgrades the turn to the local tier.
func NewContextNode(b *conversations.Builder, ex *tools.Executor, r *router.Router) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		choice := r.RouteToModel(t.Intent.Type, t.Request.DemoID)
		t.Tier = choice.Tier
		logx.Debug().Str("session_id", t.Session.ID).Str("tier", string(choice.Tier)).Str("reason", choice.Reason).Msg("model routed")
		if choice.Local() {
			return t, nil
		}

		infos, err := ex.Infos(ctx, &t.Catalog.Demo)
		if err != nil {
			logx.Warn().Err(err).Msg("tool infos unavailable, prompting without them")
		}
		pc, err := b.Build(ctx, conversations.BuildInput{
			Message:         t.Request.Message,
			Locale:          t.Locale,
			Catalog:         t.Catalog,
			Session:         t.Session,
			Intent:          t.Intent,
			ToolResult:      t.ToolResult,
			Tools:           infos,
			CurrentItemID:   t.Request.CurrentItemID,
			CurrentLocation: t.Request.CurrentLocation,
		})
		if err != nil {
			logx.Error().Err(err).Str("session_id", t.Session.ID).Msg("prompt build failed, answering locally")
			t.Tier = model.TierLocal
			return t, nil
		}
		t.Prompt = pc
		return t, nil
	})
}

// NewModelNode asks the router for text. It always yields some text.
func NewModelNode(r *router.Router) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		demo := &t.Catalog.Demo
		req := &model.ModelRequest{
			Tier:      t.Tier,
			Intent:    t.Intent.Type,
			Locale:    t.Locale,
			DemoID:    t.Request.DemoID,
			AgentName: demo.AgentName.Get(t.Locale),
			Greeting:  demo.Greeting.Get(t.Locale),
		}
		if t.Prompt != nil {
			req.Messages = t.Prompt.Messages
		}
		t.Model = r.Generate(ctx, req)
		return t, nil
	})
}

// NewFormatNode turns the tool result or model text into the response.
// When the model chain fell back to a canned reply, a successful tool result
// is the better answer.
func NewFormatNode(f *formatter.Formatter) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		in := formatter.FormatInput{
			Locale:    t.Locale,
			SessionID: t.Session.ID,
			Intent:    t.Intent.Type,
			Catalog:   t.Catalog,
		}
		switch {
		case t.ToolOnly:
			t.Response = f.FromTool(t.ToolResult, in)
		case cannedWithTool(t):
			t.Response = f.FromTool(t.ToolResult, in)
		default:
			t.Response = f.Format(modelText(t), in)
		}
		return t, nil
	})
}
