package nodes

import (
	"github.com/vtour-agent-core/server/internal/agent/model"
)

func agentContext(t *model.Turn) *model.AgentContext {
	return &model.AgentContext{
		Catalog:   t.Catalog,
		Session:   t.Session,
		Locale:    t.Locale,
		SessionID: t.Session.ID,
		UserID:    t.Request.UserID,
	}
}

func cannedWithTool(t *model.Turn) bool {
	return t.Model != nil && t.Model.Canned && t.ToolResult.OK()
}

func modelText(t *model.Turn) string {
	if t.Model == nil {
		return ""
	}
	return t.Model.Text
}
