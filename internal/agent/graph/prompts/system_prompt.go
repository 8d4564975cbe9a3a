package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

//go:embed template/system_en.txt
var systemPromptEN string

//go:embed template/system_ar.txt
var systemPromptAR string

// ToolLine describes one tool to the model.
type ToolLine struct {
	Name string
	Desc string
}

// KnowledgeLine is one rendered question/answer pair.
type KnowledgeLine struct {
	Question string
	Answer   string
}

// SystemVars feeds the per-locale system prompt. Items and Contact are
// pre-formatted lines.
type SystemVars struct {
	AgentName    string
	BusinessName string
	Persona      string
	Fragment     string
	WhatsApp     string
	NavContext   string
	Tools        []ToolLine
	Items        []string
	Knowledge    []KnowledgeLine
	Contact      []string
}

// RenderSystem renders the system prompt for locale through the Eino prompt
// component so prompt callbacks fire.
func RenderSystem(ctx context.Context, locale model.Locale, vars SystemVars) (string, error) {
	tplText := systemPromptEN
	if locale.IsArabic() {
		tplText = systemPromptAR
	}

	tpl := prompt.FromMessages(
		schema.GoTemplate,
		schema.SystemMessage(tplText),
	)
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{Name: "system_" + string(locale), Type: "GoTemplate", Component: components.ComponentOfPrompt})
	msgs, err := tpl.Format(ctx, map[string]any{
		"AgentName":    vars.AgentName,
		"BusinessName": vars.BusinessName,
		"Persona":      vars.Persona,
		"Fragment":     vars.Fragment,
		"WhatsApp":     vars.WhatsApp,
		"NavContext":   vars.NavContext,
		"Tools":        vars.Tools,
		"Items":        vars.Items,
		"Knowledge":    vars.Knowledge,
		"Contact":      vars.Contact,
	})
	if err != nil {
		return "", fmt.Errorf("system prompt render: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("system prompt render: empty result")
	}
	return msgs[0].Content, nil
}
