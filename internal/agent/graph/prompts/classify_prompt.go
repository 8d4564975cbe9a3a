package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

// Delimiters of the tuple answer format shared with the classification parser.
const (
	TupleDelim    = "<||>"
	RecordDelim   = "##"
	CompleteDelim = "<|COMPLETE|>"
)

//go:embed template/classify.txt
var classifyPrompt string

var classifyEntities = []model.EntityKey{
	model.EntityCategory, model.EntityColor, model.EntityItemID, model.EntityItemName,
	model.EntityMinPrice, model.EntityMaxPrice, model.EntityQuantity, model.EntityEmail,
	model.EntityPhone, model.EntityName, model.EntityLeadType, model.EntityQuery,
}

// RenderClassify renders the intent classification system prompt.
func RenderClassify(ctx context.Context) (string, error) {
	intents := make([]string, 0, len(model.AllIntents))
	for _, it := range model.AllIntents {
		intents = append(intents, "- "+string(it))
	}
	entities := make([]string, 0, len(classifyEntities))
	for _, e := range classifyEntities {
		entities = append(entities, string(e))
	}

	// only known tokens are replaced so tuple parentheses stay intact
	content := strings.NewReplacer(
		"{TD}", TupleDelim,
		"{RD}", RecordDelim,
		"{CD}", CompleteDelim,
		"{intents}", strings.Join(intents, "\n"),
		"{entities}", strings.Join(entities, ", "),
	).Replace(classifyPrompt)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("system_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"system_messages": []*schema.Message{schema.SystemMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("classify prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("classify prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
