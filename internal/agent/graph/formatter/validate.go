package formatter

import (
	"fmt"
	"strings"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

const (
	MinSuggestions = 2
	MaxSuggestions = 4
)

// Validate checks the shape of a response before it leaves the core.
func Validate(resp *model.AgentResponse) error {
	if resp == nil {
		return fmt.Errorf("nil response")
	}
	if strings.TrimSpace(resp.Text) == "" {
		return fmt.Errorf("empty text")
	}
	if n := len([]rune(resp.Text)); n > MaxTextLen+1 {
		return fmt.Errorf("text too long: %d", n)
	}
	for i, a := range resp.Actions {
		if err := validateAction(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	if n := len(resp.Suggestions); n < MinSuggestions || n > MaxSuggestions {
		return fmt.Errorf("suggestion count %d out of range", n)
	}
	for _, s := range resp.Suggestions {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("empty suggestion")
		}
	}
	return nil
}

func validateAction(a model.AgentAction) error {
	if !a.Type.Valid() {
		return fmt.Errorf("unknown type %q", a.Type)
	}
	switch a.Type {
	case model.ActionNavigate, model.ActionHighlight, model.ActionAddToCart:
		if a.ItemID == "" {
			return fmt.Errorf("%s without item", a.Type)
		}
	case model.ActionCompare:
		if len(a.ItemIDs) < 2 {
			return fmt.Errorf("compare needs two items")
		}
	case model.ActionOpenWhatsApp:
		if a.Phone == "" {
			return fmt.Errorf("whatsapp without phone")
		}
	case model.ActionOpenForm:
		if a.FormType == "" {
			return fmt.Errorf("form without type")
		}
	}
	return nil
}
