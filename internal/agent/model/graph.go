package model

import (
	"time"

	"github.com/cloudwego/eino/schema"
)

// Turn is the per-invocation state carried through the Agent Core graph.
// Each node reads what earlier nodes produced and fills its own fields; the
// graph runs its nodes sequentially, so no locking is needed.
type Turn struct {
	Request AgentRequest
	// Locale is the session locale, fixed when the session was created.
	Locale  Locale
	Session *SessionMemory // snapshot, never written back directly
	Catalog *Catalog

	Intent     IntentResult
	Tool       ToolName
	ToolResult *ToolResult
	// ToolOnly is set when the tool result (or a canned reply) fully answers the turn.
	ToolOnly bool

	// Tier is the routing decision for the model path.
	Tier     Tier
	Prompt   *PromptContext
	Model    *ModelResult
	Response *AgentResponse
}

// ModelRequest is what the router hands to a provider.
type ModelRequest struct {
	Tier        Tier
	Intent      IntentType
	Locale      Locale
	DemoID      string
	Messages    []*schema.Message
	Temperature float32
	MaxTokens   int
	// AgentName and Greeting personalise the canned local replies.
	AgentName string
	Greeting  string
}

// PromptContext is the bounded prompt assembled for a model call.
type PromptContext struct {
	Messages      []*schema.Message
	Items         []TourItem
	HistoryUsed   int
	Trimmed       bool
	TokenEstimate int
}

// ProviderAttempt records one link of the fallback chain.
type ProviderAttempt struct {
	Provider string        `json:"provider"`
	Err      string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// ModelResult is the router output. Text is never empty.
type ModelResult struct {
	Text           string
	Provider       string
	Tier           Tier
	Attempts       []ProviderAttempt
	TokensEstimate int
	// Canned is set when the local provider produced the reply.
	Canned bool
}

// QueryInput is the minimal single-turn input used by the CLI.
type QueryInput struct {
	SessionID string `json:"session_id"`
	DemoID    string `json:"demo_id"`
	Query     string `json:"query"`
	Locale    string `json:"locale"`
}
