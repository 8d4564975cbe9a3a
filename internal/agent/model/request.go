package model

import "time"

// AgentRequest is one inbound user message. It is never mutated once built.
type AgentRequest struct {
	Message         string `json:"message"`
	DemoID          string `json:"demoId"`
	SessionID       string `json:"sessionId,omitempty"`
	Locale          Locale `json:"locale,omitempty"`
	CurrentItemID   string `json:"currentItemId,omitempty"`
	CurrentLocation string `json:"currentLocation,omitempty"`
	CallerID        string `json:"callerId,omitempty"`
	UserID          string `json:"userId,omitempty"`
}

type ActionType string

const (
	ActionNavigate     ActionType = "navigate"
	ActionHighlight    ActionType = "highlight"
	ActionOpenForm     ActionType = "open_form"
	ActionOpenWhatsApp ActionType = "open_whatsapp"
	ActionCompare      ActionType = "compare"
	ActionAddToCart    ActionType = "add_to_cart"
)

// Valid reports whether a is one of the known action types.
func (a ActionType) Valid() bool {
	switch a {
	case ActionNavigate, ActionHighlight, ActionOpenForm, ActionOpenWhatsApp, ActionCompare, ActionAddToCart:
		return true
	}
	return false
}

// AgentAction is a directive for the tour frontend.
type AgentAction struct {
	Type     ActionType     `json:"type"`
	ItemID   string         `json:"itemId,omitempty"`
	ItemIDs  []string       `json:"itemIds,omitempty"`
	Title    string         `json:"title,omitempty"`
	Anchor   *SpatialAnchor `json:"anchor,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Message  string         `json:"message,omitempty"`
	FormType string         `json:"formType,omitempty"`
	Quantity int            `json:"quantity,omitempty"`
}

// RateLimitInfo is attached to responses produced by a limiter denial.
type RateLimitInfo struct {
	Scope             RateLimitScope `json:"scope"`
	RetryAfterSeconds int            `json:"retryAfterSeconds"`
	ResetAt           time.Time      `json:"resetAt"`
}

// AgentResponse is the only externally visible output of a turn.
type AgentResponse struct {
	Text        string         `json:"text"`
	Actions     []AgentAction  `json:"actions"`
	Suggestions []string       `json:"suggestions"`
	Intent      IntentType     `json:"intent,omitempty"`
	SessionID   string         `json:"sessionId"`
	Locale      Locale         `json:"locale"`
	Timestamp   time.Time      `json:"timestamp"`
	RateLimit   *RateLimitInfo `json:"rateLimit,omitempty"`
}
