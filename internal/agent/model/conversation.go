package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationMessage is one entry of a session history.
type ConversationMessage struct {
	Role      Role          `json:"role"`
	Content   string        `json:"content"`
	Timestamp time.Time     `json:"timestamp"`
	Intent    IntentType    `json:"intent,omitempty"`
	Actions   []AgentAction `json:"actions,omitempty"`
}

// Well-known SessionMemory metadata keys.
const (
	MetaLastIntent   = "last_intent"
	MetaLeadCaptured = "lead_captured"
	MetaLeadType     = "lead_type"
	MetaUserID       = "user_id"
	MetaMessageCount = "message_count"
)

// SessionMemory is the conversational state of one session.
type SessionMemory struct {
	ID           string                `json:"id"`
	DemoID       string                `json:"demoId"`
	Locale       Locale                `json:"locale"`
	Messages     []ConversationMessage `json:"messages"`
	StartedAt    time.Time             `json:"startedAt"`
	LastActivity time.Time             `json:"lastActivity"`
	Metadata     map[string]string     `json:"metadata"`
}

// Expired reports whether the session has been idle longer than ttl at now.
func (s *SessionMemory) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActivity) > ttl
}

// Clone returns a deep copy so callers can read without holding the session lock.
func (s *SessionMemory) Clone() *SessionMemory {
	if s == nil {
		return nil
	}
	c := *s
	c.Messages = append([]ConversationMessage(nil), s.Messages...)
	c.Metadata = make(map[string]string, len(s.Metadata))
	for k, v := range s.Metadata {
		c.Metadata[k] = v
	}
	return &c
}

// LeadCaptured reports whether a lead was already submitted in this session.
func (s *SessionMemory) LeadCaptured() bool {
	return s != nil && s.Metadata[MetaLeadCaptured] == "true"
}

// SessionStats summarises the live sessions of a store.
type SessionStats struct {
	Total    int            `json:"total"`
	ByDemo   map[string]int `json:"byDemo"`
	OldestAt time.Time      `json:"oldestAt,omitempty"`
	OldestID string         `json:"oldestId,omitempty"`
}
