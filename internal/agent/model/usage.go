package model

import "time"

// RateLimitScope identifies one of the four limiter ceilings.
type RateLimitScope string

const (
	ScopeIP      RateLimitScope = "ip"
	ScopeSession RateLimitScope = "session"
	ScopeDemo    RateLimitScope = "demo"
	ScopeGlobal  RateLimitScope = "global"
)

// RateLimitResult answers a limiter check. Scope is set only on denial;
// Remaining is the tightest headroom left, or -1 when no scope is limited.
type RateLimitResult struct {
	Allowed           bool           `json:"allowed"`
	Remaining         int            `json:"remaining"`
	ResetAt           time.Time      `json:"resetAt"`
	RetryAfterSeconds int            `json:"retryAfterSeconds"`
	Scope             RateLimitScope `json:"scope,omitempty"`
}

// Tier is the cost/capability level of a model call.
type Tier string

const (
	TierLocal    Tier = "local"
	TierStandard Tier = "standard"
	TierAdvanced Tier = "advanced"
)

// UsageRecord counts the traffic of one demo on one UTC day.
type UsageRecord struct {
	DemoID         string       `json:"demoId"`
	Day            string       `json:"day"`
	MessageCount   int          `json:"messageCount"`
	ModelCalls     map[Tier]int `json:"modelCalls"`
	TokensEstimate int          `json:"tokensEstimate"`
}

// TotalModelCalls sums the calls of every tier.
func (u UsageRecord) TotalModelCalls() int {
	n := 0
	for _, c := range u.ModelCalls {
		n += c
	}
	return n
}

// UsageStats is the limiter snapshot reported by the health endpoint.
type UsageStats struct {
	ActiveWindows map[RateLimitScope]int `json:"activeWindows"`
	Denied        map[RateLimitScope]int `json:"denied"`
	Allowed       int                    `json:"allowed"`
}
