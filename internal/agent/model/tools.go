package model

// ToolName identifies one of the deterministic business tools.
type ToolName string

const (
	ToolSearchItems    ToolName = "search_items"
	ToolGetItemDetails ToolName = "get_item_details"
	ToolNavigateToItem ToolName = "navigate_to_item"
	ToolCompareItems   ToolName = "compare_items"
	ToolGetContactInfo ToolName = "get_contact_info"
	ToolCaptureLead    ToolName = "capture_lead"
)

// ToolStatus distinguishes business outcomes. None of them is a system error.
type ToolStatus string

const (
	ToolOK          ToolStatus = "ok"
	ToolNotFound    ToolStatus = "not_found"
	ToolInvalid     ToolStatus = "invalid"
	ToolUnavailable ToolStatus = "unavailable"
	ToolFailed      ToolStatus = "failed"
)

// CompareRow is one attribute line of a side-by-side comparison.
type CompareRow struct {
	Attribute string   `json:"attribute"`
	Values    []string `json:"values"`
}

// ToolResult is what a tool hands back to the Agent Core.
type ToolResult struct {
	Tool    ToolName      `json:"tool"`
	Status  ToolStatus    `json:"status"`
	Items   []TourItem    `json:"items,omitempty"`
	Table   []CompareRow  `json:"table,omitempty"`
	Actions []AgentAction `json:"actions,omitempty"`
	Contact *Contact      `json:"contact,omitempty"`
	// Reason is a machine-readable detail such as "already_captured" or "missing_anchor".
	Reason string `json:"reason,omitempty"`
	// Total counts matches before the result cap.
	Total int `json:"total,omitempty"`
	// MetadataPatch is merged into session metadata together with the turn.
	MetadataPatch map[string]string `json:"-"`
}

// OK reports whether the tool produced a positive answer.
func (r *ToolResult) OK() bool { return r != nil && r.Status == ToolOK }

// AgentContext is the read-only view a tool receives.
type AgentContext struct {
	Catalog   *Catalog
	Session   *SessionMemory
	Locale    Locale
	SessionID string
	UserID    string
}
