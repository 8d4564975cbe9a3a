package model

import (
	"strings"
	"time"
)

// IntentType is the closed set of intents the engine acts on.
type IntentType string

const (
	IntentGreeting     IntentType = "greeting"
	IntentFarewell     IntentType = "farewell"
	IntentHelp         IntentType = "help"
	IntentConfirmation IntentType = "confirmation"
	IntentOutOfScope   IntentType = "out_of_scope"
	IntentSearch       IntentType = "search"
	IntentAvailability IntentType = "availability"
	IntentDetail       IntentType = "detail"
	IntentPrice        IntentType = "price"
	IntentNavigate     IntentType = "navigate"
	IntentCompare      IntentType = "compare"
	IntentContact      IntentType = "contact"
	IntentLeadCapture  IntentType = "lead_capture"
	IntentUnknown      IntentType = "unknown"
)

// AllIntents lists every IntentType in declaration order.
var AllIntents = []IntentType{
	IntentGreeting, IntentFarewell, IntentHelp, IntentConfirmation, IntentOutOfScope,
	IntentSearch, IntentAvailability, IntentDetail, IntentPrice, IntentNavigate,
	IntentCompare, IntentContact, IntentLeadCapture, IntentUnknown,
}

var intentAliases = map[string]IntentType{
	"product_search":   IntentSearch,
	"product_inquiry":  IntentSearch,
	"browse":           IntentSearch,
	"details":          IntentDetail,
	"item_details":     IntentDetail,
	"price_inquiry":    IntentPrice,
	"navigation":       IntentNavigate,
	"comparison":       IntentCompare,
	"business_info":    IntentContact,
	"contact_info":     IntentContact,
	"booking":          IntentLeadCapture,
	"lead":             IntentLeadCapture,
	"general_question": IntentUnknown,
	"small_talk":       IntentGreeting,
}

// ParseIntentType maps a label (including legacy aliases) onto the enum.
// Unknown labels yield IntentUnknown and false.
func ParseIntentType(label string) (IntentType, bool) {
	label = strings.ToLower(strings.TrimSpace(label))
	label = strings.ReplaceAll(label, "-", "_")
	for _, it := range AllIntents {
		if string(it) == label {
			return it, true
		}
	}
	if it, ok := intentAliases[label]; ok {
		return it, true
	}
	return IntentUnknown, false
}

// SmallTalk reports whether the intent is answered without catalog data.
func (t IntentType) SmallTalk() bool {
	switch t {
	case IntentGreeting, IntentFarewell, IntentHelp, IntentConfirmation, IntentOutOfScope:
		return true
	}
	return false
}

// EntityKey names a typed slot extracted from the user message.
type EntityKey string

const (
	EntityCategory EntityKey = "category"
	EntityColor    EntityKey = "color"
	EntityItemID   EntityKey = "item_id"
	EntityItemName EntityKey = "item_name"
	EntityMinPrice EntityKey = "min_price"
	EntityMaxPrice EntityKey = "max_price"
	EntityQuantity EntityKey = "quantity"
	EntityEmail    EntityKey = "email"
	EntityPhone    EntityKey = "phone"
	EntityName     EntityKey = "name"
	EntityLeadType EntityKey = "lead_type"
	EntityQuery    EntityKey = "query"
)

// Entities holds extracted values; a key may carry several values (item ids to compare).
type Entities map[EntityKey][]string

// First returns the first value for k or "".
func (e Entities) First(k EntityKey) string {
	if v := e[k]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Add appends v under k unless it is empty or already present.
func (e Entities) Add(k EntityKey, v string) {
	v = strings.TrimSpace(v)
	if v == "" {
		return
	}
	for _, have := range e[k] {
		if have == v {
			return
		}
	}
	e[k] = append(e[k], v)
}

// Merge copies every key of other over e.
func (e Entities) Merge(other Entities) {
	for k, vs := range other {
		if len(vs) == 0 {
			continue
		}
		e[k] = append([]string(nil), vs...)
	}
}

// ClassifierTier records which tier resolved an intent.
type ClassifierTier string

const (
	TierFast  ClassifierTier = "fast"
	TierModel ClassifierTier = "model"
)

// IntentResult is the classifier output.
type IntentResult struct {
	Type       IntentType     `json:"type"`
	Confidence float64        `json:"confidence"`
	Entities   Entities       `json:"entities"`
	Tier       ClassifierTier `json:"tier"`
	Latency    time.Duration  `json:"latency"`
}

// Validate normalises the result in place so downstream code never sees an
// out-of-range confidence, an unknown type or a nil entity map.
func (r *IntentResult) Validate() {
	r.Type, _ = ParseIntentType(string(r.Type))
	switch {
	case r.Confidence < 0:
		r.Confidence = 0
	case r.Confidence > 1:
		r.Confidence = 1
	}
	if r.Entities == nil {
		r.Entities = Entities{}
	}
	if r.Tier == "" {
		r.Tier = TierFast
	}
}
