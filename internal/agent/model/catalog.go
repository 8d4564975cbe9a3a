package model

import (
	"strings"
	"time"
)

// BusinessType drives the catalog collection and the default persona of a demo.
type BusinessType string

const (
	BusinessEcommerce  BusinessType = "ecommerce"
	BusinessShowroom   BusinessType = "showroom"
	BusinessFurniture  BusinessType = "furniture"
	BusinessCafe       BusinessType = "cafe"
	BusinessRestaurant BusinessType = "restaurant"
	BusinessHotel      BusinessType = "hotel"
	BusinessRealEstate BusinessType = "realestate"
)

// ParseBusinessType accepts the content backend spellings ("real-estate", "Real Estate").
func ParseBusinessType(v string) BusinessType {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.NewReplacer("-", "", "_", "", " ", "").Replace(v)
	switch BusinessType(v) {
	case BusinessShowroom, BusinessFurniture, BusinessCafe, BusinessRestaurant, BusinessHotel, BusinessRealEstate:
		return BusinessType(v)
	case "furnitureshowroom":
		return BusinessFurniture
	default:
		return BusinessEcommerce
	}
}

// Contact lists the business channels exposed by get_contact_info.
type Contact struct {
	Phone    string `json:"phone,omitempty" yaml:"phone"`
	WhatsApp string `json:"whatsapp,omitempty" yaml:"whatsapp"`
	Email    string `json:"email,omitempty" yaml:"email"`
	Address  string `json:"address,omitempty" yaml:"address"`
	Hours    string `json:"hours,omitempty" yaml:"hours"`
}

// Empty reports whether no channel is set.
func (c Contact) Empty() bool {
	return c.Phone == "" && c.WhatsApp == "" && c.Email == ""
}

// DemoConfig is the per-tour business configuration. Read-only to the agent.
type DemoConfig struct {
	Slug              string       `json:"slug" yaml:"slug"`
	Type              BusinessType `json:"type" yaml:"type"`
	Name              Localized    `json:"name" yaml:"name"`
	AgentName         Localized    `json:"agentName" yaml:"agent_name"`
	Persona           Localized    `json:"persona" yaml:"persona"`
	Greeting          Localized    `json:"greeting" yaml:"greeting"`
	PromptFragment    Localized    `json:"promptFragment" yaml:"prompt_fragment"`
	EnabledTools      []ToolName   `json:"enabledTools" yaml:"enabled_tools"`
	DailyMessageLimit int          `json:"dailyMessageLimit" yaml:"daily_message_limit"`
	Contact           Contact      `json:"contact" yaml:"contact"`
	Currency          string       `json:"currency" yaml:"currency"`
}

// ToolEnabled reports whether name may run for this demo. An empty list enables every tool.
func (d *DemoConfig) ToolEnabled(name ToolName) bool {
	if len(d.EnabledTools) == 0 {
		return true
	}
	for _, t := range d.EnabledTools {
		if t == name {
			return true
		}
	}
	return false
}

// Position is a point in tour space.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// SpatialAnchor locates an item inside the tour.
type SpatialAnchor struct {
	SweepID  string   `json:"sweepId" yaml:"sweep_id"`
	Position Position `json:"position" yaml:"position"`
}

// TourItem is one catalog entry (product, menu item, room, property).
type TourItem struct {
	ID          string            `json:"id" yaml:"id"`
	Title       Localized         `json:"title" yaml:"title"`
	Description Localized         `json:"description" yaml:"description"`
	Category    string            `json:"category" yaml:"category"`
	Price       float64           `json:"price" yaml:"price"`
	Currency    string            `json:"currency,omitempty" yaml:"currency"`
	Available   bool              `json:"available" yaml:"available"`
	Attributes  map[string]string `json:"attributes,omitempty" yaml:"attributes"`
	Anchor      *SpatialAnchor    `json:"anchor,omitempty" yaml:"anchor"`
	Tags        []string          `json:"tags,omitempty" yaml:"tags"`
}

// KnowledgeEntry is a curated question/answer pair for a demo.
type KnowledgeEntry struct {
	Question Localized `json:"question" yaml:"question"`
	Answer   Localized `json:"answer" yaml:"answer"`
	Category string    `json:"category,omitempty" yaml:"category"`
}

// Catalog is an immutable snapshot of one demo. The cache replaces it whole.
type Catalog struct {
	Demo      DemoConfig       `json:"demo"`
	Items     []TourItem       `json:"items"`
	Knowledge []KnowledgeEntry `json:"knowledge,omitempty"`
	LoadedAt  time.Time        `json:"loadedAt"`
	// Fallback is set when the demo was not found and defaults were served.
	Fallback bool `json:"fallback,omitempty"`
}

// Item returns the item with the given id.
func (c *Catalog) Item(id string) (TourItem, bool) {
	id = strings.TrimSpace(id)
	for _, it := range c.Items {
		if strings.EqualFold(it.ID, id) {
			return it, true
		}
	}
	return TourItem{}, false
}

// ItemByName returns the first item whose title (any locale) equals or contains name.
func (c *Catalog) ItemByName(name string) (TourItem, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return TourItem{}, false
	}
	var partial *TourItem
	for i := range c.Items {
		for _, title := range c.Items[i].Title {
			t := strings.ToLower(title)
			if t == name {
				return c.Items[i], true
			}
			if partial == nil && t != "" && strings.Contains(t, name) {
				partial = &c.Items[i]
			}
		}
	}
	if partial != nil {
		return *partial, true
	}
	return TourItem{}, false
}
