package tools

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// LeadType is the kind of follow-up a visitor asked for.
type LeadType string

const (
	LeadInquiry  LeadType = "inquiry"
	LeadBooking  LeadType = "booking"
	LeadCallback LeadType = "callback"
	LeadQuote    LeadType = "quote"
)

// ParseLeadType defaults anything unrecognised to an inquiry.
func ParseLeadType(v string) LeadType {
	switch t := LeadType(strings.ToLower(strings.TrimSpace(v))); t {
	case LeadBooking, LeadCallback, LeadQuote:
		return t
	}
	return LeadInquiry
}

// Lead is what gets handed to the business.
type Lead struct {
	ID        string       `json:"id"`
	Type      LeadType     `json:"type"`
	DemoID    string       `json:"demoId"`
	SessionID string       `json:"sessionId"`
	UserID    string       `json:"userId,omitempty"`
	Name      string       `json:"name,omitempty"`
	Phone     string       `json:"phone,omitempty"`
	Email     string       `json:"email,omitempty"`
	Message   string       `json:"message,omitempty"`
	ItemID    string       `json:"itemId,omitempty"`
	Locale    model.Locale `json:"locale"`
	CreatedAt time.Time    `json:"createdAt"`
}

// LeadSubmitter delivers a captured lead.
type LeadSubmitter interface {
	Submit(ctx context.Context, lead *Lead) error
}

// LogSubmitter only logs leads. It is used when no webhook is configured.
type LogSubmitter struct{}

func (LogSubmitter) Submit(_ context.Context, lead *Lead) error {
	logx.Info().
		Str("lead_id", lead.ID).
		Str("lead_type", string(lead.Type)).
		Str("demo_id", lead.DemoID).
		Str("session_id", lead.SessionID).
		Msg("lead captured")
	return nil
}

// WebhookSubmitter posts leads as JSON to a configured URL.
type WebhookSubmitter struct {
	url    string
	client *http.Client
}

func NewWebhookSubmitter(url string, timeout time.Duration) *WebhookSubmitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &WebhookSubmitter{url: url, client: &http.Client{Timeout: timeout}}
}

// NewLeadSubmitter picks the webhook when a URL is configured.
func NewLeadSubmitter(cfg model.ToolsConfig) LeadSubmitter {
	if cfg.LeadWebhookURL == "" {
		return LogSubmitter{}
	}
	return NewWebhookSubmitter(cfg.LeadWebhookURL, cfg.LeadTimeout)
}

func (w *WebhookSubmitter) Submit(ctx context.Context, lead *Lead) error {
	body, err := sonic.Marshal(lead)
	if err != nil {
		return fmt.Errorf("encode lead: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build lead request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post lead: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("lead webhook returned %d", resp.StatusCode)
	}
	return nil
}

func (e *Executor) captureLead(ctx context.Context, ac *model.AgentContext, p Params) *model.ToolResult {
	lt := ParseLeadType(p.LeadType)
	if ac.Session.LeadCaptured() {
		return &model.ToolResult{Status: model.ToolOK, Reason: "already_captured"}
	}
	if p.Phone == "" && p.Email == "" {
		return &model.ToolResult{
			Status:  model.ToolInvalid,
			Reason:  "missing_contact",
			Actions: []model.AgentAction{{Type: model.ActionOpenForm, FormType: string(lt), ItemID: p.ItemID}},
		}
	}

	lead := &Lead{
		ID:        uuid.NewString(),
		Type:      lt,
		DemoID:    ac.Catalog.Demo.Slug,
		SessionID: ac.SessionID,
		UserID:    ac.UserID,
		Name:      p.ContactName,
		Phone:     p.Phone,
		Email:     p.Email,
		Message:   p.Message,
		ItemID:    p.ItemID,
		Locale:    ac.Locale,
		CreatedAt: e.now().UTC(),
	}
	sctx, cancel := context.WithTimeout(ctx, e.leadTimeout())
	defer cancel()
	if err := e.leads.Submit(sctx, lead); err != nil {
		logx.Warn().Err(err).Str("session_id", ac.SessionID).Str("lead_type", string(lt)).Msg("lead submission failed")
		return &model.ToolResult{Status: model.ToolFailed, Reason: "submit_failed"}
	}
	return &model.ToolResult{
		Status: model.ToolOK,
		MetadataPatch: map[string]string{
			model.MetaLeadCaptured: "true",
			model.MetaLeadType:     string(lt),
		},
	}
}

func (e *Executor) leadTimeout() time.Duration {
	if e.cfg.LeadTimeout > 0 {
		return e.cfg.LeadTimeout
	}
	return 10 * time.Second
}
