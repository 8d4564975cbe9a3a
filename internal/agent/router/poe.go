package router

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

// PoeProvider speaks the Poe bot protocol: a JSON query answered with a
// server-sent event stream.
type PoeProvider struct {
	apiKey  string
	baseURL string
	bots    TierModels
	client  *http.Client
}

func NewPoeProvider(cfg model.PoeConfig, client *http.Client) *PoeProvider {
	if client == nil {
		client = &http.Client{}
	}
	return &PoeProvider{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		bots:    TierModels{Standard: cfg.BotStandard, Advanced: cfg.BotAdvanced},
		client:  client,
	}
}

func (p *PoeProvider) Name() string { return "poe" }

type poeMessage struct {
	Role        string `json:"role"`
	Content     string `json:"content"`
	ContentType string `json:"content_type"`
}

type poeQuery struct {
	Version        string       `json:"version"`
	Type           string       `json:"type"`
	Query          []poeMessage `json:"query"`
	Temperature    float32      `json:"temperature,omitempty"`
	UserID         string       `json:"user_id"`
	ConversationID string       `json:"conversation_id"`
	MessageID      string       `json:"message_id"`
}

type poeEventData struct {
	Text    string `json:"text"`
	Message string `json:"message"`
}

func poeRole(r schema.RoleType) string {
	switch r {
	case schema.Assistant:
		return "bot"
	case schema.System:
		return "system"
	}
	return "user"
}

func (p *PoeProvider) Call(ctx context.Context, req *model.ModelRequest) (string, error) {
	q := poeQuery{Version: "1.0", Type: "query", Temperature: req.Temperature}
	for _, m := range req.Messages {
		if m == nil {
			continue
		}
		q.Query = append(q.Query, poeMessage{Role: poeRole(m.Role), Content: m.Content, ContentType: "text/markdown"})
	}
	body, err := sonic.Marshal(q)
	if err != nil {
		return "", providerErr(p.Name(), KindMalformed, 0, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+p.bots.For(req.Tier), bytes.NewReader(body))
	if err != nil {
		return "", providerErr(p.Name(), KindTransport, 0, err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", providerErr(p.Name(), KindTransport, 0, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return "", providerErr(p.Name(), KindStatus, resp.StatusCode, errors.New(strings.TrimSpace(string(snippet))))
	}

	text, err := readPoeStream(resp.Body)
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			pe.Provider = p.Name()
			return "", pe
		}
		return "", providerErr(p.Name(), KindTransport, 0, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", providerErr(p.Name(), KindMalformed, 0, errors.New("empty stream"))
	}
	return text, nil
}

// readPoeStream concatenates text events until done. replace_response
// discards what was accumulated so far. A stream that ends without done is
// accepted as long as it produced text.
func readPoeStream(r io.Reader) (string, error) {
	var (
		out   strings.Builder
		event string
		data  []string
	)
	dispatch := func() (bool, error) {
		defer func() { event, data = "", nil }()
		if event == "" && len(data) == 0 {
			return false, nil
		}
		payload := strings.Join(data, "\n")
		switch event {
		case "text", "replace_response":
			var d poeEventData
			if err := sonic.UnmarshalString(payload, &d); err != nil {
				return false, &ProviderError{Kind: KindMalformed, Err: fmt.Errorf("%s event: %w", event, err)}
			}
			if event == "replace_response" {
				out.Reset()
			}
			out.WriteString(d.Text)
		case "error":
			var d poeEventData
			_ = sonic.UnmarshalString(payload, &d)
			msg := d.Text
			if msg == "" {
				msg = d.Message
			}
			if msg == "" {
				msg = payload
			}
			return false, &ProviderError{Kind: KindProvider, Err: errors.New(msg)}
		case "done":
			return true, nil
		}
		return false, nil
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		switch {
		case line == "":
			done, err := dispatch()
			if err != nil {
				return "", err
			}
			if done {
				return out.String(), nil
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	if _, err := dispatch(); err != nil {
		return "", err
	}
	return out.String(), nil
}
