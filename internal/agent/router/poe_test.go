package router

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

func TestReadPoeStream(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		stream  string
		want    string
		errKind ErrorKind
	}{
		{
			name:   "text events until done",
			stream: "event: meta\ndata: {\"content_type\":\"text/markdown\"}\n\nevent: text\ndata: {\"text\":\"Hello\"}\n\nevent: text\ndata: {\"text\":\" there\"}\n\nevent: done\ndata: {}\n\nevent: text\ndata: {\"text\":\"ignored\"}\n\n",
			want:   "Hello there",
		},
		{
			name:   "crlf line endings",
			stream: "event: text\r\ndata: {\"text\":\"Hi\"}\r\n\r\nevent: done\r\ndata: {}\r\n\r\n",
			want:   "Hi",
		},
		{
			name:   "replace response",
			stream: "event: text\ndata: {\"text\":\"draft\"}\n\nevent: replace_response\ndata: {\"text\":\"final\"}\n\nevent: text\ndata: {\"text\":\"!\"}\n\nevent: done\ndata: {}\n\n",
			want:   "final!",
		},
		{
			name:   "no done event",
			stream: "event: text\ndata: {\"text\":\"partial\"}\n\nevent: text\ndata: {\"text\":\" answer\"}",
			want:   "partial answer",
		},
		{
			name:    "error event",
			stream:  "event: text\ndata: {\"text\":\"a\"}\n\nevent: error\ndata: {\"text\":\"rate limited\",\"allow_retry\":true}\n\n",
			errKind: KindProvider,
		},
		{
			name:    "malformed text event",
			stream:  "event: text\ndata: {not json\n\n",
			errKind: KindMalformed,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, err := readPoeStream(strings.NewReader(tc.stream))
			if tc.errKind != "" {
				var pe *ProviderError
				require.True(t, errors.As(err, &pe), "got %v", err)
				assert.Equal(t, tc.errKind, pe.Kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPoeProviderCall(t *testing.T) {
	t.Parallel()
	var got poeQuery
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/bot/Claude-3.5-Sonnet", r.URL.Path)
		assert.Equal(t, "Bearer poe-key", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, sonic.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = io.WriteString(w, "event: text\ndata: {\"text\":\"Sure!\"}\n\nevent: done\ndata: {}\n\n")
	}))
	defer srv.Close()

	p := NewPoeProvider(model.PoeConfig{
		APIKey: "poe-key", BaseURL: srv.URL + "/bot/", BotStandard: "GPT-4o-Mini", BotAdvanced: "Claude-3.5-Sonnet",
	}, srv.Client())
	text, err := p.Call(context.Background(), &model.ModelRequest{
		Tier:        model.TierAdvanced,
		Temperature: 0.5,
		Messages: []*schema.Message{
			schema.SystemMessage("sys"),
			schema.UserMessage("hi"),
			schema.AssistantMessage("hello", nil),
			schema.UserMessage("compare them"),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Sure!", text)

	assert.Equal(t, "1.0", got.Version)
	assert.Equal(t, "query", got.Type)
	require.Len(t, got.Query, 4)
	assert.Equal(t, []string{"system", "user", "bot", "user"}, []string{got.Query[0].Role, got.Query[1].Role, got.Query[2].Role, got.Query[3].Role})
	assert.Equal(t, "text/markdown", got.Query[1].ContentType)
	assert.InDelta(t, 0.5, got.Temperature, 0.001)
}

func TestPoeProviderStatusError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := NewPoeProvider(model.PoeConfig{APIKey: "x", BaseURL: srv.URL, BotStandard: "bot"}, srv.Client())
	_, err := p.Call(context.Background(), &model.ModelRequest{Tier: model.TierStandard})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindStatus, pe.Kind)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.Equal(t, "poe", pe.Provider)
}

func TestPoeProviderEmptyStream(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "event: done\ndata: {}\n\n")
	}))
	defer srv.Close()

	p := NewPoeProvider(model.PoeConfig{APIKey: "x", BaseURL: srv.URL, BotStandard: "bot"}, srv.Client())
	_, err := p.Call(context.Background(), &model.ModelRequest{})
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, KindMalformed, pe.Kind)
}
