package router

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// ChatModelProvider adapts an eino chat model. Streaming providers are read
// to completion before returning.
type ChatModelProvider struct {
	name   string
	cm     einomodel.BaseChatModel
	models TierModels
	stream bool
}

func NewChatModelProvider(name string, cm einomodel.BaseChatModel, models TierModels, stream bool) *ChatModelProvider {
	return &ChatModelProvider{name: name, cm: cm, models: models, stream: stream}
}

func (p *ChatModelProvider) Name() string { return p.name }

func (p *ChatModelProvider) Call(ctx context.Context, req *model.ModelRequest) (string, error) {
	ctx = einocb.ReuseHandlers(ctx, &einocb.RunInfo{Name: p.name, Type: p.name, Component: components.ComponentOfChatModel})
	opts := []einomodel.Option{einomodel.WithModel(p.models.For(req.Tier))}
	if req.Temperature > 0 {
		opts = append(opts, einomodel.WithTemperature(req.Temperature))
	}
	if req.MaxTokens > 0 {
		opts = append(opts, einomodel.WithMaxTokens(req.MaxTokens))
	}

	var (
		text string
		err  error
	)
	if p.stream {
		text, err = p.callStream(ctx, req.Messages, opts)
	} else {
		var msg *schema.Message
		msg, err = p.cm.Generate(ctx, req.Messages, opts...)
		if err == nil && msg != nil {
			text = msg.Content
		}
	}
	if err != nil {
		return "", providerErr(p.name, KindProvider, 0, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", providerErr(p.name, KindMalformed, 0, errors.New("empty completion"))
	}
	return text, nil
}

func (p *ChatModelProvider) callStream(ctx context.Context, msgs []*schema.Message, opts []einomodel.Option) (string, error) {
	sr, err := p.cm.Stream(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	defer sr.Close()
	var sb strings.Builder
	for {
		chunk, err := sr.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return "", err
		}
		if chunk != nil {
			sb.WriteString(chunk.Content)
		}
	}
}

// NewOpenRouterProvider is the OpenAI-compatible JSON transport pointed at OpenRouter.
func NewOpenRouterProvider(ctx context.Context, cfg model.OpenRouterConfig, temperature float32, maxTokens int) (*ChatModelProvider, error) {
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.ModelStandard,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating OpenRouter chat model")
		return nil, fmt.Errorf("error creating OpenRouter chat model: %w", err)
	}
	return NewChatModelProvider("openrouter", cm, TierModels{Standard: cfg.ModelStandard, Advanced: cfg.ModelAdvanced}, false), nil
}

// NewGeminiProvider streams from Gemini through the genai client.
func NewGeminiProvider(ctx context.Context, cfg model.GeminiConfig, temperature float32, maxTokens int) (*ChatModelProvider, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.ModelStandard,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini chat model")
		return nil, fmt.Errorf("error creating Gemini chat model: %w", err)
	}
	return NewChatModelProvider("gemini", cm, TierModels{Standard: cfg.ModelStandard, Advanced: cfg.ModelAdvanced}, true), nil
}
