package observers

import (
	"context"
	"strings"

	einocb "github.com/cloudwego/eino/callbacks"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	"github.com/vtour-agent-core/server/internal/agent/model"
	logx "github.com/vtour-agent-core/server/pkg/logger"
)

// newModelHandler logs prompt size before a provider call and usage cost after it.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *einomodel.CallbackInput) context.Context {
			if input == nil {
				return ctx
			}
			chars := 0
			for _, m := range input.Messages {
				if m != nil {
					chars += len([]rune(m.Content))
				}
			}
			logx.Debug().
				Str("provider", info.Name).
				Int("messages", len(input.Messages)).
				Int("prompt_chars", chars).
				Str("user", lastUserContent(input.Messages)).
				Msg("model call start")
			return ctx
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *einomodel.CallbackOutput) context.Context {
			if output == nil || output.TokenUsage == nil {
				return ctx
			}
			name := ""
			if output.Config != nil {
				name = output.Config.Model
			}
			u := output.TokenUsage
			_, _, cost := model.ComputeCost(&schema.TokenUsage{
				PromptTokens:     u.PromptTokens,
				CompletionTokens: u.CompletionTokens,
				TotalTokens:      u.TotalTokens,
			}, model.ResolvePricing(name))
			logx.Debug().
				Str("provider", info.Name).
				Str("model", name).
				Int("prompt_tokens", u.PromptTokens).
				Int("completion_tokens", u.CompletionTokens).
				Float64("cost_usd", cost).
				Msg("model usage")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("provider", info.Name).Msg("model call error")
			return ctx
		},
	}
}

func lastUserContent(msgs []*schema.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if m := msgs[i]; m != nil && m.Role == schema.User {
			return strings.TrimSpace(m.Content)
		}
	}
	return ""
}
