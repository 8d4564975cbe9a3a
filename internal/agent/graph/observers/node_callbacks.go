package observers

import (
	"context"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"

	logx "github.com/vtour-agent-core/server/pkg/logger"
)

type startKey struct{ node string }

func started(ctx context.Context, node string) time.Duration {
	if t, ok := ctx.Value(startKey{node}).(time.Time); ok {
		return time.Since(t)
	}
	return 0
}

// newNodeHandler times every lambda node of the turn graph.
func newNodeHandler() einocb.Handler {
	return einocb.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackInput) context.Context {
			return context.WithValue(ctx, startKey{info.Name}, time.Now())
		}).
		OnEndFn(func(ctx context.Context, info *einocb.RunInfo, _ einocb.CallbackOutput) context.Context {
			logx.Debug().Str("node", info.Name).Dur("took", started(ctx, info.Name)).Msg("node done")
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("node", info.Name).Dur("took", started(ctx, info.Name)).Msg("node failed")
			return ctx
		}).
		Build()
}
