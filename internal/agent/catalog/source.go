package catalog

import (
	"context"
	"errors"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

// ErrDemoNotFound is returned by a Source when the backend has no such demo.
var ErrDemoNotFound = errors.New("catalog: demo not found")

// Source loads a full catalog snapshot for one demo.
type Source interface {
	Load(ctx context.Context, slug string) (*model.Catalog, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, slug string) (*model.Catalog, error)

func (f SourceFunc) Load(ctx context.Context, slug string) (*model.Catalog, error) {
	return f(ctx, slug)
}
