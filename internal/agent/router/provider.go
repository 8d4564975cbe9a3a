package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/vtour-agent-core/server/internal/agent/model"
)

// Provider is one link of the model chain. Implementations hide their wire
// format; the router only sees text or an error.
type Provider interface {
	Name() string
	Call(ctx context.Context, req *model.ModelRequest) (string, error)
}

// ErrorKind classifies provider failures for logging.
type ErrorKind string

const (
	KindTransport ErrorKind = "transport"
	KindStatus    ErrorKind = "status"
	KindProvider  ErrorKind = "provider"
	KindMalformed ErrorKind = "malformed"
	KindTimeout   ErrorKind = "timeout"
)

// ProviderError is returned by every adapter.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Status   int
	Err      error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// providerErr builds a ProviderError, promoting deadline errors to KindTimeout.
func providerErr(provider string, kind ErrorKind, status int, err error) *ProviderError {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &ProviderError{Provider: provider, Kind: kind, Status: status, Err: err}
}

// ErrNoProvider is returned by Complete when no external provider is configured.
var ErrNoProvider = errors.New("router: no external provider configured")

// TierModels names the upstream model for each paid tier.
type TierModels struct {
	Standard string
	Advanced string
}

func (m TierModels) For(t model.Tier) string {
	if t == model.TierAdvanced && m.Advanced != "" {
		return m.Advanced
	}
	return m.Standard
}
