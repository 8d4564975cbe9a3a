package errx

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapRedis(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapRedis(nil))

	err := WrapRedis(redis.Nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, StatusOf(err))
	assert.True(t, errors.Is(err, redis.Nil))

	boom := errors.New("connection refused")
	err = WrapRedis(boom)
	assert.Equal(t, http.StatusBadGateway, StatusOf(err))
	assert.Equal(t, RedisErrorMessage, PublicMessage(err))
	assert.ErrorIs(t, err, boom)
}

func TestAppErrorAs(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("load demo: %w", WrapUpstream(errors.New("dial tcp: timeout")))

	var ae *AppError
	require.True(t, errors.As(wrapped, &ae))
	assert.Equal(t, http.StatusBadGateway, ae.Status)
	assert.Equal(t, UpstreamErrorMessage, PublicMessage(wrapped))
	assert.NotContains(t, PublicMessage(wrapped), "dial tcp")
}

func TestStatusOfPlainError(t *testing.T) {
	t.Parallel()

	err := errors.New("nil pointer")
	assert.Equal(t, http.StatusInternalServerError, StatusOf(err))
	assert.Equal(t, SystemErrorMessage, PublicMessage(err))
	assert.Equal(t, http.StatusBadRequest, StatusOf(BadRequest("message is required")))
	assert.Equal(t, "message is required", PublicMessage(BadRequest("message is required")))
}
