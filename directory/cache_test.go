package directory

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSource struct {
	names map[int64]string
	calls int
}

func (s *countingSource) LanguageName(_ context.Context, langID int64) (string, error) {
	s.calls++
	name, ok := s.names[langID]
	if !ok {
		return "", ErrLanguageNotFound
	}
	return name, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLanguageCache_PassThroughWithoutRedis(t *testing.T) {
	src := &countingSource{names: map[int64]string{1: "Arabiska"}}
	cache := NewLanguageCache(src, nil, 0, discardLogger())

	name, err := cache.LanguageName(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Arabiska", name)

	_, err = cache.LanguageName(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, src.calls, "without redis every lookup hits the source")

	_, err = cache.LanguageName(context.Background(), 99)
	assert.True(t, errors.Is(err, ErrLanguageNotFound))
}

func TestLanguageCache_FallsBackWhenRedisUnreachable(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	src := &countingSource{names: map[int64]string{7: "Somaliska"}}
	cache := NewLanguageCache(src, client, 0, discardLogger())

	name, err := cache.LanguageName(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Somaliska", name)
	assert.Equal(t, 1, src.calls)
	assert.True(t, cache.warnedUnavailable.Load())
}

func TestNewRedisClient_EmptyAddr(t *testing.T) {
	assert.Nil(t, NewRedisClient(context.Background(), "", "", 0, discardLogger()))
}

func TestRoleHelpers(t *testing.T) {
	assert.True(t, RoleAdmin.IsStaff())
	assert.True(t, RoleSuperAdmin.IsStaff())
	assert.False(t, RoleTranslator.IsStaff())
	assert.True(t, RoleCustomer.Valid())
	assert.False(t, Role("agent").Valid())
}
