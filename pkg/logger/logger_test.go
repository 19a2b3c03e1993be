package logger

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func resetLogger() {
	log = nil
	once = sync.Once{}
}

func TestInitAndContextLogging(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	Init("development")
	require.NotNil(t, GetLogger())

	ctx := context.WithValue(context.Background(), "request_id", "req-1")
	require.NotNil(t, WithContext(ctx))

	Info(ctx, "info")
	Debug(ctx, "debug")
	Warn(ctx, "warn")
	Error(ctx, "error")
	LogRequest(ctx, "GET", "/health", 200, 10*time.Millisecond, "127.0.0.1")
}

func TestWithContext_Uninitialized(t *testing.T) {
	resetLogger()

	// Jobs and usecases log unconditionally; an uninitialized logger
	// must be a no-op, not a panic.
	assert.NotNil(t, WithContext(context.Background()))
	assert.NotNil(t, GetLogger())
	Info(context.Background(), "dropped")
}

func TestWithContext_NilAndTypedKey(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	Init("development")
	assert.NotNil(t, WithContext(nil))

	ctx := context.WithValue(context.Background(), RequestIDKey, "typed-req-id")
	assert.NotNil(t, WithContext(ctx))
}

func TestInit_Production(t *testing.T) {
	resetLogger()
	t.Cleanup(resetLogger)

	Init("production")
	require.NotNil(t, GetLogger())
	assert.NotNil(t, WithContext(context.Background()))
}

func TestInit_PanicWhenLoggerBuildFails(t *testing.T) {
	resetLogger()
	origBuild := buildLogger
	t.Cleanup(func() {
		buildLogger = origBuild
		resetLogger()
	})

	buildLogger = func(zap.Config) (*zap.Logger, error) {
		return nil, errors.New("build failed")
	}

	assert.Panics(t, func() { Init("production") })
}
