package adapter

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

func TestUnknownEngineError_Error(t *testing.T) {
	err := &core.UnknownEngineError{
		Kind:      "oracle",
		Available: []string{"mysql", "postgresql"},
	}

	msg := err.Error()
	assert.Contains(t, msg, "oracle", "error should mention the unknown kind")
	assert.Contains(t, msg, "scurry.yaml", "error should mention config file")
}

func TestRegister(t *testing.T) {
	Register("test_engine_internal", func(_ *slog.Logger) Adapter { return nil })

	assert.True(t, IsRegistered("test_engine_internal"), "test_engine_internal should be registered after Register()")

	factory, ok := Get("test_engine_internal")
	assert.True(t, ok, "Get(test_engine_internal) should return true after Register()")
	assert.NotNil(t, factory, "Get(test_engine_internal) should return non-nil factory")
	assert.Contains(t, ListAdapters(), "test_engine_internal")
}

func TestNewAdapter_EmptyKind(t *testing.T) {
	_, err := NewAdapter(core.ConnectionConfig{}, nil)
	require.Error(t, err, "NewAdapter with empty kind should fail")
	assert.Equal(t, "engine kind not specified", err.Error(), "error message")
}

func TestNewAdapter_Unknown(t *testing.T) {
	_, err := NewAdapter(core.ConnectionConfig{Kind: "oracle"}, nil)
	require.Error(t, err)

	var unknown *core.UnknownEngineError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "oracle", unknown.Kind)
}

func TestNewAdapter_NormalizesKind(t *testing.T) {
	var got *slog.Logger
	Register(core.EngineKind("postgresql"), func(l *slog.Logger) Adapter {
		got = l
		return nil
	})
	t.Cleanup(func() {
		registryMu.Lock()
		delete(registry, core.EnginePostgres)
		registryMu.Unlock()
	})

	logger := slog.New(slog.DiscardHandler)
	_, err := NewAdapter(core.ConnectionConfig{Kind: "postgres"}, logger)
	require.NoError(t, err)
	assert.Same(t, logger, got)
}
