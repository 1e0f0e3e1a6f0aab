package runstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	s := New()

	run, err := s.Begin(ctx, "https://github.com/acme/src", "/tmp/target", "main")
	require.NoError(t, err)
	require.NotEmpty(t, run.ID)
	require.Equal(t, StatusRunning, run.Status)

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, "https://github.com/acme/src", got.SourceLocation)
	require.Nil(t, got.FinishedAt)

	require.NoError(t, s.Finish(ctx, run.ID, StatusComplete, ""))

	got, err = s.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusComplete, got.Status)
	require.NotNil(t, got.FinishedAt)
}

func TestMemoryStoreFinishFailure(t *testing.T) {
	ctx := context.Background()
	s := New()

	run, err := s.Begin(ctx, "a", "b", "")
	require.NoError(t, err)
	require.NoError(t, s.Finish(ctx, run.ID, StatusError, "clone failed"))

	got, err := s.Get(ctx, run.ID)
	require.NoError(t, err)
	require.Equal(t, StatusError, got.Status)
	require.Equal(t, "clone failed", got.Error)
}

func TestMemoryStoreUnknownRun(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "missing")
	require.True(t, errors.Is(err, ErrNotFound))

	err = s.Finish(ctx, "missing", StatusComplete, "")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestNewFromDSNFallsBackToMemory(t *testing.T) {
	s := NewFromDSN("")
	require.NotNil(t, s)
	require.Nil(t, s.db)
}
