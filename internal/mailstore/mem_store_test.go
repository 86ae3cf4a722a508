package mailstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	id, err := s.Store(ctx, "deadbeef", []byte("hello chunk"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.Fetch(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello chunk"), got)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Fetch(ctx, id)
	assert.ErrorIs(t, err, ErrChunkMissing)
}

func TestMemStoreDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	require.NoError(t, s.Delete(ctx, "never-stored"))
}

func TestMemStoreFetchUnknown(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	_, err := s.Fetch(ctx, "nope")
	assert.ErrorIs(t, err, ErrChunkMissing)
}
