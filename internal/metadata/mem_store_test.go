package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStoreBucketLifecycle(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.CreateBucket("my-bucket"))
	require.NoError(t, tx.Commit())

	b, err := s.GetBucket(ctx, "my-bucket")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", b.Name)

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	err = tx.CreateBucket("my-bucket")
	assert.ErrorIs(t, err, ErrBucketAlreadyOwnedByYou)
	require.NoError(t, tx.Rollback())

	tx, err = s.Begin(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.DeleteBucket("my-bucket"))
	require.NoError(t, tx.Commit())

	_, err = s.GetBucket(ctx, "my-bucket")
	assert.ErrorIs(t, err, ErrNoSuchBucket)
}

func TestMemStoreDeleteBucketNotEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.CreateBucket("b"))
	_, err := tx.UpsertObject(Object{Bucket: "b", Key: "k", UserMetadata: map[string]string{}})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	tx, _ = s.Begin(ctx)
	err = tx.DeleteBucket("b")
	assert.ErrorIs(t, err, ErrBucketNotEmpty)
	tx.Rollback()
}

func TestMemStoreChunkRefCounting(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tx, _ := s.Begin(ctx)

	_, err := tx.LookupChunk("deadbeef")
	assert.ErrorIs(t, err, ErrChunkNotFound)

	require.NoError(t, tx.InsertChunk("deadbeef", "msg-1", 1024))
	err = tx.InsertChunk("deadbeef", "msg-2", 1024)
	assert.ErrorIs(t, err, ErrChunkAlreadyExists)

	count, err := tx.AdjustRefCount("deadbeef", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	count, err = tx.AdjustRefCount("deadbeef", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = tx.AdjustRefCount("deadbeef", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	_, err = tx.AdjustRefCount("deadbeef", -5)
	assert.ErrorIs(t, err, ErrInvalidRefCountAdjustment)

	require.NoError(t, tx.Commit())
}

func TestMemStoreRecycleBin(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.InsertChunk("hash1", "msg-1", 10))
	require.NoError(t, tx.RecycleAdd("hash1"))
	require.NoError(t, tx.Commit())

	bin, err := s.GetRecycleBin(ctx)
	require.NoError(t, err)
	require.Len(t, bin, 1)
	assert.Equal(t, "hash1", bin[0].Hash)

	tx, _ = s.Begin(ctx)
	require.NoError(t, tx.RecycleRemove("hash1"))
	require.NoError(t, tx.Commit())

	bin, err = s.GetRecycleBin(ctx)
	require.NoError(t, err)
	assert.Empty(t, bin)
}

func TestMemStoreObjectUpsertReturnsPrevious(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.CreateBucket("b"))
	prev, err := tx.UpsertObject(Object{
		Bucket: "b", Key: "k", Size: 3, ETag: "abc",
		UserMetadata: map[string]string{},
		Chunks:       []ChunkRef{{Hash: "h1"}},
	})
	require.NoError(t, err)
	assert.Nil(t, prev)
	require.NoError(t, tx.Commit())

	tx, _ = s.Begin(ctx)
	prev, err = tx.UpsertObject(Object{
		Bucket: "b", Key: "k", Size: 6, ETag: "def",
		UserMetadata: map[string]string{},
		Chunks:       []ChunkRef{{Hash: "h2"}},
	})
	require.NoError(t, err)
	require.NotNil(t, prev)
	assert.Equal(t, "abc", prev.ETag)
	assert.Equal(t, []ChunkRef{{Hash: "h1"}}, prev.Chunks)
	require.NoError(t, tx.Commit())

	obj, err := s.GetObject(ctx, "b", "k")
	require.NoError(t, err)
	assert.Equal(t, "def", obj.ETag)
}

func TestMemStoreDeleteObjectIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.CreateBucket("b"))
	require.NoError(t, tx.Commit())

	tx, _ = s.Begin(ctx)
	deleted, err := tx.DeleteObject("b", "missing")
	require.NoError(t, err)
	assert.Nil(t, deleted)
	require.NoError(t, tx.Commit())
}

func TestMemStoreListObjectsPrefixAndDelimiter(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	tx, _ := s.Begin(ctx)
	require.NoError(t, tx.CreateBucket("b"))
	for _, k := range []string{"a/1", "a/2", "b/1", "c"} {
		_, err := tx.UpsertObject(Object{Bucket: "b", Key: k, UserMetadata: map[string]string{}})
		require.NoError(t, err)
	}
	require.NoError(t, tx.Commit())

	page, err := s.ListObjects(ctx, "b", ListObjectsQuery{Delimiter: "/"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a/", "b/"}, page.CommonPrefixes)
	assert.Len(t, page.Objects, 1)
	assert.Equal(t, "c", page.Objects[0].Key)
}
