package pipeline

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"math/rand"
	"sync"
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailchannels/objectmail/internal/chunk"
	"github.com/mailchannels/objectmail/internal/mailstore"
	"github.com/mailchannels/objectmail/internal/metadata"
)

func newTestPipeline(t *testing.T, chunkSize int) (*Pipeline, *countingCounter) {
	t.Helper()
	meta := metadata.NewMemStore()
	counter := &countingCounter{}
	mail := &instrumentedMemStore{MemStore: mailstore.NewMemStore(), counter: counter}

	p, err := New(meta, mail, Config{ChunkSizeBytes: chunkSize, FetchConcurrency: 4})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.CreateBucket(ctx, "b"))
	return p, counter
}

type countingCounter struct {
	mu      sync.Mutex
	n       int // Store calls
	deleted int // Delete calls
}

// instrumentedMemStore wraps mailstore.MemStore to count Store and Delete
// calls, without the method-recursion hazard of embedding+overriding on the
// concrete type directly.
type instrumentedMemStore struct {
	*mailstore.MemStore
	counter *countingCounter
}

func (i *instrumentedMemStore) Store(ctx context.Context, hash string, data []byte) (string, error) {
	i.counter.mu.Lock()
	i.counter.n++
	i.counter.mu.Unlock()
	return i.MemStore.Store(ctx, hash, data)
}

func (i *instrumentedMemStore) Delete(ctx context.Context, mailMessageID string) error {
	i.counter.mu.Lock()
	i.counter.deleted++
	i.counter.mu.Unlock()
	return i.MemStore.Delete(ctx, mailMessageID)
}

func TestRoundTripProperty(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, chunk.MinSize)

	f := func(seed int64, n uint16) bool {
		r := rand.New(rand.NewSource(seed))
		size := int(n) % (5 * chunk.MinSize)
		data := make([]byte, size)
		r.Read(data)

		key := "obj-" + hex.EncodeToString([]byte{byte(seed), byte(n)})
		obj, err := p.PutObject(ctx, "b", key, bytes.NewReader(data), "application/octet-stream", map[string]string{})
		if err != nil {
			t.Logf("put error: %v", err)
			return false
		}
		sum := md5.Sum(data)
		if obj.ETag != hex.EncodeToString(sum[:]) {
			return false
		}

		var out bytes.Buffer
		if _, err := p.GetObject(ctx, "b", key, nil, &out); err != nil {
			t.Logf("get error: %v", err)
			return false
		}
		return bytes.Equal(out.Bytes(), data)
	}

	require.NoError(t, quick.Check(f, &quick.Config{MaxCount: 25}))
}

// distinctSegments builds n*segSize bytes where each segment is filled
// with a distinct byte value, so consecutive chunks never collide by
// content and a test's expected chunk-row counts hold even for uniform
// "filler" payloads.
func distinctSegments(segSize, n int) []byte {
	out := make([]byte, 0, segSize*n)
	for i := 0; i < n; i++ {
		out = append(out, bytes.Repeat([]byte{byte(0xA0 + i)}, segSize)...)
	}
	return out
}

func TestDedupAcrossKeys(t *testing.T) {
	ctx := context.Background()
	p, counter := newTestPipeline(t, chunk.MinSize)

	data := distinctSegments(chunk.MinSize, 2)

	_, err := p.PutObject(ctx, "b", "k1", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	firstCalls := counter.n
	assert.Equal(t, 2, firstCalls) // two chunks, both misses

	_, err = p.PutObject(ctx, "b", "k2", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, firstCalls, counter.n, "dedup hit must not call mail store Store")

	var out1, out2 bytes.Buffer
	_, err = p.GetObject(ctx, "b", "k1", nil, &out1)
	require.NoError(t, err)
	_, err = p.GetObject(ctx, "b", "k2", nil, &out2)
	require.NoError(t, err)
	assert.Equal(t, out1.Bytes(), out2.Bytes())
}

func TestRecycleHit(t *testing.T) {
	ctx := context.Background()
	p, counter := newTestPipeline(t, chunk.MinSize)

	data := distinctSegments(chunk.MinSize, 3)

	_, err := p.PutObject(ctx, "b", "k1", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	callsAfterFirstPut := counter.n
	assert.Equal(t, 3, callsAfterFirstPut)

	require.NoError(t, p.DeleteObject(ctx, "b", "k1"))

	bin, err := p.Meta.GetRecycleBin(ctx)
	require.NoError(t, err)
	assert.Len(t, bin, 3)

	_, err = p.PutObject(ctx, "b", "k2", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirstPut, counter.n, "recycle hit must not call mail store Store")

	bin, err = p.Meta.GetRecycleBin(ctx)
	require.NoError(t, err)
	assert.Empty(t, bin)
}

func TestEmptyPutObject(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, chunk.MinSize)

	obj, err := p.PutObject(ctx, "b", "empty", bytes.NewReader(nil), "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, int64(0), obj.Size)
	assert.Empty(t, obj.Chunks)
	sum := md5.Sum(nil)
	assert.Equal(t, hex.EncodeToString(sum[:]), obj.ETag)
}
