package pipeline

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailchannels/objectmail/internal/metadata"
)

// TestScenarioSmallPutGet covers spec.md §8 scenario 1.
func TestScenarioSmallPutGet(t *testing.T) {
	ctx := context.Background()
	p, _ := newTestPipeline(t, 1024*1024)

	obj, err := p.PutObject(ctx, "b", "hello.txt", bytes.NewReader([]byte("Hello ObjectMail!")), "text/plain", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "d4783de966358e580a4d8dbd184d1afa", obj.ETag)
	assert.Equal(t, int64(17), obj.Size)

	var out bytes.Buffer
	_, err = p.GetObject(ctx, "b", "hello.txt", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "Hello ObjectMail!", out.String())
}

// TestScenarioMultiChunkPut covers spec.md §8 scenario 2: a put larger
// than one chunk splits into the expected chunk sizes.
func TestScenarioMultiChunkPut(t *testing.T) {
	const mib = 1024 * 1024
	ctx := context.Background()
	p, _ := newTestPipeline(t, 18*mib)

	data := distinctSegments(18*mib, 3)
	data = append(data, bytes.Repeat([]byte{0xFF}, 6*mib)...)
	obj, err := p.PutObject(ctx, "b", "big", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)

	require.Len(t, obj.Chunks, 4)
	wantSizes := []int64{18 * mib, 18 * mib, 18 * mib, 6 * mib}
	for i, c := range obj.Chunks {
		assert.Equal(t, wantSizes[i], c.Size)
	}
	for _, c := range obj.Chunks {
		chunkRow, err := lookupChunkDirect(ctx, p.Meta, c.Hash)
		require.NoError(t, err)
		assert.Equal(t, 1, chunkRow.RefCount)
	}
}

// TestScenarioDedupAcrossKeys60MiB covers spec.md §8 scenario 3.
func TestScenarioDedupAcrossKeys60MiB(t *testing.T) {
	const mib = 1024 * 1024
	ctx := context.Background()
	p, counter := newTestPipeline(t, 18*mib)

	data := distinctSegments(18*mib, 3)
	data = append(data, bytes.Repeat([]byte{0xFF}, 6*mib)...)
	_, err := p.PutObject(ctx, "b", "k1", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	callsAfterFirst := counter.n
	require.Equal(t, 4, callsAfterFirst)

	obj2, err := p.PutObject(ctx, "b", "k2", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, counter.n, "no new mail drafts for k2")

	for _, c := range obj2.Chunks {
		chunkRow, err := lookupChunkDirect(ctx, p.Meta, c.Hash)
		require.NoError(t, err)
		assert.Equal(t, 2, chunkRow.RefCount)
	}
}

// TestScenarioRecycle covers spec.md §8 scenario 4.
func TestScenarioRecycle(t *testing.T) {
	const mib = 1024 * 1024
	ctx := context.Background()
	p, counter := newTestPipeline(t, 18*mib)

	data := distinctSegments(18*mib, 2)
	_, err := p.PutObject(ctx, "b", "k1", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	callsAfterFirst := counter.n
	require.Equal(t, 2, callsAfterFirst)

	require.NoError(t, p.DeleteObject(ctx, "b", "k1"))
	bin, err := p.Meta.GetRecycleBin(ctx)
	require.NoError(t, err)
	assert.Len(t, bin, 2)

	obj2, err := p.PutObject(ctx, "b", "k2", bytes.NewReader(data), "", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, counter.n, "zero IMAP store calls on recycle hit")

	bin, err = p.Meta.GetRecycleBin(ctx)
	require.NoError(t, err)
	assert.Empty(t, bin)

	for _, c := range obj2.Chunks {
		chunkRow, err := lookupChunkDirect(ctx, p.Meta, c.Hash)
		require.NoError(t, err)
		assert.Equal(t, 1, chunkRow.RefCount)
	}
}

// TestScenarioMultipart covers spec.md §8 scenario 5.
func TestScenarioMultipart(t *testing.T) {
	const mib = 1024 * 1024
	ctx := context.Background()
	p, _ := newTestPipeline(t, 18*mib)

	uploadID, err := p.CreateMultipartUpload(ctx, "b", "multi", "application/octet-stream", map[string]string{})
	require.NoError(t, err)

	partA := bytes.Repeat([]byte("A"), 5*mib)
	partB := bytes.Repeat([]byte("B"), 5*mib)

	p1, err := p.UploadPart(ctx, uploadID, 1, bytes.NewReader(partA))
	require.NoError(t, err)
	p2, err := p.UploadPart(ctx, uploadID, 2, bytes.NewReader(partB))
	require.NoError(t, err)

	obj, err := p.CompleteMultipartUpload(ctx, uploadID, []CompletedPart{
		{PartNumber: 1, ETag: p1.ETag},
		{PartNumber: 2, ETag: p2.ETag},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10*mib), obj.Size)
	assert.Contains(t, obj.ETag, "-2")

	var out bytes.Buffer
	_, err = p.GetObject(ctx, "b", "multi", nil, &out)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(out.Bytes()[:5*mib], partA))
	assert.True(t, bytes.Equal(out.Bytes()[5*mib:], partB))

	_, err = p.Meta.GetMultipartUpload(ctx, uploadID)
	assert.ErrorIs(t, err, metadata.ErrNoSuchUpload)
}

// TestScenarioConcurrentIdenticalPuts covers spec.md §8 scenario 6.
func TestScenarioConcurrentIdenticalPuts(t *testing.T) {
	const mib = 1024 * 1024
	ctx := context.Background()
	p, counter := newTestPipeline(t, 18*mib)

	data := bytes.Repeat([]byte{0x7a}, 18*mib)

	var wg sync.WaitGroup
	wg.Add(2)
	errs := make([]error, 2)
	keys := []string{"ka", "kb"}
	for i := 0; i < 2; i++ {
		i := i
		go func() {
			defer wg.Done()
			_, err := p.PutObject(ctx, "b", keys[i], bytes.NewReader(data), "", map[string]string{})
			errs[i] = err
		}()
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	// A losing writer may upload before it sees the winner's row; it then
	// deletes its own draft, so drafts stored minus drafts deleted is what
	// stays in the mailbox.
	assert.Equal(t, 1, counter.n-counter.deleted, "exactly one IMAP draft kept for identical concurrent puts")

	objA, err := p.Meta.GetObject(ctx, "b", "ka")
	require.NoError(t, err)
	objB, err := p.Meta.GetObject(ctx, "b", "kb")
	require.NoError(t, err)
	require.Len(t, objA.Chunks, 1)
	require.Len(t, objB.Chunks, 1)
	assert.Equal(t, objA.Chunks[0].Hash, objB.Chunks[0].Hash)

	chunkRow, err := lookupChunkDirect(ctx, p.Meta, objA.Chunks[0].Hash)
	require.NoError(t, err)
	assert.Equal(t, 2, chunkRow.RefCount)
}

func lookupChunkDirect(ctx context.Context, store metadata.Store, hash string) (*metadata.Chunk, error) {
	tx, err := store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()
	return tx.LookupChunk(hash)
}
