package pipeline

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/mailchannels/objectmail/internal/metadata"
)

// ByteRange is an inclusive byte range for a GetObject request. End of -1
// means "through end of object".
type ByteRange struct {
	Start int64
	End   int64
}

// GetObject implements spec.md §4.5 GetObject: it resolves the chunk list,
// fetches the chunks covering the requested range with bounded parallel
// fetches, and writes bytes to w strictly in sequence regardless of fetch
// completion order. Grounded on the pack's storage-core examples bounding
// concurrent upstream calls with golang.org/x/sync (see SPEC_FULL.md §4.5);
// the fan-out width is capped at Pipeline.FetchConcurrency, which should
// track the mail store's connection pool size.
func (p *Pipeline) GetObject(ctx context.Context, bucket, key string, rng *ByteRange, w io.Writer) (*metadata.Object, error) {
	obj, err := p.Meta.GetObject(ctx, bucket, key)
	if err != nil {
		return nil, err
	}

	start, end := int64(0), obj.Size-1
	if rng != nil {
		start = rng.Start
		end = rng.End
		if end < 0 || end >= obj.Size {
			end = obj.Size - 1
		}
	}
	if obj.Size == 0 || start > end {
		return obj, nil
	}

	offsets := make([]int64, len(obj.Chunks))
	var cum int64
	for i, c := range obj.Chunks {
		offsets[i] = cum
		cum += c.Size
	}

	firstIdx, lastIdx := 0, len(obj.Chunks)-1
	for i := range obj.Chunks {
		if offsets[i]+obj.Chunks[i].Size > start {
			firstIdx = i
			break
		}
	}
	for i := len(obj.Chunks) - 1; i >= 0; i-- {
		if offsets[i] <= end {
			lastIdx = i
			break
		}
	}

	needed := obj.Chunks[firstIdx : lastIdx+1]
	fetched := make([][]byte, len(needed))

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(p.FetchConcurrency))
	for i, ref := range needed {
		i, ref := i, ref
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)
			b, err := p.Mail.Fetch(gctx, ref.MailMessageID)
			if err != nil {
				return err
			}
			fetched[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, b := range fetched {
		chunkStart := offsets[firstIdx+i]
		chunkEnd := chunkStart + int64(len(b)) - 1
		lo, hi := int64(0), int64(len(b))
		if chunkStart < start {
			lo = start - chunkStart
		}
		if chunkEnd > end {
			hi = end - chunkStart + 1
		}
		if _, err := w.Write(b[lo:hi]); err != nil {
			return nil, err
		}
	}
	return obj, nil
}
