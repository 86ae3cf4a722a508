package pipeline

import (
	"context"

	"github.com/mailchannels/objectmail/internal/metadata"
)

// ListObjectsV2 implements spec.md §4.5 ListObjectsV2, a thin delegation to
// the Metadata Store's listing operation after confirming the bucket
// exists.
func (p *Pipeline) ListObjectsV2(ctx context.Context, bucket string, q metadata.ListObjectsQuery) (*metadata.ListObjectsPage, error) {
	if _, err := p.Meta.GetBucket(ctx, bucket); err != nil {
		return nil, err
	}
	return p.Meta.ListObjects(ctx, bucket, q)
}
