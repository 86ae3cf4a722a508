package pipeline

import (
	"context"

	"github.com/mailchannels/objectmail/internal/metadata"
)

// CreateBucket implements spec.md §4.5 CreateBucket.
func (p *Pipeline) CreateBucket(ctx context.Context, name string) error {
	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.CreateBucket(name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// DeleteBucket implements spec.md §4.5 DeleteBucket: rejects non-empty
// buckets, where active multipart uploads count as non-empty.
func (p *Pipeline) DeleteBucket(ctx context.Context, name string) error {
	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return err
	}
	if err := tx.DeleteBucket(name); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListBuckets returns every bucket in the namespace.
func (p *Pipeline) ListBuckets(ctx context.Context) ([]metadata.Bucket, error) {
	return p.Meta.ListBuckets(ctx)
}
