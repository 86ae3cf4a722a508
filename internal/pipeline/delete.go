package pipeline

import "context"

// DeleteObject implements spec.md §4.5 DeleteObject: idempotent on a
// missing key, and releases every referenced chunk through the recycle-bin
// protocol rather than deleting mail drafts directly.
func (p *Pipeline) DeleteObject(ctx context.Context, bucket, key string) error {
	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return err
	}
	deleted, err := tx.DeleteObject(bucket, key)
	if err != nil {
		tx.Rollback()
		return err
	}
	if deleted == nil {
		return tx.Commit()
	}
	for _, ref := range deleted.Chunks {
		if err := release(tx, ref.Hash); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}
