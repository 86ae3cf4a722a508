package pipeline

import "github.com/mailchannels/objectmail/internal/metadata"

// release decrements hash's ref-count and, if it reaches zero, retains the
// chunk in the recycle bin instead of deleting it from the mail store.
// Grounded on the teacher's sqlChunkReferenceDecr (chunk/store_sql.go),
// generalized into the spec's three-state machine (referenced /
// orphaned-in-recycle-bin / gone) by adding the recycle-bin insert.
func release(tx metadata.Tx, hash string) error {
	count, err := tx.AdjustRefCount(hash, -1)
	if err != nil {
		return err
	}
	if count == 0 {
		return tx.RecycleAdd(hash)
	}
	return nil
}

// reclaim removes hash from the recycle bin and restores its ref-count to
// 1 on behalf of a new owner. Grounded on the teacher's
// sqlChunkReferenceIncr counterpart to release's Decr.
func reclaim(tx metadata.Tx, hash string) error {
	if err := tx.RecycleRemove(hash); err != nil {
		return err
	}
	_, err := tx.AdjustRefCount(hash, 1)
	return err
}
