package pipeline

import (
	"context"
	"errors"

	"github.com/mailchannels/objectmail/internal/metadata"
)

// chunkExistenceCache is implemented by metadata.Store decorators (only
// metadata.CachingStore, today) that maintain a best-effort existence hint
// alongside the authoritative relational store. p.Meta is asserted against
// it on every call so the cache stays optional: a plain metadata.Store
// (no REDIS_ADDR configured) takes the same path it always has.
type chunkExistenceCache interface {
	ChunkMayExist(hash string) bool
	NoteChunkStored(hash string)
}

// storeOrDedupChunk implements spec.md §4.5 PutObject step 3: a dedup hit
// bumps the existing chunk's ref-count, a recycle hit pulls it back out of
// the recycle bin, and a miss uploads to the mail store before inserting a
// fresh chunk row. Each decision runs in its own short transaction so the
// IMAP round-trip on a miss never holds a database transaction open,
// matching spec.md §5's "IMAP round-trips" and "database round-trips" as
// independent suspension points.
//
// When p.Meta carries a chunkExistenceCache, a cache-confirmed miss skips
// straight to storeNewChunk, avoiding the LookupChunk round trip for the
// common case of genuinely new content. The cache is advisory only:
// storeNewChunk's duplicate-key handling still covers the case where the
// cache was wrong (a concurrent writer inserted the same hash meanwhile).
func (p *Pipeline) storeOrDedupChunk(ctx context.Context, hash string, data []byte) (metadata.ChunkRef, error) {
	if cache, ok := p.Meta.(chunkExistenceCache); ok && !cache.ChunkMayExist(hash) {
		return p.storeNewChunk(ctx, hash, data)
	}
	return p.lookupOrStoreChunk(ctx, hash, data)
}

// lookupOrStoreChunk is storeOrDedupChunk without the cache pre-check: it
// always asks the metadata store first.
func (p *Pipeline) lookupOrStoreChunk(ctx context.Context, hash string, data []byte) (metadata.ChunkRef, error) {
	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return metadata.ChunkRef{}, err
	}

	existing, err := tx.LookupChunk(hash)
	switch {
	case err == nil && existing.RefCount >= 1:
		// Dedup hit: no IMAP upload, just reference the existing chunk.
		if _, err := tx.AdjustRefCount(hash, 1); err != nil {
			tx.Rollback()
			return metadata.ChunkRef{}, err
		}
		if err := tx.Commit(); err != nil {
			return metadata.ChunkRef{}, err
		}
		return metadata.ChunkRef{Hash: hash, MailMessageID: existing.MailMessageID, Size: existing.Size}, nil

	case err == nil && existing.RefCount == 0:
		// Recycle hit: pull the chunk back out of the recycle bin.
		if err := reclaim(tx, hash); err != nil {
			tx.Rollback()
			return metadata.ChunkRef{}, err
		}
		if err := tx.Commit(); err != nil {
			return metadata.ChunkRef{}, err
		}
		return metadata.ChunkRef{Hash: hash, MailMessageID: existing.MailMessageID, Size: existing.Size}, nil

	case errors.Is(err, metadata.ErrChunkNotFound):
		tx.Rollback()
		return p.storeNewChunk(ctx, hash, data)

	default:
		tx.Rollback()
		return metadata.ChunkRef{}, err
	}
}

// storeNewChunk handles the miss path: upload to the mail store, then
// insert the chunk row. A concurrent writer may have inserted the same
// hash in the meantime; per spec.md §4.5 step 3d, the loser deletes its
// now-unused draft and re-resolves against the winning row.
func (p *Pipeline) storeNewChunk(ctx context.Context, hash string, data []byte) (metadata.ChunkRef, error) {
	msgID, err := p.Mail.Store(ctx, hash, data)
	if err != nil {
		return metadata.ChunkRef{}, err
	}

	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return metadata.ChunkRef{}, err
	}

	if err := tx.InsertChunk(hash, msgID, int64(len(data))); err != nil {
		tx.Rollback()
		if errors.Is(err, metadata.ErrChunkAlreadyExists) {
			_ = p.Mail.Delete(ctx, msgID) // best-effort compensation
			return p.lookupOrStoreChunk(ctx, hash, data)
		}
		return metadata.ChunkRef{}, err
	}
	if _, err := tx.AdjustRefCount(hash, 1); err != nil {
		tx.Rollback()
		return metadata.ChunkRef{}, err
	}
	if err := tx.Commit(); err != nil {
		return metadata.ChunkRef{}, err
	}
	if cache, ok := p.Meta.(chunkExistenceCache); ok {
		cache.NoteChunkStored(hash)
	}
	return metadata.ChunkRef{Hash: hash, MailMessageID: msgID, Size: int64(len(data))}, nil
}
