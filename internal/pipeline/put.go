package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"time"

	"github.com/mailchannels/objectmail/internal/chunk"
	"github.com/mailchannels/objectmail/internal/metadata"
)

// PutObject implements spec.md §4.5 PutObject. The MD5 running over the
// payload is accumulated as chunks stream through, never by re-reading the
// assembled object, so ETag computation costs no extra pass.
func (p *Pipeline) PutObject(ctx context.Context, bucket, key string, body io.Reader, contentType string, userMetadata map[string]string) (*metadata.Object, error) {
	if _, err := p.Meta.GetBucket(ctx, bucket); err != nil {
		return nil, err
	}

	sum := md5.New()
	var size int64
	var chunks []metadata.ChunkRef

	err := p.chunker.Split(body, func(c chunk.Chunk) error {
		sum.Write(c.Data)
		size += int64(len(c.Data))
		ref, err := p.storeOrDedupChunk(ctx, c.Hash.Hex(), c.Data)
		if err != nil {
			return err
		}
		chunks = append(chunks, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}

	obj := metadata.Object{
		Bucket:       bucket,
		Key:          key,
		Size:         size,
		ContentType:  contentType,
		UserMetadata: userMetadata,
		ETag:         hex.EncodeToString(sum.Sum(nil)),
		LastModified: time.Now(),
		Chunks:       chunks,
	}

	if err := p.upsertAndRelease(ctx, obj); err != nil {
		return nil, err
	}
	return &obj, nil
}

// upsertAndRelease replaces the object's chunk-map and releases the
// previous chunk-map's references in a single transaction, per spec.md
// §4.5 PutObject step 5.
func (p *Pipeline) upsertAndRelease(ctx context.Context, obj metadata.Object) error {
	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return err
	}
	prev, err := tx.UpsertObject(obj)
	if err != nil {
		tx.Rollback()
		return err
	}
	if prev != nil {
		for _, ref := range prev.Chunks {
			if err := release(tx, ref.Hash); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	return tx.Commit()
}
