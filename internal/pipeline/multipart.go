package pipeline

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mailchannels/objectmail/internal/chunk"
	"github.com/mailchannels/objectmail/internal/metadata"
)

// CompletedPart is one entry of a CompleteMultipartUpload request body: the
// part number and the ETag the client recorded from UploadPart's response.
type CompletedPart struct {
	PartNumber int
	ETag       string
}

// CreateMultipartUpload implements spec.md §4.5: generates an opaque,
// URL-safe upload-id (UUIDv4, well over the spec's 128-bit entropy floor)
// and persists the upload's fixed attributes.
func (p *Pipeline) CreateMultipartUpload(ctx context.Context, bucket, key, contentType string, userMetadata map[string]string) (string, error) {
	if _, err := p.Meta.GetBucket(ctx, bucket); err != nil {
		return "", err
	}

	uploadID := uuid.New().String()
	u := metadata.MultipartUpload{
		UploadID:     uploadID,
		Bucket:       bucket,
		Key:          key,
		ContentType:  contentType,
		UserMetadata: userMetadata,
		CreatedAt:    time.Now(),
		Parts:        make(map[int]metadata.UploadedPart),
	}

	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return "", err
	}
	if err := tx.CreateMultipartUpload(u); err != nil {
		tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", err
	}
	return uploadID, nil
}

// UploadPart implements spec.md §4.5 UploadPart: chunks the body through
// the same dedup path as PutObject, then replaces any existing part with
// the same number, releasing its chunk references first.
func (p *Pipeline) UploadPart(ctx context.Context, uploadID string, partNumber int, body io.Reader) (*metadata.UploadedPart, error) {
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

	part := metadata.UploadedPart{
		PartNumber: partNumber,
		Size:       size,
		ETag:       hex.EncodeToString(sum.Sum(nil)),
		Chunks:     chunks,
	}

	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return nil, err
	}
	prev, err := tx.PutPart(uploadID, part)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if prev != nil {
		for _, ref := range prev.Chunks {
			if err := release(tx, ref.Hash); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &part, nil
}

// CompleteMultipartUpload implements spec.md §4.5: validates the listed
// parts are strictly increasing and ETag-matching, concatenates their
// chunk lists, computes the S3 multipart ETag, and materializes the final
// object. Ref-counts on the final chunks already reflect the UploadPart
// increments and are not re-incremented here; only the replaced previous
// object's old chunk-map (if any) is released.
func (p *Pipeline) CompleteMultipartUpload(ctx context.Context, uploadID string, parts []CompletedPart) (*metadata.Object, error) {
	u, err := p.Meta.GetMultipartUpload(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	prevNum := 0
	var md5Concat []byte
	var allChunks []metadata.ChunkRef
	var totalSize int64

	for _, cp := range parts {
		if cp.PartNumber <= prevNum {
			return nil, ErrInvalidPartOrder
		}
		prevNum = cp.PartNumber

		up, ok := u.Parts[cp.PartNumber]
		if !ok || !strings.EqualFold(up.ETag, cp.ETag) {
			return nil, ErrInvalidPart
		}
		raw, err := hex.DecodeString(up.ETag)
		if err != nil {
			return nil, ErrInvalidPart
		}
		md5Concat = append(md5Concat, raw...)
		allChunks = append(allChunks, up.Chunks...)
		totalSize += up.Size
	}

	digest := md5.Sum(md5Concat)
	etag := hex.EncodeToString(digest[:]) + "-" + strconv.Itoa(len(parts))

	obj := metadata.Object{
		Bucket:       u.Bucket,
		Key:          u.Key,
		Size:         totalSize,
		ContentType:  u.ContentType,
		UserMetadata: u.UserMetadata,
		ETag:         etag,
		LastModified: time.Now(),
		Chunks:       allChunks,
	}

	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return nil, err
	}
	prevObj, err := tx.UpsertObject(obj)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if prevObj != nil {
		for _, ref := range prevObj.Chunks {
			if err := release(tx, ref.Hash); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}
	if err := tx.DeleteMultipartUpload(uploadID); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &obj, nil
}

// AbortMultipartUpload implements spec.md §4.5: releases every part's
// chunk references through the recycle-bin protocol and removes the
// upload record.
func (p *Pipeline) AbortMultipartUpload(ctx context.Context, uploadID string) error {
	u, err := p.Meta.GetMultipartUpload(ctx, uploadID)
	if err != nil {
		return err
	}

	tx, err := p.Meta.Begin(ctx)
	if err != nil {
		return err
	}
	for _, part := range u.Parts {
		for _, ref := range part.Chunks {
			if err := release(tx, ref.Hash); err != nil {
				tx.Rollback()
				return err
			}
		}
	}
	if err := tx.DeleteMultipartUpload(uploadID); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// ListParts returns the in-progress upload's current part records.
func (p *Pipeline) ListParts(ctx context.Context, uploadID string) (*metadata.MultipartUpload, error) {
	return p.Meta.GetMultipartUpload(ctx, uploadID)
}
