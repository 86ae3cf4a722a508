package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

// SQLStore is the production Store, backed by database/sql. Grounded on
// the teacher's StoreSQL (chunk/store_sql.go): a ref_count column with the
// same increment/decrement idiom, and the schema-as-doc-comment convention
// (see schema.sql). Queries are issued directly through the *sql.Tx or
// *sql.DB; no statements are prepared up front.
//
// Unlike the teacher's two-step "try incrementing, insert on zero rows
// affected" AddChunk, InsertChunk here is a single UPSERT
// (INSERT ... ON DUPLICATE KEY UPDATE), closing the lost-update race the
// spec calls out explicitly in its Metadata Store section.
type SQLStore struct {
	db *sql.DB

	tableObjects            string
	tableObjectChunks       string
	tableChunks             string
	tableBuckets            string
	tableMultipartUploads   string
	tableMultipartParts     string
	tableMultipartPartChunk string
	tableRecycleBin         string
}

// SQLStoreConfig names the tables; defaults match schema.sql. The
// recycle-bin table is always recycle_bin.
type SQLStoreConfig struct {
	Buckets            string
	Objects            string
	ObjectChunks       string
	Chunks             string
	MultipartUploads   string
	MultipartParts     string
	MultipartPartChunk string
}

func (c SQLStoreConfig) withDefaults() SQLStoreConfig {
	if c.Buckets == "" {
		c.Buckets = "buckets"
	}
	if c.Objects == "" {
		c.Objects = "objects"
	}
	if c.ObjectChunks == "" {
		c.ObjectChunks = "object_chunks"
	}
	if c.Chunks == "" {
		c.Chunks = "chunks"
	}
	if c.MultipartUploads == "" {
		c.MultipartUploads = "multipart_uploads"
	}
	if c.MultipartParts == "" {
		c.MultipartParts = "multipart_parts"
	}
	if c.MultipartPartChunk == "" {
		c.MultipartPartChunk = "multipart_part_chunks"
	}
	return c
}

// NewSQLStore wraps an already-opened *sql.DB (the DSN, driver selection,
// and connection-pool sizing are process bootstrap concerns, handled by
// internal/config).
func NewSQLStore(db *sql.DB, cfg SQLStoreConfig) *SQLStore {
	cfg = cfg.withDefaults()
	return &SQLStore{
		db:                      db,
		tableBuckets:            cfg.Buckets,
		tableObjects:            cfg.Objects,
		tableObjectChunks:       cfg.ObjectChunks,
		tableChunks:             cfg.Chunks,
		tableMultipartUploads:   cfg.MultipartUploads,
		tableMultipartParts:     cfg.MultipartParts,
		tableMultipartPartChunk: cfg.MultipartPartChunk,
		tableRecycleBin:         "recycle_bin",
	}
}

const mysqlDatetime = "2006-01-02 15:04:05"

func (s *SQLStore) GetBucket(ctx context.Context, name string) (*Bucket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, created_at FROM `+s.tableBuckets+` WHERE name = ?`, name)
	var b Bucket
	var createdAt time.Time
	if err := row.Scan(&b.Name, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSuchBucket
		}
		return nil, err
	}
	b.CreatedAt = createdAt
	return &b, nil
}

func (s *SQLStore) ListBuckets(ctx context.Context) ([]Bucket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, created_at FROM `+s.tableBuckets+` ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Bucket
	for rows.Next() {
		var b Bucket
		if err := rows.Scan(&b.Name, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (s *SQLStore) GetObject(ctx context.Context, bucket, key string) (*Object, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, size, content_type, user_metadata, etag, last_modified
		FROM `+s.tableObjects+` WHERE bucket = ? AND object_key = ?`, bucket, key)

	var id int64
	var o Object
	var metaJSON string
	o.Bucket, o.Key = bucket, key
	if err := row.Scan(&id, &o.Size, &o.ContentType, &metaJSON, &o.ETag, &o.LastModified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSuchKey
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &o.UserMetadata); err != nil {
		return nil, fmt.Errorf("metadata: decoding user metadata: %w", err)
	}

	chunks, err := s.objectChunks(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Chunks = chunks
	return &o, nil
}

func (s *SQLStore) objectChunks(ctx context.Context, objectID int64) ([]ChunkRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT oc.chunk_hash, c.mail_message_id, c.size
		FROM `+s.tableObjectChunks+` oc
		JOIN `+s.tableChunks+` c ON c.hash = oc.chunk_hash
		WHERE oc.object_id = ? ORDER BY oc.seq`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRef
	for rows.Next() {
		var cr ChunkRef
		if err := rows.Scan(&cr.Hash, &cr.MailMessageID, &cr.Size); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (s *SQLStore) ListObjects(ctx context.Context, bucket string, q ListObjectsQuery) (*ListObjectsPage, error) {
	maxKeys := q.MaxKeys
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}
	start := q.ContinuationToken
	if start == "" {
		start = q.StartAfter
	}

	query := `SELECT id, object_key, size, content_type, user_metadata, etag, last_modified
		FROM ` + s.tableObjects + ` WHERE bucket = ?`
	args := []interface{}{bucket}
	if q.Prefix != "" {
		query += ` AND object_key LIKE ?`
		args = append(args, strings.ReplaceAll(q.Prefix, "%", `\%`)+"%")
	}
	if start != "" {
		query += ` AND object_key > ?`
		args = append(args, start)
	}
	query += ` ORDER BY object_key LIMIT ?`
	args = append(args, maxKeys+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	page := &ListObjectsPage{}
	seenPrefixes := make(map[string]bool)
	count := 0
	for rows.Next() {
		var id int64
		var o Object
		var metaJSON string
		o.Bucket = bucket
		if err := rows.Scan(&id, &o.Key, &o.Size, &o.ContentType, &metaJSON, &o.ETag, &o.LastModified); err != nil {
			return nil, err
		}
		if count >= maxKeys {
			page.IsTruncated = true
			page.NextContinuationToken = o.Key
			break
		}
		if q.Delimiter != "" {
			rest := strings.TrimPrefix(o.Key, q.Prefix)
			if idx := strings.Index(rest, q.Delimiter); idx >= 0 {
				prefix := q.Prefix + rest[:idx+len(q.Delimiter)]
				if !seenPrefixes[prefix] {
					seenPrefixes[prefix] = true
					page.CommonPrefixes = append(page.CommonPrefixes, prefix)
				}
				count++
				continue
			}
		}
		if err := json.Unmarshal([]byte(metaJSON), &o.UserMetadata); err != nil {
			return nil, fmt.Errorf("metadata: decoding user metadata: %w", err)
		}
		chunks, err := s.objectChunks(ctx, id)
		if err != nil {
			return nil, err
		}
		o.Chunks = chunks
		page.Objects = append(page.Objects, o)
		count++
	}
	return page, rows.Err()
}

func (s *SQLStore) GetMultipartUpload(ctx context.Context, uploadID string) (*MultipartUpload, error) {
	u, err := s.loadUpload(ctx, s.db, uploadID)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *SQLStore) loadUpload(ctx context.Context, q querier, uploadID string) (*MultipartUpload, error) {
	row := q.QueryRowContext(ctx, `
		SELECT bucket, object_key, content_type, user_metadata, created_at
		FROM `+s.tableMultipartUploads+` WHERE upload_id = ?`, uploadID)
	var u MultipartUpload
	u.UploadID = uploadID
	var metaJSON string
	if err := row.Scan(&u.Bucket, &u.Key, &u.ContentType, &metaJSON, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSuchUpload
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &u.UserMetadata); err != nil {
		return nil, fmt.Errorf("metadata: decoding user metadata: %w", err)
	}

	rows, err := q.QueryContext(ctx, `SELECT part_number, etag, size FROM `+s.tableMultipartParts+` WHERE upload_id = ?`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	u.Parts = make(map[int]UploadedPart)
	for rows.Next() {
		var p UploadedPart
		if err := rows.Scan(&p.PartNumber, &p.ETag, &p.Size); err != nil {
			return nil, err
		}
		u.Parts[p.PartNumber] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for num, p := range u.Parts {
		chunkRows, err := q.QueryContext(ctx, `
			SELECT pc.chunk_hash, c.mail_message_id, c.size
			FROM `+s.tableMultipartPartChunk+` pc
			JOIN `+s.tableChunks+` c ON c.hash = pc.chunk_hash
			WHERE pc.upload_id = ? AND pc.part_number = ? ORDER BY pc.seq`, uploadID, num)
		if err != nil {
			return nil, err
		}
		var chunks []ChunkRef
		for chunkRows.Next() {
			var cr ChunkRef
			if err := chunkRows.Scan(&cr.Hash, &cr.MailMessageID, &cr.Size); err != nil {
				chunkRows.Close()
				return nil, err
			}
			chunks = append(chunks, cr)
		}
		chunkRows.Close()
		p.Chunks = chunks
		u.Parts[num] = p
	}
	return &u, nil
}

func (s *SQLStore) ListActiveMultipartUploads(ctx context.Context, bucket string) ([]MultipartUpload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT upload_id FROM `+s.tableMultipartUploads+` WHERE bucket = ?`, bucket)
	if err != nil {
		return nil, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]MultipartUpload, 0, len(ids))
	for _, id := range ids {
		u, err := s.loadUpload(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *u)
	}
	return out, nil
}

func (s *SQLStore) GetRecycleBin(ctx context.Context) ([]ChunkRef, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.chunk_hash, c.mail_message_id, c.size
		FROM `+s.tableRecycleBin+` r JOIN `+s.tableChunks+` c ON c.hash = r.chunk_hash
		ORDER BY r.chunk_hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRef
	for rows.Next() {
		var cr ChunkRef
		if err := rows.Scan(&cr.Hash, &cr.MailMessageID, &cr.Size); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting loadUpload run
// inside or outside a transaction.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	return &sqlTx{store: s, tx: tx, ctx: ctx}, nil
}

type sqlTx struct {
	store *SQLStore
	tx    *sql.Tx
	ctx   context.Context
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func (t *sqlTx) LookupChunk(hash string) (*Chunk, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT hash, mail_message_id, size, ref_count FROM `+t.store.tableChunks+`
		WHERE hash = ? FOR UPDATE`, hash)
	var c Chunk
	if err := row.Scan(&c.Hash, &c.MailMessageID, &c.Size, &c.RefCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChunkNotFound
		}
		return nil, err
	}
	return &c, nil
}

// InsertChunk performs the atomic get-or-create UPSERT the spec requires
// (§4.4: "must use row-level locking or an UPSERT to prevent lost updates
// under concurrent identical puts"). It returns ErrChunkAlreadyExists so
// the Pipeline can follow spec.md §4.5 step 3d's collision-recovery path
// (delete the just-uploaded draft, use the winning row).
func (t *sqlTx) InsertChunk(hash, mailMessageID string, size int64) error {
	res, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO `+t.store.tableChunks+` (hash, mail_message_id, size, ref_count)
		VALUES (?, ?, ?, 0)
		ON DUPLICATE KEY UPDATE hash = hash`, hash, mailMessageID, size)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	// MySQL reports 1 row affected for a fresh insert and 0 for a no-op
	// update (hash = hash leaves the row unchanged), so 0 unambiguously
	// means the row already existed.
	if affected == 0 {
		return ErrChunkAlreadyExists
	}
	return nil
}

func (t *sqlTx) AdjustRefCount(hash string, delta int) (int, error) {
	if delta >= 0 {
		if _, err := t.tx.ExecContext(t.ctx, `
			UPDATE `+t.store.tableChunks+` SET ref_count = ref_count + ? WHERE hash = ?`, delta, hash); err != nil {
			return 0, err
		}
	} else {
		res, err := t.tx.ExecContext(t.ctx, `
			UPDATE `+t.store.tableChunks+` SET ref_count = ref_count + ? WHERE hash = ? AND ref_count >= ?`, delta, hash, -delta)
		if err != nil {
			return 0, err
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, err
		}
		if affected == 0 {
			return 0, ErrInvalidRefCountAdjustment
		}
	}
	var count int
	row := t.tx.QueryRowContext(t.ctx, `SELECT ref_count FROM `+t.store.tableChunks+` WHERE hash = ?`, hash)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrChunkNotFound
		}
		return 0, err
	}
	return count, nil
}

func (t *sqlTx) DeleteChunkRow(hash string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableChunks+` WHERE hash = ?`, hash)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableRecycleBin+` WHERE chunk_hash = ?`, hash)
	return err
}

func (t *sqlTx) RecycleAdd(hash string) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO `+t.store.tableRecycleBin+` (chunk_hash) VALUES (?)
		ON DUPLICATE KEY UPDATE chunk_hash = chunk_hash`, hash)
	return err
}

func (t *sqlTx) RecycleRemove(hash string) error {
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableRecycleBin+` WHERE chunk_hash = ?`, hash)
	return err
}

func (t *sqlTx) RecycleList() ([]ChunkRef, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT r.chunk_hash, c.mail_message_id, c.size
		FROM `+t.store.tableRecycleBin+` r JOIN `+t.store.tableChunks+` c ON c.hash = r.chunk_hash
		ORDER BY r.chunk_hash`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRef
	for rows.Next() {
		var cr ChunkRef
		if err := rows.Scan(&cr.Hash, &cr.MailMessageID, &cr.Size); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (t *sqlTx) UpsertObject(obj Object) (*Object, error) {
	var bucketExists int
	if err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+t.store.tableBuckets+` WHERE name = ?`, obj.Bucket).Scan(&bucketExists); err != nil {
		return nil, err
	}
	if bucketExists == 0 {
		return nil, ErrNoSuchBucket
	}

	prev, err := t.getObjectForUpdate(obj.Bucket, obj.Key)
	if err != nil && !errors.Is(err, ErrNoSuchKey) {
		return nil, err
	}

	metaJSON, err := json.Marshal(obj.UserMetadata)
	if err != nil {
		return nil, err
	}

	var objectID int64
	now := time.Now()
	if prev == nil {
		res, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO `+t.store.tableObjects+`
				(bucket, object_key, size, content_type, user_metadata, etag, last_modified)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			obj.Bucket, obj.Key, obj.Size, obj.ContentType, string(metaJSON), obj.ETag, now)
		if err != nil {
			return nil, err
		}
		objectID, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
	} else {
		row := t.tx.QueryRowContext(t.ctx, `SELECT id FROM `+t.store.tableObjects+` WHERE bucket = ? AND object_key = ?`, obj.Bucket, obj.Key)
		if err := row.Scan(&objectID); err != nil {
			return nil, err
		}
		if _, err := t.tx.ExecContext(t.ctx, `
			UPDATE `+t.store.tableObjects+`
			SET size = ?, content_type = ?, user_metadata = ?, etag = ?, last_modified = ?
			WHERE id = ?`, obj.Size, obj.ContentType, string(metaJSON), obj.ETag, now, objectID); err != nil {
			return nil, err
		}
		if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableObjectChunks+` WHERE object_id = ?`, objectID); err != nil {
			return nil, err
		}
	}

	for i, cr := range obj.Chunks {
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO `+t.store.tableObjectChunks+` (object_id, seq, chunk_hash) VALUES (?, ?, ?)`,
			objectID, i, cr.Hash); err != nil {
			return nil, err
		}
	}

	return prev, nil
}

func (t *sqlTx) getObjectForUpdate(bucket, key string) (*Object, error) {
	row := t.tx.QueryRowContext(t.ctx, `
		SELECT id, size, content_type, user_metadata, etag, last_modified
		FROM `+t.store.tableObjects+` WHERE bucket = ? AND object_key = ? FOR UPDATE`, bucket, key)
	var id int64
	var o Object
	o.Bucket, o.Key = bucket, key
	var metaJSON string
	if err := row.Scan(&id, &o.Size, &o.ContentType, &metaJSON, &o.ETag, &o.LastModified); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoSuchKey
		}
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &o.UserMetadata); err != nil {
		return nil, err
	}
	chunks, err := t.objectChunksTx(id)
	if err != nil {
		return nil, err
	}
	o.Chunks = chunks
	return &o, nil
}

func (t *sqlTx) objectChunksTx(objectID int64) ([]ChunkRef, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT oc.chunk_hash, c.mail_message_id, c.size
		FROM `+t.store.tableObjectChunks+` oc
		JOIN `+t.store.tableChunks+` c ON c.hash = oc.chunk_hash
		WHERE oc.object_id = ? ORDER BY oc.seq`, objectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ChunkRef
	for rows.Next() {
		var cr ChunkRef
		if err := rows.Scan(&cr.Hash, &cr.MailMessageID, &cr.Size); err != nil {
			return nil, err
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (t *sqlTx) DeleteObject(bucket, key string) (*Object, error) {
	prev, err := t.getObjectForUpdate(bucket, key)
	if err != nil {
		if errors.Is(err, ErrNoSuchKey) {
			return nil, nil
		}
		return nil, err
	}
	var id int64
	if err := t.tx.QueryRowContext(t.ctx, `SELECT id FROM `+t.store.tableObjects+` WHERE bucket = ? AND object_key = ?`, bucket, key).Scan(&id); err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableObjectChunks+` WHERE object_id = ?`, id); err != nil {
		return nil, err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableObjects+` WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return prev, nil
}

func (t *sqlTx) CreateBucket(name string) error {
	_, err := t.tx.ExecContext(t.ctx, `INSERT INTO `+t.store.tableBuckets+` (name, created_at) VALUES (?, ?)`, name, time.Now())
	if err != nil {
		if isDuplicateKeyErr(err) {
			return ErrBucketAlreadyOwnedByYou
		}
		return err
	}
	return nil
}

func (t *sqlTx) DeleteBucket(name string) error {
	count, err := t.BucketObjectCount(name)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrBucketNotEmpty
	}
	var activeUploads int
	if err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+t.store.tableMultipartUploads+` WHERE bucket = ?`, name).Scan(&activeUploads); err != nil {
		return err
	}
	if activeUploads > 0 {
		return ErrBucketNotEmpty
	}
	res, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableBuckets+` WHERE name = ?`, name)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNoSuchBucket
	}
	return nil
}

func (t *sqlTx) BucketObjectCount(name string) (int, error) {
	var exists int
	if err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+t.store.tableBuckets+` WHERE name = ?`, name).Scan(&exists); err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, ErrNoSuchBucket
	}
	var count int
	if err := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(*) FROM `+t.store.tableObjects+` WHERE bucket = ?`, name).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (t *sqlTx) CreateMultipartUpload(u MultipartUpload) error {
	metaJSON, err := json.Marshal(u.UserMetadata)
	if err != nil {
		return err
	}
	_, err = t.tx.ExecContext(t.ctx, `
		INSERT INTO `+t.store.tableMultipartUploads+`
			(upload_id, bucket, object_key, content_type, user_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.UploadID, u.Bucket, u.Key, u.ContentType, string(metaJSON), time.Now())
	return err
}

func (t *sqlTx) GetMultipartUpload(uploadID string) (*MultipartUpload, error) {
	return t.store.loadUpload(t.ctx, t.tx, uploadID)
}

func (t *sqlTx) PutPart(uploadID string, part UploadedPart) (*UploadedPart, error) {
	existing, err := t.store.loadUpload(t.ctx, t.tx, uploadID)
	if err != nil {
		return nil, err
	}
	var prev *UploadedPart
	if p, ok := existing.Parts[part.PartNumber]; ok {
		prev = &p
	}

	if prev != nil {
		if _, err := t.tx.ExecContext(t.ctx, `
			DELETE FROM `+t.store.tableMultipartPartChunk+` WHERE upload_id = ? AND part_number = ?`,
			uploadID, part.PartNumber); err != nil {
			return nil, err
		}
		if _, err := t.tx.ExecContext(t.ctx, `
			UPDATE `+t.store.tableMultipartParts+` SET etag = ?, size = ? WHERE upload_id = ? AND part_number = ?`,
			part.ETag, part.Size, uploadID, part.PartNumber); err != nil {
			return nil, err
		}
	} else {
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO `+t.store.tableMultipartParts+` (upload_id, part_number, etag, size) VALUES (?, ?, ?, ?)`,
			uploadID, part.PartNumber, part.ETag, part.Size); err != nil {
			return nil, err
		}
	}
	for i, cr := range part.Chunks {
		if _, err := t.tx.ExecContext(t.ctx, `
			INSERT INTO `+t.store.tableMultipartPartChunk+` (upload_id, part_number, seq, chunk_hash) VALUES (?, ?, ?, ?)`,
			uploadID, part.PartNumber, i, cr.Hash); err != nil {
			return nil, err
		}
	}
	return prev, nil
}

func (t *sqlTx) DeleteMultipartUpload(uploadID string) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableMultipartPartChunk+` WHERE upload_id = ?`, uploadID); err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableMultipartParts+` WHERE upload_id = ?`, uploadID); err != nil {
		return err
	}
	_, err := t.tx.ExecContext(t.ctx, `DELETE FROM `+t.store.tableMultipartUploads+` WHERE upload_id = ?`, uploadID)
	return err
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
