package metadata

import "context"

// Store is the typed interface over the relational metadata database. It is
// the sole mutator of bucket, object, chunk, and multipart-upload state; the
// Mail Chunk Store never reads or writes it.
type Store interface {
	// GetBucket returns ErrNoSuchBucket if name is unknown.
	GetBucket(ctx context.Context, name string) (*Bucket, error)
	ListBuckets(ctx context.Context) ([]Bucket, error)

	// GetObject returns ErrNoSuchKey if (bucket, key) doesn't exist.
	GetObject(ctx context.Context, bucket, key string) (*Object, error)
	ListObjects(ctx context.Context, bucket string, q ListObjectsQuery) (*ListObjectsPage, error)

	GetMultipartUpload(ctx context.Context, uploadID string) (*MultipartUpload, error)
	ListActiveMultipartUploads(ctx context.Context, bucket string) ([]MultipartUpload, error)

	GetRecycleBin(ctx context.Context) ([]ChunkRef, error)

	// Begin opens a transaction with at least READ COMMITTED isolation.
	// Callers must Commit or Rollback exactly once.
	Begin(ctx context.Context) (Tx, error)
}

// Tx groups the mutating operations that must happen atomically together:
// chunk lookup/insert/ref-counting, the recycle bin, object upserts/deletes,
// bucket CRUD, and multipart-upload CRUD.
type Tx interface {
	Commit() error
	Rollback() error

	// LookupChunk returns ErrChunkNotFound if hash is unknown.
	LookupChunk(hash string) (*Chunk, error)
	// InsertChunk returns ErrChunkAlreadyExists if hash collided with a
	// concurrent writer between LookupChunk and InsertChunk.
	InsertChunk(hash, mailMessageID string, size int64) error
	// AdjustRefCount applies delta (+1 or -1) with a lower bound of 0 and
	// returns the resulting count.
	AdjustRefCount(hash string, delta int) (int, error)
	// DeleteChunkRow removes a chunk row outright. Used only by the
	// operator sweep tool, never by the request path.
	DeleteChunkRow(hash string) error

	RecycleAdd(hash string) error
	RecycleRemove(hash string) error
	RecycleList() ([]ChunkRef, error)

	// UpsertObject atomically replaces the object's chunk-map with
	// obj.Chunks. It returns the previous object (nil if this is a new
	// key) so the caller can release its old chunk references.
	UpsertObject(obj Object) (previous *Object, err error)
	// DeleteObject removes the object row and its chunk-map. It returns
	// (nil, nil) if the object didn't exist, per S3's idempotent-delete
	// semantics.
	DeleteObject(bucket, key string) (deleted *Object, err error)

	CreateBucket(name string) error
	DeleteBucket(name string) error
	BucketObjectCount(name string) (int, error)

	CreateMultipartUpload(u MultipartUpload) error
	GetMultipartUpload(uploadID string) (*MultipartUpload, error)
	// PutPart replaces any existing part with the same PartNumber and
	// returns it (nil if there was none) so the caller can release its
	// chunk references.
	PutPart(uploadID string, part UploadedPart) (previous *UploadedPart, err error)
	DeleteMultipartUpload(uploadID string) error
}
