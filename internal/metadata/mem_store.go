package metadata

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemStore is an in-process implementation of Store, used for unit tests
// and the InMemoryForTests mail-store pairing so the suite runs without a
// real database. Grounded on the teacher's StoreMemory (chunk/store_memory.go):
// map-backed chunks, slice-backed rows, same in-memory ref-counting idiom,
// generalized to the full object-storage metadata surface.
type MemStore struct {
	mu sync.Mutex

	buckets   map[string]*Bucket
	objects   map[string]map[string]*Object // bucket -> key -> object
	chunks    map[string]*Chunk
	recycle   map[string]struct{}
	multipart map[string]*MultipartUpload
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		buckets:   make(map[string]*Bucket),
		objects:   make(map[string]map[string]*Object),
		chunks:    make(map[string]*Chunk),
		recycle:   make(map[string]struct{}),
		multipart: make(map[string]*MultipartUpload),
	}
}

func cloneObject(o *Object) *Object {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Chunks = append([]ChunkRef(nil), o.Chunks...)
	cp.UserMetadata = make(map[string]string, len(o.UserMetadata))
	for k, v := range o.UserMetadata {
		cp.UserMetadata[k] = v
	}
	return &cp
}

func cloneUpload(u *MultipartUpload) *MultipartUpload {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Parts = make(map[int]UploadedPart, len(u.Parts))
	for k, v := range u.Parts {
		v.Chunks = append([]ChunkRef(nil), v.Chunks...)
		cp.Parts[k] = v
	}
	cp.UserMetadata = make(map[string]string, len(u.UserMetadata))
	for k, v := range u.UserMetadata {
		cp.UserMetadata[k] = v
	}
	return &cp
}

func (m *MemStore) GetBucket(_ context.Context, name string) (*Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[name]
	if !ok {
		return nil, ErrNoSuchBucket
	}
	cp := *b
	return &cp, nil
}

func (m *MemStore) ListBuckets(_ context.Context) ([]Bucket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Bucket, 0, len(m.buckets))
	for _, b := range m.buckets {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *MemStore) GetObject(_ context.Context, bucket, key string) (*Object, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byKey, ok := m.objects[bucket]
	if !ok {
		return nil, ErrNoSuchKey
	}
	o, ok := byKey[key]
	if !ok {
		return nil, ErrNoSuchKey
	}
	return cloneObject(o), nil
}

func (m *MemStore) ListObjects(_ context.Context, bucket string, q ListObjectsQuery) (*ListObjectsPage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	maxKeys := q.MaxKeys
	if maxKeys <= 0 || maxKeys > 1000 {
		maxKeys = 1000
	}

	byKey, ok := m.objects[bucket]
	if !ok {
		return &ListObjectsPage{}, nil
	}
	keys := make([]string, 0, len(byKey))
	for k := range byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	page := &ListObjectsPage{}
	seenPrefixes := make(map[string]bool)
	start := q.ContinuationToken
	if start == "" {
		start = q.StartAfter
	}

	for _, k := range keys {
		if q.Prefix != "" && !strings.HasPrefix(k, q.Prefix) {
			continue
		}
		if start != "" && k <= start {
			continue
		}
		if q.Delimiter != "" {
			rest := strings.TrimPrefix(k, q.Prefix)
			if idx := strings.Index(rest, q.Delimiter); idx >= 0 {
				prefix := q.Prefix + rest[:idx+len(q.Delimiter)]
				if !seenPrefixes[prefix] {
					seenPrefixes[prefix] = true
					page.CommonPrefixes = append(page.CommonPrefixes, prefix)
				}
				continue
			}
		}
		if len(page.Objects)+len(page.CommonPrefixes) >= maxKeys {
			page.IsTruncated = true
			page.NextContinuationToken = k
			break
		}
		page.Objects = append(page.Objects, *cloneObject(byKey[k]))
	}
	sort.Strings(page.CommonPrefixes)
	return page, nil
}

func (m *MemStore) GetMultipartUpload(_ context.Context, uploadID string) (*MultipartUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.multipart[uploadID]
	if !ok {
		return nil, ErrNoSuchUpload
	}
	return cloneUpload(u), nil
}

func (m *MemStore) ListActiveMultipartUploads(_ context.Context, bucket string) ([]MultipartUpload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []MultipartUpload
	for _, u := range m.multipart {
		if u.Bucket == bucket {
			out = append(out, *cloneUpload(u))
		}
	}
	return out, nil
}

func (m *MemStore) GetRecycleBin(_ context.Context) ([]ChunkRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recycleListLocked(), nil
}

func (m *MemStore) recycleListLocked() []ChunkRef {
	out := make([]ChunkRef, 0, len(m.recycle))
	for hash := range m.recycle {
		if c, ok := m.chunks[hash]; ok {
			out = append(out, ChunkRef{Hash: c.Hash, MailMessageID: c.MailMessageID, Size: c.Size})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out
}

// Begin locks the whole store for the transaction's lifetime, matching the
// teacher's single-goroutine-at-a-time StoreMemory access pattern
// generalized into an explicit transaction boundary.
func (m *MemStore) Begin(_ context.Context) (Tx, error) {
	m.mu.Lock()
	return &memTx{store: m}, nil
}

type memTx struct {
	store *MemStore
	done  bool
}

func (t *memTx) finish() {
	if !t.done {
		t.done = true
		t.store.mu.Unlock()
	}
}

func (t *memTx) Commit() error {
	t.finish()
	return nil
}

func (t *memTx) Rollback() error {
	t.finish()
	return nil
}

func (t *memTx) LookupChunk(hash string) (*Chunk, error) {
	c, ok := t.store.chunks[hash]
	if !ok {
		return nil, ErrChunkNotFound
	}
	cp := *c
	return &cp, nil
}

func (t *memTx) InsertChunk(hash, mailMessageID string, size int64) error {
	if _, ok := t.store.chunks[hash]; ok {
		return ErrChunkAlreadyExists
	}
	t.store.chunks[hash] = &Chunk{Hash: hash, MailMessageID: mailMessageID, Size: size, RefCount: 0}
	return nil
}

func (t *memTx) AdjustRefCount(hash string, delta int) (int, error) {
	c, ok := t.store.chunks[hash]
	if !ok {
		return 0, ErrChunkNotFound
	}
	next := c.RefCount + delta
	if next < 0 {
		return 0, ErrInvalidRefCountAdjustment
	}
	c.RefCount = next
	return next, nil
}

func (t *memTx) DeleteChunkRow(hash string) error {
	delete(t.store.chunks, hash)
	delete(t.store.recycle, hash)
	return nil
}

func (t *memTx) RecycleAdd(hash string) error {
	t.store.recycle[hash] = struct{}{}
	return nil
}

func (t *memTx) RecycleRemove(hash string) error {
	delete(t.store.recycle, hash)
	return nil
}

func (t *memTx) RecycleList() ([]ChunkRef, error) {
	return t.store.recycleListLocked(), nil
}

func (t *memTx) UpsertObject(obj Object) (*Object, error) {
	byKey, ok := t.store.objects[obj.Bucket]
	if !ok {
		return nil, ErrNoSuchBucket
	}
	prev := byKey[obj.Key]
	stored := cloneObject(&obj)
	stored.LastModified = time.Now()
	byKey[obj.Key] = stored
	return cloneObject(prev), nil
}

func (t *memTx) DeleteObject(bucket, key string) (*Object, error) {
	byKey, ok := t.store.objects[bucket]
	if !ok {
		return nil, nil
	}
	prev, ok := byKey[key]
	if !ok {
		return nil, nil
	}
	delete(byKey, key)
	return cloneObject(prev), nil
}

func (t *memTx) CreateBucket(name string) error {
	if _, ok := t.store.buckets[name]; ok {
		return ErrBucketAlreadyOwnedByYou
	}
	t.store.buckets[name] = &Bucket{Name: name, CreatedAt: time.Now()}
	t.store.objects[name] = make(map[string]*Object)
	return nil
}

func (t *memTx) DeleteBucket(name string) error {
	if _, ok := t.store.buckets[name]; !ok {
		return ErrNoSuchBucket
	}
	if n, err := t.BucketObjectCount(name); err != nil {
		return err
	} else if n > 0 {
		return ErrBucketNotEmpty
	}
	for _, u := range t.store.multipart {
		if u.Bucket == name {
			return ErrBucketNotEmpty
		}
	}
	delete(t.store.buckets, name)
	delete(t.store.objects, name)
	return nil
}

func (t *memTx) BucketObjectCount(name string) (int, error) {
	byKey, ok := t.store.objects[name]
	if !ok {
		return 0, ErrNoSuchBucket
	}
	return len(byKey), nil
}

func (t *memTx) CreateMultipartUpload(u MultipartUpload) error {
	if u.Parts == nil {
		u.Parts = make(map[int]UploadedPart)
	}
	t.store.multipart[u.UploadID] = cloneUpload(&u)
	return nil
}

func (t *memTx) GetMultipartUpload(uploadID string) (*MultipartUpload, error) {
	u, ok := t.store.multipart[uploadID]
	if !ok {
		return nil, ErrNoSuchUpload
	}
	return cloneUpload(u), nil
}

func (t *memTx) PutPart(uploadID string, part UploadedPart) (*UploadedPart, error) {
	u, ok := t.store.multipart[uploadID]
	if !ok {
		return nil, ErrNoSuchUpload
	}
	var prev *UploadedPart
	if existing, ok := u.Parts[part.PartNumber]; ok {
		p := existing
		prev = &p
	}
	u.Parts[part.PartNumber] = part
	return prev, nil
}

func (t *memTx) DeleteMultipartUpload(uploadID string) error {
	delete(t.store.multipart, uploadID)
	return nil
}
