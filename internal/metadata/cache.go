package metadata

import (
	"time"

	"github.com/gomodule/redigo/redis"
)

// CachingStore decorates a Store with a best-effort redis existence cache
// for chunk hashes, so a hot dedup hash can skip a round trip to the
// relational store before the Pipeline opens its transaction. Grounded on
// the teacher's RedisProcessor (backends/p_redis.go): same lazy
// redis.Conn-per-call style, same SETEX idiom, generalized from caching
// whole email bodies to caching "is this hash known" answers only.
//
// CachingStore never substitutes for the authoritative ref-count mutation:
// Begin still returns the underlying Store's Tx unmodified, so every
// lookup-then-mutate sequence the Pipeline performs still runs against the
// relational store inside one transaction. The cache only feeds
// ChunkMayExist, an advisory pre-check the Pipeline may use to decide
// whether a dedup attempt is likely to pay off before paying for a
// transaction round trip.
type CachingStore struct {
	Store
	pool *redis.Pool
	ttl  int
}

// NewCachingStore wraps store with a redis-backed hint cache. ttlSeconds
// of zero or less uses a 300s default; both commands pass zero, and no
// configuration option sets it.
func NewCachingStore(store Store, pool *redis.Pool, ttlSeconds int) *CachingStore {
	if ttlSeconds <= 0 {
		ttlSeconds = 300
	}
	return &CachingStore{Store: store, pool: pool, ttl: ttlSeconds}
}

// ChunkMayExist returns true if the cache believes hash is already known.
// A false here is not authoritative absence — it only means "ask the
// store" — and a transient redis error is treated the same as a cache
// miss rather than surfaced to the caller.
func (c *CachingStore) ChunkMayExist(hash string) bool {
	conn := c.pool.Get()
	defer conn.Close()
	exists, err := redis.Bool(conn.Do("GET", cacheKey(hash)))
	if err != nil {
		return false
	}
	return exists
}

// NoteChunkStored records that hash now exists, so a subsequent
// ChunkMayExist call for the same hash can skip straight to the dedup
// path. Call this after a successful InsertChunk or ref-count increment.
func (c *CachingStore) NoteChunkStored(hash string) {
	conn := c.pool.Get()
	defer conn.Close()
	_, _ = conn.Do("SETEX", cacheKey(hash), c.ttl, 1)
}

// NoteChunkGone evicts hash from the cache, called when a chunk row is
// deleted outright (the operator sweep tool) so the cache can't outlive
// the row it describes.
func (c *CachingStore) NoteChunkGone(hash string) {
	conn := c.pool.Get()
	defer conn.Close()
	_, _ = conn.Do("DEL", cacheKey(hash))
}

func cacheKey(hash string) string {
	return "chunk:" + hash
}

// dialTimeout is a connect timeout for redis dials. It is not referenced:
// the redis.Pool instances built in cmd/objectmaild and cmd/objectmail-sweep
// dial with redis.Dial's own defaults.
const dialTimeout = 2 * time.Second
