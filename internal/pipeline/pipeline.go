// Package pipeline orchestrates the Hasher, Chunker, Metadata Store, and
// Mail Chunk Store into S3-shaped operations: PutObject, GetObject,
// DeleteObject, ListObjectsV2, bucket CRUD, and the multipart upload state
// machine. Outside this package, internal/s3api also reads object metadata
// directly through Pipeline.Meta (for GET and HEAD headers), and
// cmd/objectmail-sweep works on both stores directly.
package pipeline

import (
	"github.com/mailchannels/objectmail/internal/chunk"
	"github.com/mailchannels/objectmail/internal/mailstore"
	"github.com/mailchannels/objectmail/internal/metadata"
)

// Pipeline wires the storage core together. Grounded on the teacher's
// guerrilla.Daemon (guerrilla.go), which holds references to every
// subsystem (backend, server pool) and exposes one method per externally
// triggered action — generalized here from SMTP session handling to S3
// object operations.
type Pipeline struct {
	Meta  metadata.Store
	Mail  mailstore.Store
	chunker *chunk.Chunker
	// FetchConcurrency bounds parallel chunk fetches during GetObject; it
	// should not exceed the mail store's connection pool size.
	FetchConcurrency int
}

// Config carries the tunables a caller assembles from internal/config.
type Config struct {
	ChunkSizeBytes   int
	FetchConcurrency int
}

// New builds a Pipeline. FetchConcurrency defaults to 4 if unset.
func New(meta metadata.Store, mail mailstore.Store, cfg Config) (*Pipeline, error) {
	size := cfg.ChunkSizeBytes
	if size == 0 {
		size = chunk.DefaultSize
	}
	chunker, err := chunk.New(size)
	if err != nil {
		return nil, err
	}
	fc := cfg.FetchConcurrency
	if fc <= 0 {
		fc = 4
	}
	return &Pipeline{Meta: meta, Mail: mail, chunker: chunker, FetchConcurrency: fc}, nil
}
