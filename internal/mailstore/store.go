// Package mailstore persists and retrieves raw chunk bytes using an IMAP
// account, keyed by an opaque mail_message_id assigned at upload time. It
// never reads or writes the metadata store.
package mailstore

import "context"

// Store is satisfied by every mail-provider variant: Gmail, generic IMAP,
// and the in-memory test double. Grounded on the teacher's Storage
// interface (chunk/store.go), generalized from email-envelope persistence
// to opaque chunk-blob persistence.
type Store interface {
	// Store uploads data as a draft message's sole attachment and returns
	// the opaque identifier needed to fetch or delete it later. Fails
	// with ErrMailStoreUnavailable or ErrMailStoreQuotaExceeded.
	Store(ctx context.Context, hash string, data []byte) (mailMessageID string, err error)
	// Fetch retrieves a previously stored chunk's raw bytes. Fails with
	// ErrChunkMissing if the message can't be located or has no
	// attachment.
	Fetch(ctx context.Context, mailMessageID string) ([]byte, error)
	// Delete marks the draft for permanent deletion and expunges it.
	// Deleting an already-absent message succeeds silently.
	Delete(ctx context.Context, mailMessageID string) error
}
