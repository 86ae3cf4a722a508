package mailstore

import "errors"

var (
	ErrMailStoreUnavailable  = errors.New("mailstore: connection/auth failure")
	ErrMailStoreQuotaExceeded = errors.New("mailstore: provider rejected for size")
	ErrChunkMissing           = errors.New("mailstore: message not found or has no attachment")
)
