package metadata

import "errors"

var (
	ErrNoSuchBucket             = errors.New("metadata: no such bucket")
	ErrBucketAlreadyOwnedByYou  = errors.New("metadata: bucket already owned by you")
	ErrBucketNotEmpty           = errors.New("metadata: bucket not empty")
	ErrNoSuchKey                = errors.New("metadata: no such key")
	ErrNoSuchUpload             = errors.New("metadata: no such upload")
	ErrChunkAlreadyExists       = errors.New("metadata: chunk already exists")
	ErrChunkNotFound            = errors.New("metadata: chunk not found")
	ErrInvalidRefCountAdjustment = errors.New("metadata: ref-count would go below zero")
)
