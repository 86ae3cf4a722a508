package pipeline

import "errors"

// ErrInvalidPart and ErrInvalidPartOrder surface CompleteMultipartUpload
// validation failures per spec.md §7; internal/s3api maps them onto the
// S3 InvalidPart/InvalidPartOrder error codes.
var (
	ErrInvalidPart      = errors.New("pipeline: part missing or etag mismatch")
	ErrInvalidPartOrder = errors.New("pipeline: parts not strictly increasing by part number")
)
