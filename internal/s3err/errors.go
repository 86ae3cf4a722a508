// Package s3err maps the storage core's typed sentinel errors onto
// S3-compatible error codes and HTTP statuses, per spec.md §7.
package s3err

import (
	"context"
	"errors"
	"net/http"

	"github.com/mailchannels/objectmail/internal/mailstore"
	"github.com/mailchannels/objectmail/internal/metadata"
	"github.com/mailchannels/objectmail/internal/pipeline"
)

// Error is an S3-compatible error document plus the HTTP status it should
// be served with. Grounded on the teacher's response package
// (response/enhanced.go's canned reply-code table), generalized from SMTP
// reply codes to S3 error codes.
type Error struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *Error) Error() string { return e.Code + ": " + e.Message }

func newErr(code, msg string, status int) *Error {
	return &Error{Code: code, Message: msg, StatusCode: status}
}

// FromError maps any error the pipeline returns onto an *Error, following
// the table in spec.md §7. Unrecognized errors become a generic 500
// InternalError so every failure path still yields a well-formed S3 XML
// document.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return se
	}

	switch {
	case errors.Is(err, metadata.ErrNoSuchBucket):
		return newErr("NoSuchBucket", "The specified bucket does not exist.", http.StatusNotFound)
	case errors.Is(err, metadata.ErrNoSuchKey):
		return newErr("NoSuchKey", "The specified key does not exist.", http.StatusNotFound)
	case errors.Is(err, metadata.ErrBucketAlreadyOwnedByYou):
		return newErr("BucketAlreadyOwnedByYou", "Your previous request to create the named bucket succeeded and you already own it.", http.StatusConflict)
	case errors.Is(err, metadata.ErrBucketNotEmpty):
		return newErr("BucketNotEmpty", "The bucket you tried to delete is not empty.", http.StatusConflict)
	case errors.Is(err, metadata.ErrNoSuchUpload):
		return newErr("NoSuchUpload", "The specified multipart upload does not exist.", http.StatusNotFound)
	case errors.Is(err, pipeline.ErrInvalidPart):
		return newErr("InvalidPart", "One or more of the specified parts could not be found or its ETag does not match.", http.StatusBadRequest)
	case errors.Is(err, pipeline.ErrInvalidPartOrder):
		return newErr("InvalidPartOrder", "The list of parts was not in ascending order.", http.StatusBadRequest)
	case errors.Is(err, mailstore.ErrChunkMissing):
		return newErr("InternalError", "A stored chunk could not be located.", http.StatusInternalServerError)
	case errors.Is(err, mailstore.ErrMailStoreUnavailable):
		return newErr("ServiceUnavailable", "The mail store backing this service is unavailable.", http.StatusServiceUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return newErr("ServiceUnavailable", "Upstream timeout.", http.StatusServiceUnavailable)
	case errors.Is(err, mailstore.ErrMailStoreQuotaExceeded):
		return newErr("EntityTooLarge", "Your proposed upload exceeds the mail provider's size limit.", http.StatusBadRequest)
	default:
		return newErr("InternalError", "An internal error occurred.", http.StatusInternalServerError)
	}
}
