package chunk

import "errors"

var errInvalidHashLength = errors.New("chunk: decoded hash is not 32 bytes")
