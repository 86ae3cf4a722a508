package chunk

import (
	"errors"
	"io"
)

const (
	// DefaultSize is the chunk size used when none is configured.
	DefaultSize = 18 * 1024 * 1024
	// MinSize and MaxSize bound the configurable chunk size, chosen to
	// respect typical mail-provider attachment ceilings.
	MinSize = 1 * 1024 * 1024
	MaxSize = 25 * 1024 * 1024
)

var ErrChunkSizeOutOfRange = errors.New("chunk: size must be between 1 MiB and 25 MiB")

// Chunk is one fixed-size slice of an object's payload, labeled with its
// content hash and its position in the payload.
type Chunk struct {
	Index int
	Hash  HashKey
	Data  []byte
}

// Chunker splits a byte stream into fixed-size chunks without buffering the
// entire input. Every chunk has exactly Size bytes except possibly the last.
type Chunker struct {
	Size int
}

// New builds a Chunker, validating the configured size.
func New(size int) (*Chunker, error) {
	if size < MinSize || size > MaxSize {
		return nil, ErrChunkSizeOutOfRange
	}
	return &Chunker{Size: size}, nil
}

// Split reads r to completion, invoking emit once per chunk in order as soon
// as Size bytes have accumulated (or at end-of-stream for the final,
// possibly-short chunk). Empty input invokes emit zero times. Split never
// buffers more than Size bytes at once.
func (c *Chunker) Split(r io.Reader, emit func(Chunk) error) error {
	buf := make([]byte, c.Size)
	index := 0
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buf[:n])
			ch := Chunk{
				Index: index,
				Hash:  Sum(data),
				Data:  data,
			}
			if emitErr := emit(ch); emitErr != nil {
				return emitErr
			}
			index++
		}
		if err == io.EOF {
			return nil
		}
		if err == io.ErrUnexpectedEOF {
			// ReadFull returns this when 0 < n < len(buf): the final,
			// short chunk. It has already been emitted above.
			return nil
		}
		if err != nil {
			return err
		}
	}
}
