package chunk

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkerEmptyInput(t *testing.T) {
	c, err := New(MinSize)
	require.NoError(t, err)

	var got []Chunk
	err = c.Split(bytes.NewReader(nil), func(ch Chunk) error {
		got = append(got, ch)
		return nil
	})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestChunkerSplitsAtExactBoundaries(t *testing.T) {
	c, err := New(MinSize)
	require.NoError(t, err)

	as := bytes.Repeat([]byte("a"), MinSize)
	bs := bytes.Repeat([]byte("b"), MinSize)
	payload := append(append(append([]byte{}, as...), bs...), "cc"...)
	var got []Chunk
	err = c.Split(bytes.NewReader(payload), func(ch Chunk) error {
		got = append(got, ch)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, as, got[0].Data)
	assert.Equal(t, bs, got[1].Data)
	assert.Equal(t, []byte("cc"), got[2].Data)
	assert.Equal(t, 0, got[0].Index)
	assert.Equal(t, 1, got[1].Index)
	assert.Equal(t, 2, got[2].Index)
	assert.NotEqual(t, got[0].Hash, got[1].Hash)
}

func TestChunkerIdenticalBytesProduceIdenticalHashes(t *testing.T) {
	c, err := New(MinSize)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x41}, 3*MinSize)
	var got []Chunk
	require.NoError(t, c.Split(bytes.NewReader(payload), func(ch Chunk) error {
		got = append(got, ch)
		return nil
	}))
	require.Len(t, got, 3)
	assert.Equal(t, got[0].Hash, got[1].Hash)
	assert.Equal(t, got[1].Hash, got[2].Hash)
}

func TestNewRejectsOutOfRangeSize(t *testing.T) {
	_, err := New(MinSize - 1)
	assert.ErrorIs(t, err, ErrChunkSizeOutOfRange)

	_, err = New(MaxSize + 1)
	assert.ErrorIs(t, err, ErrChunkSizeOutOfRange)
}

func TestChunkerPropagatesEmitError(t *testing.T) {
	c, err := New(MinSize)
	require.NoError(t, err)

	boom := assert.AnError
	err = c.Split(bytes.NewReader(bytes.Repeat([]byte{1}, MinSize)), func(ch Chunk) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
}
