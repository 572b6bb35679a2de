package gcode

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingReader struct {
	blocks []Block
	err    error
}

func (r *failingReader) Read() (Block, error) {
	if len(r.blocks) == 0 {
		return nil, r.err
	}
	b := r.blocks[0]
	r.blocks = r.blocks[1:]
	return b, nil
}

func TestBuffer_Read(t *testing.T) {
	b := NewBuffer(&BlocksReader{Blocks: MustParse("G21 G90\nM400\n")})

	buf := make([]byte, 64)
	n, err := b.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "G21G90\nM400\n", string(buf[:n]))

	n, err = b.Read(buf)
	assert.Equal(t, io.EOF, err)
	assert.Zero(t, n)
}

func TestBuffer_SmallReads(t *testing.T) {
	b := NewBuffer(&BlocksReader{Blocks: MustParse("G1 X1.5 F300\nG1 X-2\nM114\n")})

	// rendered text is handed out in chunks and drained fully before EOF
	var out []byte
	buf := make([]byte, 3)
	for {
		n, err := b.Read(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			assert.Zero(t, n)
			break
		}
		require.NoError(t, err)
		assert.NotZero(t, n)
	}
	assert.Equal(t, "G1X1.5F300\nG1X-2\nM114\n", string(out))
}

func TestBuffer_SourceError(t *testing.T) {
	srcErr := errors.New("bad line 2")
	b := NewBuffer(&failingReader{blocks: MustParse("G0 Z5"), err: srcErr})

	// buffered text comes out before the error
	data, err := io.ReadAll(b)
	assert.ErrorIs(t, err, srcErr)
	assert.Equal(t, "G0Z5\n", string(data))
	assert.Empty(t, b.Buffered())

	_, err = b.Read(make([]byte, 8))
	assert.ErrorIs(t, err, srcErr, "error is sticky")
}
