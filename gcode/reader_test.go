package gcode

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBlocksReader(t *testing.T) {
	blocks := []Block{
		{{W: 'G', Arg: 1}, {W: 'G', Arg: 2}},

		{{W: 'M', Arg: 2}},
	}

	gr := &BlocksReader{Blocks: blocks}

	b, err := gr.Read()
	assert.NoError(t, err)
	assert.Equal(t, Block{{W: 'G', Arg: 1}, {W: 'G', Arg: 2}}, b)

	b, err = gr.Read()
	assert.NoError(t, err)
	assert.Equal(t, Block{{W: 'M', Arg: 2}}, b)

	b, err = gr.Read()
	assert.Error(t, err)
	assert.Equal(t, io.EOF, err)
	assert.Nil(t, b)
}

func TestReadAll(t *testing.T) {
	blocks, err := ReadAll(&BlocksReader{Blocks: MustParse("G1 X1\nG1 X2\n")})
	assert.NoError(t, err)
	assert.Len(t, blocks, 2)

	blocks, err = ReadAll(&BlocksReader{})
	assert.NoError(t, err)
	assert.Empty(t, blocks)
}
