package gcode

import (
	"errors"
	"io"
	"strings"
)

// Reader is a source of blocks. Read returns io.EOF at the end.
type Reader interface {
	Read() (Block, error)
}

// BlocksReader reads from a fixed list.
type BlocksReader struct {
	Blocks []Block
	n      int
}

func (b *BlocksReader) Read() (Block, error) {
	if b.n == len(b.Blocks) {
		return nil, io.EOF
	}

	b.n++
	return b.Blocks[b.n-1], nil
}

// ReadAll drains r.
func ReadAll(r Reader) ([]Block, error) {
	var b []Block
	for {
		bl, err := r.Read()
		if errors.Is(err, io.EOF) {
			return b, nil
		}
		if err != nil {
			return nil, err
		}
		b = append(b, bl)
	}
}

// Parse parses a G-code program held in a string.
func Parse(data string) ([]Block, error) {
	return ReadAll(NewParser(strings.NewReader(data)))
}

func MustParse(data string) []Block {
	b, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return b
}
