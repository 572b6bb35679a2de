package gcode

import (
	"errors"
	"fmt"
	"strings"
)

type Block []Word

func (b Block) Arg(w byte) (bool, float64) {
	for _, g := range b {
		if g.W == w {
			return true, g.Arg
		}
	}
	return false, 0
}
func (b Block) SetArg(w byte, val float64) {
	for i, g := range b {
		if g.W == w {
			b[i].Arg = val
			return
		}
	}
}

func (b Block) Args() Block {
	res := make(Block, 0, len(b))
	for _, g := range b {
		if g.ModalGroup() == ModalGroupNone {
			res = append(res, g)
		}
	}
	return res
}
func (b Block) Clone() Block {
	c := make(Block, len(b))
	copy(c, b)
	return c
}

func (b Block) HasModal() bool {
	for _, g := range b {
		if g.ModalGroup() != ModalGroupNone {
			return true
		}
	}
	return false
}

func (b Block) Validate() error {
	var checkWord [256]bool
	var checkModal [256]bool

	var m ModalGroup
	for _, g := range b {
		if !g.IsValid() {
			return errors.New("invalid word in block")
		}
		if g.W != 'G' && checkWord[g.W] {
			return fmt.Errorf("word %c was repeated in a block", g.W)
		}
		checkWord[g.W] = true
		m = g.ModalGroup()
		if m != ModalGroupNone && checkModal[m] {
			return fmt.Errorf("multiple words from the %s modal group", m)
		}
		checkModal[m] = true
	}

	return nil
}

// String returns the block in compact form (e.g. `G1X10Z-0.5`).
func (b Block) String() string {
	var sb strings.Builder
	for _, w := range b {
		sb.WriteString(w.String())
	}
	return sb.String()
}

// Line returns the block with words separated by a space, the form
// sent to a controller (e.g. `G1 X10 Z-0.5 F300`).
func (b Block) Line() string {
	parts := make([]string, len(b))
	for i, w := range b {
		parts[i] = w.String()
	}
	return strings.Join(parts, " ")
}
