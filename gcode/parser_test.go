package gcode

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParser(t *testing.T) {
	blocks, err := Parse(strings.Join([]string{
		"%",
		"(surface job)",
		"N10 G21 G90 ; metric",
		"",
		"g1 x1.5 y-.5 (halfway) f300",
		"N20",
		"G0 Z+2.",
		"%",
	}, "\n"))
	require.NoError(t, err)
	assert.Equal(t, []Block{
		{{W: 'G', Arg: 21}, {W: 'G', Arg: 90}},
		{{W: 'G', Arg: 1}, {W: 'X', Arg: 1.5}, {W: 'Y', Arg: -0.5}, {W: 'F', Arg: 300}},
		{{W: 'G', Arg: 0}, {W: 'Z', Arg: 2}},
	}, blocks)
}

func TestParser_SyntaxError(t *testing.T) {
	_, err := Parse("G1 X1\nG1 X#1\n")
	var se *SyntaxError
	require.True(t, errors.As(err, &se), "%v", err)
	assert.Equal(t, 2, se.Line)

	_, err = Parse("G1 X-\n")
	assert.Error(t, err)
}

func TestParser_Line(t *testing.T) {
	p := NewParser(strings.NewReader("; header\n\nM114\n"))
	b, err := p.Read()
	require.NoError(t, err)
	assert.Equal(t, "M114", b.String())
	assert.Equal(t, 3, p.Line())
}

func TestWord_String(t *testing.T) {
	assert.Equal(t, "Z0", Word{W: 'Z', Arg: -0.0001}.String())
	assert.Equal(t, "Z-0.001", Word{W: 'Z', Arg: -0.0009}.String())
	assert.Equal(t, "X10", Word{W: 'X', Arg: 10}.String())
	assert.Equal(t, "F1800", Word{W: 'F', Arg: 1800}.String())
	assert.Equal(t, "Y0.125", Word{W: 'Y', Arg: 0.125}.String())
}

func TestModalGroup_String(t *testing.T) {
	assert.Equal(t, "distance mode", Word{W: 'G', Arg: 91}.ModalGroup().String())
	assert.Equal(t, "none", Word{W: 'M', Arg: 114}.ModalGroup().String())
	assert.EqualError(t,
		Block{{W: 'G', Arg: 0}, {W: 'G', Arg: 1}}.Validate(),
		"multiple words from the motion modal group")
}
