package gcode

import (
	"testing"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/stretchr/testify/assert"
)

func TestVM_Run(t *testing.T) {
	vm := NewVM()
	vm.SetMPos(coord.Point{X: 1, Y: 1, Z: 10})

	for _, b := range MustParse("G21 G90\nG1 X5 F1800\nG1 Z9.9 F300\n") {
		assert.NoError(t, vm.Run(b))
	}
	assert.Equal(t, coord.Point{X: 5, Y: 1, Z: 9.9}, vm.MPos())
	assert.Equal(t, 300.0, vm.Feed())

	assert.NoError(t, vm.Run(Block{{W: 'G', Arg: 91}, {W: 'G', Arg: 0}, {W: 'X', Arg: -2}}))
	assert.True(t, vm.RelativeMotion())
	assert.InDelta(t, 3, vm.MPos().X, 1e-9)

	var uerr *UnsupportedError
	assert.ErrorAs(t, vm.Run(PositionQuery()), &uerr)
	assert.Equal(t, "M114", uerr.Word.String())
}

func TestVM_Inches(t *testing.T) {
	vm := NewVM()
	assert.NoError(t, vm.Run(MustParse("G20 G0 X1 Y-0.5")[0]))
	assert.True(t, vm.Inches())
	assert.InDelta(t, 25.4, vm.MPos().X, 1e-9)
	assert.InDelta(t, -12.7, vm.MPos().Y, 1e-9)
}

func TestVM_Offsets(t *testing.T) {
	vm := NewVM()
	vm.SetMPos(coord.Point{X: 10, Y: 20, Z: 5})

	// G92 zeroes work X and Y here without moving
	assert.NoError(t, vm.Run(MustParse("G92 X0 Y0")[0]))
	assert.Equal(t, coord.Point{X: 10, Y: 20, Z: 5}, vm.MPos())
	assert.Equal(t, coord.Point{X: 0, Y: 0, Z: 5}, vm.WPos())

	assert.NoError(t, vm.Run(MustParse("G1 X2 F100")[0]))
	assert.Equal(t, coord.Point{X: 12, Y: 20, Z: 5}, vm.MPos())

	assert.NoError(t, vm.Run(MustParse("G53 G0 X1")[0]))
	assert.Equal(t, coord.Point{X: 1, Y: 20, Z: 5}, vm.MPos())
}

func TestVM_RejectsWholeBlock(t *testing.T) {
	vm := NewVM()
	assert.Error(t, vm.Run(MustParse("G91 G38.2 Z-5")[0]))
	assert.False(t, vm.RelativeMotion())
	assert.Equal(t, coord.Point{}, vm.MPos())
}
