package gcode

import "github.com/mastercactapus/surfscan/coord"

// Linear is an absolute G1 move to p at feed mm/min.
func Linear(p coord.Point, feed int) Block {
	return Block{
		{W: 'G', Arg: 1},
		{W: 'X', Arg: p.X},
		{W: 'Y', Arg: p.Y},
		{W: 'Z', Arg: p.Z},
		{W: 'F', Arg: float64(feed)},
	}
}

// LinearZ is an absolute G1 move of the Z axis only.
func LinearZ(z float64, feed int) Block {
	return Block{
		{W: 'G', Arg: 1},
		{W: 'Z', Arg: z},
		{W: 'F', Arg: float64(feed)},
	}
}

// MetricAbsolute selects millimetres and absolute distance mode.
func MetricAbsolute() Block {
	return Block{{W: 'G', Arg: 21}, {W: 'G', Arg: 90}}
}

// PositionQuery asks the controller to report its current position.
func PositionQuery() Block { return Block{{W: 'M', Arg: 114}} }

// FinishMoves blocks until all queued motion has completed.
func FinishMoves() Block { return Block{{W: 'M', Arg: 400}} }

// EndstopQuery asks the controller for the state of its endstops.
func EndstopQuery() Block { return Block{{W: 'M', Arg: 119}} }
