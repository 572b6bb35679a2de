package gcode

import "github.com/mastercactapus/surfscan/coord"

// VM will track state and interpret gcode.
type VM struct {
	pos coord.Point
	wco coord.Point

	modal [256]float64

	feed float64
}

// NewVM constructs a new VM with default state.
func NewVM() *VM {
	vm := &VM{}

	// using grbl defaults
	vm.modal[ModalGroupMotion] = 0
	vm.modal[ModalGroupCoordinateSystem] = 54
	vm.modal[ModalGroupPlaneSelection] = 17
	vm.modal[ModalGroupDistanceMode] = 90
	vm.modal[ModalGroupArcDistanceMode] = 91.1
	vm.modal[ModalGroupFeedRateMode] = 94
	vm.modal[ModalGroupUnits] = 21
	vm.modal[ModalGroupCutterCompensationMode] = 40
	vm.modal[ModalGroupToolLength] = 49
	vm.modal[ModalGroupStopping] = 0
	vm.modal[ModalGroupSpindle] = 5
	vm.modal[ModalGroupCoolant] = 9

	return vm
}

func (vm VM) Inches() bool         { return vm.modal[ModalGroupUnits] == 20 }
func (vm VM) RelativeMotion() bool { return vm.modal[ModalGroupDistanceMode] == 91 }

// Feed is the last programmed feed rate.
func (vm VM) Feed() float64 { return vm.feed }

func (vm VM) WPos() coord.Point {
	return vm.pos.Sub(vm.wco)
}
func (vm VM) MPos() coord.Point {
	return vm.pos
}
func (vm *VM) SetMPos(p coord.Point) {
	vm.pos = p
}
func (vm *VM) SetWCO(p coord.Point) {
	vm.wco = p
}
func (vm VM) WCO() coord.Point {
	return vm.wco
}

// UnsupportedError is returned by Run for a word the VM cannot track.
type UnsupportedError struct{ Word Word }

func (e *UnsupportedError) Error() string { return "unsupported code: " + e.Word.String() }

// supported codes by letter. Axis words and F are always accepted.
var supported = map[byte][]float64{
	'G': {0, 1, 20, 21, 53, 90, 91, 92, 94},
	'M': {3, 5},
}

func isSupported(g Word) bool {
	if g.IsAxis() || g.W == 'F' {
		return true
	}
	for _, c := range supported[g.W] {
		if g.Arg == c {
			return true
		}
	}
	return false
}

// applyBlock overwrites the axes of p that b names, scaled by mul.
func applyBlock(p coord.Point, b Block, mul float64) coord.Point {
	for _, g := range b {
		switch g.W {
		case 'X':
			p.X = g.Arg * mul
		case 'Y':
			p.Y = g.Arg * mul
		case 'Z':
			p.Z = g.Arg * mul
		}
	}

	return p
}

// Run applies b to the tracked state. A block is validated and checked for
// unsupported words before anything is changed.
func (vm *VM) Run(b Block) error {
	err := b.Validate()
	if err != nil {
		return err
	}
	var machineCoords, setPos bool
	for _, g := range b {
		if !isSupported(g) {
			return &UnsupportedError{Word: g}
		}
		switch g {
		case Word{W: 'G', Arg: 53}:
			machineCoords = true
		case Word{W: 'G', Arg: 92}:
			setPos = true
		}
	}
	for _, g := range b {
		mg := g.ModalGroup()
		if mg != ModalGroupNone && mg != ModalGroupNonModal {
			vm.modal[mg] = g.Arg
		}
		if g.W == 'F' {
			vm.feed = g.Arg
		}
	}

	args := b.Args()
	if len(args) == 0 {
		return nil
	}

	mul := 1.0
	if vm.Inches() {
		mul = 25.4
	}
	switch {
	case setPos:
		// G92 moves the work origin so the named axes read as given
		vm.wco = vm.pos.Sub(applyBlock(vm.WPos(), args, mul))
	case machineCoords:
		vm.pos = applyBlock(vm.pos, args, mul)
	case vm.RelativeMotion():
		vm.pos = vm.pos.Add(applyBlock(coord.Point{}, args, mul))
	default:
		vm.pos = applyBlock(vm.WPos(), args, mul).Add(vm.wco)
	}

	return nil
}
