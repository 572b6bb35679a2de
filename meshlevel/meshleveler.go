package meshlevel

import (
	"math"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
)

// MeshLeveler splits long moves from a Reader and shifts each segment's Z
// by the surface height change under it.
type MeshLeveler struct {
	granularity float64
	offsetter   ZOffsetter

	pending []gcode.Block

	splitVM *gcode.VM
	levelVM *gcode.VM

	gr gcode.Reader
}

// Config for a MeshLeveler. MPos and WCO seed the tracked position. Offsets
// are taken in work coordinates, so a height map should read zero at the
// program's reference point.
type Config struct {
	ZOffsetter  ZOffsetter
	Granularity float64

	MPos, WCO coord.Point

	Reader gcode.Reader
}

// dummyOffsetter covers nothing, so blocks pass through unshifted.
type dummyOffsetter struct{}

func (dummyOffsetter) OffsetZ(x, y float64) (bool, float64) { return false, 0 }

func New(cfg Config) *MeshLeveler {
	l := &MeshLeveler{
		splitVM:     gcode.NewVM(),
		levelVM:     gcode.NewVM(),
		granularity: cfg.Granularity,
		gr:          cfg.Reader,
		offsetter:   cfg.ZOffsetter,
	}
	if l.offsetter == nil {
		l.offsetter = dummyOffsetter{}
	}
	for _, vm := range []*gcode.VM{l.splitVM, l.levelVM} {
		vm.SetMPos(cfg.MPos)
		vm.SetWCO(cfg.WCO)
	}

	return l
}

// Read returns the next leveled block.
func (l *MeshLeveler) Read() (gcode.Block, error) {
	b, err := l.next()
	if err != nil {
		return nil, err
	}

	from := l.levelVM.WPos()
	err = l.levelVM.Run(b)
	if err != nil {
		return nil, err
	}
	return l.shift(b, from, l.levelVM.WPos()), nil
}

// shift adjusts Z on b for the surface under to. Absolute moves get the
// offset at to added to their target height; relative moves get the change
// in offset since from. Blocks whose endpoints are off the surface are left
// alone.
func (l *MeshLeveler) shift(b gcode.Block, from, to coord.Point) gcode.Block {
	if from.Equal(to) {
		return b
	}
	ok, toZ := l.offsetter.OffsetZ(to.X, to.Y)
	if !ok {
		return b
	}

	hasZ, z := b.Arg('Z')
	if l.levelVM.RelativeMotion() {
		ok, fromZ := l.offsetter.OffsetZ(from.X, from.Y)
		if !ok || fromZ == toZ {
			return b
		}
		z += toZ - fromZ
	} else {
		z = to.Z + toZ
	}

	b = b.Clone()
	if hasZ {
		b.SetArg('Z', z)
	} else {
		b = append(b, gcode.Word{W: 'Z', Arg: z})
	}
	return b
}

func (l *MeshLeveler) next() (gcode.Block, error) {
	if len(l.pending) > 0 {
		b := l.pending[0]
		l.pending = l.pending[1:]
		return b, nil
	}
	b, err := l.gr.Read()
	if err != nil {
		return nil, err
	}

	from := l.splitVM.WPos()
	err = l.splitVM.Run(b)
	if err != nil {
		return nil, err
	}
	segs := l.split(b, from, l.splitVM.WPos())
	l.pending = segs[1:]
	return segs[0], nil
}

// split breaks a move into equal segments no longer than the granularity.
func (l *MeshLeveler) split(b gcode.Block, from, to coord.Point) []gcode.Block {
	if from.Equal(to) {
		return []gcode.Block{b}
	}
	dist := from.DistanceXY(to.X, to.Y)
	if dist <= l.granularity {
		return []gcode.Block{b}
	}

	n := int(math.Ceil(dist / l.granularity))
	step := to.Sub(from).Div(float64(n))

	segs := make([]gcode.Block, 0, n)
	if l.splitVM.RelativeMotion() {
		seg := b.Clone()
		seg.SetArg('X', step.X)
		seg.SetArg('Y', step.Y)
		seg.SetArg('Z', step.Z)
		for i := 0; i < n; i++ {
			segs = append(segs, seg)
		}
		return segs
	}
	for i := 1; i <= n; i++ {
		seg := b.Clone()
		seg.SetArg('X', from.X+step.X*float64(i))
		seg.SetArg('Y', from.Y+step.Y*float64(i))
		seg.SetArg('Z', from.Z+step.Z*float64(i))
		segs = append(segs, seg)
	}
	return segs
}
