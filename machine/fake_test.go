package machine

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/mastercactapus/surfscan/gcode"
)

// fakeMachine answers like a Marlin board and doubles as the sensor.
type fakeMachine struct {
	pos   coord.Point
	sent  []string
	queue []string

	// chatter lines emitted before each position report
	chatter int
	// positionLine replaces the generated position report
	positionLine string

	sendErr  error
	replyErr string

	// contact decides the sensor state; nil means never touching.
	contact func(f *fakeMachine) bool
	polls   int
	zs      []float64
}

func fmtFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func (f *fakeMachine) SendLine(line string) error {
	f.sent = append(f.sent, line)
	if f.sendErr != nil {
		return f.sendErr
	}
	blocks, err := gcode.Parse(line)
	if err != nil || len(blocks) != 1 {
		f.queue = append(f.queue, "Error:Unknown command: \""+line+"\"", "ok")
		return nil
	}
	b := blocks[0]
	if ok, v := b.Arg('M'); ok && v == 114 {
		for i := 0; i < f.chatter; i++ {
			f.queue = append(f.queue, "echo:chatter "+strconv.Itoa(i))
		}
		line := fmt.Sprintf("X:%s Y:%s Z:%s E:0.00 Count X:0 Y:0 Z:0",
			fmtFloat(f.pos.X), fmtFloat(f.pos.Y), fmtFloat(f.pos.Z))
		if f.positionLine != "" {
			line = f.positionLine
		}
		f.queue = append(f.queue, line, "ok")
		return nil
	}
	if f.replyErr != "" {
		f.queue = append(f.queue, f.replyErr, "ok")
		return nil
	}
	if ok, v := b.Arg('G'); ok && v == 1 {
		if ok, x := b.Arg('X'); ok {
			f.pos.X = x
		}
		if ok, y := b.Arg('Y'); ok {
			f.pos.Y = y
		}
		if ok, z := b.Arg('Z'); ok {
			f.pos.Z = z
			f.zs = append(f.zs, z)
		}
	}
	f.queue = append(f.queue, "ok")
	return nil
}

func (f *fakeMachine) ReadLine(time.Duration) (string, error) {
	if len(f.queue) == 0 {
		return "", ErrReadTimeout
	}
	line := f.queue[0]
	f.queue = f.queue[1:]
	return line, nil
}

func (f *fakeMachine) Contacted() (bool, error) {
	f.polls++
	if f.contact == nil {
		return false, nil
	}
	return f.contact(f), nil
}

// sentWith returns the sent lines starting with prefix.
func (f *fakeMachine) sentWith(prefix string) []string {
	var res []string
	for _, s := range f.sent {
		if strings.HasPrefix(s, prefix) {
			res = append(res, s)
		}
	}
	return res
}

func newTestController(f *fakeMachine) *Controller {
	c, err := NewController(f, f, Options{
		Limits: DefaultLimits(),
		Sleep:  func(time.Duration) {},
	})
	if err != nil {
		panic(err)
	}
	return c
}
