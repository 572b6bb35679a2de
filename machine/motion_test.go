package machine

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Init(t *testing.T) {
	f := &fakeMachine{pos: coord.Point{X: 3, Y: 4, Z: 50}}
	c := newTestController(f)

	require.NoError(t, c.Init())
	assert.Equal(t, []string{"G21 G90", "M114"}, f.sent)
	assert.Equal(t, coord.Point{X: 3, Y: 4, Z: 50}, c.Current())
}

func TestController_MoveTo(t *testing.T) {
	f := &fakeMachine{}
	c := newTestController(f)

	p, err := c.MoveTo(coord.Point{X: 10, Y: 20, Z: 5}, 1800)
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: 10, Y: 20, Z: 5}, p)
	assert.Equal(t, p, c.Current())
	assert.Equal(t, []string{"G1 X10 Y20 Z5 F1800", "M114"}, f.sent)
}

func TestController_MoveTo_BadFeed(t *testing.T) {
	f := &fakeMachine{}
	c := newTestController(f)

	_, err := c.MoveTo(coord.Point{X: 10}, 0)
	var pe *PreconditionError
	assert.True(t, errors.As(err, &pe))
	assert.Empty(t, f.sent)
	assert.NoError(t, c.Fault())
}

func TestController_MoveTo_NotFinite(t *testing.T) {
	f := &fakeMachine{}
	c := newTestController(f)

	for _, target := range []coord.Point{{X: math.NaN()}, {Y: math.Inf(1)}, {Z: math.Inf(-1)}} {
		_, err := c.MoveTo(target, 100)
		var pe *PreconditionError
		assert.True(t, errors.As(err, &pe), "%v", target)
	}
	assert.Empty(t, f.sent)
	assert.NoError(t, c.Fault())
}

func TestController_MoveTo_Rejected(t *testing.T) {
	f := &fakeMachine{replyErr: "Error:Printer halted. kill() called!"}
	c := newTestController(f)

	_, err := c.MoveTo(coord.Point{X: 10}, 100)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, err.Error(), "Printer halted")
	assert.Empty(t, f.queue, "resynced on trailing ok")

	// no retry, and nothing further until resumed
	_, err = c.Jog(coord.Point{X: 1}, 100)
	var he *HaltedError
	assert.True(t, errors.As(err, &he))
	assert.Len(t, f.sentWith("G1"), 1)
}

func TestController_Jog(t *testing.T) {
	f := &fakeMachine{pos: coord.Point{X: 1, Y: 1, Z: 10}}
	c := newTestController(f)
	_, err := c.Refresh()
	require.NoError(t, err)

	p, err := c.Jog(coord.Point{X: 2, Z: -0.5}, 600)
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: 3, Y: 1, Z: 9.5}, p)
	assert.Equal(t, "G1 X3 Y1 Z9.5 F600", f.sent[1])
}

func TestController_Barrier(t *testing.T) {
	f := &fakeMachine{}
	c := newTestController(f)
	require.NoError(t, c.Barrier())
	assert.Equal(t, []string{"M400"}, f.sent)

	// busy keep-alives while the queue drains
	c.t = &scriptTransport{lines: []string{"echo:busy: processing", "echo:busy: processing", "ok"}}
	assert.NoError(t, c.Barrier())
}

func TestController_Barrier_Timeout(t *testing.T) {
	st := &scriptTransport{}
	for i := 0; i < ackChatter; i++ {
		st.lines = append(st.lines, "echo:something")
	}
	st.lines = append(st.lines, "ok")
	c, err := NewController(st, &fakeMachine{}, Options{Limits: DefaultLimits()})
	require.NoError(t, err)

	err = c.Barrier()
	var pt *ProtocolTimeout
	require.True(t, errors.As(err, &pt))
	assert.Equal(t, "M400", pt.Cmd)
}

// scriptTransport replays fixed lines regardless of what is sent.
type scriptTransport struct {
	sent  []string
	lines []string
}

func (s *scriptTransport) SendLine(line string) error {
	s.sent = append(s.sent, line)
	return nil
}

func (s *scriptTransport) ReadLine(time.Duration) (string, error) {
	if len(s.lines) == 0 {
		return "", ErrReadTimeout
	}
	l := s.lines[0]
	s.lines = s.lines[1:]
	return l, nil
}
