package machine

import (
	"errors"
	"testing"
	"time"

	"github.com/mastercactapus/surfscan/coord"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePosition(t *testing.T) {
	p, err := parsePosition("X:10.00 Y:-20.50 Z:5.00 E:0.00 Count X:800 Y:1600 Z:2000")
	assert.NoError(t, err)
	assert.Equal(t, coord.Point{X: 10, Y: -20.5, Z: 5}, p)

	p, err = parsePosition("  X:1 Y:2 Z:3\r")
	assert.NoError(t, err)
	assert.Equal(t, coord.Point{X: 1, Y: 2, Z: 3}, p)

	for _, line := range []string{"ok", "echo:busy: processing", "", "Count X:1 Y:2 Z:3"} {
		_, err = parsePosition(line)
		assert.ErrorIs(t, err, ErrNotPosition, line)
	}

	for _, line := range []string{
		"X:1 Y:abc Z:2",
		"X:1 Z:2 Y:3",
		"X:1 Y:2",
		"X:1 Y:2 Z:3 E",
		"X:1 Y:2 Z:3 X:4",
		"X:1 Y:2 Z:3 e:4",
		"X:NaN Y:0 Z:10",
		"X:0 Y:0 Z:Inf",
		"X:0 Y:-inf Z:0",
		"X:0 Y:0 Z:1 E:nan",
	} {
		_, err = parsePosition(line)
		var pe *ParseError
		assert.True(t, errors.As(err, &pe), line)
	}
}

func TestController_Refresh(t *testing.T) {
	f := &fakeMachine{pos: coord.Point{X: 1, Y: 2, Z: 3}, chatter: 4}
	c := newTestController(f)

	p, err := c.Refresh()
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: 1, Y: 2, Z: 3}, p)
	assert.Equal(t, p, c.Current())
	assert.Empty(t, f.queue, "trailing ok consumed")
}

func TestController_Refresh_Timeout(t *testing.T) {
	f := &fakeMachine{pos: coord.Point{X: 1, Y: 2, Z: 3}}
	c := newTestController(f)
	_, err := c.Refresh()
	require.NoError(t, err)

	f.pos = coord.Point{X: 9, Y: 9, Z: 9}
	f.chatter = 6
	p, err := c.Refresh()
	var pt *ProtocolTimeout
	require.True(t, errors.As(err, &pt))
	assert.Equal(t, 5, pt.Reads)
	assert.Equal(t, coord.Point{X: 1, Y: 2, Z: 3}, p)
	assert.Equal(t, coord.Point{X: 1, Y: 2, Z: 3}, c.Current())

	// the late report and its ok are still queued
	require.NotEmpty(t, f.queue)

	// no motion until acknowledged
	sent := len(f.sent)
	_, err = c.MoveTo(coord.Point{}, 100)
	var he *HaltedError
	assert.True(t, errors.As(err, &he))
	assert.True(t, errors.As(err, &pt))
	assert.Len(t, f.sent, sent)

	f.chatter = 0
	p, err = c.Resume()
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: 9, Y: 9, Z: 9}, p)
	assert.NoError(t, c.Fault())
	assert.Empty(t, f.queue)
}

func TestController_Resume_DiscardsLateReplies(t *testing.T) {
	f := &fakeMachine{pos: coord.Point{X: 1, Y: 2, Z: 3}, chatter: 6}
	c := newTestController(f)

	_, err := c.Refresh()
	var pt *ProtocolTimeout
	require.True(t, errors.As(err, &pt))

	f.chatter = 0
	f.pos = coord.Point{X: 4, Y: 5, Z: 6}
	p, err := c.Resume()
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: 4, Y: 5, Z: 6}, p, "fresh report, not the late one")
	assert.Empty(t, f.queue)

	// the barrier must wait for its own ok
	require.NoError(t, c.Barrier())
	assert.Empty(t, f.queue)
	assert.Equal(t, "M400", f.sent[len(f.sent)-1])
}

func TestController_Refresh_WhileHalted(t *testing.T) {
	f := &fakeMachine{pos: coord.Point{X: 1, Y: 2, Z: 3}, chatter: 6}
	c := newTestController(f)
	_, err := c.Refresh()
	require.Error(t, err)

	f.chatter = 0
	f.pos = coord.Point{X: 7, Y: 8, Z: 9}
	p, err := c.Refresh()
	require.NoError(t, err)
	assert.Equal(t, coord.Point{X: 7, Y: 8, Z: 9}, p)
	assert.Error(t, c.Fault(), "still latched until resumed")
}

type drainCounter struct {
	*fakeMachine
	quiet time.Duration
}

func (d *drainCounter) Drain(quiet time.Duration) int {
	d.quiet = quiet
	n := len(d.queue)
	d.queue = nil
	return n
}

func TestController_Resume_UsesDrainer(t *testing.T) {
	f := &fakeMachine{pos: coord.Point{X: 1}, chatter: 6}
	d := &drainCounter{fakeMachine: f}
	c, err := NewController(d, f, Options{Limits: DefaultLimits(), Sleep: func(time.Duration) {}})
	require.NoError(t, err)

	_, err = c.Refresh()
	require.Error(t, err)
	f.chatter = 0
	_, err = c.Resume()
	require.NoError(t, err)
	assert.Equal(t, drainQuiet, d.quiet)
	assert.Empty(t, f.queue)
}

func TestController_Refresh_NoReply(t *testing.T) {
	f := &fakeMachine{}
	c := newTestController(f)
	f.sendErr = errors.New("port closed")

	_, err := c.Refresh()
	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "port closed", errors.Unwrap(te).Error())
	assert.Error(t, c.Fault())
}

func TestController_Refresh_Malformed(t *testing.T) {
	f := &fakeMachine{positionLine: "X:1 Y:oops Z:2", chatter: 1}
	c := newTestController(f)

	_, err := c.Refresh()
	var pe *ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "X:1 Y:oops Z:2", pe.Line)
	assert.Error(t, c.Fault())
}
