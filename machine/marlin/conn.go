// Package marlin connects to Marlin style firmware over a serial line.
package marlin

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mastercactapus/surfscan/machine"
)

// Conn is a line oriented connection to a controller. A background
// goroutine scans incoming lines so reads can be bounded by a timeout.
type Conn struct {
	rw io.ReadWriter

	lines   chan string
	readErr error

	closeCh   chan struct{}
	closeOnce sync.Once

	mx sync.Mutex
}

var _ machine.Transport = &Conn{}

// NewConn creates a new Conn using the provided ReadWriter for data.
func NewConn(rw io.ReadWriter) *Conn {
	c := &Conn{
		rw:      rw,
		lines:   make(chan string, 64),
		closeCh: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *Conn) readLoop() {
	defer close(c.lines)
	scan := bufio.NewScanner(c.rw)
	for scan.Scan() {
		line := strings.TrimRight(scan.Text(), "\r")
		select {
		case c.lines <- line:
		case <-c.closeCh:
			c.readErr = io.ErrClosedPipe
			return
		}
	}
	c.readErr = scan.Err()
	if c.readErr == nil {
		c.readErr = io.EOF
	}
}

// SendLine writes line followed by a newline.
func (c *Conn) SendLine(line string) error {
	select {
	case <-c.closeCh:
		return io.ErrClosedPipe
	default:
	}
	c.mx.Lock()
	defer c.mx.Unlock()
	_, err := io.WriteString(c.rw, line+"\n")
	return err
}

// ReadLine waits up to timeout for the next line.
func (c *Conn) ReadLine(timeout time.Duration) (string, error) {
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", c.readErr
		}
		return line, nil
	case <-c.closeCh:
		return "", io.ErrClosedPipe
	case <-t.C:
		return "", fmt.Errorf("no line within %s: %w", timeout, machine.ErrReadTimeout)
	}
}

// Drain discards any lines already received, e.g. the firmware banner
// after opening the port.
func (c *Conn) Drain(quiet time.Duration) int {
	var n int
	for {
		_, err := c.ReadLine(quiet)
		if err != nil {
			return n
		}
		n++
	}
}

// Close will abort pending reads and close the underlying ReadWriter, if
// it implements io.Closer.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closeCh)
		if closer, ok := c.rw.(io.Closer); ok {
			err = closer.Close()
		}
	})
	return err
}
