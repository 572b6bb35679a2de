package spjs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mastercactapus/surfscan/machine"
)

// Messenger is the part of SPJS a Transport needs.
type Messenger interface {
	Messages() <-chan interface{}
	WriteString(string) error
}

// Transport carries controller lines for one port through the server.
type Transport struct {
	m    Messenger
	port string

	lines   []string
	partial string
}

var _ machine.Transport = &Transport{}

// Open asks the server to open port and returns a Transport bound to it.
func Open(m Messenger, port string, baud int) (*Transport, error) {
	err := m.WriteString("open " + port + " " + strconv.Itoa(baud) + " default")
	if err != nil {
		return nil, err
	}
	return &Transport{m: m, port: port}, nil
}

func (t *Transport) SendLine(line string) error {
	return t.m.WriteString("send " + t.port + " " + line)
}

func (t *Transport) push(data string) {
	data = t.partial + data
	parts := strings.Split(data, "\n")
	t.partial = parts[len(parts)-1]
	for _, p := range parts[:len(parts)-1] {
		p = strings.TrimRight(p, "\r")
		if p == "" {
			continue
		}
		t.lines = append(t.lines, p)
	}
}

func (t *Transport) ReadLine(timeout time.Duration) (string, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for len(t.lines) == 0 {
		select {
		case <-timer.C:
			return "", fmt.Errorf("%w after %s", machine.ErrReadTimeout, timeout)
		case msg, ok := <-t.m.Messages():
			if !ok {
				return "", ErrClosed
			}
			switch msg := msg.(type) {
			case *DataFrame:
				if msg.Port == t.port {
					t.push(msg.Data)
				}
			case *ErrorMessage:
				return "", errors.New("spjs: " + msg.Error)
			}
		}
	}

	line := t.lines[0]
	t.lines = t.lines[1:]
	return line, nil
}

// ListPorts asks the server for its serial ports. Unrelated messages
// received while waiting are dropped.
func ListPorts(ctx context.Context, m Messenger) ([]SerialPort, error) {
	if err := m.WriteString("list"); err != nil {
		return nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg, ok := <-m.Messages():
			if !ok {
				return nil, ErrClosed
			}
			if list, ok := msg.(*SerialPortList); ok {
				return list.SerialPorts, nil
			}
		}
	}
}
