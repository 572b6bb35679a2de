package marlin

import (
	"time"

	"github.com/tarm/serial"
	bugst "go.bug.st/serial"
)

// OpenSerial opens a serial port at 8N1 and wraps it in a Conn. Input
// already buffered by the OS is discarded first.
func OpenSerial(name string, baud int) (*Conn, error) {
	p, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        baud,
		Size:        8,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: 0,
	})
	if err != nil {
		return nil, err
	}
	if err = p.Flush(); err != nil {
		p.Close()
		return nil, err
	}
	c := NewConn(p)
	// Marlin resets on open and prints a banner.
	c.Drain(500 * time.Millisecond)
	return c, nil
}

// ListPorts returns the serial ports present on this system.
func ListPorts() ([]string, error) {
	return bugst.GetPortsList()
}
