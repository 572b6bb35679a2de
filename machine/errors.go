package machine

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrReadTimeout is returned (possibly wrapped) by a Transport when no
// line arrived within the requested wait.
var ErrReadTimeout = errors.New("read timeout")

// ErrNotPosition marks a response line that is not a position report.
var ErrNotPosition = errors.New("not a position report")

// TransportError means the link to the controller is unusable for the
// current operation. Motion is never retried after one.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return "transport: " + e.Op + ": " + e.Err.Error() }
func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolTimeout means an expected response was not seen within the read
// budget. The tracked position must be considered stale.
type ProtocolTimeout struct {
	Cmd   string
	Reads int
}

func (e *ProtocolTimeout) Error() string {
	return "protocol timeout: no response to " + e.Cmd + " after " + strconv.Itoa(e.Reads) + " reads"
}

// PreconditionError rejects an operation before any motion is issued.
type PreconditionError struct {
	Reason string
}

func (e *PreconditionError) Error() string { return "precondition: " + e.Reason }

// TravelLimitExceeded reports a contact search that used its full travel
// without the sensor tripping. The reported Z is not a surface height.
type TravelLimitExceeded struct {
	StartZ float64
	Travel float64
}

func (e *TravelLimitExceeded) Error() string {
	return fmt.Sprintf("no contact within %.3fmm below Z%.3f", e.Travel, e.StartZ)
}

// ParseError is a position report that does not follow the grammar.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string { return "parse position " + strconv.Quote(e.Line) + ": " + e.Reason }

// HaltedError is returned by motion operations while a previous failure
// is unacknowledged. Call Resume to clear it.
type HaltedError struct {
	Cause error
}

func (e *HaltedError) Error() string { return "motion halted: " + e.Cause.Error() }
func (e *HaltedError) Unwrap() error { return e.Cause }

// faults reports whether err must halt further automated motion.
func faults(err error) bool {
	var te *TransportError
	var pt *ProtocolTimeout
	var pe *ParseError
	return errors.As(err, &te) || errors.As(err, &pt) || errors.As(err, &pe)
}
