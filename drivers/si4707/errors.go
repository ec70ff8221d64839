package si4707

import (
	"errors"
	"fmt"

	"nwrcode-go/errcode"
)

var (
	// ErrAlreadyExecuted is returned when a command instance is run twice.
	ErrAlreadyExecuted = errors.New("command already executed")
	// ErrFutureSettled is returned when a settled Future is assigned again.
	ErrFutureSettled = errors.New("future already settled")
	// ErrChipRejected marks a response whose status byte carried ERR.
	ErrChipRejected = errors.New("chip reported ERR")
)

// ValidationError reports malformed command arguments. It is raised at
// construction, before any bus I/O.
type ValidationError struct {
	Op     string
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: invalid %s %v: %s", e.Op, e.Field, e.Value, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %s %v", e.Op, e.Field, e.Value)
}

func (e *ValidationError) Code() errcode.Code { return errcode.InvalidParams }

// NotPoweredError is returned by commands that need the receiver powered.
type NotPoweredError struct{ Op string }

func (e *NotPoweredError) Error() string {
	return fmt.Sprintf("attempted %s when powered down", e.Op)
}

func (e *NotPoweredError) Code() errcode.Code { return errcode.NotPowered }

// ProtocolViolationError reports a chip answer that contradicts the request.
type ProtocolViolationError struct {
	Op   string
	Want any
	Got  any
	Msg  string
}

func (e *ProtocolViolationError) Error() string {
	return fmt.Sprintf("%s: %s: requested %v, got %v", e.Op, e.Msg, e.Want, e.Got)
}

func (e *ProtocolViolationError) Code() errcode.Code { return errcode.ProtocolViolation }

// BusError wraps a transport failure. The cause is not interpreted.
type BusError struct {
	Op  string
	Err error
}

func (e *BusError) Error() string      { return fmt.Sprintf("%s: bus: %v", e.Op, e.Err) }
func (e *BusError) Unwrap() error      { return e.Err }
func (e *BusError) Code() errcode.Code { return errcode.IOError }

// DecodeError is returned by a Decoder that cannot make a message out of
// the accumulated repetitions.
type DecodeError struct {
	Repetitions int
	Err         error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %d repetitions: %v", e.Repetitions, e.Err)
}
func (e *DecodeError) Unwrap() error      { return e.Err }
func (e *DecodeError) Code() errcode.Code { return errcode.DecodeFailed }

// TimeoutError reports a bounded wait on the chip that ran out.
type TimeoutError struct {
	Op    string
	Waits int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: timed out after %d polls", e.Op, e.Waits)
}

func (e *TimeoutError) Code() errcode.Code { return errcode.Timeout }

func busErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var be *BusError
	var te *TimeoutError
	if errors.As(err, &be) || errors.As(err, &te) {
		return err
	}
	return &BusError{Op: op, Err: err}
}
