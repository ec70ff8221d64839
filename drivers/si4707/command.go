package si4707

import (
	"fmt"
	"time"
)

// Priority orders commands in the receiver queue. Lower runs first.
type Priority uint8

const (
	PriorityPower     Priority = 0
	PriorityInterrupt Priority = 1
	PriorityNormal    Priority = 2
)

func (p Priority) String() string {
	switch p {
	case PriorityPower:
		return "power"
	case PriorityInterrupt:
		return "interrupt"
	case PriorityNormal:
		return "normal"
	}
	return fmt.Sprintf("priority(%d)", uint8(p))
}

// Command is one transactional exchange with the chip. An instance runs at
// most once; a second Execute returns ErrAlreadyExecuted.
type Command interface {
	Mnemonic() string
	Opcode() byte
	Priority() Priority
	// Attach sets the Future settled with the outcome. Call before Execute.
	Attach(f *Future)
	Execute(r *Radio) error
	// Completed is the zero time until the command has run.
	Completed() time.Time
	// Result returns the stored outcome.
	Result() (any, error)
	String() string
}

// transaction holds the bookkeeping every command shares.
type transaction struct {
	mnemonic string
	opcode   byte
	priority Priority

	future    *Future
	executed  bool
	completed time.Time
	result    any
	err       error
}

func newTransaction(mnemonic string, opcode byte, p Priority) transaction {
	return transaction{mnemonic: mnemonic, opcode: opcode, priority: p}
}

func (t *transaction) Mnemonic() string     { return t.mnemonic }
func (t *transaction) Opcode() byte         { return t.opcode }
func (t *transaction) Priority() Priority   { return t.priority }
func (t *transaction) Attach(f *Future)     { t.future = f }
func (t *transaction) Completed() time.Time { return t.completed }
func (t *transaction) Result() (any, error) { return t.result, t.err }

// run executes body once and delivers its outcome. The error is returned
// to the caller whether or not a Future is attached.
func (t *transaction) run(r *Radio, requirePower bool, body func() (any, error)) error {
	if t.executed {
		return ErrAlreadyExecuted
	}
	t.executed = true

	var (
		v   any
		err error
	)
	if requirePower && !r.Power {
		err = &NotPoweredError{Op: t.mnemonic}
	} else {
		v, err = body()
	}

	t.result, t.err = v, err
	if f := t.future; f != nil {
		if err != nil {
			_ = f.Reject(err)
		} else {
			_ = f.Resolve(v)
		}
	}
	t.future = nil
	t.completed = r.now()
	return err
}

func (t *transaction) describe(fields string) string {
	if fields == "" {
		return t.mnemonic
	}
	return t.mnemonic + " [" + fields + "]"
}
