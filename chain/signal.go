package chain

import (
	"github.com/kbukum/chainkit/errors"
)

// Kind tags a value with its role in the control protocol.
type Kind int

const (
	// KindValue is an ordinary value, fed to the next stage unchanged.
	KindValue Kind = iota
	// KindNone suppresses all further processing of the current item.
	KindNone
	// KindStop terminates the pipeline after a one-time flush.
	KindStop
	// KindFinal emits its value and bypasses the remaining stages.
	KindFinal
	// KindMany fans out to an ordered sequence of values.
	KindMany
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStop:
		return "stop"
	case KindFinal:
		return "final"
	case KindMany:
		return "many"
	default:
		return "value"
	}
}

// Signal is a control value. The set of signals is closed: None, Stop,
// Final and Many.
type Signal interface {
	Kind() Kind
	signal()
}

type noneSignal struct{}

func (noneSignal) Kind() Kind { return KindNone }
func (noneSignal) signal()    {}

type stopSignal struct{}

func (stopSignal) Kind() Kind { return KindStop }
func (stopSignal) signal()    {}

type finalSignal struct{ value any }

func (finalSignal) Kind() Kind { return KindFinal }
func (finalSignal) signal()    {}

type manySignal struct{ values []any }

func (manySignal) Kind() Kind { return KindMany }
func (manySignal) signal()    {}

var (
	// None skips the current item. Passed to a pipe's Process it signals
	// end-of-input; passed to a flushable stage it is the flush trigger.
	None Signal = noneSignal{}
	// Stop aborts the current item, flushes later flushable stages once and
	// surfaces ErrStop to the caller.
	Stop Signal = stopSignal{}
)

// ErrStop matches, via errors.Is, the error returned when a stage raised
// Stop. It is a graceful termination, not a failure. Each Stop returns a
// fresh error, so details added by a caller never leak into ErrStop.
var ErrStop error = errors.Stopped()

// Final wraps v so it is emitted as-is, skipping the remaining stages.
func Final(v any) Signal { return finalSignal{value: v} }

// Many fans out to vs, processed one at a time in order.
func Many(vs ...any) Signal { return manySignal{values: vs} }

// Classify resolves v to exactly one Kind.
func Classify(v any) Kind {
	if s, ok := v.(Signal); ok {
		return s.Kind()
	}
	return KindValue
}

// IsNone reports whether v is the None signal.
func IsNone(v any) bool { return Classify(v) == KindNone }

// IsStop reports whether v is the Stop signal.
func IsStop(v any) bool { return Classify(v) == KindStop }

// IsFinal reports whether v is a Final signal.
func IsFinal(v any) bool { return Classify(v) == KindFinal }

// IsMany reports whether v is a Many signal.
func IsMany(v any) bool { return Classify(v) == KindMany }

// FinalValue unwraps a Final signal.
func FinalValue(v any) (any, bool) {
	f, ok := v.(finalSignal)
	return f.value, ok
}

// ManyValues unwraps a Many signal.
func ManyValues(v any) ([]any, bool) {
	m, ok := v.(manySignal)
	return m.values, ok
}

// IsStopped reports whether err is the graceful Stop termination.
func IsStopped(err error) bool {
	return errors.IsCode(err, errors.ErrCodeStopped)
}
