package builtins

import (
	"errors"
	"fmt"
)

// Kind classifies a builtin failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindDivisionByZero
	KindIndexOutOfBounds
	KindKeyNotFound
	KindParseError
	KindIOFailure

	// Dispatch failures raised by the table before an operation runs.
	KindUnknownBuiltin
	KindArityMismatch
	KindTypeMismatch

	KindOverflow
	KindInterrupted
	KindLimitExceeded
)

var kindNames = map[Kind]string{
	KindUnknown:          "Unknown",
	KindDivisionByZero:   "DivisionByZero",
	KindIndexOutOfBounds: "IndexOutOfBounds",
	KindKeyNotFound:      "KeyNotFound",
	KindParseError:       "ParseError",
	KindIOFailure:        "IOFailure",
	KindUnknownBuiltin:   "UnknownBuiltin",
	KindArityMismatch:    "ArityMismatch",
	KindTypeMismatch:     "TypeMismatch",
	KindOverflow:         "Overflow",
	KindInterrupted:      "Interrupted",
	KindLimitExceeded:    "LimitExceeded",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ParseKind maps a kind name (as printed by String) back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}
	return KindUnknown, false
}

// Sentinels for errors.Is. Only the kind is compared.
var (
	ErrDivisionByZero   = &Error{Kind: KindDivisionByZero}
	ErrIndexOutOfBounds = &Error{Kind: KindIndexOutOfBounds}
	ErrKeyNotFound      = &Error{Kind: KindKeyNotFound}
	ErrParse            = &Error{Kind: KindParseError}
	ErrIO               = &Error{Kind: KindIOFailure}
	ErrUnknownBuiltin   = &Error{Kind: KindUnknownBuiltin}
	ErrArityMismatch    = &Error{Kind: KindArityMismatch}
	ErrTypeMismatch     = &Error{Kind: KindTypeMismatch}
	ErrOverflow         = &Error{Kind: KindOverflow}
	ErrInterrupted      = &Error{Kind: KindInterrupted}
	ErrLimitExceeded    = &Error{Kind: KindLimitExceeded}
)

// Error is the failure result of a builtin call.
type Error struct {
	Kind    Kind
	Op      string // builtin name, empty for sentinels
	Message string
	Err     error // underlying cause, if any
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newError(kind Kind, op, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, a...)}
}

func wrapError(kind Kind, op string, err error, format string, a ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, a...), Err: err}
}

// KindOf returns the kind carried by err, or KindUnknown if err is not a
// builtin failure.
func KindOf(err error) Kind {
	var be *Error
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

// withOp stamps the builtin name on failures produced by the generic helpers,
// which do not know which table entry called them.
func withOp(op string, err error) error {
	var be *Error
	if errors.As(err, &be) && be.Op == "" {
		cp := *be
		cp.Op = op
		return &cp
	}
	return err
}
