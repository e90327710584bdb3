package builtins

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/funvibe/glitteral/internal/config"
)

func call(t *testing.T, env *Env, name string, args ...Value) (Value, error) {
	t.Helper()
	if env == nil {
		env = NewEnv(nil, &bytes.Buffer{})
	}
	return Call(context.Background(), env, name, args...)
}

func TestCallResults(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args []Value
		want Value
	}{
		{"divide positive", "divide", []Value{int64(7), int64(2)}, int64(3)},
		{"divide negative", "divide", []Value{int64(-7), int64(2)}, int64(-3)},
		{"divide floats", "divide", []Value{7.0, 2.0}, 3.5},
		{"add ints", "add", []Value{int64(2), int64(3)}, int64(5)},
		{"add floats", "add", []Value{0.5, 0.25}, 0.75},
		{"add strings", "add", []Value{"a", "b"}, "ab"},
		{"subtract", "subtract", []Value{int64(2), int64(3)}, int64(-1)},
		{"multiply", "multiply", []Value{int64(6), int64(7)}, int64(42)},
		{"equal", "equal", []Value{int64(2), int64(2)}, true},
		{"not_equal", "not_equal", []Value{int64(2), int64(2)}, false},
		{"equal strings", "equal", []Value{"x", "y"}, false},
		{"greater", "greater", []Value{int64(3), int64(2)}, true},
		{"less", "less", []Value{int64(3), int64(2)}, false},
		{"not_less", "not_less", []Value{2.0, 2.0}, true},
		{"not_greater", "not_greater", []Value{int64(2), int64(2)}, true},
		{"and", "and", []Value{true, false}, false},
		{"or", "or", []Value{true, false}, true},
		{"list subscript", "list_get_subscript", []Value{NewList[int64](1, 2, 3), int64(1)}, int64(2)},
		{"dict subscript", "dictionary_get_subscript", []Value{IntDict{"x": 1}, "x"}, int64(1)},
		{"length of range", "length", []Value{Range[int64](0, 100)}, int64(100)},
		{"parse_float", "parse_float", []Value{" 2.5 "}, 2.5},
		{"surface alias", "÷", []Value{int64(9), int64(3)}, int64(3)},
		{"legacy alias", "add_integers", []Value{int64(1), int64(1)}, int64(2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := call(t, nil, tt.op, tt.args...)
			if err != nil {
				t.Fatalf("%s unexpected error: %v", tt.op, err)
			}
			if !Equivalent(got, tt.want) {
				t.Errorf("%s(...) = %s, want %s", tt.op, Inspect(got), Inspect(tt.want))
			}
		})
	}
}

func TestCallFailures(t *testing.T) {
	tests := []struct {
		name string
		op   string
		args []Value
		kind Kind
	}{
		{"divide by zero", "divide", []Value{int64(1), int64(0)}, KindDivisionByZero},
		{"index out of bounds", "list_get_subscript", []Value{NewList[int64](1, 2, 3), int64(5)}, KindIndexOutOfBounds},
		{"negative index", "list_get_subscript", []Value{NewList[int64](1, 2, 3), int64(-1)}, KindIndexOutOfBounds},
		{"missing key", "dictionary_get_subscript", []Value{IntDict{"x": 1}, "y"}, KindKeyNotFound},
		{"bad float", "parse_float", []Value{"one point five"}, KindParseError},
		{"unknown", "frobnicate", nil, KindUnknownBuiltin},
		{"arity", "add", []Value{int64(1)}, KindArityMismatch},
		{"no coercion", "add", []Value{int64(1), 1.0}, KindTypeMismatch},
		{"equal across types", "equal", []Value{int64(1), 1.0}, KindTypeMismatch},
		{"and needs bools", "and", []Value{true, int64(1)}, KindTypeMismatch},
		{"append needs list", "append", []Value{int64(1), int64(1)}, KindTypeMismatch},
		{"range needs ints", "range", []Value{1.0, int64(3)}, KindTypeMismatch},
		{"sleep needs number", "sleep", []Value{"soon"}, KindTypeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, nil, tt.op, tt.args...)
			if err == nil {
				t.Fatalf("%s expected %v, got nil", tt.op, tt.kind)
			}
			if got := KindOf(err); got != tt.kind {
				t.Errorf("%s error kind = %v, want %v (%v)", tt.op, got, tt.kind, err)
			}
		})
	}
}

func TestCallStampsOperation(t *testing.T) {
	_, err := call(t, nil, "divide", int64(1), int64(0))
	var be *Error
	if !errors.As(err, &be) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if be.Op != config.DivideFuncName {
		t.Errorf("Op = %q, want %q", be.Op, config.DivideFuncName)
	}
	if err.Error() != "divide: division by zero" {
		t.Errorf("Error() = %q", err.Error())
	}
	if ErrDivisionByZero.Op != "" {
		t.Error("sentinel must not be mutated")
	}
}

func TestAppendReturnsSameHandle(t *testing.T) {
	l := NewList[int64](1, 2)
	got, err := call(t, nil, "append!", l, int64(3))
	if err != nil {
		t.Fatal(err)
	}
	if got.(*IntList) != l {
		t.Error("append must return the list it was given")
	}
	if !Equivalent(l, NewList[int64](1, 2, 3)) {
		t.Errorf("list = %s, want [1, 2, 3]", Inspect(l))
	}
}

func TestOverflowPolicy(t *testing.T) {
	const maxInt = int64(1<<63 - 1)

	wrap := NewEnv(nil, nil)
	got, err := call(t, wrap, "add", maxInt, int64(1))
	if err != nil {
		t.Fatalf("wrap policy must not fail: %v", err)
	}
	if got.(int64) != -maxInt-1 {
		t.Errorf("wrapped sum = %d", got)
	}

	strict := NewEnv(nil, nil)
	strict.Overflow = OverflowFail
	for _, op := range []string{"add", "multiply"} {
		if _, err := call(t, strict, op, maxInt, int64(2)); !errors.Is(err, ErrOverflow) {
			t.Errorf("%s under fail policy: error = %v, want Overflow", op, err)
		}
	}
	if _, err := call(t, strict, "subtract", -maxInt-1, int64(1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("subtract under fail policy: error = %v, want Overflow", err)
	}
	if _, err := call(t, strict, "divide", -maxInt-1, int64(-1)); !errors.Is(err, ErrOverflow) {
		t.Errorf("divide under fail policy: error = %v, want Overflow", err)
	}
	if v, err := call(t, strict, "add", 1e308, 1e308); err != nil || v.(float64) <= 1e308 {
		t.Errorf("floats ignore the overflow policy: %v, %v", v, err)
	}
}

func TestTableCoverage(t *testing.T) {
	want := []string{
		"add", "and", "append", "current_time", "dictionary_get_subscript", "divide",
		"equal", "greater", "input", "length", "less", "list_get_subscript",
		"multiply", "not_equal", "not_greater", "not_less", "or", "parse_float",
		"print", "print_integer", "println", "println_container", "range", "sleep", "subtract",
	}
	names := Names()
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	families := ByFamily()
	if n := len(families[config.FamilyLogical]); n != 2 {
		t.Errorf("logical family has %d builtins, want 2", n)
	}
	for _, name := range families[config.FamilyEnvironment] {
		if Builtins[name].Family != config.FamilyEnvironment {
			t.Errorf("%s listed under the wrong family", name)
		}
	}
}

func TestRangeLimit(t *testing.T) {
	const maxInt = int64(1<<63 - 1)
	env := NewEnv(nil, nil)
	env.MaxRangeLen = 10

	v, err := call(t, env, "range", int64(0), int64(10))
	if err != nil || v.(*IntList).Len() != 10 {
		t.Fatalf("range at the limit: %v, %v", v, err)
	}

	_, err = call(t, env, "range", int64(0), int64(1)<<40)
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatalf("range past the limit: error = %v, want LimitExceeded", err)
	}
	if err.Error() != "range: range of 1099511627776 elements exceeds the limit of 10" {
		t.Errorf("message = %q", err.Error())
	}

	// the span is computed without overflowing int64
	if _, err := call(t, env, "range", -maxInt-1, maxInt); !errors.Is(err, ErrLimitExceeded) {
		t.Errorf("full int64 span: error = %v, want LimitExceeded", err)
	}
	if v, err := call(t, env, "range", int64(5), int64(-5)); err != nil || v.(*IntList).Len() != 0 {
		t.Errorf("inverted range under a limit: %v, %v", v, err)
	}
}

func TestZeroEnvIsUsable(t *testing.T) {
	env := &Env{}
	for _, name := range []string{"print", "println", "print_integer"} {
		if _, err := call(t, env, name, int64(1)); err != nil {
			t.Errorf("%s on a zero Env: %v", name, err)
		}
	}
	if _, err := call(t, env, "println_container", NewList[int64](1)); err != nil {
		t.Errorf("println_container on a zero Env: %v", err)
	}
	if _, err := call(t, env, "input"); !errors.Is(err, ErrIO) {
		t.Errorf("input on a zero Env: error = %v, want IOFailure", err)
	}
	if v, err := call(t, env, "current_time"); err != nil || v.(float64) <= 0 {
		t.Errorf("current_time on a zero Env: %v, %v", v, err)
	}
}

func TestGoIntsAreHostInts(t *testing.T) {
	v, err := call(t, nil, "equal", 1, int64(1))
	if err != nil || v != true {
		t.Errorf("equal(int 1, int64 1) = %v, %v, want true", v, err)
	}
	v, err = call(t, nil, "add", 40, 2)
	if err != nil || v != int64(42) {
		t.Errorf("add(int 40, int 2) = %v (%T), %v, want int64 42", v, v, err)
	}

	args := []Value{1, 2}
	if _, err := call(t, nil, "range", args...); err != nil {
		t.Fatalf("range over Go ints: %v", err)
	}
	if _, ok := args[0].(int); !ok {
		t.Error("Call rewrote the caller's argument slice")
	}
}
