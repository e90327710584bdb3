package builtins

import (
	"golang.org/x/exp/constraints"
)

// Number is any numeric representation the host language may hand us.
type Number interface {
	constraints.Integer | constraints.Float
}

// Addable widens Number with strings, which also support +.
type Addable interface {
	Number | ~string
}

func Equal[T comparable](a, b T) bool    { return a == b }
func NotEqual[T comparable](a, b T) bool { return a != b }

// Add, Subtract and Multiply follow the operand type's native semantics:
// integers wrap on overflow, floats follow IEEE 754.
func Add[N Addable](a, b N) N     { return a + b }
func Subtract[N Number](a, b N) N { return a - b }
func Multiply[N Number](a, b N) N { return a * b }

// Divide truncates toward zero for integral N and fails on a zero divisor.
// For floating N it never fails.
func Divide[N Number](a, b N) (N, error) {
	if b == 0 && integral[N]() {
		var zero N
		return zero, newError(KindDivisionByZero, "", "division by zero")
	}
	return a / b, nil
}

func Greater[T constraints.Ordered](a, b T) bool    { return a > b }
func Less[T constraints.Ordered](a, b T) bool       { return a < b }
func NotLess[T constraints.Ordered](a, b T) bool    { return a >= b }
func NotGreater[T constraints.Ordered](a, b T) bool { return a <= b }

// integral reports whether N truncates on division. Works for named types
// whose underlying type is numeric, where a type switch would not.
func integral[N Number]() bool {
	var half N = 1
	half /= 2
	return half == 0
}

// AddChecked is Add for integers with overflow reported instead of wrapped.
func AddChecked[N constraints.Integer](a, b N) (N, error) {
	s := a + b
	if (s > a) != (b > 0) {
		return s, newError(KindOverflow, "", "integer overflow in %d + %d", a, b)
	}
	return s, nil
}

func SubtractChecked[N constraints.Integer](a, b N) (N, error) {
	d := a - b
	if (d < a) != (b > 0) {
		return d, newError(KindOverflow, "", "integer overflow in %d - %d", a, b)
	}
	return d, nil
}

func MultiplyChecked[N constraints.Integer](a, b N) (N, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	p := a * b
	// Both quotients are needed: MinInt * -1 passes the first check alone.
	if p/b != a || p/a != b {
		return p, newError(KindOverflow, "", "integer overflow in %d * %d", a, b)
	}
	return p, nil
}

// DivideChecked fails on MinInt / -1, the only overflowing integer quotient.
func DivideChecked[N constraints.Integer](a, b N) (N, error) {
	q, err := Divide(a, b)
	if err != nil {
		return q, err
	}
	if a < 0 && b < 0 && q < 0 {
		return q, newError(KindOverflow, "", "integer overflow in %d / %d", a, b)
	}
	return q, nil
}
