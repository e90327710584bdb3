package builtins

import (
	"unicode/utf8"

	"golang.org/x/exp/constraints"
)

// List is the sequence container. It is always handled by pointer so that
// append mutates the caller's list.
type List[T any] struct {
	items []T
}

// IntList is the only instantiation the host language currently produces.
type IntList = List[int64]

func NewList[T any](items ...T) *List[T] {
	return &List[T]{items: items}
}

// Items returns the backing slice; callers must not retain it across calls
// that may append.
func (l *List[T]) Items() []T {
	if l == nil {
		return nil
	}
	return l.items
}

func (l *List[T]) Len() int {
	if l == nil {
		return 0
	}
	return len(l.items)
}

// IntDict is the string-keyed, integer-valued associative container. DictGet
// itself accepts any map.
type IntDict = map[string]int64

const maxPrealloc = 1 << 20

// Append adds item at the end of l and returns l itself.
func Append[T any](l *List[T], item T) *List[T] {
	l.items = append(l.items, item)
	return l
}

// RangeLen is the number of elements Range(start, end) produces.
func RangeLen[N constraints.Integer](start, end N) uint64 {
	if start >= end {
		return 0
	}
	return uint64(end) - uint64(start)
}

// Range materializes [start, end) in ascending order.
func Range[N constraints.Integer](start, end N) *List[N] {
	if start >= end {
		return &List[N]{}
	}
	capacity := 0
	if n := RangeLen(start, end); n <= maxPrealloc {
		capacity = int(n)
	}
	items := make([]N, 0, capacity)
	for i := start; i < end; i++ {
		items = append(items, i)
	}
	return &List[N]{items: items}
}

func ListGet[T any](l *List[T], index int64) (T, error) {
	if index < 0 || index >= int64(l.Len()) {
		var zero T
		return zero, newError(KindIndexOutOfBounds, "", "index %d out of bounds for length %d", index, l.Len())
	}
	return l.items[index], nil
}

func DictGet[K comparable, V any](d map[K]V, key K) (V, error) {
	v, ok := d[key]
	if !ok {
		var zero V
		return zero, newError(KindKeyNotFound, "", "key %s not found", Inspect(key))
	}
	return v, nil
}

// Length counts the elements of a container. Strings count runes.
func Length(container Value) (int64, error) {
	switch c := container.(type) {
	case *IntList:
		return int64(c.Len()), nil
	case *List[float64]:
		return int64(c.Len()), nil
	case *List[string]:
		return int64(c.Len()), nil
	case IntDict:
		return int64(len(c)), nil
	case string:
		return int64(utf8.RuneCountInString(c)), nil
	}
	return 0, newError(KindTypeMismatch, "", "expected a container, got %s", TypeName(container))
}
