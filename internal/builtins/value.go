package builtins

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Value is an already-evaluated host value in its native Go representation:
// int64, float64, bool, string, *IntList, IntDict or nil.
type Value = interface{}

const (
	TypeInt    = "Int"
	TypeFloat  = "Float"
	TypeBool   = "Bool"
	TypeString = "String"
	TypeList   = "List"
	TypeDict   = "Dict"
	TypeNil    = "Nil"
)

// TypeName names the host type of v.
func TypeName(v Value) string {
	switch v.(type) {
	case nil:
		return TypeNil
	case int64:
		return TypeInt
	case float64:
		return TypeFloat
	case bool:
		return TypeBool
	case string:
		return TypeString
	case *IntList, *List[float64], *List[string]:
		return TypeList
	case IntDict:
		return TypeDict
	}
	return fmt.Sprintf("%T", v)
}

// Display renders v the way print shows it: strings unquoted, containers in
// their debug form.
func Display(v Value) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return formatFloat(x)
	}
	return Inspect(v)
}

// Inspect renders the debug form used by println_container.
func Inspect(v Value) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strconv.Quote(x)
	case *IntList:
		return inspectList(x)
	case *List[float64]:
		return inspectList(x)
	case *List[string]:
		return inspectList(x)
	case IntDict:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		var b strings.Builder
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(strconv.Quote(k))
			b.WriteString(": ")
			b.WriteString(strconv.FormatInt(x[k], 10))
		}
		b.WriteByte('}')
		return b.String()
	}
	return fmt.Sprintf("%v", v)
}

func inspectList[T any](l *List[T]) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, item := range l.Items() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(Inspect(item))
	}
	b.WriteByte(']')
	return b.String()
}

// formatFloat prints the shortest round-trip decimal without an exponent.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	case math.IsNaN(f):
		return "NaN"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Equivalent compares two host values structurally. Values of different host
// types are never equivalent.
func Equivalent(a, b Value) bool {
	switch x := a.(type) {
	case *IntList:
		y, ok := b.(*IntList)
		if !ok || x.Len() != y.Len() {
			return false
		}
		for i, item := range x.Items() {
			if item != y.items[i] {
				return false
			}
		}
		return true
	case IntDict:
		y, ok := b.(IntDict)
		if !ok || len(x) != len(y) {
			return false
		}
		for k, v := range x {
			w, ok := y[k]
			if !ok || w != v {
				return false
			}
		}
		return true
	}
	if TypeName(a) != TypeName(b) {
		return false
	}
	return a == b
}
