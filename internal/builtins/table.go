package builtins

import (
	"context"
	"fmt"
	"sort"

	"github.com/funvibe/glitteral/internal/config"
)

func init() {
	// Verify all builtins are fully described
	for name, builtin := range Builtins {
		if builtin.Name != name {
			panic(fmt.Sprintf("builtin %q registered under %q", builtin.Name, name))
		}
		if builtin.Signature == "" || builtin.Family == "" {
			panic(fmt.Sprintf("builtin %q is missing Signature or Family", name))
		}
	}
	for alias, target := range Aliases {
		if _, ok := Builtins[target]; !ok {
			panic(fmt.Sprintf("alias %q points at unknown builtin %q", alias, target))
		}
	}
}

type BuiltinFunction func(ctx context.Context, env *Env, args []Value) (Value, error)

type Builtin struct {
	Name      string
	Family    string
	Arity     int
	Signature string // shown by listings, e.g. "(N, N) -> N"
	Fn        BuiltinFunction
}

// Call checks arity and runs the builtin. A nil env means DefaultEnv.
func (b *Builtin) Call(ctx context.Context, env *Env, args ...Value) (Value, error) {
	if len(args) != b.Arity {
		return nil, newError(KindArityMismatch, b.Name, "expects %d arguments, got %d", b.Arity, len(args))
	}
	if env == nil {
		env = DefaultEnv()
	}
	args = normalizeArgs(args)
	if ctx == nil {
		ctx = context.Background()
	}
	v, err := b.Fn(ctx, env, args)
	if err != nil {
		return nil, withOp(b.Name, err)
	}
	return v, nil
}

// normalizeArgs widens Go ints to int64, the host integer type. The caller's
// slice is left alone.
func normalizeArgs(args []Value) []Value {
	for i, a := range args {
		if _, ok := a.(int); !ok {
			continue
		}
		out := make([]Value, len(args))
		copy(out, args)
		for j := i; j < len(out); j++ {
			if n, ok := out[j].(int); ok {
				out[j] = int64(n)
			}
		}
		return out
	}
	return args
}

// Aliases resolves alternative spellings to table names.
var Aliases = func() map[string]string {
	m := make(map[string]string, len(config.SurfaceAliases)+len(config.LegacyAliases))
	for k, v := range config.SurfaceAliases {
		m[k] = v
	}
	for k, v := range config.LegacyAliases {
		m[k] = v
	}
	return m
}()

// Lookup finds a builtin by name or alias.
func Lookup(name string) (*Builtin, bool) {
	if b, ok := Builtins[name]; ok {
		return b, true
	}
	if target, ok := Aliases[name]; ok {
		return Builtins[target], true
	}
	return nil, false
}

// Call dispatches one evaluated call expression.
func Call(ctx context.Context, env *Env, name string, args ...Value) (Value, error) {
	b, ok := Lookup(name)
	if !ok {
		return nil, newError(KindUnknownBuiltin, name, "no such builtin")
	}
	return b.Call(ctx, env, args...)
}

// Names returns the table names in sorted order.
func Names() []string {
	names := make([]string, 0, len(Builtins))
	for name := range Builtins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ByFamily groups sorted builtin names by family.
func ByFamily() map[string][]string {
	groups := make(map[string][]string)
	for _, name := range Names() {
		f := Builtins[name].Family
		groups[f] = append(groups[f], name)
	}
	return groups
}

var Builtins = map[string]*Builtin{
	// Arithmetic & comparison
	config.EqualFuncName: {
		Name: config.EqualFuncName, Family: config.FamilyArithmetic, Arity: 2,
		Signature: "(a, a) -> Bool",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			if err := sameType(args[0], args[1]); err != nil {
				return nil, err
			}
			return Equivalent(args[0], args[1]), nil
		},
	},
	config.NotEqualFuncName: {
		Name: config.NotEqualFuncName, Family: config.FamilyArithmetic, Arity: 2,
		Signature: "(a, a) -> Bool",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			if err := sameType(args[0], args[1]); err != nil {
				return nil, err
			}
			return !Equivalent(args[0], args[1]), nil
		},
	},
	config.AddFuncName: {
		Name: config.AddFuncName, Family: config.FamilyArithmetic, Arity: 2,
		Signature: "(N, N) -> N",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			if x, ok := args[0].(string); ok {
				if y, ok := args[1].(string); ok {
					return Add(x, y), nil
				}
			}
			return arith(env, args, Add[int64], AddChecked[int64], Add[float64])
		},
	},
	config.SubtractFuncName: {
		Name: config.SubtractFuncName, Family: config.FamilyArithmetic, Arity: 2,
		Signature: "(N, N) -> N",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			return arith(env, args, Subtract[int64], SubtractChecked[int64], Subtract[float64])
		},
	},
	config.MultiplyFuncName: {
		Name: config.MultiplyFuncName, Family: config.FamilyArithmetic, Arity: 2,
		Signature: "(N, N) -> N",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			return arith(env, args, Multiply[int64], MultiplyChecked[int64], Multiply[float64])
		},
	},
	config.DivideFuncName: {
		Name: config.DivideFuncName, Family: config.FamilyArithmetic, Arity: 2,
		Signature: "(N, N) -> N",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			switch x := args[0].(type) {
			case int64:
				if y, ok := args[1].(int64); ok {
					if env.Overflow == OverflowFail {
						return DivideChecked(x, y)
					}
					return Divide(x, y)
				}
			case float64:
				if y, ok := args[1].(float64); ok {
					return Divide(x, y)
				}
			}
			return nil, operandMismatch(args[0], args[1])
		},
	},
	config.GreaterFuncName:    comparison(config.GreaterFuncName, Greater[int64], Greater[float64], Greater[string]),
	config.LessFuncName:       comparison(config.LessFuncName, Less[int64], Less[float64], Less[string]),
	config.NotLessFuncName:    comparison(config.NotLessFuncName, NotLess[int64], NotLess[float64], NotLess[string]),
	config.NotGreaterFuncName: comparison(config.NotGreaterFuncName, NotGreater[int64], NotGreater[float64], NotGreater[string]),

	// Logical
	config.AndFuncName: {
		Name: config.AndFuncName, Family: config.FamilyLogical, Arity: 2,
		Signature: "(Bool, Bool) -> Bool",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			a, b, err := boolPair(args)
			if err != nil {
				return nil, err
			}
			return And(a, b), nil
		},
	},
	config.OrFuncName: {
		Name: config.OrFuncName, Family: config.FamilyLogical, Arity: 2,
		Signature: "(Bool, Bool) -> Bool",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			a, b, err := boolPair(args)
			if err != nil {
				return nil, err
			}
			return Or(a, b), nil
		},
	},

	// Containers
	config.AppendFuncName: {
		Name: config.AppendFuncName, Family: config.FamilyContainer, Arity: 2,
		Signature: "(List, Int) -> List",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			l, err := listArg(args, 0)
			if err != nil {
				return nil, err
			}
			item, err := intArg(args, 1)
			if err != nil {
				return nil, err
			}
			return Append(l, item), nil
		},
	},
	config.LengthFuncName: {
		Name: config.LengthFuncName, Family: config.FamilyContainer, Arity: 1,
		Signature: "(List | Dict | String) -> Int",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			return Length(args[0])
		},
	},
	config.RangeFuncName: {
		Name: config.RangeFuncName, Family: config.FamilyContainer, Arity: 2,
		Signature: "(Int, Int) -> List",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			start, err := intArg(args, 0)
			if err != nil {
				return nil, err
			}
			end, err := intArg(args, 1)
			if err != nil {
				return nil, err
			}
			if n := RangeLen(start, end); env.MaxRangeLen > 0 && n > uint64(env.MaxRangeLen) {
				return nil, newError(KindLimitExceeded, "", "range of %d elements exceeds the limit of %d", n, env.MaxRangeLen)
			}
			return Range(start, end), nil
		},
	},
	config.ListGetFuncName: {
		Name: config.ListGetFuncName, Family: config.FamilyContainer, Arity: 2,
		Signature: "(List, Int) -> Int",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			l, err := listArg(args, 0)
			if err != nil {
				return nil, err
			}
			index, err := intArg(args, 1)
			if err != nil {
				return nil, err
			}
			return ListGet(l, index)
		},
	},
	config.DictGetFuncName: {
		Name: config.DictGetFuncName, Family: config.FamilyContainer, Arity: 2,
		Signature: "(Dict, String) -> Int",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			d, ok := args[0].(IntDict)
			if !ok {
				return nil, argMismatch(0, TypeDict, args[0])
			}
			key, err := stringArg(args, 1)
			if err != nil {
				return nil, err
			}
			return DictGet(d, key)
		},
	},
	config.PrintlnContainerFuncName: {
		Name: config.PrintlnContainerFuncName, Family: config.FamilyContainer, Arity: 1,
		Signature: "(List) -> Nil",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			l, err := listArg(args, 0)
			if err != nil {
				return nil, err
			}
			return nil, env.PrintlnContainer(l)
		},
	},

	// Environment
	config.PrintFuncName: {
		Name: config.PrintFuncName, Family: config.FamilyEnvironment, Arity: 1,
		Signature: "(a) -> Nil",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			return nil, env.Print(args[0])
		},
	},
	config.PrintlnFuncName: {
		Name: config.PrintlnFuncName, Family: config.FamilyEnvironment, Arity: 1,
		Signature: "(a) -> Nil",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			return nil, env.Println(args[0])
		},
	},
	config.PrintIntegerFuncName: {
		Name: config.PrintIntegerFuncName, Family: config.FamilyEnvironment, Arity: 1,
		Signature: "(Int) -> Nil",
		Fn: func(_ context.Context, env *Env, args []Value) (Value, error) {
			n, err := intArg(args, 0)
			if err != nil {
				return nil, err
			}
			return nil, env.PrintInteger(n)
		},
	},
	config.InputFuncName: {
		Name: config.InputFuncName, Family: config.FamilyEnvironment, Arity: 0,
		Signature: "() -> String",
		Fn: func(_ context.Context, env *Env, _ []Value) (Value, error) {
			return env.Input()
		},
	},
	config.SleepFuncName: {
		Name: config.SleepFuncName, Family: config.FamilyEnvironment, Arity: 1,
		Signature: "(Int | Float) -> Nil",
		Fn: func(ctx context.Context, env *Env, args []Value) (Value, error) {
			var seconds float64
			switch s := args[0].(type) {
			case int64:
				seconds = float64(s)
			case float64:
				seconds = s
			default:
				return nil, argMismatch(0, TypeFloat, args[0])
			}
			return nil, env.Sleep(ctx, seconds)
		},
	},
	config.CurrentTimeFuncName: {
		Name: config.CurrentTimeFuncName, Family: config.FamilyEnvironment, Arity: 0,
		Signature: "() -> Float",
		Fn: func(_ context.Context, env *Env, _ []Value) (Value, error) {
			return env.CurrentTime(), nil
		},
	},
	config.ParseFloatFuncName: {
		Name: config.ParseFloatFuncName, Family: config.FamilyEnvironment, Arity: 1,
		Signature: "(String) -> Float",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			text, err := stringArg(args, 0)
			if err != nil {
				return nil, err
			}
			return ParseFloat(text)
		},
	},
}

// arith dispatches a binary arithmetic builtin on its operand type. Integers
// use the checked variant when the environment asks for overflow failures.
func arith(env *Env, args []Value,
	ints func(a, b int64) int64,
	checked func(a, b int64) (int64, error),
	floats func(a, b float64) float64,
) (Value, error) {
	switch x := args[0].(type) {
	case int64:
		if y, ok := args[1].(int64); ok {
			if env.Overflow == OverflowFail {
				return checked(x, y)
			}
			return ints(x, y), nil
		}
	case float64:
		if y, ok := args[1].(float64); ok {
			return floats(x, y), nil
		}
	}
	return nil, operandMismatch(args[0], args[1])
}

func comparison(name string,
	ints func(a, b int64) bool,
	floats func(a, b float64) bool,
	strs func(a, b string) bool,
) *Builtin {
	return &Builtin{
		Name: name, Family: config.FamilyArithmetic, Arity: 2,
		Signature: "(N, N) -> Bool",
		Fn: func(_ context.Context, _ *Env, args []Value) (Value, error) {
			switch x := args[0].(type) {
			case int64:
				if y, ok := args[1].(int64); ok {
					return ints(x, y), nil
				}
			case float64:
				if y, ok := args[1].(float64); ok {
					return floats(x, y), nil
				}
			case string:
				if y, ok := args[1].(string); ok {
					return strs(x, y), nil
				}
			}
			return nil, operandMismatch(args[0], args[1])
		},
	}
}

func operandMismatch(a, b Value) *Error {
	return newError(KindTypeMismatch, "", "operands must share a type, got %s and %s", TypeName(a), TypeName(b))
}

func sameType(a, b Value) error {
	if TypeName(a) != TypeName(b) {
		return operandMismatch(a, b)
	}
	return nil
}

func argMismatch(i int, want string, got Value) *Error {
	return newError(KindTypeMismatch, "", "argument %d must be %s, got %s", i+1, want, TypeName(got))
}

func intArg(args []Value, i int) (int64, error) {
	n, ok := args[i].(int64)
	if !ok {
		return 0, argMismatch(i, TypeInt, args[i])
	}
	return n, nil
}

func stringArg(args []Value, i int) (string, error) {
	s, ok := args[i].(string)
	if !ok {
		return "", argMismatch(i, TypeString, args[i])
	}
	return s, nil
}

func listArg(args []Value, i int) (*IntList, error) {
	l, ok := args[i].(*IntList)
	if !ok || l == nil {
		return nil, argMismatch(i, TypeList, args[i])
	}
	return l, nil
}

func boolPair(args []Value) (bool, bool, error) {
	a, ok := args[0].(bool)
	if !ok {
		return false, false, argMismatch(0, TypeBool, args[0])
	}
	b, ok := args[1].(bool)
	if !ok {
		return false, false, argMismatch(1, TypeBool, args[1])
	}
	return a, b, nil
}
