// Package literal converts between textual host values and their native
// representation. Literals use YAML flow syntax, so `3`, `2.5`, `true`,
// `"text"`, `[1, 2, 3]` and `{x: 1}` all decode directly.
package literal

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/glitteral/internal/builtins"
)

// Parse decodes a single literal. Bare words that YAML reads as strings stay
// strings; the empty text is the empty string.
func Parse(text string) (builtins.Value, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	var node yaml.Node
	if err := yaml.Unmarshal([]byte(text), &node); err != nil {
		return nil, &builtins.Error{Kind: builtins.KindParseError, Op: "literal", Message: fmt.Sprintf("invalid literal %q", text), Err: err}
	}
	return FromNode(&node)
}

// FromNode converts a decoded YAML node.
func FromNode(node *yaml.Node) (builtins.Value, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return nil, nil
		}
		node = node.Content[0]
	}
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return nil, &builtins.Error{Kind: builtins.KindParseError, Op: "literal", Message: "undecodable literal", Err: err}
	}
	return FromYAML(raw)
}

// FromYAML converts a tree produced by yaml.Unmarshal into interface{}.
func FromYAML(raw interface{}) (builtins.Value, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case bool, string, float64:
		return v, nil
	case int, int64, uint64:
		n, err := toInt(v)
		if err != nil {
			return nil, mismatch("%v", err)
		}
		return n, nil
	case []interface{}:
		items := make([]int64, 0, len(v))
		for i, item := range v {
			n, err := toInt(item)
			if err != nil {
				return nil, mismatch("list element %d: %v", i, err)
			}
			items = append(items, n)
		}
		return builtins.NewList(items...), nil
	case map[string]interface{}:
		d := make(builtins.IntDict, len(v))
		for k, item := range v {
			n, err := toInt(item)
			if err != nil {
				return nil, mismatch("dict value %q: %v", k, err)
			}
			d[k] = n
		}
		return d, nil
	case map[interface{}]interface{}:
		d := make(builtins.IntDict, len(v))
		for k, item := range v {
			key, ok := k.(string)
			if !ok {
				return nil, mismatch("dict keys must be strings, got %v", k)
			}
			n, err := toInt(item)
			if err != nil {
				return nil, mismatch("dict value %q: %v", key, err)
			}
			d[key] = n
		}
		return d, nil
	}
	return nil, mismatch("unsupported literal of type %T", raw)
}

func toInt(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("%d does not fit in Int", n)
		}
		return int64(n), nil
	}
	return 0, fmt.Errorf("expected Int, got %v", v)
}

func mismatch(format string, a ...interface{}) *builtins.Error {
	return &builtins.Error{Kind: builtins.KindTypeMismatch, Op: "literal", Message: fmt.Sprintf(format, a...)}
}

// ParseAll decodes a list of argument texts.
func ParseAll(texts []string) ([]builtins.Value, error) {
	args := make([]builtins.Value, 0, len(texts))
	for i, text := range texts {
		v, err := Parse(text)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args = append(args, v)
	}
	return args, nil
}

// Format renders v so that Parse gives back an equivalent value. Floats
// always carry a fraction or exponent so they do not come back as Int.
func Format(v builtins.Value) string {
	f, ok := v.(float64)
	if !ok {
		if v == nil {
			return "~"
		}
		return builtins.Inspect(v)
	}
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
