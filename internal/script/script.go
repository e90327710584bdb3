// Package script runs YAML call scripts against the builtin table. A script
// is a flat list of calls with optional expectations, which makes it usable
// both as a scratchpad and as a conformance suite for the builtins.
//
//	name: containers
//	stdin: "line one\n"
//	steps:
//	  - call: range
//	    args: [3, 7]
//	    bind: xs
//	  - call: append
//	    args: [$xs, 7]
//	  - call: println_container
//	    args: [$xs]
//	    output: "[3, 4, 5, 6, 7]\n"
//	  - call: divide
//	    args: [1, 0]
//	    error: DivisionByZero
package script

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/glitteral/internal/builtins"
)

// Script is a parsed call script.
type Script struct {
	Name  string `yaml:"name"`
	Stdin string `yaml:"stdin,omitempty"`
	Steps []Step `yaml:"steps"`

	path string
}

// Step is one builtin call.
type Step struct {
	Call string      `yaml:"call"`
	Args []yaml.Node `yaml:"args,omitempty"`

	// Bind names the result so later steps can pass it as $name.
	Bind string `yaml:"bind,omitempty"`

	// Expect is compared structurally with the result. Absent means any
	// successful result passes; ~ expects nil.
	Expect yaml.Node `yaml:"expect,omitempty"`

	// Error is the expected failure kind, e.g. KeyNotFound.
	Error string `yaml:"error,omitempty"`

	// Output is the exact text the step must write to standard output.
	Output *string `yaml:"output,omitempty"`
}

// HasExpect reports whether the step states an expected result.
func (st *Step) HasExpect() bool { return st.Expect.Kind != 0 }

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading script %s: %w", path, err)
	}
	return Parse(data, path)
}

// Parse parses script content. The path is used for messages and as the
// default name.
func Parse(data []byte, path string) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	s.path = path
	if err := s.validate(); err != nil {
		return nil, err
	}
	if s.Name == "" {
		s.Name = path
	}
	return &s, nil
}

func (s *Script) validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("%s: no steps defined", s.path)
	}
	for i, st := range s.Steps {
		if st.Call == "" {
			return fmt.Errorf("%s: steps[%d]: call is required", s.path, i)
		}
		if _, ok := builtins.Lookup(st.Call); !ok && st.Error != builtins.KindUnknownBuiltin.String() {
			return fmt.Errorf("%s: steps[%d]: unknown builtin %q", s.path, i, st.Call)
		}
		if st.Error != "" {
			if _, ok := builtins.ParseKind(st.Error); !ok {
				return fmt.Errorf("%s: steps[%d]: unknown error kind %q", s.path, i, st.Error)
			}
			if st.HasExpect() || st.Bind != "" {
				return fmt.Errorf("%s: steps[%d]: error cannot be combined with expect or bind", s.path, i)
			}
		}
		if strings.HasPrefix(st.Bind, "$") || strings.ContainsAny(st.Bind, " \t") {
			return fmt.Errorf("%s: steps[%d]: invalid bind name %q", s.path, i, st.Bind)
		}
	}
	return nil
}
