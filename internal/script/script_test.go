package script

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/funvibe/glitteral/internal/builtins"
	"github.com/funvibe/glitteral/internal/journal"
)

// TestGolden runs every testdata/*.txtar archive. Each archive carries
// script.yaml, the expected stdout, and the expected failures as
// "index: problem" lines.
func TestGolden(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("testdata", "*.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Fatal("no golden archives found")
	}

	for _, file := range files {
		t.Run(strings.TrimSuffix(filepath.Base(file), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(file)
			if err != nil {
				t.Fatal(err)
			}
			sections := make(map[string]string)
			for _, f := range ar.Files {
				sections[f.Name] = string(f.Data)
			}

			s, err := Parse([]byte(sections["script.yaml"]), file)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}

			var out bytes.Buffer
			report := Run(context.Background(), s, Options{Out: &out})

			if got, want := out.String(), sections["stdout"]; got != want {
				t.Errorf("stdout = %q, want %q", got, want)
			}

			var failures strings.Builder
			for _, st := range report.Failures() {
				fmt.Fprintf(&failures, "%d: %s\n", st.Index, st.Problem)
			}
			if got, want := failures.String(), sections["failures"]; got != want {
				t.Errorf("failures:\n%s\nwant:\n%s", got, want)
			}
		})
	}
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no steps", "name: empty\n", "no steps defined"},
		{"missing call", "steps:\n  - args: [1]\n", "call is required"},
		{"unknown builtin", "steps:\n  - call: frob\n", `unknown builtin "frob"`},
		{"unknown kind", "steps:\n  - call: add\n    error: Oops\n", `unknown error kind "Oops"`},
		{"error with bind", "steps:\n  - call: add\n    error: Overflow\n    bind: x\n", "cannot be combined"},
		{"bad bind", "steps:\n  - call: add\n    bind: $x\n", "invalid bind name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml), "t.yaml")
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err.Error(), tt.want)
			}
		})
	}
}

func TestUnknownBuiltinCanBeExpected(t *testing.T) {
	s, err := Parse([]byte("steps:\n  - call: frob\n    error: UnknownBuiltin\n"), "t.yaml")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if s.Name != "t.yaml" {
		t.Errorf("default name = %q, want t.yaml", s.Name)
	}
	if report := Run(context.Background(), s, Options{}); !report.Passed() {
		t.Errorf("failures: %+v", report.Failures())
	}
}

type memoryRecorder struct {
	entries []journal.Entry
}

func (m *memoryRecorder) Record(_ context.Context, e journal.Entry) error {
	m.entries = append(m.entries, e)
	return nil
}

func TestRunRecordsCalls(t *testing.T) {
	s, err := Parse([]byte(`
steps:
  - call: add
    args: [9223372036854775807, 1]
    error: Overflow
  - call: range
    args: [0, 2]
`), "t.yaml")
	if err != nil {
		t.Fatal(err)
	}

	rec := &memoryRecorder{}
	report := Run(context.Background(), s, Options{Overflow: builtins.OverflowFail, Recorder: rec})
	if !report.Passed() {
		t.Fatalf("failures: %+v", report.Failures())
	}
	if len(rec.entries) != 2 {
		t.Fatalf("recorded %d calls, want 2", len(rec.entries))
	}
	if rec.entries[0].ErrorKind != "Overflow" || rec.entries[1].Result != "[0, 1]" {
		t.Errorf("entries = %+v", rec.entries)
	}
	for _, e := range rec.entries {
		if e.Session != report.Session || e.Session == "" {
			t.Errorf("entry session %q, report session %q", e.Session, report.Session)
		}
	}
}

func TestRunBoundsRange(t *testing.T) {
	s, err := Parse([]byte(`
steps:
  - call: range
    args: [0, 1099511627776]
    error: LimitExceeded
  - call: range
    args: [0, 4]
    expect: [0, 1, 2, 3]
  - call: range
    args: [0, 5]
    error: LimitExceeded
`), "t.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if report := Run(context.Background(), s, Options{MaxRangeLen: 4}); !report.Passed() {
		t.Errorf("failures: %+v", report.Failures())
	}
}
