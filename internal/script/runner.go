package script

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/funvibe/glitteral/internal/builtins"
	"github.com/funvibe/glitteral/internal/config"
	"github.com/funvibe/glitteral/internal/journal"
	"github.com/funvibe/glitteral/internal/literal"
)

// Recorder receives every executed call.
type Recorder interface {
	Record(ctx context.Context, e journal.Entry) error
}

// Options configure a run.
type Options struct {
	// Out receives everything the script prints, as it is printed.
	Out io.Writer
	// Overflow is applied to the run's Env.
	Overflow builtins.OverflowPolicy
	// MaxRangeLen bounds range; 0 means config.DefaultMaxRangeLen.
	MaxRangeLen int64
	// Recorder, if set, journals each call. Recording failures are logged
	// and do not fail the step.
	Recorder Recorder
}

// StepResult is the outcome of one step.
type StepResult struct {
	Index   int
	Call    string
	Value   builtins.Value
	Err     error
	Output  string
	Problem string // empty when the step met its expectations
}

func (r StepResult) Passed() bool { return r.Problem == "" }

// Report collects the results of a run.
type Report struct {
	Script  string
	Session string
	Steps   []StepResult
}

// Failures returns the steps that did not pass.
func (r *Report) Failures() []StepResult {
	var failed []StepResult
	for _, st := range r.Steps {
		if !st.Passed() {
			failed = append(failed, st)
		}
	}
	return failed
}

func (r *Report) Passed() bool { return len(r.Failures()) == 0 }

// Run executes every step in order. A failing step does not stop the run;
// a step whose arguments refer to a failed binding fails in turn.
func Run(ctx context.Context, s *Script, opts Options) *Report {
	var captured bytes.Buffer
	var out io.Writer = &captured
	if opts.Out != nil {
		out = io.MultiWriter(&captured, opts.Out)
	}
	env := builtins.NewEnv(strings.NewReader(s.Stdin), out)
	env.Overflow = opts.Overflow
	env.MaxRangeLen = opts.MaxRangeLen
	if env.MaxRangeLen == 0 {
		env.MaxRangeLen = config.DefaultMaxRangeLen
	}

	report := &Report{Script: s.Name, Session: uuid.NewString()}
	bindings := make(map[string]builtins.Value)

	for i, st := range s.Steps {
		res := StepResult{Index: i, Call: st.Call}

		args, err := resolveArgs(st.Args, bindings)
		if err != nil {
			res.Err = err
			res.Problem = err.Error()
			report.Steps = append(report.Steps, res)
			continue
		}

		mark := captured.Len()
		started := time.Now()
		res.Value, res.Err = builtins.Call(ctx, env, st.Call, args...)
		elapsed := time.Since(started)
		res.Output = captured.String()[mark:]

		if opts.Recorder != nil {
			e := journal.NewEntry(report.Session, st.Call, args, res.Value, res.Err, started, elapsed)
			if err := opts.Recorder.Record(ctx, e); err != nil {
				log.Printf("journal: %v", err)
			}
		}

		res.Problem = check(st, res)
		if res.Err == nil && st.Bind != "" {
			bindings[st.Bind] = res.Value
		}
		report.Steps = append(report.Steps, res)
	}
	return report
}

func resolveArgs(nodes []yaml.Node, bindings map[string]builtins.Value) ([]builtins.Value, error) {
	args := make([]builtins.Value, 0, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		if n.Kind == yaml.ScalarNode && n.Style == 0 && strings.HasPrefix(n.Value, "$") {
			name := n.Value[1:]
			v, ok := bindings[name]
			if !ok {
				return nil, fmt.Errorf("argument %d: %s is not bound", i+1, n.Value)
			}
			args = append(args, v)
			continue
		}
		v, err := literal.FromNode(n)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		args = append(args, v)
	}
	return args, nil
}

func check(st Step, res StepResult) string {
	if st.Error != "" {
		if res.Err == nil {
			return fmt.Sprintf("expected %s, got %s", st.Error, literal.Format(res.Value))
		}
		if got := builtins.KindOf(res.Err).String(); got != st.Error {
			return fmt.Sprintf("expected %s, got %s (%v)", st.Error, got, res.Err)
		}
	} else if res.Err != nil {
		return fmt.Sprintf("unexpected failure: %v", res.Err)
	}

	if st.HasExpect() {
		want, err := literal.FromNode(&st.Expect)
		if err != nil {
			return fmt.Sprintf("bad expectation: %v", err)
		}
		if !builtins.Equivalent(res.Value, want) {
			return fmt.Sprintf("expected %s, got %s", literal.Format(want), literal.Format(res.Value))
		}
	}

	if st.Output != nil && *st.Output != res.Output {
		return fmt.Sprintf("expected output %q, got %q", *st.Output, res.Output)
	}
	return ""
}
