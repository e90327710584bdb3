package builtins

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"
)

// OverflowPolicy selects how integer arithmetic reacts to overflow.
type OverflowPolicy int

const (
	OverflowWrap OverflowPolicy = iota
	OverflowFail
)

func (p OverflowPolicy) String() string {
	if p == OverflowFail {
		return "fail"
	}
	return "wrap"
}

// ParseOverflowPolicy accepts "wrap" or "fail".
func ParseOverflowPolicy(s string) (OverflowPolicy, error) {
	switch strings.ToLower(s) {
	case "", "wrap":
		return OverflowWrap, nil
	case "fail":
		return OverflowFail, nil
	}
	return OverflowWrap, fmt.Errorf("unknown overflow policy %q (want wrap or fail)", s)
}

// Env holds the process resources the environment builtins touch. A host
// running several interpreters concurrently gives each its own Env. The zero
// Env is usable: no input, discarded output, the wall clock.
type Env struct {
	In       *bufio.Reader
	Out      io.Writer
	Now      func() time.Time
	Overflow OverflowPolicy

	// MaxRangeLen bounds the lists range may build; 0 means no bound.
	MaxRangeLen int64
}

// stdinReader is shared so that buffered input is not lost between Envs
// built over os.Stdin.
var (
	stdinReader     *bufio.Reader
	stdinReaderOnce sync.Once
)

func getStdinReader() *bufio.Reader {
	stdinReaderOnce.Do(func() {
		stdinReader = bufio.NewReader(os.Stdin)
	})
	return stdinReader
}

// DefaultEnv binds the process's standard streams and wall clock.
func DefaultEnv() *Env {
	return &Env{
		In:  getStdinReader(),
		Out: os.Stdout,
		Now: time.Now,
	}
}

// NewEnv binds the given streams. A nil reader behaves as closed input.
func NewEnv(in io.Reader, out io.Writer) *Env {
	if in == nil {
		in = strings.NewReader("")
	}
	if out == nil {
		out = io.Discard
	}
	return &Env{
		In:  bufio.NewReader(in),
		Out: out,
		Now: time.Now,
	}
}

func (env *Env) write(op, s string) error {
	if env.Out == nil {
		return nil
	}
	if _, err := io.WriteString(env.Out, s); err != nil {
		return wrapError(KindIOFailure, op, err, "write to standard output failed")
	}
	return nil
}

func (env *Env) Print(v Value) error {
	return env.write("print", Display(v))
}

func (env *Env) Println(v Value) error {
	return env.write("println", Display(v)+"\n")
}

func (env *Env) PrintInteger(n int64) error {
	return env.write("print_integer", strconv.FormatInt(n, 10)+"\n")
}

func (env *Env) PrintlnContainer(l *IntList) error {
	return env.write("println_container", inspectList(l)+"\n")
}

// Input reads one line and strips trailing whitespace. A final line without
// a newline is returned as is; end of input with nothing read is a failure.
func (env *Env) Input() (string, error) {
	if env.In == nil {
		return "", newError(KindIOFailure, "input", "standard input is closed")
	}
	line, err := env.In.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", newError(KindIOFailure, "input", "standard input is closed")
		}
		return "", wrapError(KindIOFailure, "input", err, "reading standard input failed")
	}
	return strings.TrimRightFunc(line, unicode.IsSpace), nil
}

// Sleep blocks for roughly seconds seconds, or until ctx is done.
func (env *Env) Sleep(ctx context.Context, seconds float64) error {
	if !(seconds > 0) {
		return nil
	}
	d := time.Duration(seconds * float64(time.Second))
	if seconds >= math.MaxInt64/float64(time.Second) {
		d = time.Duration(math.MaxInt64)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return wrapError(KindInterrupted, "sleep", ctx.Err(), "sleep interrupted")
	}
}

// CurrentTime returns wall-clock seconds since the Unix epoch.
func (env *Env) CurrentTime() float64 {
	now := env.Now
	if now == nil {
		now = time.Now
	}
	return float64(now().UnixNano()) / float64(time.Second)
}

// ParseFloat parses a decimal or special (inf, nan) literal. Literals beyond
// float64 range yield an infinity rather than an error.
func ParseFloat(text string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return f, nil
		}
		return 0, newError(KindParseError, "parse_float", "invalid float literal %q", text)
	}
	return f, nil
}
