package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"google.golang.org/protobuf/encoding/protojson"

	"github.com/funvibe/glitteral/internal/builtins"
	"github.com/funvibe/glitteral/internal/config"
	"github.com/funvibe/glitteral/internal/journal"
	"github.com/funvibe/glitteral/internal/literal"
	"github.com/funvibe/glitteral/internal/rpc"
	"github.com/funvibe/glitteral/internal/script"
)

// hostFlags are consumed by the CLI itself and may appear anywhere before a
// "--" on the command line, as --name value or --name=value.
var hostFlags = []string{"config", "journal", "overflow", "listen", "color", "max-range"}

// familyOrder is the listing order of builtin families.
var familyOrder = []string{
	config.FamilyArithmetic,
	config.FamilyLogical,
	config.FamilyContainer,
	config.FamilyEnvironment,
}

const defaultRecent = 10

type app struct {
	ctx    context.Context
	args   []string // os.Args shape with host flags removed
	flags  map[string]string
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	settings *config.Settings
	policy   builtins.OverflowPolicy
	code     int
}

// Run is the glitteral entry point.
func Run() {
	os.Exit(Main(os.Args, os.Stdin, os.Stdout, os.Stderr))
}

// Main runs one command line and returns the process exit code.
func Main(args []string, stdin io.Reader, stdout, stderr io.Writer) (code int) {
	// Catch panics and show user-friendly error
	defer func() {
		if r := recover(); r != nil {
			if os.Getenv("DEBUG") == "1" {
				panic(r)
			}
			fmt.Fprintf(stderr, "Internal error: %v\n", r)
			fmt.Fprintln(stderr, "This is a bug. Please report it.")
			code = 1
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{ctx: ctx, stdin: stdin, stdout: stdout, stderr: stderr}
	if err := a.parseFlags(args); err != nil {
		a.fail(err)
		return a.code
	}
	if err := a.loadSettings(); err != nil {
		a.fail(err)
		return a.code
	}

	handlers := []func() bool{
		a.handleVersion,
		a.handleHelp,
		a.handleCall,
		a.handleList,
		a.handleRun,
		a.handleServe,
		a.handleRemote,
		a.handleJournal,
		a.handleDescribe,
	}
	for _, h := range handlers {
		if h() {
			return a.code
		}
	}

	if len(a.args) < 2 {
		fmt.Fprint(a.stdout, usage)
		return 0
	}
	fmt.Fprintf(a.stderr, "Error: unknown command %q\n\n", a.args[1])
	fmt.Fprint(a.stderr, usage)
	return 1
}

func (a *app) parseFlags(args []string) error {
	a.flags = make(map[string]string)
	if len(args) == 0 {
		args = []string{"glitteral"}
	}
	a.args = []string{args[0]}
	for i := 1; i < len(args); i++ {
		if args[i] == "--" {
			a.args = append(a.args, args[i+1:]...)
			break
		}
		name, value, hasValue := splitFlag(args[i])
		if name == "" {
			a.args = append(a.args, args[i])
			continue
		}
		if !hasValue {
			if i+1 >= len(args) {
				return fmt.Errorf("flag --%s needs a value", name)
			}
			i++
			value = args[i]
		}
		a.flags[name] = value
	}
	return nil
}

// splitFlag recognizes a host flag. Anything else, including negative
// numbers such as -3, is left for the command.
func splitFlag(arg string) (name, value string, hasValue bool) {
	trimmed := strings.TrimLeft(arg, "-")
	if dashes := len(arg) - len(trimmed); dashes == 0 || dashes > 2 {
		return "", "", false
	}
	name, value, hasValue = strings.Cut(trimmed, "=")
	for _, f := range hostFlags {
		if f == name {
			return name, value, hasValue
		}
	}
	return "", "", false
}

func (a *app) loadSettings() error {
	path := a.flags["config"]
	if path == "" {
		if wd, err := os.Getwd(); err == nil {
			if path, err = config.FindSettings(wd); err != nil {
				return err
			}
		}
	}

	a.settings = config.DefaultSettings()
	if path != "" {
		s, err := config.LoadSettings(path)
		if err != nil {
			return err
		}
		a.settings = s
	}

	override := config.Settings{
		Overflow: a.flags["overflow"],
		Color:    a.flags["color"],
		Listen:   a.flags["listen"],
		Journal:  a.flags["journal"],
	}
	if v, ok := a.flags["max-range"]; ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return fmt.Errorf("--max-range must be a positive integer, got %q", v)
		}
		override.MaxRange = n
	}
	err := a.settings.Merge(override, "command line")
	if err != nil {
		return err
	}
	a.policy, err = builtins.ParseOverflowPolicy(a.settings.Overflow)
	return err
}

// command reports whether the first argument names cmd.
func (a *app) command(names ...string) bool {
	if len(a.args) < 2 {
		return false
	}
	for _, n := range names {
		if a.args[1] == n {
			return true
		}
	}
	return false
}

func (a *app) fail(err error) bool {
	fmt.Fprintf(a.stderr, "Error: %s\n", err)
	a.code = 1
	return true
}

func (a *app) usageError(synopsis string) bool {
	fmt.Fprintf(a.stderr, "Usage: glitteral %s\n", synopsis)
	a.code = 1
	return true
}

// callFailed reports a builtin failure with its kind.
func (a *app) callFailed(err error) bool {
	fmt.Fprintf(a.stderr, "Error [%s]: %s\n", builtins.KindOf(err), err)
	a.code = 1
	return true
}

func (a *app) printResult(v builtins.Value) {
	if v != nil {
		fmt.Fprintln(a.stdout, literal.Format(v))
	}
}

// openJournal returns nil when no journal is configured.
func (a *app) openJournal() (*journal.Journal, error) {
	if a.settings.Journal == "" {
		return nil, nil
	}
	return journal.Open(a.settings.Journal)
}

func (a *app) useColor() bool {
	switch a.settings.Color {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := a.stdout.(*os.File)
	if !ok {
		return false
	}
	if !isatty.IsTerminal(f.Fd()) && !isatty.IsCygwinTerminal(f.Fd()) {
		return false
	}
	return os.Getenv("TERM") != "dumb"
}

func (a *app) handleVersion() bool {
	if !a.command("version", "-v", "-version", "--version") {
		return false
	}
	fmt.Fprintln(a.stdout, "glitteral "+config.Version)
	return true
}

func (a *app) handleHelp() bool {
	if !a.command("help", "-help", "--help", "-h") {
		return false
	}
	if len(a.args) == 2 {
		fmt.Fprint(a.stdout, usage)
		return true
	}
	name := a.args[2]
	b, ok := builtins.Lookup(name)
	if !ok {
		return a.fail(fmt.Errorf("no builtin named %q", name))
	}
	fmt.Fprintf(a.stdout, "%s %s\n", b.Name, b.Signature)
	fmt.Fprintf(a.stdout, "  family: %s\n", b.Family)
	fmt.Fprintf(a.stdout, "  arity:  %d\n", b.Arity)
	if aliases := aliasesOf(b.Name); len(aliases) > 0 {
		fmt.Fprintf(a.stdout, "  alias:  %s\n", strings.Join(aliases, " "))
	}
	return true
}

func aliasesOf(name string) []string {
	var out []string
	for alias, target := range builtins.Aliases {
		if target == name {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// handleCall handles: glitteral call <name> [literal...]
func (a *app) handleCall() bool {
	if !a.command("call") {
		return false
	}
	if len(a.args) < 3 {
		return a.usageError("call <name> [literal...]")
	}
	name := a.args[2]
	args, err := literal.ParseAll(a.args[3:])
	if err != nil {
		return a.fail(err)
	}

	j, err := a.openJournal()
	if err != nil {
		return a.fail(err)
	}
	if j != nil {
		defer j.Close()
	}

	env := builtins.NewEnv(a.stdin, a.stdout)
	env.Overflow = a.policy
	env.MaxRangeLen = a.settings.MaxRange
	started := time.Now()
	result, callErr := builtins.Call(a.ctx, env, name, args...)
	elapsed := time.Since(started)

	if j != nil {
		e := journal.NewEntry(uuid.NewString(), name, args, result, callErr, started, elapsed)
		if err := j.Record(a.ctx, e); err != nil {
			fmt.Fprintf(a.stderr, "Warning: %s\n", err)
		}
	}
	if callErr != nil {
		return a.callFailed(callErr)
	}
	a.printResult(result)
	return true
}

// handleList handles: glitteral list
func (a *app) handleList() bool {
	if !a.command("list") {
		return false
	}
	bold, cyan, reset := "", "", ""
	if a.useColor() {
		bold, cyan, reset = "\033[1m", "\033[36m", "\033[0m"
	}

	groups := builtins.ByFamily()
	for i, family := range familyOrder {
		if i > 0 {
			fmt.Fprintln(a.stdout)
		}
		fmt.Fprintf(a.stdout, "%s%s%s\n", bold, family, reset)
		for _, name := range groups[family] {
			b := builtins.Builtins[name]
			fmt.Fprintf(a.stdout, "  %s%-26s%s %s\n", cyan, name, reset, b.Signature)
		}
	}

	aliases := make([]string, 0, len(builtins.Aliases))
	for alias := range builtins.Aliases {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	fmt.Fprintf(a.stdout, "\n%saliases%s\n", bold, reset)
	for _, alias := range aliases {
		fmt.Fprintf(a.stdout, "  %s%-26s%s -> %s\n", cyan, alias, reset, builtins.Aliases[alias])
	}
	return true
}

// handleRun handles: glitteral run <script.yaml|dir>...
func (a *app) handleRun() bool {
	if !a.command("run") {
		return false
	}
	if len(a.args) < 3 {
		return a.usageError("run <script.yaml|dir>...")
	}
	paths, err := collectScripts(a.args[2:])
	if err != nil {
		return a.fail(err)
	}
	if len(paths) == 0 {
		return a.fail(fmt.Errorf("no scripts found"))
	}

	j, err := a.openJournal()
	if err != nil {
		return a.fail(err)
	}
	opts := script.Options{Overflow: a.policy, MaxRangeLen: a.settings.MaxRange}
	if j != nil {
		defer j.Close()
		opts.Recorder = j
	}

	failed := 0
	for _, path := range paths {
		s, err := script.Load(path)
		if err != nil {
			fmt.Fprintf(a.stdout, "FAIL %s\n    %s\n", path, err)
			failed++
			continue
		}
		report := script.Run(a.ctx, s, opts)
		if report.Passed() {
			fmt.Fprintf(a.stdout, "ok   %s (%d steps)\n", report.Script, len(report.Steps))
			continue
		}
		failed++
		fmt.Fprintf(a.stdout, "FAIL %s (session %s)\n", report.Script, report.Session)
		for _, st := range report.Failures() {
			fmt.Fprintf(a.stdout, "    step %d %s: %s\n", st.Index, st.Call, st.Problem)
		}
	}
	if failed > 0 {
		fmt.Fprintf(a.stdout, "%d of %d scripts failed\n", failed, len(paths))
		a.code = 1
	}
	return true
}

// collectScripts expands directories into the script files they contain.
func collectScripts(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && isScriptFile(e.Name()) {
				paths = append(paths, filepath.Join(arg, e.Name()))
			}
		}
	}
	return paths, nil
}

func isScriptFile(path string) bool {
	for _, ext := range config.ScriptFileExtensions {
		if strings.HasSuffix(path, ext) && filepath.Base(path) != config.ConfigFileName {
			return true
		}
	}
	return false
}

// handleServe handles: glitteral serve [--listen addr]
func (a *app) handleServe() bool {
	if !a.command("serve") {
		return false
	}
	j, err := a.openJournal()
	if err != nil {
		return a.fail(err)
	}
	opts := rpc.ServerOptions{Overflow: a.policy, MaxRangeLen: a.settings.MaxRange}
	if j != nil {
		defer j.Close()
		opts.Recorder = j
	}

	srv, err := rpc.NewServer(opts)
	if err != nil {
		return a.fail(err)
	}
	go func() {
		<-a.ctx.Done()
		srv.Stop()
	}()
	if err := srv.ListenAndServe(a.settings.Listen); err != nil {
		return a.fail(err)
	}
	return true
}

// handleRemote handles: glitteral remote <addr> <name|list> [literal...]
func (a *app) handleRemote() bool {
	if !a.command("remote") {
		return false
	}
	if len(a.args) < 4 {
		return a.usageError("remote <addr> <name|list> [literal...]")
	}
	client, err := rpc.Dial(a.args[2])
	if err != nil {
		return a.fail(err)
	}
	defer client.Close()

	name := a.args[3]
	if name == "list" {
		infos, err := client.List(a.ctx)
		if err != nil {
			return a.fail(err)
		}
		for _, info := range infos {
			fmt.Fprintf(a.stdout, "%-26s %-12s %s\n", info.Name, info.Family, info.Signature)
		}
		return true
	}

	args, err := literal.ParseAll(a.args[4:])
	if err != nil {
		return a.fail(err)
	}
	resp, err := client.Call(a.ctx, rpc.Request{
		Name:     name,
		Args:     args,
		Overflow: a.flags["overflow"],
	})
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprint(a.stdout, resp.Output)
	if resp.Err != nil {
		return a.callFailed(resp.Err)
	}
	a.printResult(resp.Value)
	return true
}

// handleJournal handles: glitteral journal [stats | recent [N]]
func (a *app) handleJournal() bool {
	if !a.command("journal") {
		return false
	}
	if a.settings.Journal == "" {
		return a.fail(fmt.Errorf("no journal configured; pass --journal or set journal in %s", config.ConfigFileName))
	}
	j, err := a.openJournal()
	if err != nil {
		return a.fail(err)
	}
	defer j.Close()

	sub := "stats"
	if len(a.args) > 2 {
		sub = a.args[2]
	}
	switch sub {
	case "stats":
		stats, err := j.Stats(a.ctx)
		if err != nil {
			return a.fail(err)
		}
		for _, s := range stats {
			fmt.Fprintf(a.stdout, "%-26s %6d calls %6d failed %12s\n", s.Name, s.Calls, s.Failures, s.Total)
		}
	case "recent":
		n := defaultRecent
		if len(a.args) > 3 {
			if n, err = strconv.Atoi(a.args[3]); err != nil {
				return a.usageError("journal recent [N]")
			}
		}
		entries, err := j.Recent(a.ctx, n)
		if err != nil {
			return a.fail(err)
		}
		for _, e := range entries {
			outcome := e.Result
			if e.Failed() {
				outcome = e.ErrorKind + ": " + e.Error
			}
			fmt.Fprintf(a.stdout, "%s %s %s -> %s (%s)\n",
				e.Started.Format(time.RFC3339), e.Name, e.Args, outcome, e.Duration)
		}
	default:
		return a.usageError("journal [stats | recent [N]]")
	}
	return true
}

// handleDescribe handles: glitteral describe
func (a *app) handleDescribe() bool {
	if !a.command("describe") {
		return false
	}
	d, err := rpc.LoadDescriptors()
	if err != nil {
		return a.fail(err)
	}
	data, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(d.DescriptorSet())
	if err != nil {
		return a.fail(err)
	}
	fmt.Fprintf(a.stdout, "%s\n", data)
	return true
}

const usage = `Usage: glitteral <command> [arguments] [flags]

Commands:
  call <name> [literal...]         call one builtin; arguments are YAML literals
  list                             list builtins by family, and their aliases
  help [name]                      show this text or describe one builtin
  run <script.yaml|dir>...         run call scripts and check their expectations
  serve                            host the builtins over gRPC
  remote <addr> <name> [literal...]
                                   call a builtin on a running server
  remote <addr> list               list the builtins a server hosts
  journal [stats | recent [N]]     inspect recorded calls
  describe                         print the gRPC service descriptor as JSON
  version                          print the version

Flags:
  --config <file>     settings file (default: nearest glitteral.yaml)
  --journal <file>    record calls into this sqlite file
  --overflow <mode>   integer overflow: wrap or fail
  --listen <addr>     serve address
  --color <mode>      listing colors: auto, always or never
  --max-range <n>     longest list range may build
  --                  stop flag parsing; the rest are command arguments
`
