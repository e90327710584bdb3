package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/funvibe/glitteral/internal/builtins"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestNewEntry(t *testing.T) {
	start := time.Unix(100, 0)
	l := builtins.NewList[int64](1, 2, 3)

	ok := NewEntry("s1", "append", []builtins.Value{l, int64(3)}, l, nil, start, time.Millisecond)
	if ok.Args != "[[1, 2, 3], 3]" {
		t.Errorf("Args = %q", ok.Args)
	}
	if ok.Result != "[1, 2, 3]" || ok.Failed() {
		t.Errorf("Result = %q, failed = %v", ok.Result, ok.Failed())
	}
	if ok.ID == "" {
		t.Error("entry id should be generated")
	}

	_, err := builtins.Call(context.Background(), nil, "divide", int64(1), int64(0))
	bad := NewEntry("s1", "divide", []builtins.Value{int64(1), int64(0)}, nil, err, start, 0)
	if bad.ErrorKind != "DivisionByZero" || !bad.Failed() {
		t.Errorf("ErrorKind = %q", bad.ErrorKind)
	}
	if bad.Result != "" {
		t.Errorf("failed call should have no result, got %q", bad.Result)
	}
}

func TestRecordRecentStats(t *testing.T) {
	j := openTemp(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	calls := []struct {
		name string
		args []builtins.Value
	}{
		{"add", []builtins.Value{int64(1), int64(2)}},
		{"divide", []builtins.Value{int64(1), int64(0)}},
		{"add", []builtins.Value{2.5, 0.5}},
	}
	for i, c := range calls {
		result, err := builtins.Call(ctx, nil, c.name, c.args...)
		e := NewEntry("session", c.name, c.args, result, err, base.Add(time.Duration(i)*time.Second), time.Duration(i+1)*time.Microsecond)
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := j.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent(2) returned %d entries", len(recent))
	}
	if recent[0].Args != "[2.5, 0.5]" || recent[0].Result != "3.0" {
		t.Errorf("newest entry = %+v", recent[0])
	}
	if recent[1].ErrorKind != "DivisionByZero" {
		t.Errorf("second entry kind = %q", recent[1].ErrorKind)
	}
	if !recent[1].Started.Equal(base.Add(time.Second)) {
		t.Errorf("Started = %v", recent[1].Started)
	}

	stats, err := j.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := []Stat{
		{Name: "add", Calls: 2, Failures: 0, Total: 4 * time.Microsecond},
		{Name: "divide", Calls: 1, Failures: 1, Total: 2 * time.Microsecond},
	}
	if len(stats) != len(want) {
		t.Fatalf("Stats() = %+v", stats)
	}
	for i := range want {
		if stats[i] != want[i] {
			t.Errorf("Stats()[%d] = %+v, want %+v", i, stats[i], want[i])
		}
	}
}

func TestRecentRejectsNonPositive(t *testing.T) {
	j := openTemp(t)
	if _, err := j.Recent(context.Background(), 0); err == nil {
		t.Error("expected an error for n = 0")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "j.db")
	j, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := j.Record(context.Background(), Entry{Session: "s", Name: "length", Args: "[[]]", Result: "0", Started: time.Now()}); err != nil {
		t.Fatal(err)
	}
	_ = j.Close()

	j, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer j.Close()
	recent, err := j.Recent(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].Name != "length" || recent[0].ID == "" {
		t.Errorf("entries after reopen = %+v", recent)
	}
}
