package lunar

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func testLoaderInterp() *Interpreter {
	return NewInterpreter(
		WithStdout(io.Discard),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestLoadScriptsInOrder(t *testing.T) {
	in := testLoaderInterp()
	records := []LoadRecord{
		{Name: "first", Source: "order = (order or '') .. 'a'"},
		{Name: "second", Source: "order = order .. 'b'"},
		{Name: "third", Source: "order = order .. 'c'"},
	}
	results, err := in.LoadScripts(context.Background(), records)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results", len(results))
	}
	if v := in.Global("order"); !Equal(v, Str("abc")) {
		t.Fatalf("order = %v, want abc", v)
	}
}

func TestLoadScriptsIsolatesFailures(t *testing.T) {
	in := testLoaderInterp()
	records := []LoadRecord{
		{Name: "good", Source: "a = 1"},
		{Name: "syntax", Source: "local = broken"},
		{Name: "runtime", Source: "return nil + 1"},
		{Name: "alsoGood", Source: "b = 2"},
	}
	results, err := in.LoadScripts(context.Background(), records)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 4 {
		t.Fatalf("got %d results", len(results))
	}
	if results[1].Err == nil || results[2].Err == nil {
		t.Fatal("broken scripts should report errors")
	}
	if results[0].Err != nil || results[3].Err != nil {
		t.Fatal("healthy scripts should not be affected")
	}
	if !Equal(in.Global("b"), Int(2)) {
		t.Fatal("later scripts must still run after a failure")
	}
}

func TestLoadScriptsStopsOnCancellation(t *testing.T) {
	in := testLoaderInterp()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := in.LoadScripts(ctx, []LoadRecord{{Name: "never", Source: "x = 1"}})
	if err == nil {
		t.Fatal("canceled context should stop the run")
	}
	if len(results) != 0 {
		t.Fatalf("nothing should have run, got %d results", len(results))
	}
}

func TestLoadScriptsReturnValues(t *testing.T) {
	in := testLoaderInterp()
	results, err := in.LoadScripts(context.Background(), []LoadRecord{
		{Name: "r", Source: "return 1, 'two'"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(results[0].Vals) != 2 || !Equal(results[0].Vals[1], Str("two")) {
		t.Fatalf("vals = %v", results[0].Vals)
	}
}
