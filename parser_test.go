package lunar

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, src string) S {
	t.Helper()
	ast, err := Parse(src)
	if err != nil {
		t.Fatalf("parse %q failed: %v", src, err)
	}
	return ast
}

func dump(n S) string {
	b, _ := json.Marshal(n)
	return string(b)
}

func wantEqual(t *testing.T, a, b string) {
	t.Helper()
	x, y := mustParse(t, a), mustParse(t, b)
	if !EqualS(x, y) {
		t.Fatalf("trees differ:\n  %q -> %s\n  %q -> %s", a, dump(x), b, dump(y))
	}
}

func TestParseDeterministic(t *testing.T) {
	src := "local a = 1\nwhile a < 10 do a = a + 1 end\nreturn a"
	first := dump(mustParse(t, src))
	for i := 0; i < 5; i++ {
		if got := dump(mustParse(t, src)); got != first {
			t.Fatalf("parse is not deterministic:\n%s\n%s", first, got)
		}
	}
}

func TestParseEmptyInput(t *testing.T) {
	ast := mustParse(t, "")
	if len(ast) != 1 || ast[0] != "block" {
		t.Fatalf("empty input should parse to an empty block, got %s", dump(ast))
	}
	ast = mustParse(t, "   -- just a comment\n")
	if len(ast) != 1 {
		t.Fatalf("comment-only input should parse to an empty block, got %s", dump(ast))
	}
}

func TestParseRedundantParensIrrelevant(t *testing.T) {
	wantEqual(t, "e(1 + 2 - 3 * 4 / 4)", "e(1 + 2 - ((3 * 4) / 4))")
	wantEqual(t, "return a or b and c", "return a or (b and c)")
}

func TestParsePrecedence(t *testing.T) {
	// informal shape checks via explicit parenthesization
	wantEqual(t, "return 1 + 2 * 3", "return 1 + (2 * 3)")
	wantEqual(t, "return 2 ^ 3 ^ 2", "return 2 ^ (3 ^ 2)")
	wantEqual(t, "return a .. b .. c", "return a .. (b .. c)")
	wantEqual(t, "return 1 + 2 < 3 * 4", "return (1 + 2) < (3 * 4)")
	wantEqual(t, "return -x ^ 2", "return -(x ^ 2)")
	wantEqual(t, "return 1 | 2 ~ 3 & 4", "return 1 | (2 ~ (3 & 4))")
	wantEqual(t, "return not a == b", "return (not a) == b")
	wantEqual(t, "return 1 << 2 + 3", "return 1 << (2 + 3)")
}

func TestParseTableSeparators(t *testing.T) {
	wantEqual(t, "t = {1, 2; 3,}", "t = {1, 2, 3}")
	wantEqual(t, "t = {a = 1; [2] = x,}", "t = {a = 1, [2] = x}")
}

func TestParseForNumDefaultStep(t *testing.T) {
	wantEqual(t, "for i = 1, 3 do end", "for i = 1, 3, 1 do end")
}

func TestParseCallSugar(t *testing.T) {
	wantEqual(t, `print "hi"`, `print("hi")`)
	wantEqual(t, "f{1, 2}", "f({1, 2})")
}

func TestParseMethodCallNode(t *testing.T) {
	ast := mustParse(t, "obj:m(1)")
	stmt := ast[1].(S)
	if stmt[0] != "method" {
		t.Fatalf("want method node, got %s", dump(stmt))
	}
	if stmt[2] != "m" {
		t.Fatalf("method name = %v", stmt[2])
	}
}

func TestParseFunctionStatementForms(t *testing.T) {
	// function a.b:c() prepends an implicit self parameter
	ast := mustParse(t, "function a.b:c(x) end")
	assign := ast[1].(S)
	if assign[0] != "assign" {
		t.Fatalf("want assign, got %s", dump(assign))
	}
	fn := assign[2].(S)[1].(S)
	params := fn[1].(S)
	if len(params) != 3 || params[1] != "self" || params[2] != "x" {
		t.Fatalf("params = %s", dump(params))
	}
}

func TestParseLocalAttribs(t *testing.T) {
	ast := mustParse(t, "local x <const> = 1, 2")
	names := ast[1].(S)[1].(S)
	name := names[1].(S)
	if name[1] != "x" || name[2] != "const" {
		t.Fatalf("names = %s", dump(names))
	}
	if _, err := Parse("local x <nope> = 1"); err == nil {
		t.Fatal("unknown attribute should fail")
	}
}

func TestParseMultipleAssignment(t *testing.T) {
	ast := mustParse(t, "a, b.c, d[1] = 1, 2, 3")
	assign := ast[1].(S)
	targets := assign[1].(S)
	if len(targets) != 4 {
		t.Fatalf("want 3 targets, got %s", dump(targets))
	}
	tags := []string{"id", "get", "idx"}
	for i, want := range tags {
		if got := targets[i+1].(S)[0]; got != want {
			t.Fatalf("target %d: got %v, want %v", i, got, want)
		}
	}
}

func TestParseReturnMustBeLast(t *testing.T) {
	if _, err := Parse("return 1\nlocal x = 2"); err == nil {
		t.Fatal("statement after return should fail")
	}
	// trailing semicolon after return is allowed
	mustParse(t, "do return 1; end")
}

func TestParseParenPreservedAroundCalls(t *testing.T) {
	withParen := mustParse(t, "return (f())")
	bare := mustParse(t, "return f()")
	if EqualS(withParen, bare) {
		t.Fatal("(f()) must not be structurally equal to f(): it truncates results")
	}
}

func TestParseGotoValidation(t *testing.T) {
	// backward jump is fine
	mustParse(t, "::top:: goto top")
	// label at end of block is reachable over a local
	mustParse(t, "do goto done local x = 1 ::done:: end")

	tests := []struct {
		src string
		sub string
	}{
		{"goto nowhere", "no visible label"},
		{"do goto skip local x = 1 ::skip:: x = 2 end", "scope of a local"},
		{"::a:: ::a::", "duplicate label"},
		{"do ::inner:: end goto inner", "no visible label"},
	}
	for _, tt := range tests {
		_, err := Parse(tt.src)
		if err == nil {
			t.Errorf("%q: expected error", tt.src)
			continue
		}
		var se *SyntaxError
		if !errors.As(err, &se) {
			t.Errorf("%q: want *SyntaxError, got %T", tt.src, err)
			continue
		}
		if !strings.Contains(se.Msg, tt.sub) {
			t.Errorf("%q: message %q should mention %q", tt.src, se.Msg, tt.sub)
		}
	}
}

func TestParseGotoAcrossFunctionBoundary(t *testing.T) {
	if _, err := Parse("::top:: local f = function() goto top end"); err == nil {
		t.Fatal("goto must not escape a function literal")
	}
}

func TestParseSyntaxErrorsAbort(t *testing.T) {
	bad := []string{
		"local = 1",
		"if x then",
		"f(1,",
		"return ]",
		"1 + 2", // an expression is not a statement
		"a.b",   // neither is a field access
	}
	for _, src := range bad {
		if _, err := Parse(src); err == nil {
			t.Errorf("%q: expected syntax error", src)
		}
	}
}

func TestParseInteractiveIncomplete(t *testing.T) {
	incomplete := []string{
		"if x then",
		"function f()",
		"local t = {",
		"while true do",
	}
	for _, src := range incomplete {
		_, err := ParseInteractive(src)
		if err == nil {
			t.Errorf("%q: expected error", src)
			continue
		}
		if !IsIncomplete(err) {
			t.Errorf("%q: error should be incomplete, got %v", src, err)
		}
	}

	// genuinely malformed input is NOT incomplete
	_, err := ParseInteractive("local = 1")
	if err == nil || IsIncomplete(err) {
		t.Errorf("malformed input must not read as incomplete: %v", err)
	}
}

func TestParseWithSpans(t *testing.T) {
	src := "local abc = 1 + 2"
	ast, spans, err := ParseWithSpans(src)
	if err != nil {
		t.Fatal(err)
	}
	// root block span covers the whole statement
	sp, ok := spans.Get(nil)
	if !ok {
		t.Fatal("no span recorded for root")
	}
	if got := src[sp.StartByte:sp.EndByte]; got != src {
		t.Errorf("root span = %q", got)
	}
	// the binop child: block -> local(0) -> explist(1) -> binop(0)
	sp, ok = spans.Get(NodePath{0, 1, 0})
	if !ok {
		t.Fatal("no span for initializer expression")
	}
	if got := src[sp.StartByte:sp.EndByte]; got != "1 + 2" {
		t.Errorf("initializer span = %q", got)
	}
	_ = ast
}

func TestEqualSIgnoresNothingStructural(t *testing.T) {
	a := mustParse(t, "return 1")
	b := mustParse(t, "return 1.0")
	if EqualS(a, b) {
		t.Fatal("int and float literals must differ structurally")
	}
	c := mustParse(t, "return   1")
	if !EqualS(a, c) {
		t.Fatal("whitespace must not affect structure")
	}
}
