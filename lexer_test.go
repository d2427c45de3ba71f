package lunar

import (
	"errors"
	"testing"
)

func mustScan(t *testing.T, src string) []Token {
	t.Helper()
	toks, err := NewLexer(src).Scan()
	if err != nil {
		t.Fatalf("scan %q failed: %v", src, err)
	}
	return toks
}

func tokenTypes(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, tk := range toks {
		out[i] = tk.Type
	}
	return out
}

func TestScanBasicStatement(t *testing.T) {
	toks := mustScan(t, "local x = 42")
	want := []TokenType{LOCAL, NAME, ASSIGN, INT, EOF}
	got := tokenTypes(toks)
	if len(got) != len(want) {
		t.Fatalf("got %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
	if toks[1].Literal != "x" {
		t.Errorf("name literal = %v, want x", toks[1].Literal)
	}
	if toks[3].Literal != int64(42) {
		t.Errorf("int literal = %v, want 42", toks[3].Literal)
	}
}

func TestScanNumbers(t *testing.T) {
	tests := []struct {
		src  string
		typ  TokenType
		want any
	}{
		{"0", INT, int64(0)},
		{"42", INT, int64(42)},
		{"0xff", INT, int64(255)},
		{"0XAB", INT, int64(171)},
		{"3.14", FLOAT, 3.14},
		{"1e3", FLOAT, 1000.0},
		{"2.5e-1", FLOAT, 0.25},
		{".5", FLOAT, 0.5},
		{"0x1p4", FLOAT, 16.0},
	}
	for _, tt := range tests {
		toks := mustScan(t, tt.src)
		if toks[0].Type != tt.typ {
			t.Errorf("%q: type = %v, want %v", tt.src, toks[0].Type, tt.typ)
			continue
		}
		if toks[0].Literal != tt.want {
			t.Errorf("%q: literal = %v, want %v", tt.src, toks[0].Literal, tt.want)
		}
	}
}

func TestScanStrings(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{`"hello"`, "hello"},
		{`'single'`, "single"},
		{`"a\tb"`, "a\tb"},
		{`"\x41\x42"`, "AB"},
		{`"\65\66\67"`, "ABC"},
		{`"\u{48}\u{49}"`, "HI"},
		{`"line\nnext"`, "line\nnext"},
		{"[[raw ]=] text]]", "raw ]=] text"},
		{"[==[deep ]] inside]==]", "deep ]] inside"},
		{"[[\nskips first newline]]", "skips first newline"},
	}
	for _, tt := range tests {
		toks := mustScan(t, tt.src)
		if toks[0].Type != STRING {
			t.Errorf("%q: type = %v, want STRING", tt.src, toks[0].Type)
			continue
		}
		if toks[0].Literal != tt.want {
			t.Errorf("%q: literal = %q, want %q", tt.src, toks[0].Literal, tt.want)
		}
	}
}

func TestScanSkipsComments(t *testing.T) {
	toks := mustScan(t, "a -- line comment\n--[[ block\ncomment ]] b")
	got := tokenTypes(toks)
	want := []TokenType{NAME, NAME, EOF}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestScanOperators(t *testing.T) {
	toks := mustScan(t, "<< >> // == ~= <= >= :: ... .. # & ~ |")
	want := []TokenType{SHL, SHR, DSLASH, EQ, NEQ, LE, GE, DBCOLON, ELLIPSIS, CONCAT, HASH, AMP, TILDE, PIPE, EOF}
	got := tokenTypes(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestScanDotDisambiguation(t *testing.T) {
	toks := mustScan(t, "a.b a..b ...")
	want := []TokenType{NAME, DOT, NAME, NAME, CONCAT, NAME, ELLIPSIS, EOF}
	got := tokenTypes(toks)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("token %d: got %v, want %v (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestScanUnterminatedString(t *testing.T) {
	_, err := NewLexer(`"never closed`).Scan()
	var le *LexError
	if !errors.As(err, &le) {
		t.Fatalf("want *LexError, got %v", err)
	}
	if le.Incomplete {
		t.Errorf("non-interactive scan should not flag Incomplete")
	}
}

func TestScanInteractiveIncomplete(t *testing.T) {
	_, err := NewLexerInteractive("[[still open").Scan()
	if !IsIncomplete(err) {
		t.Fatalf("want incomplete error, got %v", err)
	}
}

func TestScanHugeIntegerBecomesFloat(t *testing.T) {
	toks := mustScan(t, "99999999999999999999")
	if toks[0].Type != FLOAT {
		t.Fatalf("overflowing integer should degrade to FLOAT, got %v", toks[0].Type)
	}
}
