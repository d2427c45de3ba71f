// lexer.go — byte-driven scanner for Lunar source.
//
// The lexer turns a raw source string (a byte sequence; string literals may
// contain arbitrary bytes) into a flat []Token. Every token carries its
// 1-based line, 0-based column, and [StartByte, EndByte) interval so the
// parser can build the sidecar span index (see spans.go).
//
// Recognized syntax: the full Lua token set — keywords, names, decimal and
// hexadecimal integer/float literals (including hex floats with a binary
// 'p' exponent), short strings with the complete escape repertoire
// (\a \b \f \n \r \t \v \\ \" \' \<newline> \xXX \ddd \z \u{XXXX}),
// long-bracket strings [[...]] / [=[...]=], line and block comments, and
// the multi-character operators // == ~= <= >= << >> :: .. ... .
//
// Errors are *LexError{Line, Col, Msg}. In interactive mode (REPL), an
// unterminated string or long bracket at end-of-input is flagged
// Incomplete so the REPL can prompt for a continuation line instead of
// reporting a hard failure.
package lunar

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// TokenType represents the kind of token.
type TokenType int

const (
	// Special
	EOF TokenType = iota

	// Literals & identifiers
	NAME
	INT    // int64 literal
	FLOAT  // float64 literal
	STRING // decoded string literal (may hold raw bytes)

	// Punctuation
	LPAREN   // "("
	RPAREN   // ")"
	LBRACE   // "{"
	RBRACE   // "}"
	LBRACKET // "["
	RBRACKET // "]"
	SEMI     // ";"
	COLON    // ":"
	DBCOLON  // "::"
	COMMA    // ","
	DOT      // "."
	CONCAT   // ".."
	ELLIPSIS // "..."

	// Operators
	PLUS    // "+"
	MINUS   // "-"
	STAR    // "*"
	SLASH   // "/"
	DSLASH  // "//"
	PERCENT // "%"
	CARET   // "^"
	HASH    // "#"
	AMP     // "&"
	TILDE   // "~"
	PIPE    // "|"
	SHL     // "<<"
	SHR     // ">>"
	EQ      // "=="
	NEQ     // "~="
	LE      // "<="
	GE      // ">="
	LT      // "<"
	GT      // ">"
	ASSIGN  // "="

	// Keywords
	AND
	BREAK
	DO
	ELSE
	ELSEIF
	END
	FALSE
	FOR
	FUNCTION
	GOTO
	IF
	IN
	LOCAL
	NIL
	NOT
	OR
	REPEAT
	RETURN
	THEN
	TRUE
	UNTIL
	WHILE
)

// Token is a lexical token with optional literal value and byte interval.
type Token struct {
	Type      TokenType
	Lexeme    string // raw text slice
	Literal   any    // int64 / float64 / string for literal tokens
	Line      int    // 1-based
	Col       int    // 0-based
	StartByte int
	EndByte   int
}

var keywords = map[string]TokenType{
	"and":      AND,
	"break":    BREAK,
	"do":       DO,
	"else":     ELSE,
	"elseif":   ELSEIF,
	"end":      END,
	"false":    FALSE,
	"for":      FOR,
	"function": FUNCTION,
	"goto":     GOTO,
	"if":       IF,
	"in":       IN,
	"local":    LOCAL,
	"nil":      NIL,
	"not":      NOT,
	"or":       OR,
	"repeat":   REPEAT,
	"return":   RETURN,
	"then":     THEN,
	"true":     TRUE,
	"until":    UNTIL,
	"while":    WHILE,
}

// Lexer scans a Lunar source string into tokens.
type Lexer struct {
	src         string
	start       int // start index of current token
	cur         int // current index
	line        int // 1-based
	col         int // 0-based column within line
	tokens      []Token
	interactive bool

	// precise token start position
	tokStartLine int
	tokStartCol  int
}

// NewLexer creates a new lexer for the given source.
func NewLexer(src string) *Lexer {
	return &Lexer{src: src, line: 1}
}

// NewLexerInteractive creates a lexer whose end-of-input failures are
// flagged Incomplete (REPL continuation).
func NewLexerInteractive(src string) *Lexer {
	l := NewLexer(src)
	l.interactive = true
	return l
}

func (l *Lexer) isAtEnd() bool { return l.cur >= len(l.src) }

func (l *Lexer) peek() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	return l.src[l.cur], true
}

func (l *Lexer) peekN(n int) (byte, bool) {
	idx := l.cur + n
	if idx >= len(l.src) {
		return 0, false
	}
	return l.src[idx], true
}

func (l *Lexer) advance() (byte, bool) {
	if l.isAtEnd() {
		return 0, false
	}
	ch := l.src[l.cur]
	l.cur++
	if ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
	return ch, true
}

func (l *Lexer) addToken(tt TokenType, lit any) Token {
	tok := Token{
		Type:      tt,
		Lexeme:    l.src[l.start:l.cur],
		Literal:   lit,
		Line:      l.tokStartLine,
		Col:       l.tokStartCol,
		StartByte: l.start,
		EndByte:   l.cur,
	}
	l.tokens = append(l.tokens, tok)
	l.start = l.cur
	return tok
}

func (l *Lexer) skipWhitespace() {
	for !l.isAtEnd() {
		ch, _ := l.peek()
		switch ch {
		case ' ', '\r', '\n', '\t':
			l.advance()
			l.start = l.cur
		default:
			return
		}
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isHex(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}
func isAlpha(b byte) bool    { return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' }
func isAlphaNum(b byte) bool { return isAlpha(b) || isDigit(b) }

// ----- errors -----

// LexError reports an invalid or unterminated lexical construct.
// Line is 1-based, Col 0-based. Incomplete marks end-of-input failures
// surfaced in interactive mode.
type LexError struct {
	Line       int
	Col        int
	Msg        string
	Incomplete bool
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lex error at %d:%d: %s", e.Line, e.Col, e.Msg)
}

func (l *Lexer) err(msg string) error {
	return &LexError{Line: l.line, Col: l.col, Msg: msg}
}

// errAtEnd is err, except flagged Incomplete when scanning interactively.
func (l *Lexer) errAtEnd(msg string) error {
	return &LexError{Line: l.line, Col: l.col, Msg: msg, Incomplete: l.interactive}
}

// ----- scanners -----

// scanShortString parses a quoted string literal. The delimiter has already
// been consumed. The result is a raw byte sequence; escapes may introduce
// arbitrary bytes including NUL.
func (l *Lexer) scanShortString(del byte) (string, error) {
	var out []byte
	for {
		ch, ok := l.advance()
		if !ok {
			return "", l.errAtEnd("unterminated string")
		}
		if ch == del {
			return string(out), nil
		}
		if ch == '\n' {
			return "", l.err("unterminated string (newline in literal)")
		}
		if ch != '\\' {
			out = append(out, ch)
			continue
		}
		esc, ok := l.advance()
		if !ok {
			return "", l.errAtEnd("unfinished escape sequence")
		}
		switch esc {
		case 'a':
			out = append(out, '\a')
		case 'b':
			out = append(out, '\b')
		case 'f':
			out = append(out, '\f')
		case 'n':
			out = append(out, '\n')
		case 'r':
			out = append(out, '\r')
		case 't':
			out = append(out, '\t')
		case 'v':
			out = append(out, '\v')
		case '\\':
			out = append(out, '\\')
		case '"':
			out = append(out, '"')
		case '\'':
			out = append(out, '\'')
		case '\n':
			out = append(out, '\n')
		case 'x':
			var hex [2]byte
			for i := 0; i < 2; i++ {
				b, ok := l.peek()
				if !ok || !isHex(b) {
					return "", l.err("\\x expects 2 hex digits")
				}
				hex[i] = b
				l.advance()
			}
			v, _ := strconv.ParseUint(string(hex[:]), 16, 8)
			out = append(out, byte(v))
		case 'z':
			// skip following whitespace, including newlines
			for {
				b, ok := l.peek()
				if !ok || (b != ' ' && b != '\t' && b != '\r' && b != '\n') {
					break
				}
				l.advance()
			}
		case 'u':
			if b, ok := l.peek(); !ok || b != '{' {
				return "", l.err("\\u expects '{'")
			}
			l.advance()
			var digits strings.Builder
			for {
				b, ok := l.peek()
				if !ok {
					return "", l.errAtEnd("unterminated \\u escape")
				}
				if b == '}' {
					l.advance()
					break
				}
				if !isHex(b) {
					return "", l.err("invalid hex digit in \\u escape")
				}
				digits.WriteByte(b)
				l.advance()
			}
			v, convErr := strconv.ParseUint(digits.String(), 16, 32)
			if digits.Len() == 0 || convErr != nil || v > 0x7FFFFFFF {
				return "", l.err("invalid \\u escape")
			}
			out = utf8.AppendRune(out, rune(v))
		default:
			if isDigit(esc) {
				// \ddd — up to three decimal digits, value <= 255
				n := int(esc - '0')
				for i := 0; i < 2; i++ {
					b, ok := l.peek()
					if !ok || !isDigit(b) {
						break
					}
					n = n*10 + int(b-'0')
					l.advance()
				}
				if n > 255 {
					return "", l.err("decimal escape out of range")
				}
				out = append(out, byte(n))
				continue
			}
			return "", l.err(fmt.Sprintf("invalid escape sequence '\\%c'", esc))
		}
	}
}

// tryOpenLongBracket checks for '[' '='* '[' at the cursor. On match it
// consumes the opener and returns (level, true).
func (l *Lexer) tryOpenLongBracket() (int, bool) {
	if b, ok := l.peek(); !ok || b != '[' {
		return 0, false
	}
	level := 0
	for {
		b, ok := l.peekN(1 + level)
		if !ok {
			return 0, false
		}
		if b == '=' {
			level++
			continue
		}
		if b == '[' {
			for i := 0; i < level+2; i++ {
				l.advance()
			}
			return level, true
		}
		return 0, false
	}
}

// scanLongBracket reads the body of a long string/comment whose opener of
// the given level was already consumed. A newline immediately after the
// opener is skipped, matching long-string semantics.
func (l *Lexer) scanLongBracket(level int) (string, error) {
	if b, ok := l.peek(); ok && b == '\r' {
		l.advance()
	}
	if b, ok := l.peek(); ok && b == '\n' {
		l.advance()
	}
	closer := "]" + strings.Repeat("=", level) + "]"
	from := l.cur
	for {
		if l.isAtEnd() {
			return "", l.errAtEnd("unterminated long bracket")
		}
		if strings.HasPrefix(l.src[l.cur:], closer) {
			body := l.src[from:l.cur]
			for i := 0; i < len(closer); i++ {
				l.advance()
			}
			return body, nil
		}
		l.advance()
	}
}

// scanNumber parses an integer or float literal starting at l.start.
// A decimal literal overflowing int64 degrades to float, like Lua's.
func (l *Lexer) scanNumber() (TokenType, any, error) {
	// hexadecimal: 0x... (integer, or hex float with a 'p' exponent)
	if b0, _ := l.peek(); b0 == '0' {
		if b1, ok := l.peekN(1); ok && (b1 == 'x' || b1 == 'X') {
			l.advance()
			l.advance()
			sawDot, sawExp, sawDigits := false, false, false
			for {
				b, ok := l.peek()
				if !ok {
					break
				}
				if isHex(b) {
					sawDigits = true
					l.advance()
					continue
				}
				if b == '.' && !sawDot && !sawExp {
					sawDot = true
					l.advance()
					continue
				}
				if (b == 'p' || b == 'P') && !sawExp {
					sawExp = true
					l.advance()
					if s, ok := l.peek(); ok && (s == '+' || s == '-') {
						l.advance()
					}
					continue
				}
				break
			}
			if !sawDigits {
				return EOF, nil, l.err("malformed hexadecimal number")
			}
			lex := l.src[l.start:l.cur]
			if sawDot || sawExp {
				f, convErr := strconv.ParseFloat(lex, 64)
				if convErr != nil {
					return EOF, nil, l.err("malformed hexadecimal float")
				}
				return FLOAT, f, nil
			}
			// hex integers wrap around rather than overflow
			u, convErr := strconv.ParseUint(lex[2:], 16, 64)
			if convErr != nil {
				return EOF, nil, l.err("hexadecimal integer too large")
			}
			return INT, int64(u), nil
		}
	}

	sawDigits := false
	for {
		b, ok := l.peek()
		if !ok || !isDigit(b) {
			break
		}
		l.advance()
		sawDigits = true
	}
	sawDot := false
	if b, ok := l.peek(); ok && b == '.' {
		// '..' after digits is the concat operator, not a fraction
		if b2, ok2 := l.peekN(1); !ok2 || b2 != '.' {
			sawDot = true
			l.advance()
			for {
				b, ok := l.peek()
				if !ok || !isDigit(b) {
					break
				}
				l.advance()
				sawDigits = true
			}
		}
	}
	sawExp := false
	if b, ok := l.peek(); ok && (b == 'e' || b == 'E') {
		if b2, ok2 := l.peekN(1); ok2 && (isDigit(b2) || b2 == '+' || b2 == '-') {
			sawExp = true
			l.advance()
			if s, _ := l.peek(); s == '+' || s == '-' {
				l.advance()
			}
			expDigits := false
			for {
				b, ok := l.peek()
				if !ok || !isDigit(b) {
					break
				}
				l.advance()
				expDigits = true
			}
			if !expDigits {
				return EOF, nil, l.err("malformed number (missing exponent digits)")
			}
		}
	}
	if !sawDigits {
		return EOF, nil, l.err("malformed number")
	}
	if b, ok := l.peek(); ok && isAlpha(b) {
		return EOF, nil, l.err("malformed number (trailing garbage)")
	}

	lex := l.src[l.start:l.cur]
	if !sawDot && !sawExp {
		if v, convErr := strconv.ParseInt(lex, 10, 64); convErr == nil {
			return INT, v, nil
		}
	}
	f, convErr := strconv.ParseFloat(lex, 64)
	if convErr != nil {
		return EOF, nil, l.err("malformed number")
	}
	return FLOAT, f, nil
}

// skipComment handles '--' comments; the two dashes are already consumed.
func (l *Lexer) skipComment() error {
	if level, ok := l.tryOpenLongBracket(); ok {
		if _, err := l.scanLongBracket(level); err != nil {
			return err
		}
		l.start = l.cur
		return nil
	}
	for {
		b, ok := l.peek()
		if !ok || b == '\n' {
			l.start = l.cur
			return nil
		}
		l.advance()
	}
}

// ----- main scanner -----

func (l *Lexer) scanToken() (Token, error) {
	for {
		l.skipWhitespace()
		l.tokStartLine = l.line
		l.tokStartCol = l.col
		l.start = l.cur

		if l.isAtEnd() {
			return l.addToken(EOF, nil), nil
		}

		ch, _ := l.advance()

		switch ch {
		case '(':
			return l.addToken(LPAREN, nil), nil
		case ')':
			return l.addToken(RPAREN, nil), nil
		case '{':
			return l.addToken(LBRACE, nil), nil
		case '}':
			return l.addToken(RBRACE, nil), nil
		case ']':
			return l.addToken(RBRACKET, nil), nil
		case ';':
			return l.addToken(SEMI, nil), nil
		case ',':
			return l.addToken(COMMA, nil), nil
		case '+':
			return l.addToken(PLUS, nil), nil
		case '*':
			return l.addToken(STAR, nil), nil
		case '%':
			return l.addToken(PERCENT, nil), nil
		case '^':
			return l.addToken(CARET, nil), nil
		case '#':
			return l.addToken(HASH, nil), nil
		case '&':
			return l.addToken(AMP, nil), nil
		case '|':
			return l.addToken(PIPE, nil), nil

		case '[':
			// '[' may open a long string: rewind and retry as long bracket
			l.cur = l.start
			l.col = l.tokStartCol
			l.line = l.tokStartLine
			if level, ok := l.tryOpenLongBracket(); ok {
				body, err := l.scanLongBracket(level)
				if err != nil {
					return Token{}, err
				}
				return l.addToken(STRING, body), nil
			}
			l.advance()
			return l.addToken(LBRACKET, nil), nil

		case '-':
			if b, ok := l.peek(); ok && b == '-' {
				l.advance()
				if err := l.skipComment(); err != nil {
					return Token{}, err
				}
				continue
			}
			return l.addToken(MINUS, nil), nil

		case '/':
			if b, ok := l.peek(); ok && b == '/' {
				l.advance()
				return l.addToken(DSLASH, nil), nil
			}
			return l.addToken(SLASH, nil), nil

		case '~':
			if b, ok := l.peek(); ok && b == '=' {
				l.advance()
				return l.addToken(NEQ, nil), nil
			}
			return l.addToken(TILDE, nil), nil

		case '=':
			if b, ok := l.peek(); ok && b == '=' {
				l.advance()
				return l.addToken(EQ, nil), nil
			}
			return l.addToken(ASSIGN, nil), nil

		case '<':
			if b, ok := l.peek(); ok {
				switch b {
				case '=':
					l.advance()
					return l.addToken(LE, nil), nil
				case '<':
					l.advance()
					return l.addToken(SHL, nil), nil
				}
			}
			return l.addToken(LT, nil), nil

		case '>':
			if b, ok := l.peek(); ok {
				switch b {
				case '=':
					l.advance()
					return l.addToken(GE, nil), nil
				case '>':
					l.advance()
					return l.addToken(SHR, nil), nil
				}
			}
			return l.addToken(GT, nil), nil

		case ':':
			if b, ok := l.peek(); ok && b == ':' {
				l.advance()
				return l.addToken(DBCOLON, nil), nil
			}
			return l.addToken(COLON, nil), nil

		case '.':
			if b, ok := l.peek(); ok && b == '.' {
				l.advance()
				if b2, ok2 := l.peek(); ok2 && b2 == '.' {
					l.advance()
					return l.addToken(ELLIPSIS, nil), nil
				}
				return l.addToken(CONCAT, nil), nil
			}
			if b, ok := l.peek(); ok && isDigit(b) {
				l.cur = l.start
				l.col = l.tokStartCol
				tt, lit, err := l.scanNumber()
				if err != nil {
					return Token{}, err
				}
				return l.addToken(tt, lit), nil
			}
			return l.addToken(DOT, nil), nil

		case '"', '\'':
			text, err := l.scanShortString(ch)
			if err != nil {
				return Token{}, err
			}
			return l.addToken(STRING, text), nil
		}

		if isDigit(ch) {
			l.cur = l.start
			l.col = l.tokStartCol
			tt, lit, err := l.scanNumber()
			if err != nil {
				return Token{}, err
			}
			return l.addToken(tt, lit), nil
		}

		if isAlpha(ch) {
			for {
				b, ok := l.peek()
				if !ok || !isAlphaNum(b) {
					break
				}
				l.advance()
			}
			lex := l.src[l.start:l.cur]
			if tt, ok := keywords[lex]; ok {
				return l.addToken(tt, nil), nil
			}
			return l.addToken(NAME, lex), nil
		}

		return Token{}, l.err(fmt.Sprintf("unexpected character %q", ch))
	}
}

// Scan tokenizes the entire source and returns tokens (EOF included).
func (l *Lexer) Scan() ([]Token, error) {
	for {
		tok, err := l.scanToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == EOF {
			return l.tokens, nil
		}
	}
}
