// parser.go — recursive-descent parser for Lunar producing compact
// S-expressions.
//
// The parser consumes the token stream from lexer.go and builds a
// Lisp-style S-expression tree ([]any whose first element is a string
// tag). Statements use a hand-written recursive-descent grammar;
// expressions use precedence climbing with the table in lbp below.
// Parsing fails fast: the first malformed construct aborts with a
// *SyntaxError and no partial AST.
//
// Node reference (payloads that are not S carry no span):
//
// Statements:
//
//	("block", stmt...)
//	("local", ("names", ("name", name, attrib)...), ("explist", e...))
//	("localfunc", name, fnExpr)
//	("assign", ("targets", t...), ("explist", e...))
//	("call" ...) / ("method" ...)            // call statements
//	("do", block)
//	("while", cond, block)
//	("repeat", block, cond)                  // cond sees body locals
//	("if", ("clause", cond, block)..., ("else", block)?)
//	("fornum", name, start, stop, step, block)   // step defaults to ("int", 1)
//	("forin", ("names", ("name", n, "")...), ("explist", e...), block)
//	("return", ("explist", e...))
//	("break")
//	("goto", label)
//	("label", label)
//
// Expressions:
//
//	("nil") ("bool", b) ("int", i64) ("num", f64) ("str", s) ("vararg")
//	("id", name)
//	("unop", op, e)        // "not" "-" "#" "~"
//	("binop", op, lhs, rhs)
//	("call", callee, arg...)
//	("method", obj, name, arg...)   // obj evaluated once, passed as self
//	("get", obj, ("str", name))     // obj.name
//	("idx", obj, keyExpr)           // obj[expr]
//	("paren", e)                    // kept only around multi-value exprs
//	("table", field...)             // field: ("item", e) | ("fieldk", k, v)
//	("function", ("params", name...), isVararg, block)
//
// Parentheses that merely make precedence explicit are dropped during
// parsing, so `e(1 + 2 - 3*4/4)` and `e(1 + 2 - ((3*4)/4))` produce
// structurally equal trees. A ("paren", e) wrapper survives only around
// calls, method calls, and `...`, where it truncates multiple results to
// one — a semantic, not cosmetic, difference.
//
// Every node is built through the mk/mkLeaf helpers, which append exactly
// one Span per node in strict post-order (children first, left to right);
// BuildSpanIndexPostOrder (spans.go) later binds them to NodePaths.
// Method-call sugar gets a dedicated ("method") node rather than a
// desugared ("call", ("get", obj, m), obj, ...) so the receiver expression
// is evaluated exactly once.
//
// After the tree is complete the parser statically validates goto/label
// pairs: every goto must resolve to a visible label, labels are unique per
// block, and a forward goto may not jump into the scope of a local
// declared between it and the label (labels at the very end of a block
// are exempt, matching Lua's relaxation).
package lunar

import (
	"fmt"
)

////////////////////////////////////////////////////////////////////////////
//                                PUBLIC API
////////////////////////////////////////////////////////////////////////////

// S is the AST node type: a tag string followed by children/payloads.
type S = []any

// L builds an S node from a tag and parts (no span bookkeeping; parser
// internals use mk/mkLeaf instead).
func L(tag string, parts ...any) S { return append([]any{tag}, parts...) }

// Parse parses a complete chunk and returns its ("block", ...) AST.
// Empty input yields an empty block.
func Parse(src string) (S, error) {
	ast, _, err := parseWith(NewLexer(src), src, false)
	return ast, err
}

// ParseWithSpans parses like Parse and also returns the sidecar SpanIndex
// with one span per node, recorded in post-order.
func ParseWithSpans(src string) (S, *SpanIndex, error) {
	return parseWith(NewLexer(src), src, false)
}

// ParseInteractive parses in REPL-friendly mode: constructs truncated by
// end-of-input produce an error for which IsIncomplete reports true.
func ParseInteractive(src string) (S, error) {
	ast, _, err := parseWith(NewLexerInteractive(src), src, true)
	return ast, err
}

func parseWith(lex *Lexer, src string, interactive bool) (S, *SpanIndex, error) {
	toks, err := lex.Scan()
	if err != nil {
		return nil, nil, err
	}
	p := &parser{toks: toks, src: src, interactive: interactive}
	ast, perr := p.program()
	if perr != nil {
		return nil, nil, perr
	}
	idx := BuildSpanIndexPostOrder(ast, p.post)
	if gerr := p.validateGotos(ast, idx); gerr != nil {
		return nil, nil, gerr
	}
	return ast, idx, nil
}

// EqualS is structural equality over S-expressions. Spans live outside the
// tree (spans.go), so this compares logical structure and literal values
// only — formatting and redundant parentheses never matter.
func EqualS(a, b S) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	ta, ok := a[0].(string)
	if !ok {
		return false
	}
	tb, ok := b[0].(string)
	if !ok || ta != tb {
		return false
	}
	for i := 1; i < len(a); i++ {
		if !equalNode(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalNode(x, y any) bool {
	switch xv := x.(type) {
	case []any:
		yv, ok := y.([]any)
		return ok && EqualS(xv, yv)
	case string:
		ys, ok := y.(string)
		return ok && xv == ys
	case int64:
		yi, ok := y.(int64)
		return ok && xv == yi
	case float64:
		yf, ok := y.(float64)
		return ok && xv == yf
	case bool:
		yb, ok := y.(bool)
		return ok && xv == yb
	default:
		return x == y
	}
}

////////////////////////////////////////////////////////////////////////////
//                                 PARSER
////////////////////////////////////////////////////////////////////////////

type parser struct {
	toks        []Token
	i           int
	src         string
	interactive bool

	post []Span // strict post-order, one span per constructed node
}

// ── token basics ──────────────────────────────────────────────────────────

func (p *parser) peek() Token {
	if p.i >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i]
}

func (p *parser) peekN(n int) Token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) atEnd() bool { return p.peek().Type == EOF }
func (p *parser) prev() Token { return p.toks[p.i-1] }

func (p *parser) check(tt TokenType) bool { return p.peek().Type == tt }

func (p *parser) match(tts ...TokenType) bool {
	for _, tt := range tts {
		if p.peek().Type == tt {
			p.i++
			return true
		}
	}
	return false
}

func (p *parser) need(tt TokenType, msg string) (Token, error) {
	if p.match(tt) {
		return p.prev(), nil
	}
	return Token{}, p.errHere(msg)
}

func (p *parser) errHere(msg string) error {
	g := p.peek()
	if g.Type == EOF {
		line, col := PosAt(p.src, len(p.src))
		return &SyntaxError{Msg: msg + " near <eof>", Line: line, Col: col, Incomplete: p.interactive}
	}
	line, col := PosAt(p.src, g.StartByte)
	return &SyntaxError{Msg: fmt.Sprintf("%s near '%s'", msg, g.Lexeme), Line: line, Col: col}
}

func (p *parser) errAtTok(tok Token, msg string) error {
	line, col := PosAt(p.src, tok.StartByte)
	return &SyntaxError{Msg: msg, Line: line, Col: col}
}

// ── span emission ─────────────────────────────────────────────────────────
//
// mkLeaf/mk append exactly one span per constructed node. Leaves tied to a
// concrete token pass tok≥0; synthesized nodes (the default for-step) pass
// tok=-1 and get a placeholder span, keeping post-order cardinality intact.

func (p *parser) appendSpanByTok(startTok, endTok int) {
	if startTok >= 0 && endTok >= startTok && endTok < len(p.toks) {
		p.post = append(p.post, Span{
			StartByte: p.toks[startTok].StartByte,
			EndByte:   p.toks[endTok].EndByte,
		})
		return
	}
	p.post = append(p.post, Span{})
}

func (p *parser) mkLeaf(tag string, tok int, parts ...any) S {
	n := L(tag, parts...)
	p.appendSpanByTok(tok, tok)
	return n
}

func (p *parser) mk(tag string, startTok, endTok int, parts ...any) S {
	n := L(tag, parts...)
	p.appendSpanByTok(startTok, endTok)
	return n
}

// ── precedence table ──────────────────────────────────────────────────────

const unaryBP = 12

// lbp returns the left binding power of an infix operator token.
func lbp(tt TokenType) (int, bool) {
	switch tt {
	case OR:
		return 1, true
	case AND:
		return 2, true
	case LT, GT, LE, GE, NEQ, EQ:
		return 3, true
	case PIPE:
		return 4, true
	case TILDE:
		return 5, true
	case AMP:
		return 6, true
	case SHL, SHR:
		return 7, true
	case CONCAT:
		return 9, true
	case PLUS, MINUS:
		return 10, true
	case STAR, SLASH, DSLASH, PERCENT:
		return 11, true
	case CARET:
		return 14, true
	}
	return 0, false
}

func isRightAssoc(tt TokenType) bool { return tt == CONCAT || tt == CARET }

func binopName(tt TokenType) string {
	switch tt {
	case OR:
		return "or"
	case AND:
		return "and"
	case LT:
		return "<"
	case GT:
		return ">"
	case LE:
		return "<="
	case GE:
		return ">="
	case NEQ:
		return "~="
	case EQ:
		return "=="
	case PIPE:
		return "|"
	case TILDE:
		return "~"
	case AMP:
		return "&"
	case SHL:
		return "<<"
	case SHR:
		return ">>"
	case CONCAT:
		return ".."
	case PLUS:
		return "+"
	case MINUS:
		return "-"
	case STAR:
		return "*"
	case SLASH:
		return "/"
	case DSLASH:
		return "//"
	case PERCENT:
		return "%"
	case CARET:
		return "^"
	}
	return "?"
}

// ── program / blocks ──────────────────────────────────────────────────────

func (p *parser) program() (S, error) {
	stmts, err := p.statements(EOF)
	if err != nil {
		return nil, err
	}
	if !p.atEnd() {
		return nil, p.errHere("unexpected token")
	}
	if len(p.toks) <= 1 { // just EOF
		return p.mk("block", -1, -1), nil
	}
	return p.mk("block", 0, len(p.toks)-2, stmts...), nil
}

// block parses statements until one of the stop tokens, which is NOT
// consumed. startTok anchors the block's span.
func (p *parser) block(stops ...TokenType) (S, error) {
	startTok := p.i
	stmts, err := p.statements(stops...)
	if err != nil {
		return nil, err
	}
	if len(stmts) == 0 {
		return p.mk("block", -1, -1), nil
	}
	return p.mk("block", startTok, p.i-1, stmts...), nil
}

func (p *parser) statements(stops ...TokenType) ([]any, error) {
	stop := map[TokenType]bool{}
	for _, s := range stops {
		stop[s] = true
	}
	var out []any
	for {
		for p.match(SEMI) {
		}
		if stop[p.peek().Type] {
			return out, nil
		}
		if p.atEnd() {
			// blocks stopped by END/UNTIL/etc. ran out of input
			if !stop[EOF] {
				return nil, p.errHere("unexpected end of input")
			}
			return out, nil
		}
		st, isReturn, err := p.statement()
		if err != nil {
			return nil, err
		}
		if st != nil {
			out = append(out, st)
		}
		if isReturn {
			for p.match(SEMI) {
			}
			if !stop[p.peek().Type] && !p.atEnd() {
				return nil, p.errHere("'return' must be the last statement in its block")
			}
			return out, nil
		}
	}
}

// statement parses one statement. The bool result marks `return`, which
// must close its block.
func (p *parser) statement() (S, bool, error) {
	switch p.peek().Type {
	case IF:
		n, err := p.ifStmt()
		return n, false, err
	case WHILE:
		n, err := p.whileStmt()
		return n, false, err
	case DO:
		start := p.i
		p.i++
		body, err := p.block(END)
		if err != nil {
			return nil, false, err
		}
		if _, err := p.need(END, "expected 'end'"); err != nil {
			return nil, false, err
		}
		return p.mk("do", start, p.i-1, body), false, nil
	case FOR:
		n, err := p.forStmt()
		return n, false, err
	case REPEAT:
		n, err := p.repeatStmt()
		return n, false, err
	case FUNCTION:
		n, err := p.functionStmt()
		return n, false, err
	case LOCAL:
		n, err := p.localStmt()
		return n, false, err
	case RETURN:
		n, err := p.returnStmt()
		return n, true, err
	case BREAK:
		start := p.i
		p.i++
		return p.mk("break", start, start), false, nil
	case GOTO:
		start := p.i
		p.i++
		name, err := p.need(NAME, "expected label name after 'goto'")
		if err != nil {
			return nil, false, err
		}
		return p.mk("goto", start, p.i-1, name.Literal.(string)), false, nil
	case DBCOLON:
		start := p.i
		p.i++
		name, err := p.need(NAME, "expected label name after '::'")
		if err != nil {
			return nil, false, err
		}
		if _, err := p.need(DBCOLON, "expected '::' to close label"); err != nil {
			return nil, false, err
		}
		return p.mk("label", start, p.i-1, name.Literal.(string)), false, nil
	default:
		n, err := p.exprStmt()
		return n, false, err
	}
}

func (p *parser) ifStmt() (S, error) {
	start := p.i
	p.i++ // 'if'
	var parts []any

	clauseStart := start
	cond, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(THEN, "expected 'then'"); err != nil {
		return nil, err
	}
	body, err := p.block(ELSEIF, ELSE, END)
	if err != nil {
		return nil, err
	}
	parts = append(parts, p.mk("clause", clauseStart, p.i-1, cond, body))

	for p.check(ELSEIF) {
		clauseStart = p.i
		p.i++
		cond, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(THEN, "expected 'then'"); err != nil {
			return nil, err
		}
		body, err := p.block(ELSEIF, ELSE, END)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p.mk("clause", clauseStart, p.i-1, cond, body))
	}

	if p.check(ELSE) {
		elseStart := p.i
		p.i++
		body, err := p.block(END)
		if err != nil {
			return nil, err
		}
		parts = append(parts, p.mk("else", elseStart, p.i-1, body))
	}

	if _, err := p.need(END, "expected 'end'"); err != nil {
		return nil, err
	}
	return p.mk("if", start, p.i-1, parts...), nil
}

func (p *parser) whileStmt() (S, error) {
	start := p.i
	p.i++ // 'while'
	cond, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(DO, "expected 'do'"); err != nil {
		return nil, err
	}
	body, err := p.block(END)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(END, "expected 'end'"); err != nil {
		return nil, err
	}
	return p.mk("while", start, p.i-1, cond, body), nil
}

func (p *parser) repeatStmt() (S, error) {
	start := p.i
	p.i++ // 'repeat'
	body, err := p.block(UNTIL)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(UNTIL, "expected 'until'"); err != nil {
		return nil, err
	}
	cond, err := p.expr(0)
	if err != nil {
		return nil, err
	}
	return p.mk("repeat", start, p.i-1, body, cond), nil
}

func (p *parser) forStmt() (S, error) {
	start := p.i
	p.i++ // 'for'

	first, err := p.need(NAME, "expected variable name after 'for'")
	if err != nil {
		return nil, err
	}
	firstTok := p.i - 1

	if p.match(ASSIGN) {
		// numeric for: evaluate start, stop, optional step
		startE, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(COMMA, "expected ',' in numeric for"); err != nil {
			return nil, err
		}
		stopE, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		var stepE S
		if p.match(COMMA) {
			stepE, err = p.expr(0)
			if err != nil {
				return nil, err
			}
		} else {
			stepE = p.mkLeaf("int", -1, int64(1)) // omitted step ≡ step 1
		}
		if _, err := p.need(DO, "expected 'do'"); err != nil {
			return nil, err
		}
		body, err := p.block(END)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(END, "expected 'end'"); err != nil {
			return nil, err
		}
		return p.mk("fornum", start, p.i-1, first.Literal.(string), startE, stopE, stepE, body), nil
	}

	// generic for: name {, name} in explist do ... end
	names := []any{p.mkLeaf("name", firstTok, first.Literal.(string), "")}
	for p.match(COMMA) {
		n, err := p.need(NAME, "expected variable name")
		if err != nil {
			return nil, err
		}
		names = append(names, p.mkLeaf("name", p.i-1, n.Literal.(string), ""))
	}
	namesNode := p.mk("names", firstTok, p.i-1, names...)
	if _, err := p.need(IN, "expected 'in'"); err != nil {
		return nil, err
	}
	exprsStart := p.i
	exprs, err := p.exprList()
	if err != nil {
		return nil, err
	}
	explist := p.mk("explist", exprsStart, p.i-1, exprs...)
	if _, err := p.need(DO, "expected 'do'"); err != nil {
		return nil, err
	}
	body, err := p.block(END)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(END, "expected 'end'"); err != nil {
		return nil, err
	}
	return p.mk("forin", start, p.i-1, namesNode, explist, body), nil
}

// functionStmt handles `function a.b.c()` and `function a.b.c:d()`,
// desugaring to an assignment of a function literal onto the nested field
// path; the colon form prepends an implicit `self` parameter.
func (p *parser) functionStmt() (S, error) {
	start := p.i
	p.i++ // 'function'

	nameTok, err := p.need(NAME, "expected function name")
	if err != nil {
		return nil, err
	}
	target := p.mkLeaf("id", p.i-1, nameTok.Literal.(string))
	isMethod := false

	for {
		if p.match(DOT) {
			field, err := p.need(NAME, "expected field name after '.'")
			if err != nil {
				return nil, err
			}
			key := p.mkLeaf("str", p.i-1, field.Literal.(string))
			target = p.mk("get", start+1, p.i-1, target, key)
			continue
		}
		if p.match(COLON) {
			field, err := p.need(NAME, "expected method name after ':'")
			if err != nil {
				return nil, err
			}
			key := p.mkLeaf("str", p.i-1, field.Literal.(string))
			target = p.mk("get", start+1, p.i-1, target, key)
			isMethod = true
		}
		break
	}

	targets := p.mk("targets", start+1, p.i-1, target)
	explistStart := p.i
	fn, err := p.funcBody(start, isMethod)
	if err != nil {
		return nil, err
	}
	explist := p.mk("explist", explistStart, p.i-1, fn)
	return p.mk("assign", start, p.i-1, targets, explist), nil
}

func (p *parser) localStmt() (S, error) {
	start := p.i
	p.i++ // 'local'

	if p.match(FUNCTION) {
		nameTok, err := p.need(NAME, "expected function name after 'local function'")
		if err != nil {
			return nil, err
		}
		fn, err := p.funcBody(start, false)
		if err != nil {
			return nil, err
		}
		return p.mk("localfunc", start, p.i-1, nameTok.Literal.(string), fn), nil
	}

	var names []any
	namesStart := p.i
	for {
		nameTok, err := p.need(NAME, "expected variable name after 'local'")
		if err != nil {
			return nil, err
		}
		nameIdx := p.i - 1
		attrib := ""
		if p.match(LT) {
			attribTok, err := p.need(NAME, "expected attribute name after '<'")
			if err != nil {
				return nil, err
			}
			attrib = attribTok.Literal.(string)
			if attrib != "const" && attrib != "close" {
				return nil, p.errAtTok(attribTok, fmt.Sprintf("unknown attribute '%s'", attrib))
			}
			if _, err := p.need(GT, "expected '>' to close attribute"); err != nil {
				return nil, err
			}
		}
		names = append(names, p.mkLeaf("name", nameIdx, nameTok.Literal.(string), attrib))
		if !p.match(COMMA) {
			break
		}
	}
	namesNode := p.mk("names", namesStart, p.i-1, names...)

	var exprs []any
	explistStart := p.i
	if p.match(ASSIGN) {
		var err error
		exprs, err = p.exprList()
		if err != nil {
			return nil, err
		}
	}
	explist := p.mk("explist", explistStart, p.i-1, exprs...)
	return p.mk("local", start, p.i-1, namesNode, explist), nil
}

func (p *parser) returnStmt() (S, error) {
	start := p.i
	p.i++ // 'return'

	var exprs []any
	explistStart := p.i
	if !p.returnEnds() {
		var err error
		exprs, err = p.exprList()
		if err != nil {
			return nil, err
		}
	}
	explist := p.mk("explist", explistStart, p.i-1, exprs...)
	return p.mk("return", start, p.i-1, explist), nil
}

// returnEnds reports whether the token after `return` already closes the
// statement (bare return).
func (p *parser) returnEnds() bool {
	switch p.peek().Type {
	case EOF, END, ELSE, ELSEIF, UNTIL, SEMI:
		return true
	}
	return false
}

// exprStmt parses either a call statement or a (multiple) assignment.
func (p *parser) exprStmt() (S, error) {
	start := p.i
	first, err := p.suffixedExpr()
	if err != nil {
		return nil, err
	}

	if p.check(ASSIGN) || p.check(COMMA) {
		if !assignable(first) {
			return nil, p.errAtTok(p.toks[start], "cannot assign to this expression")
		}
		targets := []any{first}
		for p.match(COMMA) {
			t, err := p.suffixedExpr()
			if err != nil {
				return nil, err
			}
			if !assignable(t) {
				return nil, p.errHere("cannot assign to this expression")
			}
			targets = append(targets, t)
		}
		if _, err := p.need(ASSIGN, "expected '=' in assignment"); err != nil {
			return nil, err
		}
		targetsNode := p.mk("targets", start, p.i-2, targets...)
		explistStart := p.i
		exprs, err := p.exprList()
		if err != nil {
			return nil, err
		}
		explist := p.mk("explist", explistStart, p.i-1, exprs...)
		return p.mk("assign", start, p.i-1, targetsNode, explist), nil
	}

	switch first[0].(string) {
	case "call", "method":
		return first, nil
	}
	return nil, p.errAtTok(p.toks[start], "expression is not a statement (expected call or assignment)")
}

func assignable(n S) bool {
	switch n[0].(string) {
	case "id", "get", "idx":
		return true
	}
	return false
}

// ── expressions ───────────────────────────────────────────────────────────

func (p *parser) exprList() ([]any, error) {
	var out []any
	for {
		e, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
		if !p.match(COMMA) {
			return out, nil
		}
	}
}

// expr implements precedence climbing: equal-precedence left-associative
// operators loop; right-associative ones (`..`, `^`) recurse at their own
// binding power before combining.
func (p *parser) expr(minBP int) (S, error) {
	left, leftStart, err := p.unaryExpr()
	if err != nil {
		return nil, err
	}

	for {
		op := p.peek()
		bp, ok := lbp(op.Type)
		if !ok || bp < minBP {
			return left, nil
		}
		p.i++
		nextBP := bp + 1
		if isRightAssoc(op.Type) {
			nextBP = bp
		}
		right, err := p.expr(nextBP)
		if err != nil {
			return nil, err
		}
		left = p.mk("binop", leftStart, p.i-1, binopName(op.Type), left, right)
	}
}

// unaryExpr parses prefix operators (not, -, #, ~) and the primary
// expression they apply to. Unary binds tighter than every binary operator
// except `^`, which the operand parse at unaryBP lets through.
func (p *parser) unaryExpr() (S, int, error) {
	start := p.i
	switch p.peek().Type {
	case NOT, MINUS, HASH, TILDE:
		opTok := p.peek()
		p.i++
		operand, err := p.expr(unaryBP)
		if err != nil {
			return nil, 0, err
		}
		opName := "not"
		switch opTok.Type {
		case MINUS:
			opName = "-"
		case HASH:
			opName = "#"
		case TILDE:
			opName = "~"
		}
		return p.mk("unop", start, p.i-1, opName, operand), start, nil
	}
	e, err := p.suffixedExpr()
	return e, start, err
}

// suffixedExpr parses a primary expression plus any chain of field
// accesses, indexes, calls, and method calls.
func (p *parser) suffixedExpr() (S, error) {
	start := p.i
	left, err := p.primaryExpr()
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().Type {
		case DOT:
			p.i++
			field, err := p.need(NAME, "expected field name after '.'")
			if err != nil {
				return nil, err
			}
			key := p.mkLeaf("str", p.i-1, field.Literal.(string))
			left = p.mk("get", start, p.i-1, left, key)

		case LBRACKET:
			p.i++
			idx, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.need(RBRACKET, "expected ']'"); err != nil {
				return nil, err
			}
			left = p.mk("idx", start, p.i-1, left, idx)

		case COLON:
			p.i++
			method, err := p.need(NAME, "expected method name after ':'")
			if err != nil {
				return nil, err
			}
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			parts := append([]any{left, method.Literal.(string)}, args...)
			left = p.mk("method", start, p.i-1, parts...)

		case LPAREN, STRING, LBRACE:
			args, err := p.callArgs()
			if err != nil {
				return nil, err
			}
			parts := append([]any{left}, args...)
			left = p.mk("call", start, p.i-1, parts...)

		default:
			return left, nil
		}
	}
}

// callArgs parses an argument list: parenthesized explist, or the sugar
// forms — a lone string literal or table constructor.
func (p *parser) callArgs() ([]any, error) {
	switch p.peek().Type {
	case LPAREN:
		p.i++
		if p.match(RPAREN) {
			return nil, nil
		}
		args, err := p.exprList()
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		return args, nil
	case STRING:
		tok := p.peek()
		p.i++
		return []any{p.mkLeaf("str", p.i-1, tok.Literal.(string))}, nil
	case LBRACE:
		tbl, err := p.tableConstructor()
		if err != nil {
			return nil, err
		}
		return []any{tbl}, nil
	}
	return nil, p.errHere("expected arguments")
}

func (p *parser) primaryExpr() (S, error) {
	tok := p.peek()
	start := p.i

	switch tok.Type {
	case NIL:
		p.i++
		return p.mkLeaf("nil", start), nil
	case TRUE:
		p.i++
		return p.mkLeaf("bool", start, true), nil
	case FALSE:
		p.i++
		return p.mkLeaf("bool", start, false), nil
	case INT:
		p.i++
		return p.mkLeaf("int", start, tok.Literal), nil
	case FLOAT:
		p.i++
		return p.mkLeaf("num", start, tok.Literal), nil
	case STRING:
		p.i++
		return p.mkLeaf("str", start, tok.Literal), nil
	case ELLIPSIS:
		p.i++
		return p.mkLeaf("vararg", start), nil
	case NAME:
		p.i++
		return p.mkLeaf("id", start, tok.Literal), nil
	case FUNCTION:
		p.i++
		return p.funcBody(start, false)
	case LBRACE:
		return p.tableConstructor()
	case LPAREN:
		p.i++
		inner, err := p.expr(0)
		if err != nil {
			return nil, err
		}
		if _, err := p.need(RPAREN, "expected ')'"); err != nil {
			return nil, err
		}
		// Parens around a multi-result expression truncate to one value;
		// anywhere else they are purely cosmetic and dropped.
		switch inner[0].(string) {
		case "call", "method", "vararg":
			return p.mk("paren", start, p.i-1, inner), nil
		}
		return inner, nil
	}
	return nil, p.errHere("expected expression")
}

// funcBody parses `( params ) block end` for both literals and function
// statements. startTok anchors the function's span; isMethod prepends the
// implicit `self` parameter.
func (p *parser) funcBody(startTok int, isMethod bool) (S, error) {
	if _, err := p.need(LPAREN, "expected '(' for parameter list"); err != nil {
		return nil, err
	}
	paramsStart := p.i - 1
	var params []any
	if isMethod {
		params = append(params, "self")
	}
	isVararg := false
	if !p.match(RPAREN) {
		for {
			if p.match(ELLIPSIS) {
				isVararg = true
				break
			}
			nameTok, err := p.need(NAME, "expected parameter name")
			if err != nil {
				return nil, err
			}
			params = append(params, nameTok.Literal.(string))
			if !p.match(COMMA) {
				break
			}
		}
		if _, err := p.need(RPAREN, "expected ')' to close parameter list"); err != nil {
			return nil, err
		}
	}
	paramsNode := p.mk("params", paramsStart, p.i-1, params...)

	body, err := p.block(END)
	if err != nil {
		return nil, err
	}
	if _, err := p.need(END, "expected 'end'"); err != nil {
		return nil, err
	}
	return p.mk("function", startTok, p.i-1, paramsNode, isVararg, body), nil
}

// tableConstructor parses `{ fields }` with ',' and ';' interchangeable as
// separators and an optional trailing separator.
func (p *parser) tableConstructor() (S, error) {
	start := p.i
	if _, err := p.need(LBRACE, "expected '{'"); err != nil {
		return nil, err
	}

	var fields []any
	for !p.check(RBRACE) {
		if p.atEnd() {
			return nil, p.errHere("unterminated table constructor")
		}
		fieldStart := p.i
		switch {
		case p.check(LBRACKET):
			// [expr] = expr
			p.i++
			key, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			if _, err := p.need(RBRACKET, "expected ']'"); err != nil {
				return nil, err
			}
			if _, err := p.need(ASSIGN, "expected '=' after table key"); err != nil {
				return nil, err
			}
			val, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			fields = append(fields, p.mk("fieldk", fieldStart, p.i-1, key, val))

		case p.check(NAME) && p.peekN(1).Type == ASSIGN:
			// name = expr
			nameTok := p.peek()
			p.i += 2
			key := p.mkLeaf("str", fieldStart, nameTok.Literal.(string))
			val, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			fields = append(fields, p.mk("fieldk", fieldStart, p.i-1, key, val))

		default:
			val, err := p.expr(0)
			if err != nil {
				return nil, err
			}
			fields = append(fields, p.mk("item", fieldStart, p.i-1, val))
		}

		if !p.match(COMMA, SEMI) {
			break
		}
	}
	if _, err := p.need(RBRACE, "expected '}' to close table constructor"); err != nil {
		return nil, err
	}
	return p.mk("table", start, p.i-1, fields...), nil
}

////////////////////////////////////////////////////////////////////////////
//                       GOTO / LABEL STATIC VALIDATION
////////////////////////////////////////////////////////////////////////////

// validateGotos enforces the static goto rules over the finished tree:
// every goto resolves to a label visible in its own block or an enclosing
// one (never across a function literal), labels are unique per block, and
// a forward jump may not cross a local declaration into its scope — unless
// the label sits at the end of the block, where the locals' scope is over.
func (p *parser) validateGotos(root S, idx *SpanIndex) error {
	type frame struct {
		node   S
		curIdx int
	}

	errAt := func(path NodePath, msg string) error {
		line, col := 1, 1
		if sp, ok := idx.Get(path); ok {
			line, col = PosAt(p.src, sp.StartByte)
		}
		return &SyntaxError{Msg: msg, Line: line, Col: col}
	}

	var walk func(n S, path NodePath, stack []*frame) error
	walk = func(n S, path NodePath, stack []*frame) error {
		tag, _ := n[0].(string)

		switch tag {
		case "function":
			// gotos do not cross function boundaries
			body := n[3].(S)
			return walk(body, append(path, 2), nil)

		case "block":
			// duplicate-label check at this level
			seen := map[string]int{}
			for ci := 1; ci < len(n); ci++ {
				st, ok := n[ci].(S)
				if !ok {
					continue
				}
				if st[0].(string) == "label" {
					name := st[1].(string)
					if _, dup := seen[name]; dup {
						return errAt(append(path, ci-1), fmt.Sprintf("duplicate label '%s'", name))
					}
					seen[name] = ci
				}
			}
			f := &frame{node: n}
			stack = append(stack, f)
			for ci := 1; ci < len(n); ci++ {
				st, ok := n[ci].(S)
				if !ok {
					continue
				}
				f.curIdx = ci
				if err := walk(st, append(path, ci-1), stack); err != nil {
					return err
				}
			}
			return nil

		case "goto":
			name := n[1].(string)
			for fi := len(stack) - 1; fi >= 0; fi-- {
				f := stack[fi]
				labelIdx := -1
				for ci := 1; ci < len(f.node); ci++ {
					if st, ok := f.node[ci].(S); ok && st[0].(string) == "label" && st[1].(string) == name {
						labelIdx = ci
						break
					}
				}
				if labelIdx < 0 {
					continue
				}
				if labelIdx > f.curIdx && !labelAtBlockEnd(f.node, labelIdx) {
					for ci := f.curIdx + 1; ci < labelIdx; ci++ {
						if st, ok := f.node[ci].(S); ok {
							switch st[0].(string) {
							case "local", "localfunc":
								return errAt(path, fmt.Sprintf(
									"goto '%s' jumps into the scope of a local variable", name))
							}
						}
					}
				}
				return nil
			}
			return errAt(path, fmt.Sprintf("no visible label '%s' for goto", name))

		default:
			for ci := 1; ci < len(n); ci++ {
				if st, ok := n[ci].(S); ok {
					if err := walk(st, append(path, ci-1), stack); err != nil {
						return err
					}
				}
			}
			return nil
		}
	}

	return walk(root, nil, nil)
}

// labelAtBlockEnd reports whether only labels follow position idx, the
// relaxation that lets `goto continue` target a label just before `end`.
func labelAtBlockEnd(block S, idx int) bool {
	for ci := idx + 1; ci < len(block); ci++ {
		if st, ok := block[ci].(S); ok && st[0].(string) != "label" {
			return false
		}
	}
	return true
}
