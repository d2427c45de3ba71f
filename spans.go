// spans.go — sidecar source spans for Lunar ASTs.
//
// AST nodes (the S-expression type S, see parser.go) carry no position
// fields; Parse records one byte Span per node in strict post-order
// (children first, then parent, left to right among siblings) and binds
// them to structural NodePath addresses here. Keeping positions out of the
// tree makes structural equality (EqualS) position-independent for free:
// two programs that parse to the same shape compare equal no matter how
// they were formatted or parenthesized.
//
// A NodePath is a slice of child indexes: path element k selects the child
// stored at S[k+1] (S[0] is the tag). The index is read-only after
// construction and safe for concurrent reads.
package lunar

import (
	"strconv"
	"strings"
)

// Span is a half-open byte interval [StartByte, EndByte) in the source.
type Span struct {
	StartByte int // inclusive
	EndByte   int // exclusive
}

// NodePath addresses a node structurally: each element selects a child
// (child i lives at S[i+1]).
type NodePath []int

// SpanIndex maps NodePath → Span for one parsed tree.
type SpanIndex struct {
	byPath map[string]Span
}

// Get returns the span recorded for path, if any.
func (si *SpanIndex) Get(p NodePath) (Span, bool) {
	if si == nil {
		return Span{}, false
	}
	sp, ok := si.byPath[pathKey(p)]
	return sp, ok
}

// BuildSpanIndexPostOrder binds one span per node to its path, walking the
// AST in the same post-order the parser used when appending spans. Extra
// spans are ignored; missing ones leave nodes unindexed.
func BuildSpanIndexPostOrder(root S, postorder []Span) *SpanIndex {
	si := &SpanIndex{byPath: make(map[string]Span, len(postorder))}
	i := 0
	var walk func(n S, path NodePath)
	walk = func(n S, path NodePath) {
		for ci := 1; ci < len(n); ci++ {
			if child, ok := n[ci].(S); ok {
				walk(child, append(path, ci-1))
			}
		}
		if i < len(postorder) {
			si.byPath[pathKey(path)] = postorder[i]
			i++
		}
	}
	walk(root, nil)
	return si
}

// PosAt converts a byte offset into 1-based (line, col) coordinates.
func PosAt(src string, b int) (int, int) {
	if b < 0 {
		b = 0
	}
	if b > len(src) {
		b = len(src)
	}
	line := 1 + strings.Count(src[:b], "\n")
	lastNL := strings.LastIndex(src[:b], "\n")
	if lastNL < 0 {
		return line, b + 1
	}
	return line, b - lastNL
}

// SourceRef names a piece of source and carries its span index. Closures
// keep a SourceRef plus the path of their body so runtime errors raised
// later still map back to the defining chunk.
type SourceRef struct {
	Name     string
	Src      string
	Spans    *SpanIndex
	PathBase NodePath
}

// pathKey serializes a NodePath to a compact "a.b.c" map key.
func pathKey(p NodePath) string {
	if len(p) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, x := range p {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.Itoa(x))
	}
	return sb.String()
}

// joinPath returns base + rel as a fresh slice.
func joinPath(base NodePath, rel NodePath) NodePath {
	out := make(NodePath, 0, len(base)+len(rel))
	out = append(out, base...)
	out = append(out, rel...)
	return out
}
