// Package search implements pattern matching over a document: a literal
// fast path, and an RE2-backed regex path for everything else, with a
// static complexity guard ahead of compilation. Grounded on spec.md
// §4.8; the capability-test shape (compile/find_all/complexity-guard as
// three independent operations) follows
// original_source/src/search/capability_test.rs.
package search

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/vtedit/core/pkg/apperr"
)

// Match is one hit, in character offsets — never byte offsets, so
// callers never need to re-derive positions from raw bytes.
type Match struct {
	StartChar, EndChar int
}

// Pattern is a compiled search pattern, either the literal fast path or
// a full regular expression.
type Pattern struct {
	literal string
	isLit   bool
	re      *regexp.Regexp
}

const metaChars = `.*+?()[]{}|^$\`

func looksLiteral(pattern string) bool {
	return !strings.ContainsAny(pattern, metaChars)
}

// nestedQuantifier flags a parenthesized group that itself contains an
// unbounded quantifier and is then itself unbounded-quantified — the
// textbook catastrophic-backtracking shape. RE2 can't actually blow up
// on this (it has no backtracking), but spec.md §4.8 asks for a static
// pre-check that rejects patterns flagged this way before compilation,
// independent of the engine's own runtime guarantee.
var nestedQuantifier = regexp.MustCompile(`\([^()]*[*+][^()]*\)[*+]`)

// adjacentBroadQuantifier flags two or more unbounded broad-class
// quantifiers back to back with nothing anchoring them apart, e.g.
// ".*.*" or ".+.*" — the un-parenthesized sibling of nestedQuantifier.
// Each still compiles and runs in RE2's linear time, but back-to-back
// broad scans like this are never what a search query means to express.
var adjacentBroadQuantifier = regexp.MustCompile(`(?:\.[*+]|\[\^?[^\]]*\][*+]){2,}`)

// Compile builds a Pattern, detecting literal patterns for the faster
// scanner and rejecting patterns the complexity guard flags.
func Compile(pattern string) (*Pattern, error) {
	if looksLiteral(pattern) {
		return &Pattern{literal: pattern, isLit: true}, nil
	}
	if nestedQuantifier.MatchString(pattern) || adjacentBroadQuantifier.MatchString(pattern) {
		return nil, apperr.New(apperr.Parse, "SEARCH_COMPLEXITY", "pattern rejected: nested unbounded quantifiers")
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, apperr.Wrap(apperr.Parse, "SEARCH_PARSE", err)
	}
	return &Pattern{re: re}, nil
}

// ByteToChar converts a byte offset into the document into a character
// offset; callers pass pkg/piece.Table.ByteToChar, which already does
// this in O(log P) via its cumulative-byte cache, so this package need
// not maintain its own per-line offset map.
type ByteToChar func(bytePos int) int

// FindAll returns every match against data, in document order.
func FindAll(data []byte, pat *Pattern, byteToChar ByteToChar) []Match {
	if pat.isLit {
		return findLiteral(data, pat.literal, byteToChar)
	}
	idxs := pat.re.FindAllIndex(data, -1)
	out := make([]Match, 0, len(idxs))
	for _, m := range idxs {
		out = append(out, Match{StartChar: byteToChar(m[0]), EndChar: byteToChar(m[1])})
	}
	return out
}

func findLiteral(data []byte, lit string, byteToChar ByteToChar) []Match {
	if lit == "" {
		return nil
	}
	needle := []byte(lit)
	var out []Match
	start := 0
	for start <= len(data) {
		idx := bytes.Index(data[start:], needle)
		if idx == -1 {
			break
		}
		abs := start + idx
		out = append(out, Match{StartChar: byteToChar(abs), EndChar: byteToChar(abs + len(needle))})
		start = abs + len(needle)
	}
	return out
}

// IsLiteral reports whether pat uses the literal fast path.
func (p *Pattern) IsLiteral() bool { return p.isLit }
