package search_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/search"
)

// identity treats byte offsets as char offsets, fine for pure-ASCII
// fixtures where the two coincide.
func identity(b int) int { return b }

func TestCompileDetectsLiteralFastPath(t *testing.T) {
	pat, err := search.Compile("hello world")
	require.NoError(t, err)
	require.True(t, pat.IsLiteral())
}

func TestCompileTreatsMetacharactersAsRegex(t *testing.T) {
	pat, err := search.Compile("fo+bar")
	require.NoError(t, err)
	require.False(t, pat.IsLiteral())
}

func TestFindAllLiteralMatchesNonOverlapping(t *testing.T) {
	pat, err := search.Compile("aa")
	require.NoError(t, err)

	matches := search.FindAll([]byte("aaaa"), pat, identity)
	require.Len(t, matches, 2)
	require.Equal(t, search.Match{StartChar: 0, EndChar: 2}, matches[0])
	require.Equal(t, search.Match{StartChar: 2, EndChar: 4}, matches[1])
}

func TestFindAllEmptyLiteralReturnsNoMatches(t *testing.T) {
	pat, err := search.Compile("")
	require.NoError(t, err)
	matches := search.FindAll([]byte("anything"), pat, identity)
	require.Nil(t, matches)
}

func TestFindAllRegexMatchesWordBoundary(t *testing.T) {
	pat, err := search.Compile(`\bfoo\b`)
	require.NoError(t, err)

	matches := search.FindAll([]byte("foo foobar foo"), pat, identity)
	require.Len(t, matches, 2)
	require.Equal(t, 0, matches[0].StartChar)
	require.Equal(t, 11, matches[1].StartChar)
}

func TestCompileRejectsNestedUnboundedQuantifiers(t *testing.T) {
	_, err := search.Compile("(a+)+")
	require.Error(t, err)
}

func TestCompileRejectsAdjacentBroadQuantifiers(t *testing.T) {
	_, err := search.Compile(".*.*")
	require.Error(t, err)
}

func TestCompileRejectsInvalidRegexSyntax(t *testing.T) {
	_, err := search.Compile("(unterminated")
	require.Error(t, err)
}

func TestFindAllUsesByteToCharConversion(t *testing.T) {
	pat, err := search.Compile("b")
	require.NoError(t, err)

	// Fake a converter that maps every byte offset to offset*2, as if
	// every preceding character were 2 bytes wide.
	conv := func(bytePos int) int { return bytePos * 2 }
	matches := search.FindAll([]byte("ab"), pat, conv)
	require.Len(t, matches, 1)
	require.Equal(t, search.Match{StartChar: 2, EndChar: 4}, matches[0])
}
