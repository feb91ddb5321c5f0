package keymap_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/keymap"
)

func TestExactMatchInSpecificContextWins(t *testing.T) {
	d := keymap.New()
	d.Register(keymap.Global, "q", "global-quit")
	d.Register("Normal", "q", "normal-quit")

	res := d.Lookup("Normal", "q")
	require.Equal(t, keymap.Exact, res.Kind)
	require.Equal(t, keymap.Action("normal-quit"), res.Action)
}

func TestFallsBackToGlobal(t *testing.T) {
	d := keymap.New()
	d.Register(keymap.Global, "ZZ", "save-quit")

	res := d.Lookup("Normal", "ZZ")
	require.Equal(t, keymap.Exact, res.Kind)
	require.Equal(t, keymap.Action("save-quit"), res.Action)
}

func TestPrefixThenExact(t *testing.T) {
	d := keymap.New()
	d.Register("Normal", "gg", "goto-top")

	res := d.Lookup("Normal", "g")
	require.Equal(t, keymap.Prefix, res.Kind)

	res = d.Lookup("Normal", "gg")
	require.Equal(t, keymap.Exact, res.Kind)
}

func TestNoneWhenNothingMatches(t *testing.T) {
	d := keymap.New()
	d.Register("Normal", "gg", "goto-top")
	res := d.Lookup("Normal", "x")
	require.Equal(t, keymap.None, res.Kind)
}

func TestCountPrefixParsing(t *testing.T) {
	d := keymap.New()
	d.Register("Normal", "j", "move-down")

	res := d.Resolve("Normal", "4j")
	require.True(t, res.HasCount)
	require.Equal(t, 4, res.Count)
	require.Equal(t, keymap.Exact, res.Result.Kind)
	require.Equal(t, keymap.Action("move-down"), res.Result.Action)
}

func TestZeroAmbiguityBindingWins(t *testing.T) {
	d := keymap.New()
	d.Register("Normal", "0", "move-to-line-start")

	res := d.Resolve("Normal", "0")
	require.False(t, res.HasCount, "a binding for bare 0 must win over count parsing")
	require.Equal(t, keymap.Exact, res.Result.Kind)
	require.Equal(t, keymap.Action("move-to-line-start"), res.Result.Action)
}

func TestZeroStartsCountWhenNoBinding(t *testing.T) {
	d := keymap.New()
	d.Register("Normal", "j", "move-down")

	res := d.Resolve("Normal", "05j")
	require.True(t, res.HasCount)
	require.Equal(t, 5, res.Count)
}

func TestLeadingZeroAfterNonzeroDigitIsPartOfCount(t *testing.T) {
	d := keymap.New()
	d.Register("Normal", "j", "move-down")
	res := d.Resolve("Normal", "10j")
	require.True(t, res.HasCount)
	require.Equal(t, 10, res.Count)
}
