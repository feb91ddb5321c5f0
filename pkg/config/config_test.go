package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vtedit/core/pkg/config"
)

func TestExecuteResolvesCanonicalName(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	redraw, err := r.Execute(s, "tabwidth", "4")
	require.NoError(t, err)
	require.True(t, redraw)
	require.Equal(t, 4, s.TabWidth)
}

func TestExecuteResolvesAlias(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "tw", "2")
	require.NoError(t, err)
	require.Equal(t, 2, s.TabWidth)
}

func TestExecuteResolvesUnambiguousPrefix(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "borderst", "ascii")
	require.NoError(t, err)
	require.Equal(t, "ascii", s.BorderStyle)
}

func TestExecuteRejectsUnknownOption(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "nonexistent", "1")
	require.Error(t, err)
}

func TestExecuteRejectsAmbiguousPrefix(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	// "command_line." is a shared prefix across five descriptors.
	_, err := r.Execute(s, "command_line.", "1")
	require.Error(t, err)
}

func TestExecuteValidatesIntegerBounds(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "tabwidth", "0")
	require.Error(t, err)
}

func TestExecuteParsesBooleanSynonyms(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "expandtabs", "yes")
	require.NoError(t, err)
	require.True(t, s.ExpandTabs)

	_, err = r.Execute(s, "et", "off")
	require.NoError(t, err)
	require.False(t, s.ExpandTabs)
}

func TestExecuteCanonicalizesEnumCase(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "theme", "GRUVBOX")
	require.NoError(t, err)
	require.Equal(t, "gruvbox", s.Theme)
}

func TestExecuteRejectsInvalidEnumValue(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "theme", "nonexistent-theme")
	require.Error(t, err)
}

func TestExecuteParsesNamedAndHexColors(t *testing.T) {
	r := config.NewRegistry()
	s := config.Defaults()
	_, err := r.Execute(s, "bg", "red")
	require.NoError(t, err)
	require.Equal(t, uint8(205), s.EditorBackground.R)

	_, err = r.Execute(s, "fg", "#00ff00")
	require.NoError(t, err)
	require.Equal(t, uint8(0), s.EditorForeground.R)
	require.Equal(t, uint8(255), s.EditorForeground.G)
}

func TestLoadFallsBackToDefaultsWhenMissing(t *testing.T) {
	s, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	require.Equal(t, config.Defaults(), s)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	s := config.Defaults()
	s.TabWidth = 2
	s.Theme = "gruvbox"
	require.NoError(t, config.Save(path, s))

	loaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 2, loaded.TabWidth)
	require.Equal(t, "gruvbox", loaded.Theme)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NotEmpty(t, data)
}
