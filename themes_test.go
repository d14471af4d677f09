/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nineWords() []string {
	return []string{"one", "two", "three", "four", "five", "six", "seven", "eight", "nine"}
}

func writeThemesFile(t *testing.T, path string, themes map[string]Theme) []byte {
	t.Helper()

	data, err := json.MarshalIndent(themes, "", "  ")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return data
}

func TestValidateThemes(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		theme  Theme
		reason string
	}{
		{name: "valid", id: "agile", theme: Theme{Title: "Agile", Words: nineWords()}},
		{name: "eight words", id: "short", theme: Theme{Title: "Short", Words: nineWords()[:8]}, reason: "must have exactly 9 words"},
		{name: "ten words", id: "long", theme: Theme{Title: "Long", Words: append(nineWords(), "ten")}, reason: "must have exactly 9 words"},
		{name: "no title", id: "untitled", theme: Theme{Words: nineWords()}, reason: "must have a title"},
		{name: "bad id", id: "Not Valid", theme: Theme{Title: "x", Words: nineWords()}, reason: "must have an id of lowercase letters, digits and dashes"},
		{name: "reserved id", id: "admin", theme: Theme{Title: "x", Words: nineWords()}, reason: "uses a reserved id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateThemes(map[string]Theme{tt.id: tt.theme})
			if tt.reason == "" {
				assert.NoError(t, err)
				return
			}

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.id, verr.ThemeID)
			assert.Equal(t, tt.reason, verr.Reason)
		})
	}
}

func TestValidateThemes_ReportsFirstInvalidID(t *testing.T) {
	err := validateThemes(map[string]Theme{
		"zeta":  {Title: "Z", Words: nineWords()[:3]},
		"alpha": {Title: "A", Words: nineWords()[:8]},
		"beta":  {Title: "B", Words: nineWords()},
	})

	assert.EqualError(t, err, "Theme alpha must have exactly 9 words")
}

func TestTheme_PreservesUnknownFields(t *testing.T) {
	in := `{"title":"Agile","color":"#fff","words":["a"],"author":"sam","tags":["x","y"]}`

	var theme Theme
	require.NoError(t, json.Unmarshal([]byte(in), &theme))

	assert.Equal(t, "Agile", theme.Title)
	assert.Equal(t, "#fff", theme.Color)
	assert.Equal(t, []string{"a"}, theme.Words)

	out, err := json.Marshal(theme)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestTheme_RejectsWrongFieldTypes(t *testing.T) {
	var theme Theme
	assert.Error(t, json.Unmarshal([]byte(`{"title":"x","words":"nope"}`), &theme))
}

func TestCatalog_CommitRejectsInvalidAndLeavesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.json")
	original := writeThemesFile(t, path, map[string]Theme{
		"agile": {Title: "Agile", Color: "#0a0", Words: nineWords()},
	})

	catalog := newCatalog(testConfig(), path)
	require.NoError(t, catalog.load())

	err := catalog.commit(map[string]Theme{
		"agile":   {Title: "Agile", Words: nineWords()},
		"meeting": {Title: "Meeting", Words: nineWords()[:8]},
	})

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "meeting", verr.ThemeID)

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, original, onDisk)

	_, ok := catalog.get("meeting")
	assert.False(t, ok)
	assert.Equal(t, []string{"agile"}, catalog.ids())
}

func TestCatalog_CommitPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.json")
	catalog := newCatalog(testConfig(), path)

	require.NoError(t, catalog.commit(map[string]Theme{
		"meeting": {Title: "Meeting", Color: "#c50", Words: nineWords()},
	}))

	reloaded := newCatalog(testConfig(), path)
	require.NoError(t, reloaded.load())

	theme, ok := reloaded.get("meeting")
	require.True(t, ok)
	assert.Equal(t, "Meeting", theme.Title)
	assert.Equal(t, "#c50", theme.Color)
	assert.Equal(t, nineWords(), theme.Words)
}

func TestCatalog_PutAndDelete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.json")
	catalog := newCatalog(testConfig(), path)

	require.NoError(t, catalog.put("agile", Theme{Title: "Agile", Words: nineWords()}))
	assert.Error(t, catalog.put("broken", Theme{Title: "Broken", Words: nineWords()[:2]}))
	assert.Equal(t, []string{"agile"}, catalog.ids())

	assert.True(t, catalog.delete("agile"))
	assert.False(t, catalog.delete("agile"))

	reloaded := newCatalog(testConfig(), path)
	require.NoError(t, reloaded.load())
	assert.Empty(t, reloaded.ids())
}

func TestCatalog_LoadFailuresKeepPreviousState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.json")
	writeThemesFile(t, path, map[string]Theme{
		"agile": {Title: "Agile", Words: nineWords()},
	})

	catalog := newCatalog(testConfig(), path)
	require.NoError(t, catalog.load())

	require.NoError(t, os.WriteFile(path, []byte(`{"agile":`), 0o644))
	assert.Error(t, catalog.load())

	writeThemesFile(t, path, map[string]Theme{
		"agile": {Title: "Agile", Words: nineWords()[:1]},
	})
	assert.Error(t, catalog.load())

	require.NoError(t, os.Remove(path))
	assert.ErrorIs(t, catalog.load(), os.ErrNotExist)

	assert.Equal(t, []string{"agile"}, catalog.ids())
}

func TestCatalog_WatchReloadsOnEdit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "themes.json")
	writeThemesFile(t, path, map[string]Theme{
		"agile": {Title: "Agile", Words: nineWords()},
	})

	catalog := newCatalog(testConfig(), path)
	require.NoError(t, catalog.load())

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, catalog.watch(ctx))

	writeThemesFile(t, path, map[string]Theme{
		"agile":   {Title: "Agile", Words: nineWords()},
		"meeting": {Title: "Meeting", Words: nineWords()},
	})

	require.Eventually(t, func() bool {
		_, ok := catalog.get("meeting")
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	writeThemesFile(t, path, map[string]Theme{
		"meeting": {Title: "Meeting", Words: nineWords()[:4]},
	})

	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "unrelated.json"), []byte(`{}`), 0o644))

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"agile", "meeting"}, catalog.ids())
}
