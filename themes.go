/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"sync"

	"github.com/fsnotify/fsnotify"
)

const wordsPerTheme = 9

var themeIDPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// Theme ids double as page paths, so they may not shadow fixed routes.
var reservedThemeIDs = map[string]bool{
	"admin":    true,
	"api":      true,
	"assets":   true,
	"favicons": true,
	"healthz":  true,
	"pprof":    true,
	"qr":       true,
	"version":  true,
	"ws":       true,
}

// Theme is one bingo board definition. Fields the server does not know about
// are kept as-is so that edits made by other tools survive a save.
type Theme struct {
	Title string
	Color string
	Words []string

	extra map[string]json.RawMessage
}

func (t Theme) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(t.extra)+3)
	for k, v := range t.extra {
		out[k] = v
	}

	words := t.Words
	if words == nil {
		words = []string{}
	}

	out["title"] = t.Title
	out["color"] = t.Color
	out["words"] = words

	return json.Marshal(out)
}

func (t *Theme) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*t = Theme{}

	for key, dst := range map[string]any{"title": &t.Title, "color": &t.Color, "words": &t.Words} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(raw, dst); err != nil {
			return fmt.Errorf("theme field %q: %w", key, err)
		}
		delete(fields, key)
	}

	if len(fields) > 0 {
		t.extra = fields
	}

	return nil
}

// ValidationError reports the first catalog entry that failed validation.
type ValidationError struct {
	ThemeID string
	Reason  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Theme %s %s", e.ThemeID, e.Reason)
}

func validateTheme(id string, t Theme) error {
	switch {
	case !themeIDPattern.MatchString(id):
		return &ValidationError{ThemeID: id, Reason: "must have an id of lowercase letters, digits and dashes"}
	case reservedThemeIDs[id]:
		return &ValidationError{ThemeID: id, Reason: "uses a reserved id"}
	case t.Title == "":
		return &ValidationError{ThemeID: id, Reason: "must have a title"}
	case len(t.Words) != wordsPerTheme:
		return &ValidationError{ThemeID: id, Reason: fmt.Sprintf("must have exactly %d words", wordsPerTheme)}
	}

	return nil
}

func validateThemes(themes map[string]Theme) error {
	for _, id := range slices.Sorted(maps.Keys(themes)) {
		if err := validateTheme(id, themes[id]); err != nil {
			return err
		}
	}

	return nil
}

// Catalog is the in-memory theme set, backed by a JSON file. Admin writes and
// file reloads both go through replace.
type Catalog struct {
	cfg  *Config
	path string

	mu     sync.RWMutex
	themes map[string]Theme
}

func newCatalog(cfg *Config, path string) *Catalog {
	return &Catalog{
		cfg:    cfg,
		path:   path,
		themes: make(map[string]Theme),
	}
}

func (c *Catalog) get(id string) (Theme, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.themes[id]

	return t, ok
}

func (c *Catalog) all() map[string]Theme {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.themes)
}

func (c *Catalog) ids() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return slices.Sorted(maps.Keys(c.themes))
}

// replace validates themes and swaps them in. Nothing changes on error.
func (c *Catalog) replace(themes map[string]Theme) error {
	if err := validateThemes(themes); err != nil {
		return err
	}

	c.mu.Lock()
	c.themes = maps.Clone(themes)
	c.mu.Unlock()

	return nil
}

// commit is the admin write path: replace, then persist.
func (c *Catalog) commit(themes map[string]Theme) error {
	if err := c.replace(themes); err != nil {
		return err
	}

	c.persist()

	return nil
}

func (c *Catalog) put(id string, t Theme) error {
	if err := validateTheme(id, t); err != nil {
		return err
	}

	c.mu.Lock()
	c.themes[id] = t
	c.mu.Unlock()

	c.persist()

	return nil
}

func (c *Catalog) delete(id string) bool {
	c.mu.Lock()
	_, ok := c.themes[id]
	delete(c.themes, id)
	c.mu.Unlock()

	if ok {
		c.persist()
	}

	return ok
}

// persist writes the catalog to disk. Failures are logged; memory stays
// authoritative.
func (c *Catalog) persist() {
	if err := c.save(); err != nil {
		logErr(err)

		return
	}

	logf(c.cfg, "THEMES: Saved %d themes to %s", len(c.ids()), c.path)
}

func (c *Catalog) save() error {
	c.mu.RLock()
	data, err := json.MarshalIndent(c.themes, "", "  ")
	c.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode themes: %w", err)
	}

	if err := writeFileAtomic(c.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write themes: %w", err)
	}

	return nil
}

// load is the reload path: read the file and replace the catalog with it.
func (c *Catalog) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return fmt.Errorf("read themes: %w", err)
	}

	var themes map[string]Theme
	if err := json.Unmarshal(data, &themes); err != nil {
		return fmt.Errorf("parse themes %s: %w", c.path, err)
	}

	if themes == nil {
		themes = make(map[string]Theme)
	}

	if err := c.replace(themes); err != nil {
		return err
	}

	logf(c.cfg, "THEMES: Loaded %v", c.ids())

	return nil
}

// watch reloads the catalog whenever its file is written or recreated, until
// ctx is cancelled. The parent directory is watched so that editors which
// replace the file by rename are picked up too.
func (c *Catalog) watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	if err := watcher.Add(filepath.Dir(c.path)); err != nil {
		_ = watcher.Close()

		return err
	}

	target := filepath.Clean(c.path)

	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return

			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}

				logf(c.cfg, "THEMES: %s changed, reloading", c.path)

				if err := c.load(); err != nil {
					logErr(err)
				}

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				logErr(err)
			}
		}
	}()

	return nil
}
