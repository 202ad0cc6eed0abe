// Package catalog loads the characters and subjects offered to players.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultFS embed.FS

// Catalog holds characters and subjects keyed by ID.
type Catalog struct {
	characters map[string]Character
	subjects   map[string]Subject
	mu         sync.RWMutex
}

// Load reads every YAML file under dir. An empty dir loads the built-in catalog.
func Load(dir string) (*Catalog, error) {
	var fsys fs.FS = defaultFS
	if dir != "" {
		fsys = os.DirFS(dir)
	}

	c := &Catalog{
		characters: make(map[string]Character),
		subjects:   make(map[string]Subject),
	}
	if err := c.loadAll(fsys); err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}
	if len(c.characters) == 0 || len(c.subjects) == 0 {
		return nil, fmt.Errorf("catalog %q has no characters or no subjects", dir)
	}

	slog.Info("catalog loaded", "characters", len(c.characters), "subjects", len(c.subjects))
	return c, nil
}

// Character returns a character by ID.
func (c *Catalog) Character(id string) (Character, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ch, ok := c.characters[id]
	return ch, ok
}

// CharacterByName returns a character by display name, case-insensitively.
// The generation endpoint receives names, not IDs.
func (c *Catalog) CharacterByName(name string) (Character, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range c.characters {
		if strings.EqualFold(ch.Name, name) {
			return ch, true
		}
	}
	return Character{}, false
}

// Subject returns a subject by ID.
func (c *Catalog) Subject(id string) (Subject, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.subjects[id]
	return s, ok
}

// Characters returns all characters sorted by ID.
func (c *Catalog) Characters() []Character {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Character, 0, len(c.characters))
	for _, ch := range c.characters {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subjects returns all subjects sorted by ID.
func (c *Catalog) Subjects() []Subject {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Subject, 0, len(c.subjects))
	for _, s := range c.subjects {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (c *Catalog) loadAll(fsys fs.FS) error {
	return fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
			return c.loadFile(fsys, path)
		}
		return nil
	})
}

func (c *Catalog) loadFile(fsys fs.FS, path string) error {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return err
	}

	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		slog.Warn("skipping invalid catalog YAML", "path", path, "error", err)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ch := range f.Characters {
		if ch.ID == "" || ch.Name == "" {
			continue
		}
		c.characters[ch.ID] = ch
	}
	for _, s := range f.Subjects {
		if s.ID == "" || s.Name == "" {
			continue
		}
		if s.Level < 1 {
			s.Level = 1
		}
		c.subjects[s.ID] = s
	}
	return nil
}
