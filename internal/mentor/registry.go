// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mentor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// IndexFile is the registry index inside a mentor directory.
const IndexFile = "index.json"

// IndexEntry is one mentor listed in index.json.
type IndexEntry struct {
	ID         string   `json:"id"`
	PromptFile string   `json:"promptFile"`
	Keywords   []string `json:"keywords"`
}

// Index is the decoded index.json document.
type Index struct {
	Mentors []IndexEntry `json:"mentors"`
}

// ============================================================================
// REGISTRY
// ============================================================================

// Registry maps mentor ids to configs. Built-in mentors are always present;
// a directory can override them or add new ones.
type Registry struct {
	mu      sync.RWMutex
	configs map[ID]*Config
}

// NewRegistry creates a registry holding the built-in mentors.
func NewRegistry() *Registry {
	r := &Registry{}
	r.configs = builtIns()
	return r
}

func builtIns() map[ID]*Config {
	configs := make(map[ID]*Config, len(BuiltIn))
	for _, id := range BuiltIn {
		configs[id] = builtInConfig(id)
	}
	return configs
}

// LoadDir reads dir/index.json and every prompt file it lists. On success the
// registry is replaced atomically by built-ins overlaid with the directory.
// On failure the current registry is left untouched.
func (r *Registry) LoadDir(dir string) error {
	data, err := os.ReadFile(filepath.Join(dir, IndexFile))
	if err != nil {
		return fmt.Errorf("failed to read mentor index: %w", err)
	}
	var index Index
	if err := json.Unmarshal(data, &index); err != nil {
		return fmt.Errorf("failed to decode mentor index: %w", err)
	}

	configs := builtIns()
	for _, entry := range index.Mentors {
		id := Clean(entry.ID)
		if id == "" || entry.PromptFile == "" {
			return fmt.Errorf("mentor index entry %q is missing id or promptFile", entry.ID)
		}
		path := entry.PromptFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read mentor %s: %w", id, err)
		}
		cfg, err := ParseConfig(raw)
		if err != nil {
			return fmt.Errorf("mentor %s: %w", id, err)
		}
		cfg.ID = string(id)
		if len(entry.Keywords) > 0 && len(cfg.Metadata.Tags) == 0 {
			cfg.Metadata.Tags = entry.Keywords
		}
		configs[id] = cfg
	}

	r.mu.Lock()
	r.configs = configs
	r.mu.Unlock()
	return nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.configs[id]
	return ok
}

// Normalize maps a raw tag to a registered mentor, defaulting to General.
func (r *Registry) Normalize(raw string) ID {
	id := Clean(raw)
	if id != "" && r.Has(id) {
		return id
	}
	return General
}

// Get returns a copy of the config for id, falling back to General.
func (r *Registry) Get(id ID) *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		cfg = r.configs[General]
	}
	return cfg.Clone()
}

// SystemPrompt returns the default system prompt for id.
func (r *Registry) SystemPrompt(id ID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[id]
	if !ok {
		cfg = r.configs[General]
	}
	return cfg.Persona.SystemPrompt
}

// IDs lists registered mentors: built-ins first in display order, then the
// rest alphabetically.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]ID, 0, len(r.configs))
	for _, id := range BuiltIn {
		if _, ok := r.configs[id]; ok {
			ids = append(ids, id)
		}
	}
	var extra []ID
	for id := range r.configs {
		if !IsBuiltIn(id) {
			extra = append(extra, id)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(ids, extra...)
}

// Put registers or replaces a config after validating it.
func (r *Registry) Put(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil mentor config")
	}
	c := cfg.Clone()
	c.ID = strings.ToLower(strings.TrimSpace(c.ID))
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	r.configs[ID(c.ID)] = c
	r.mu.Unlock()
	return nil
}
