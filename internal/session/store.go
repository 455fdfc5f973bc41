// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/polychat/internal/util"
)

// =============================================================================
// PERSISTED STATE
// =============================================================================

// Mentor selection modes.
const (
	ModeAuto   = "auto"
	ModeManual = "manual"
)

// State is the client state that survives restarts. ConversationID is
// cleared by a chat reset while UserID is kept.
type State struct {
	UserID         string    `json:"userId,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	MentorID       string    `json:"mentorId,omitempty"`
	Mode           string    `json:"mode,omitempty"`
	Model          string    `json:"model,omitempty"`
	SavedAt        time.Time `json:"savedAt"`
}

// IsZero reports whether nothing has been persisted yet.
func (s State) IsZero() bool {
	return s.UserID == "" && s.ConversationID == "" && s.MentorID == "" && s.Model == ""
}

// Store persists client session state.
type Store interface {
	// Load returns the stored state, or a zero State when none exists.
	Load() (State, error)
	Save(State) error
	// Clear removes the conversation id, and the user id too when
	// clearUser is set.
	Clear(clearUser bool) error
}

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore keeps the state as a JSON document written atomically.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a store backed by path. The directory is created on
// first save.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the state file. A missing file yields a zero State.
func (f *FileStore) Load() (State, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load()
}

func (f *FileStore) load() (State, error) {
	var st State
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return st, nil
		}
		return st, errors.Wrap(err, "failed to read session file")
	}
	if len(data) == 0 {
		return st, nil
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, errors.Wrapf(err, "failed to parse session file %s", f.path)
	}
	return st, nil
}

// Save writes the state, stamping SavedAt.
func (f *FileStore) Save(st State) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(st)
}

func (f *FileStore) save(st State) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return errors.Wrap(err, "failed to create session directory")
	}
	st.SavedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode session")
	}
	return util.AtomicWriteFile(f.path, data, 0o600)
}

// Clear drops the conversation id and optionally the user id.
func (f *FileStore) Clear(clearUser bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	st, err := f.load()
	if err != nil {
		// A corrupt file is replaced rather than preserved.
		st = State{}
	}
	st.ConversationID = ""
	if clearUser {
		st.UserID = ""
	}
	return f.save(st)
}

// =============================================================================
// MEMORY STORE
// =============================================================================

// MemoryStore keeps the state in process; used by tests and one-shot commands.
type MemoryStore struct {
	mu    sync.Mutex
	state State
	saves int
}

// NewMemoryStore returns a store seeded with initial.
func NewMemoryStore(initial State) *MemoryStore {
	return &MemoryStore{state: initial}
}

// Load returns the current state.
func (m *MemoryStore) Load() (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

// Save replaces the current state.
func (m *MemoryStore) Save(st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.SavedAt = time.Now().UTC()
	m.state = st
	m.saves++
	return nil
}

// Clear drops the conversation id and optionally the user id.
func (m *MemoryStore) Clear(clearUser bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ConversationID = ""
	if clearUser {
		m.state.UserID = ""
	}
	return nil
}

// Saves counts Save calls.
func (m *MemoryStore) Saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
