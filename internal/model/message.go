// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"path/filepath"
	"strings"
	"time"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the stored roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Mentor"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// FILE METADATA
// =============================================================================

// FileMeta describes an attachment sent alongside a message.
type FileMeta struct {
	Name string `json:"name"`
	URL  string `json:"url,omitempty"`
	Type string `json:"type,omitempty"`
	Size int64  `json:"size,omitempty"`
}

// Ext returns the lowercased file extension including the dot.
func (f FileMeta) Ext() string {
	return strings.ToLower(filepath.Ext(f.Name))
}

// MIME returns the lowercased MIME type without parameters.
func (f FileMeta) MIME() string {
	mime := strings.ToLower(strings.TrimSpace(f.Type))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	return mime
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Metadata is stored alongside each message.
type Metadata struct {
	Mentor string     `json:"mentor,omitempty"`
	Model  string     `json:"model,omitempty"`
	Files  []FileMeta `json:"files,omitempty"`
}

// Message is append-only. History is ordered by CreatedAt ascending with
// insertion order breaking ties.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"-"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"createdAt"`
	Metadata       Metadata  `json:"-"`
}

// HistoryItem is the wire form of a message inside a chat response.
type HistoryItem struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"createdAt"`
	Mentor    string     `json:"mentor,omitempty"`
	Files     []FileMeta `json:"files,omitempty"`
	Model     string     `json:"model,omitempty"`
}

// HistoryItem converts the message to its wire form.
func (m *Message) HistoryItem() HistoryItem {
	return HistoryItem{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
		Mentor:    m.Metadata.Mentor,
		Files:     m.Metadata.Files,
		Model:     m.Metadata.Model,
	}
}

// History converts a slice of messages preserving order.
func History(msgs []*Message) []HistoryItem {
	items := make([]HistoryItem, 0, len(msgs))
	for _, m := range msgs {
		items = append(items, m.HistoryItem())
	}
	return items
}
