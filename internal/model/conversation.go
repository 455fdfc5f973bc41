// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// PreviewMaxRunes bounds the derived conversation preview.
const PreviewMaxRunes = 80

// =============================================================================
// USER TYPE
// =============================================================================

// User is created lazily on the first message and never mutated afterwards.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is an ordered thread between one user and one mentor.
type Conversation struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	MentorID      string     `json:"mentorId"`
	Title         *string    `json:"title"`
	Preview       *string    `json:"preview,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

// HasPreview reports whether the first-write-wins preview has been set.
func (c *Conversation) HasPreview() bool {
	return c.Preview != nil
}

// Summary converts the conversation to its list representation.
// The preview falls back to the title when unset.
func (c *Conversation) Summary() ConversationSummary {
	s := ConversationSummary{
		ID:            c.ID,
		UserID:        c.UserID,
		MentorID:      c.MentorID,
		Title:         c.Title,
		CreatedAt:     c.CreatedAt,
		Preview:       c.Preview,
		LastMessageAt: c.LastMessageAt,
	}
	if s.Preview == nil && c.Title != nil {
		title := *c.Title
		s.Preview = &title
	}
	return s
}

// ConversationSummary is the list view returned by GET /conversations.
type ConversationSummary struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	MentorID      string     `json:"mentorId"`
	Title         *string    `json:"title"`
	CreatedAt     time.Time  `json:"createdAt"`
	Preview       *string    `json:"preview,omitempty"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
}

// DisplayTitle returns the best human label for the conversation.
func (s ConversationSummary) DisplayTitle() string {
	switch {
	case s.Title != nil && *s.Title != "":
		return *s.Title
	case s.Preview != nil && *s.Preview != "":
		return *s.Preview
	default:
		return "New conversation"
	}
}

// ListOptions filters and pages a conversation listing.
type ListOptions struct {
	Query  string
	Limit  int
	Offset int
}

// MessagePage selects a window of history. Before is exclusive.
type MessagePage struct {
	Limit  int
	Before *time.Time
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
