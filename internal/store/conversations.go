// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/util"
)

// Conversation list paging bounds.
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

const conversationColumns = `id, user_id, mentor_id, title, preview, created_at, last_message_at`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*model.Conversation, error) {
	var (
		c        model.Conversation
		title    sql.NullString
		preview  sql.NullString
		created  int64
		lastMsgs sql.NullInt64
	)
	if err := row.Scan(&c.ID, &c.UserID, &c.MentorID, &title, &preview, &created, &lastMsgs); err != nil {
		return nil, err
	}
	c.Title = nullString(title)
	c.Preview = nullString(preview)
	c.CreatedAt = fromNanos(created)
	c.LastMessageAt = nullTime(lastMsgs)
	return &c, nil
}

// EnsuredConversation is the result of EnsureConversation.
type EnsuredConversation struct {
	Conversation *model.Conversation
	// Created reports whether the preview is still unset, which is true for
	// new threads and for threads whose first message was never stored.
	Created bool
}

// =============================================================================
// CREATE / ENSURE
// =============================================================================

// CreateConversation starts an empty conversation with a null title and
// preview. An empty mentor defaults to general.
func (s *Store) CreateConversation(ctx context.Context, userID, mentorID string) (*model.Conversation, error) {
	if strings.TrimSpace(mentorID) == "" {
		mentorID = "general"
	}
	now := s.now()
	conv := &model.Conversation{
		ID:            uuid.NewString(),
		UserID:        userID,
		MentorID:      mentorID,
		CreatedAt:     now,
		LastMessageAt: &now,
	}

	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO conversations (id, user_id, mentor_id, title, preview, created_at, last_message_at)
			VALUES (?, ?, ?, NULL, NULL, ?, ?)`),
		conv.ID, conv.UserID, conv.MentorID, toNanos(now), toNanos(now))
	s.observe("create_conversation", start, err)
	if err != nil {
		return nil, s.fail("create_conversation", err)
	}
	return conv, nil
}

// EnsureConversation reuses existingID when it names a conversation owned by
// userID, and otherwise creates a new one with mentorID. A stale or foreign
// id never fails. An existing conversation is returned unmodified.
func (s *Store) EnsureConversation(ctx context.Context, userID, mentorID, existingID string) (*EnsuredConversation, error) {
	existingID = strings.TrimSpace(existingID)
	if existingID != "" {
		conv, err := s.getOwnedConversation(ctx, existingID, userID)
		if err != nil {
			return nil, err
		}
		if conv != nil {
			return &EnsuredConversation{Conversation: conv, Created: !conv.HasPreview()}, nil
		}
		s.log.Info().
			Str("conversation_id", existingID).
			Str("user_id", userID).
			Msg("conversation not found for user, creating a new one")
	}

	conv, err := s.CreateConversation(ctx, userID, mentorID)
	if err != nil {
		return nil, err
	}
	return &EnsuredConversation{Conversation: conv, Created: true}, nil
}

func (s *Store) getOwnedConversation(ctx context.Context, id, userID string) (*model.Conversation, error) {
	start := time.Now()
	conv, err := scanConversation(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+conversationColumns+` FROM conversations WHERE id = ? AND user_id = ?`),
		id, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	s.observe("get_owned_conversation", start, err)
	if err != nil {
		return nil, s.fail("get_conversation", err)
	}
	return conv, nil
}

// SetConversationMentor records the mentor that last answered in a
// conversation.
func (s *Store) SetConversationMentor(ctx context.Context, id, mentorID string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		s.q(`UPDATE conversations SET mentor_id = ? WHERE id = ?`), mentorID, id)
	s.observe("set_conversation_mentor", start, err)
	if err != nil {
		return s.fail("set_conversation_mentor", err)
	}
	return nil
}

// =============================================================================
// READ
// =============================================================================

// GetConversation loads a conversation regardless of owner.
func (s *Store) GetConversation(ctx context.Context, id string) (*model.Conversation, error) {
	start := time.Now()
	conv, err := scanConversation(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+conversationColumns+` FROM conversations WHERE id = ?`), id))
	if err == sql.ErrNoRows {
		return nil, model.NewNotFound("Conversation not found.")
	}
	s.observe("get_conversation", start, err)
	if err != nil {
		return nil, s.fail("get_conversation", err)
	}
	return conv, nil
}

// ListConversations returns a user's conversations, freshest first. Rows
// without last_message_at sort last. Query filters title and preview.
func (s *Store) ListConversations(ctx context.Context, userID string, opts model.ListOptions) ([]model.ConversationSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE user_id = ?`
	args := []any{userID}
	if q := strings.ToLower(strings.TrimSpace(opts.Query)); q != "" {
		pattern := "%" + escapeLike(q) + "%"
		query += ` AND (LOWER(COALESCE(title, '')) LIKE ? ESCAPE '\' OR LOWER(COALESCE(preview, '')) LIKE ? ESCAPE '\')`
		args = append(args, pattern, pattern)
	}
	query += ` ORDER BY (last_message_at IS NULL), last_message_at DESC, created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		s.observe("list_conversations", start, err)
		return nil, s.fail("list_conversations", err)
	}
	defer rows.Close()

	summaries := make([]model.ConversationSummary, 0)
	for rows.Next() {
		conv, err := scanConversation(rows)
		if err != nil {
			return nil, s.fail("list_conversations", err)
		}
		summaries = append(summaries, conv.Summary())
	}
	err = rows.Err()
	s.observe("list_conversations", start, err)
	if err != nil {
		return nil, s.fail("list_conversations", err)
	}
	return summaries, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// =============================================================================
// UPDATE
// =============================================================================

// UpdatePreviewIfUnset stores a normalized snippet of content as preview (and
// as title when no title exists) only if no preview is set yet. It reports
// whether the row changed.
func (s *Store) UpdatePreviewIfUnset(ctx context.Context, conversationID, content string) (bool, error) {
	snippet := util.Snippet(content, model.PreviewMaxRunes)
	if snippet == "" {
		return false, nil
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE conversations SET preview = ?, title = COALESCE(title, ?)
			WHERE id = ? AND preview IS NULL`),
		snippet, snippet, conversationID)
	s.observe("update_preview", start, err)
	if err != nil {
		return false, s.fail("update_preview", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, s.fail("update_preview", err)
	}
	return n > 0, nil
}

// TouchLastMessageAt bumps last_message_at to now.
func (s *Store) TouchLastMessageAt(ctx context.Context, conversationID string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		s.q(`UPDATE conversations SET last_message_at = ? WHERE id = ?`),
		toNanos(s.now()), conversationID)
	s.observe("touch_conversation", start, err)
	if err != nil {
		return s.fail("touch_conversation", err)
	}
	return nil
}

// RenameConversation sets the title of a conversation owned by userID.
func (s *Store) RenameConversation(ctx context.Context, userID, conversationID, title string) (*model.Conversation, error) {
	title = util.CollapseWhitespace(title)
	if title == "" {
		return nil, model.NewValidation("Title cannot be empty.", nil)
	}

	start := time.Now()
	res, err := s.db.ExecContext(ctx,
		s.q(`UPDATE conversations SET title = ? WHERE id = ? AND user_id = ?`),
		title, conversationID, userID)
	s.observe("rename_conversation", start, err)
	if err != nil {
		return nil, s.fail("rename_conversation", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, s.fail("rename_conversation", err)
	} else if n == 0 {
		return nil, errNotOwned()
	}
	return s.GetConversation(ctx, conversationID)
}

// =============================================================================
// DELETE
// =============================================================================

// DeleteConversation removes a conversation and its messages after checking
// that userID owns it.
func (s *Store) DeleteConversation(ctx context.Context, userID, conversationID string) error {
	start := time.Now()
	err := s.inTx(ctx, "delete_conversation", func(tx *sql.Tx) error {
		var owner string
		err := tx.QueryRowContext(ctx,
			s.q(`SELECT user_id FROM conversations WHERE id = ?`), conversationID).Scan(&owner)
		if err == sql.ErrNoRows || (err == nil && owner != userID) {
			return errNotOwned()
		}
		if err != nil {
			return s.fail("delete_conversation", err)
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`DELETE FROM messages WHERE conversation_id = ?`), conversationID); err != nil {
			return s.fail("delete_conversation", err)
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`DELETE FROM conversations WHERE id = ? AND user_id = ?`), conversationID, userID); err != nil {
			return s.fail("delete_conversation", err)
		}
		return nil
	})
	s.observe("delete_conversation", start, err)
	return err
}

func errNotOwned() error {
	return model.NewNotFound("Conversation not found or does not belong to the user.")
}
