// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/jeranaias/polychat/internal/model"
)

// NewMessage is the input to AppendMessage.
type NewMessage struct {
	ConversationID string
	Role           model.Role
	Content        string
	Mentor         string
	Model          string
	Files          []model.FileMeta
}

// =============================================================================
// APPEND
// =============================================================================

// AppendMessage inserts one message row. Messages are never updated.
func (s *Store) AppendMessage(ctx context.Context, in NewMessage) (*model.Message, error) {
	if !in.Role.Valid() {
		return nil, model.NewValidation("Invalid message role.", map[string]string{"role": string(in.Role)})
	}

	msg := &model.Message{
		ID:             uuid.NewString(),
		ConversationID: in.ConversationID,
		Role:           in.Role,
		Content:        in.Content,
		CreatedAt:      s.now(),
		Metadata: model.Metadata{
			Mentor: in.Mentor,
			Model:  in.Model,
			Files:  in.Files,
		},
	}
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return nil, s.fail("append_message", errors.Wrap(err, "encode metadata"))
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO messages (id, conversation_id, role, content, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`),
		msg.ID, msg.ConversationID, string(msg.Role), msg.Content, string(meta), toNanos(msg.CreatedAt))
	s.observe("append_message", start, err)
	if err != nil {
		return nil, s.fail("append_message", err)
	}
	return msg, nil
}

// =============================================================================
// READ
// =============================================================================

// ListMessages returns history in ascending order. With a limit, the newest
// limit messages (older than Before, when set) are returned.
func (s *Store) ListMessages(ctx context.Context, conversationID string, page model.MessagePage) ([]*model.Message, error) {
	query := `SELECT id, conversation_id, role, content, metadata, created_at
		FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if page.Before != nil {
		query += ` AND created_at < ?`
		args = append(args, toNanos(*page.Before))
	}
	query += ` ORDER BY created_at DESC, seq DESC`
	if page.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, page.Limit)
	}

	start := time.Now()
	rows, err := s.db.QueryContext(ctx, s.q(query), args...)
	if err != nil {
		s.observe("list_messages", start, err)
		return nil, s.fail("list_messages", err)
	}
	defer rows.Close()

	msgs := make([]*model.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, s.fail("list_messages", err)
		}
		msgs = append(msgs, msg)
	}
	err = rows.Err()
	s.observe("list_messages", start, err)
	if err != nil {
		return nil, s.fail("list_messages", err)
	}

	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var (
		m       model.Message
		role    string
		meta    sql.NullString
		created int64
	)
	if err := row.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &meta, &created); err != nil {
		return nil, err
	}
	m.Role = model.Role(role)
	m.CreatedAt = fromNanos(created)
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &m.Metadata); err != nil {
			return nil, errors.Wrapf(err, "decode metadata of message %s", m.ID)
		}
	}
	return &m, nil
}

// CountUserMessagesSince counts user-role messages in a conversation created
// at or after since.
func (s *Store) CountUserMessagesSince(ctx context.Context, conversationID string, since time.Time) (int, error) {
	start := time.Now()
	var n int
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT COUNT(*) FROM messages
			WHERE conversation_id = ? AND role = ? AND created_at >= ?`),
		conversationID, string(model.RoleUser), toNanos(since)).Scan(&n)
	s.observe("count_user_messages", start, err)
	if err != nil {
		return 0, s.fail("count_user_messages", err)
	}
	return n, nil
}
