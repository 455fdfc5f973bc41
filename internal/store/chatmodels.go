// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/jeranaias/polychat/internal/model"
)

// =============================================================================
// USER CHAT MODELS
// =============================================================================

// ListUserChatModels returns a user's catalog ordered by position, then by
// insertion order.
func (s *Store) ListUserChatModels(ctx context.Context, userID string) ([]model.ChatModel, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT model_id, label, position FROM user_chat_models
			WHERE user_id = ? ORDER BY position ASC, seq ASC`), userID)
	if err != nil {
		s.observe("list_user_chat_models", start, err)
		return nil, s.fail("list_user_chat_models", err)
	}
	models, err := scanChatModels(rows)
	s.observe("list_user_chat_models", start, err)
	if err != nil {
		return nil, s.fail("list_user_chat_models", err)
	}
	return models, nil
}

// SeedUserChatModels upserts models into a user's catalog, keyed on
// (user_id, model_id).
func (s *Store) SeedUserChatModels(ctx context.Context, userID string, models []model.ChatModel) error {
	start := time.Now()
	err := s.inTx(ctx, "seed_user_chat_models", func(tx *sql.Tx) error {
		if err := s.ensureUserRecord(ctx, tx, userID); err != nil {
			return err
		}
		now := toNanos(s.now())
		for _, m := range models {
			if _, err := tx.ExecContext(ctx,
				s.q(`INSERT INTO user_chat_models (user_id, model_id, label, position, created_at)
					VALUES (?, ?, ?, ?, ?)
					ON CONFLICT (user_id, model_id) DO UPDATE SET label = excluded.label, position = excluded.position`),
				userID, m.ID, m.Label, m.Position, now); err != nil {
				return s.fail("seed_user_chat_models", err)
			}
		}
		return nil
	})
	s.observe("seed_user_chat_models", start, err)
	return err
}

// InsertUserChatModel appends one model. The position is one past the
// current maximum.
func (s *Store) InsertUserChatModel(ctx context.Context, userID, modelID, label string) error {
	start := time.Now()
	err := s.inTx(ctx, "insert_user_chat_model", func(tx *sql.Tx) error {
		if err := s.ensureUserRecord(ctx, tx, userID); err != nil {
			return err
		}
		var maxPos sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			s.q(`SELECT MAX(position) FROM user_chat_models WHERE user_id = ?`), userID).Scan(&maxPos); err != nil {
			return s.fail("insert_user_chat_model", err)
		}
		position := 0
		if maxPos.Valid {
			position = int(maxPos.Int64) + 1
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO user_chat_models (user_id, model_id, label, position, created_at)
				VALUES (?, ?, ?, ?, ?)`),
			userID, modelID, label, position, toNanos(s.now())); err != nil {
			return s.fail("insert_user_chat_model", err)
		}
		return nil
	})
	s.observe("insert_user_chat_model", start, err)
	return err
}

// DeleteUserChatModel removes one model from a user's catalog.
func (s *Store) DeleteUserChatModel(ctx context.Context, userID, modelID string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM user_chat_models WHERE user_id = ? AND model_id = ?`), userID, modelID)
	s.observe("delete_user_chat_model", start, err)
	if err != nil {
		return s.fail("delete_user_chat_model", err)
	}
	return nil
}

// =============================================================================
// SYSTEM DEFAULTS
// =============================================================================

// ChatModelDefaults returns the system-wide default catalog rows.
func (s *Store) ChatModelDefaults(ctx context.Context) ([]model.ChatModel, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT model_id, label, position FROM chat_model_defaults ORDER BY position ASC, model_id ASC`)
	if err != nil {
		s.observe("list_chat_model_defaults", start, err)
		return nil, s.fail("list_chat_model_defaults", err)
	}
	models, err := scanChatModels(rows)
	s.observe("list_chat_model_defaults", start, err)
	if err != nil {
		return nil, s.fail("list_chat_model_defaults", err)
	}
	return models, nil
}

// ReplaceChatModelDefaults overwrites the system-wide default catalog.
func (s *Store) ReplaceChatModelDefaults(ctx context.Context, models []model.ChatModel) error {
	start := time.Now()
	err := s.inTx(ctx, "replace_chat_model_defaults", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chat_model_defaults`); err != nil {
			return s.fail("replace_chat_model_defaults", err)
		}
		for _, m := range models {
			if _, err := tx.ExecContext(ctx,
				s.q(`INSERT INTO chat_model_defaults (model_id, label, position) VALUES (?, ?, ?)`),
				m.ID, m.Label, m.Position); err != nil {
				return s.fail("replace_chat_model_defaults", err)
			}
		}
		return nil
	})
	s.observe("replace_chat_model_defaults", start, err)
	return err
}

func scanChatModels(rows *sql.Rows) ([]model.ChatModel, error) {
	defer rows.Close()
	models := make([]model.ChatModel, 0)
	for rows.Next() {
		var m model.ChatModel
		if err := rows.Scan(&m.ID, &m.Label, &m.Position); err != nil {
			return nil, err
		}
		models = append(models, m)
	}
	return models, rows.Err()
}
