// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"strings"
)

// schema is applied in order. {{serial}} becomes the dialect's
// auto-increment primary key, used to break timestamp ties.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id         TEXT PRIMARY KEY,
		email      TEXT NOT NULL UNIQUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		id              TEXT PRIMARY KEY,
		user_id         TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		mentor_id       TEXT NOT NULL DEFAULT 'general',
		title           TEXT,
		preview         TEXT,
		created_at      BIGINT NOT NULL,
		last_message_at BIGINT
	)`,
	`CREATE INDEX IF NOT EXISTS idx_conversations_user
		ON conversations (user_id, last_message_at)`,
	`CREATE TABLE IF NOT EXISTS messages (
		seq             {{serial}},
		id              TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL CHECK (role IN ('user', 'assistant', 'system')),
		content         TEXT NOT NULL,
		metadata        TEXT NOT NULL DEFAULT '{}',
		created_at      BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation
		ON messages (conversation_id, created_at, seq)`,
	`CREATE TABLE IF NOT EXISTS user_chat_models (
		seq        {{serial}},
		user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		model_id   TEXT NOT NULL,
		label      TEXT NOT NULL,
		position   INTEGER NOT NULL,
		created_at BIGINT NOT NULL,
		UNIQUE (user_id, model_id)
	)`,
	`CREATE TABLE IF NOT EXISTS chat_model_defaults (
		model_id TEXT PRIMARY KEY,
		label    TEXT NOT NULL,
		position INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS mentor_overrides (
		user_id       TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		mentor_id     TEXT NOT NULL,
		system_prompt TEXT NOT NULL,
		updated_at    BIGINT NOT NULL,
		PRIMARY KEY (user_id, mentor_id)
	)`,
	`CREATE TABLE IF NOT EXISTS mentor_configs (
		id         TEXT PRIMARY KEY,
		draft      TEXT NOT NULL,
		published  TEXT,
		updated_at BIGINT NOT NULL,
		updated_by TEXT
	)`,
}

// Migrate creates any missing tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == Postgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}
	for _, stmt := range schema {
		stmt = strings.ReplaceAll(stmt, "{{serial}}", serial)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return s.fail("migrate", err)
		}
	}
	return nil
}
