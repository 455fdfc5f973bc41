// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jeranaias/polychat/internal/model"
)

// MentorOverride is a per-user replacement for a mentor's system prompt.
type MentorOverride struct {
	UserID       string    `json:"userId"`
	MentorID     string    `json:"mentorId"`
	SystemPrompt string    `json:"systemPrompt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// GetMentorOverride returns the override prompt, or "" and false when none.
func (s *Store) GetMentorOverride(ctx context.Context, userID, mentorID string) (string, bool, error) {
	start := time.Now()
	var prompt string
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT system_prompt FROM mentor_overrides WHERE user_id = ? AND mentor_id = ?`),
		userID, mentorID).Scan(&prompt)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	s.observe("get_mentor_override", start, err)
	if err != nil {
		return "", false, s.fail("get_mentor_override", err)
	}
	return prompt, true, nil
}

// ListMentorOverrides returns every override of a user, ordered by mentor.
func (s *Store) ListMentorOverrides(ctx context.Context, userID string) ([]MentorOverride, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT user_id, mentor_id, system_prompt, updated_at FROM mentor_overrides
			WHERE user_id = ? ORDER BY mentor_id`), userID)
	if err != nil {
		s.observe("list_mentor_overrides", start, err)
		return nil, s.fail("list_mentor_overrides", err)
	}
	defer rows.Close()

	out := make([]MentorOverride, 0)
	for rows.Next() {
		var (
			o       MentorOverride
			updated int64
		)
		if err := rows.Scan(&o.UserID, &o.MentorID, &o.SystemPrompt, &updated); err != nil {
			return nil, s.fail("list_mentor_overrides", err)
		}
		o.UpdatedAt = fromNanos(updated)
		out = append(out, o)
	}
	err = rows.Err()
	s.observe("list_mentor_overrides", start, err)
	if err != nil {
		return nil, s.fail("list_mentor_overrides", err)
	}
	return out, nil
}

// UpsertMentorOverride stores a trimmed prompt keyed on (user, mentor).
func (s *Store) UpsertMentorOverride(ctx context.Context, userID, mentorID, prompt string) (*MentorOverride, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, model.NewValidation("System prompt cannot be empty.", nil)
	}
	o := &MentorOverride{UserID: userID, MentorID: mentorID, SystemPrompt: prompt, UpdatedAt: s.now()}

	start := time.Now()
	err := s.inTx(ctx, "upsert_mentor_override", func(tx *sql.Tx) error {
		if err := s.ensureUserRecord(ctx, tx, userID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO mentor_overrides (user_id, mentor_id, system_prompt, updated_at)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (user_id, mentor_id) DO UPDATE SET
					system_prompt = excluded.system_prompt, updated_at = excluded.updated_at`),
			o.UserID, o.MentorID, o.SystemPrompt, toNanos(o.UpdatedAt)); err != nil {
			return s.fail("upsert_mentor_override", err)
		}
		return nil
	})
	s.observe("upsert_mentor_override", start, err)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// DeleteMentorOverride removes an override. Missing rows are not an error.
func (s *Store) DeleteMentorOverride(ctx context.Context, userID, mentorID string) error {
	start := time.Now()
	_, err := s.db.ExecContext(ctx,
		s.q(`DELETE FROM mentor_overrides WHERE user_id = ? AND mentor_id = ?`), userID, mentorID)
	s.observe("delete_mentor_override", start, err)
	if err != nil {
		return s.fail("delete_mentor_override", err)
	}
	return nil
}
