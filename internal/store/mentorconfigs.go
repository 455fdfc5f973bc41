// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/jeranaias/polychat/internal/mentor"
	"github.com/jeranaias/polychat/internal/model"
)

// MentorEnvelope holds the editable draft and the live published config.
type MentorEnvelope struct {
	ID        string         `json:"id"`
	Draft     *mentor.Config `json:"draft"`
	Published *mentor.Config `json:"published,omitempty"`
	UpdatedAt time.Time      `json:"updated_at"`
	UpdatedBy *string        `json:"updated_by,omitempty"`
}

// GetMentorEnvelope loads the stored documents for a mentor.
func (s *Store) GetMentorEnvelope(ctx context.Context, id string) (*MentorEnvelope, error) {
	return s.getMentorEnvelope(ctx, s.db, id)
}

func (s *Store) getMentorEnvelope(ctx context.Context, db querier, id string) (*MentorEnvelope, error) {
	var (
		env       MentorEnvelope
		draft     string
		published sql.NullString
		updated   int64
		updatedBy sql.NullString
	)
	start := time.Now()
	err := db.QueryRowContext(ctx,
		s.q(`SELECT id, draft, published, updated_at, updated_by FROM mentor_configs WHERE id = ?`), id).
		Scan(&env.ID, &draft, &published, &updated, &updatedBy)
	if err == sql.ErrNoRows {
		return nil, model.NewNotFound("Mentor config not found.")
	}
	s.observe("get_mentor_config", start, err)
	if err != nil {
		return nil, s.fail("get_mentor_config", err)
	}

	env.UpdatedAt = fromNanos(updated)
	env.UpdatedBy = nullString(updatedBy)
	env.Draft = &mentor.Config{}
	if err := json.Unmarshal([]byte(draft), env.Draft); err != nil {
		return nil, s.fail("get_mentor_config", errors.Wrap(err, "decode draft"))
	}
	if published.Valid {
		env.Published = &mentor.Config{}
		if err := json.Unmarshal([]byte(published.String), env.Published); err != nil {
			return nil, s.fail("get_mentor_config", errors.Wrap(err, "decode published"))
		}
	}
	return &env, nil
}

// SaveMentorDraft validates cfg and upserts it as the draft of mentor id.
func (s *Store) SaveMentorDraft(ctx context.Context, id string, cfg *mentor.Config, updatedBy string) (*MentorEnvelope, error) {
	draft := cfg.Clone()
	draft.ID = id
	draft.ApplyDefaults()
	if err := draft.Validate(); err != nil {
		return nil, model.NewValidation("Invalid mentor config.", err.Error())
	}
	data, err := json.Marshal(draft)
	if err != nil {
		return nil, s.fail("save_mentor_draft", errors.Wrap(err, "encode draft"))
	}

	var by any
	if updatedBy != "" {
		by = updatedBy
	}

	start := time.Now()
	_, err = s.db.ExecContext(ctx,
		s.q(`INSERT INTO mentor_configs (id, draft, published, updated_at, updated_by)
			VALUES (?, ?, NULL, ?, ?)
			ON CONFLICT (id) DO UPDATE SET
				draft = excluded.draft, updated_at = excluded.updated_at, updated_by = excluded.updated_by`),
		id, string(data), toNanos(s.now()), by)
	s.observe("save_mentor_draft", start, err)
	if err != nil {
		return nil, s.fail("save_mentor_draft", err)
	}
	return s.GetMentorEnvelope(ctx, id)
}

// PublishMentor copies the draft of mentor id over its published config.
func (s *Store) PublishMentor(ctx context.Context, id, updatedBy string) (*MentorEnvelope, error) {
	var by any
	if updatedBy != "" {
		by = updatedBy
	}

	var env *MentorEnvelope
	start := time.Now()
	err := s.inTx(ctx, "publish_mentor", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q(`UPDATE mentor_configs SET published = draft, updated_at = ?, updated_by = ? WHERE id = ?`),
			toNanos(s.now()), by, id)
		if err != nil {
			return s.fail("publish_mentor", err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return s.fail("publish_mentor", err)
		} else if n == 0 {
			return model.NewNotFound("Mentor config not found.")
		}
		env, err = s.getMentorEnvelope(ctx, tx, id)
		return err
	})
	s.observe("publish_mentor", start, err)
	if err != nil {
		return nil, err
	}
	return env, nil
}

// PublishedMentorConfigs returns every published config.
func (s *Store) PublishedMentorConfigs(ctx context.Context) ([]*mentor.Config, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, published FROM mentor_configs WHERE published IS NOT NULL ORDER BY id`)
	if err != nil {
		s.observe("list_published_mentors", start, err)
		return nil, s.fail("list_published_mentors", err)
	}
	defer rows.Close()

	var out []*mentor.Config
	for rows.Next() {
		var id, doc string
		if err := rows.Scan(&id, &doc); err != nil {
			return nil, s.fail("list_published_mentors", err)
		}
		cfg := &mentor.Config{}
		if err := json.Unmarshal([]byte(doc), cfg); err != nil {
			s.log.Warn().Err(err).Str("mentor_id", id).Msg("skipping unreadable published mentor config")
			continue
		}
		cfg.ID = id
		out = append(out, cfg)
	}
	err = rows.Err()
	s.observe("list_published_mentors", start, err)
	if err != nil {
		return nil, s.fail("list_published_mentors", err)
	}
	return out, nil
}
