// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/polychat/internal/model"
)

// EmailDomain is used for synthesized user emails.
const EmailDomain = "polychat.local"

// GuestEmail synthesizes the email of an anonymous user.
func GuestEmail() string {
	return fmt.Sprintf("guest-%s@%s", uuid.NewString(), EmailDomain)
}

// MemberEmail synthesizes the email of a caller-identified user.
func MemberEmail(userID string) string {
	return fmt.Sprintf("member-%s@%s", userID, EmailDomain)
}

// =============================================================================
// USERS
// =============================================================================

// EnsureUser returns existingID unchanged when supplied, making sure a row
// exists for it. Otherwise a guest user is created and its id returned.
func (s *Store) EnsureUser(ctx context.Context, existingID string) (string, error) {
	existingID = strings.TrimSpace(existingID)
	if existingID != "" {
		if err := s.EnsureUserRecord(ctx, existingID); err != nil {
			return "", err
		}
		return existingID, nil
	}

	start := time.Now()
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		s.q(`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)`),
		id, GuestEmail(), toNanos(s.now()))
	s.observe("create_user", start, err)
	if err != nil {
		return "", s.fail("create_user", err)
	}
	return id, nil
}

// EnsureUserRecord inserts a member row for userID if none exists. Existing
// rows are never modified.
func (s *Store) EnsureUserRecord(ctx context.Context, userID string) error {
	return s.ensureUserRecord(ctx, s.db, userID)
}

func (s *Store) ensureUserRecord(ctx context.Context, db querier, userID string) error {
	start := time.Now()
	_, err := db.ExecContext(ctx,
		s.q(`INSERT INTO users (id, email, created_at) VALUES (?, ?, ?)
			ON CONFLICT (id) DO NOTHING`),
		userID, MemberEmail(userID), toNanos(s.now()))
	s.observe("ensure_user", start, err)
	if err != nil {
		return s.fail("ensure_user", err)
	}
	return nil
}

// GetUser loads a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var (
		u       model.User
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, email, created_at FROM users WHERE id = ?`), id).
		Scan(&u.ID, &u.Email, &created)
	if err == sql.ErrNoRows {
		return nil, model.NewNotFound("User not found.")
	}
	if err != nil {
		return nil, s.fail("get_user", err)
	}
	u.CreatedAt = fromNanos(created)
	return &u, nil
}
