// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store persists users, conversations, messages, model catalogs, and
// mentor overrides in a relational database.
//
// SQLite (modernc.org/sqlite) is the default; PostgreSQL is reached through
// the pgx stdlib driver. Queries are written once with ? placeholders and
// rebound for PostgreSQL.
//
// # Key Types
//
//   - Store: database handle with every persistence operation
//   - NewMessage: input to AppendMessage
//   - EnsuredConversation: result of EnsureConversation
//   - MentorEnvelope: draft and published mentor config documents
//
// # Semantics
//
//   - EnsureConversation never fails on a stale id; it creates a new thread.
//   - UpdatePreviewIfUnset is first-write-wins.
//   - Messages are append-only and ordered by creation time, then insertion.
//   - Every driver failure is returned as a model.KindPersistence error.
//
// # Usage
//
//	st, err := store.Open(ctx, "sqlite", "polychat.db", log)
//	if err != nil {
//	    return err
//	}
//	defer st.Close()
//	userID, err := st.EnsureUser(ctx, "")
package store
