// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog manages each user's list of selectable chat models.
//
// A user's list is seeded lazily from the system defaults the first time it
// is read, and it can never be emptied by a user removal.
//
// # Key Types
//
//   - Service: List, Add and Remove operations over a Store
//   - Store: The narrow persistence interface the service needs
//
// # Usage
//
//	svc := catalog.New(st, log)
//	models, err := svc.List(ctx, userID)
//	models, err = svc.Add(ctx, userID, "anthropic/claude-3.5-haiku", "")
package catalog
