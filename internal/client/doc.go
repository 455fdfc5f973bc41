// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package client implements the polychat client: an HTTP API client and the
// session state machine that drives it.
//
// # Key Types
//
//   - API: the server operations the session uses
//   - HTTPClient: API over JSON/HTTP
//   - Session: idle/sending/error state machine with optimistic updates
//   - Optimistic: snapshot, apply, commit-or-restore helper
//
// # Usage
//
//	api := client.NewHTTPClient("http://127.0.0.1:8787", 0)
//	sess := client.NewSession(api, client.Options{
//		UserID: "user-42",
//		Store:  session.NewFileStore(path),
//	})
//	if _, err := sess.SendMessage(ctx, "What does John 3:16 mean?", nil); err != nil {
//		fmt.Println(sess.Snapshot().LastError)
//	}
package client
