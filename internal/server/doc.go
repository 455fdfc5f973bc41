// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the polychat HTTP API on a gin router.
//
// # Endpoints
//
//   - POST   /chat                    - send a message, get the reply and history
//   - GET    /chat                    - read a conversation (owner only)
//   - GET    /conversations           - list, search and page conversations
//   - POST   /conversations           - start an empty conversation
//   - PATCH  /conversations           - rename a conversation
//   - DELETE /conversations           - delete a conversation
//   - GET    /conversations/messages  - page a conversation's history
//   - GET    /chat-models             - the user's model catalog
//   - POST   /chat-models             - add a model
//   - DELETE /chat-models             - remove a model
//   - GET    /chat-models/defaults    - system default catalog (admin)
//   - PUT    /chat-models/defaults    - replace the system defaults (admin)
//   - GET    /mentor-overrides        - per-user prompt overrides
//   - POST   /mentor-overrides        - set an override
//   - DELETE /mentor-overrides        - clear an override
//   - GET    /mentors                 - registered mentors
//   - GET    /mentors/:id             - draft and published config (admin)
//   - PUT    /mentors/:id/draft       - save a draft config (admin)
//   - POST   /mentors/:id/publish     - publish the draft into the live registry (admin)
//   - GET    /health                  - liveness probe
//   - GET    /metrics                 - Prometheus exposition
//
// Every failure is answered as {"error": true, "message": ..., "details": ...}
// with a status derived from the error kind (see StatusFor).
//
// # Middleware
//
// Request IDs, structured access logs, panic recovery, security headers,
// CORS with wildcard subdomains, a per-IP token bucket, and a body size cap.
//
// # Usage
//
//	srv, err := server.New(server.Config{Addr: ":8787"}, server.Deps{
//		Chat:    chatService,
//		Catalog: catalogService,
//	})
//	if err != nil {
//		return err
//	}
//	go srv.Start()
//	defer srv.Shutdown(ctx)
package server
