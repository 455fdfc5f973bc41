// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mentor defines the mentor personas, routes messages to them, and
// loads their configuration.
//
// # Key Types
//
//   - ID: Mentor tag (general, bible, chess, stock, math; open for custom ids)
//   - Config: Mentor configuration with typed known fields and preserved extras
//   - Registry: Thread-safe id to Config lookup with optional directory source
//   - Watcher: fsnotify based hot reload of a registry directory
//
// # Routing
//
// Classify is pure and deterministic. A file signal (image, CSV, document)
// wins over the text rules, which are checked in order: bible, chess, stock,
// and finally general.
//
// # Usage
//
//	id := mentor.Classify("What does John 3:16 say?", nil) // mentor.Bible
//	prompt := registry.SystemPrompt(id)
package mentor
