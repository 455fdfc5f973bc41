// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config handles polychat configuration loading and management.
//
// Configuration is stored in ~/.polychat/config.toml (or config.json) and can
// be overridden with POLYCHAT_* environment variables. OPENROUTER_API_KEY is
// honoured for the provider key.
//
// # Key Types
//
//   - Config: Root configuration with server, database, provider, and client sections
//   - ValidationError: Single field validation failure
//   - ValidateErrors: Collection of validation failures
//
// # Usage
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Server.Addr)
package config
