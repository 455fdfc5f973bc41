// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session persists client session state and schedules the periodic
// work of interactive clients.
//
// # Key Types
//
//   - Store: Load/Save/Clear of the persisted State
//   - FileStore: JSON file written atomically
//   - MemoryStore: in-process store for tests and one-shot commands
//   - Manager: health probe scheduling and activity tracking, with Bubble Tea ticks
//
// # Usage
//
//	store := session.NewFileStore(filepath.Join(dir, "session.json"))
//	st, err := store.Load()
//	if err != nil {
//	    return err
//	}
//
//	mgr := session.NewManager(session.DefaultConfig())
//	// in a tea.Model's Update:
//	case session.TickMsg:
//	    return m, mgr.HandleTick()
//	case session.HealthDueMsg:
//	    return m, probeHealth()
package session
