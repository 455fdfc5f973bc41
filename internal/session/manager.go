// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"strconv"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager schedules health probes for an interactive client and tracks
// activity. Session state itself is saved by the client on every change.
type Manager struct {
	mu sync.Mutex

	startTime    time.Time
	lastActivity time.Time

	healthInterval time.Duration
	lastHealth     time.Time
	healthPending  bool

	now func() time.Time
}

// Config holds configuration for the session manager.
type Config struct {
	// HealthInterval is how often the API is probed (default: 30 seconds).
	// Zero disables periodic probes.
	HealthInterval time.Duration
}

// DefaultConfig returns the default session configuration.
func DefaultConfig() Config {
	return Config{
		HealthInterval: 30 * time.Second,
	}
}

// NewManager creates a new session manager. The first health probe is due
// immediately.
func NewManager(cfg Config) *Manager {
	return newManager(cfg, time.Now)
}

func newManager(cfg Config, now func() time.Time) *Manager {
	t := now()
	return &Manager{
		startTime:      t,
		lastActivity:   t,
		healthInterval: cfg.HealthInterval,
		healthPending:  true,
		now:            now,
	}
}

// =============================================================================
// ACTIVITY TRACKING
// =============================================================================

// RecordActivity updates the last activity timestamp.
func (m *Manager) RecordActivity() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastActivity = m.now()
}

// IdleTime returns how long since last activity.
func (m *Manager) IdleTime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now().Sub(m.lastActivity)
}

// MarkHealthChecked records a completed probe.
func (m *Manager) MarkHealthChecked() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastHealth = m.now()
	m.healthPending = false
}

// =============================================================================
// SCHEDULING
// =============================================================================

// HealthDue reports whether a probe should be issued now.
func (m *Manager) HealthDue() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.healthPending {
		return true
	}
	if m.healthInterval <= 0 {
		return false
	}
	return m.now().Sub(m.lastHealth) >= m.healthInterval
}

// =============================================================================
// BUBBLE TEA INTEGRATION
// =============================================================================

// TickMsg is sent periodically to check session state.
type TickMsg struct {
	Time time.Time
}

// HealthDueMsg asks the program to probe the API.
type HealthDueMsg struct{}

// TickCmd returns a command that ticks once per second.
func TickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}

// HandleTick returns the work due on this tick plus the next tick.
func (m *Manager) HandleTick() tea.Cmd {
	cmds := make([]tea.Cmd, 0, 2)

	if m.HealthDue() {
		// Probes are not re-requested until the current one reports back.
		m.mu.Lock()
		m.lastHealth = m.now()
		m.healthPending = false
		m.mu.Unlock()
		cmds = append(cmds, func() tea.Msg { return HealthDueMsg{} })
	}
	cmds = append(cmds, TickCmd())
	return tea.Batch(cmds...)
}

// =============================================================================
// SESSION STATUS
// =============================================================================

// Status represents the current session status.
type Status struct {
	StartTime time.Time
	Duration  time.Duration
	IdleTime  time.Duration
}

// GetStatus returns the current session status.
func (m *Manager) GetStatus() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	return Status{
		StartTime: m.startTime,
		Duration:  now.Sub(m.startTime),
		IdleTime:  now.Sub(m.lastActivity),
	}
}

// FormatDuration returns a human-readable duration string.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return strconv.Itoa(int(d.Seconds())) + "s"
	}
	if d >= time.Hour {
		h := int(d.Hours())
		mins := int(d.Minutes()) % 60
		return strconv.Itoa(h) + "h " + strconv.Itoa(mins) + "m"
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return strconv.Itoa(mins) + "m"
	}
	return strconv.Itoa(mins) + "m " + strconv.Itoa(secs) + "s"
}
