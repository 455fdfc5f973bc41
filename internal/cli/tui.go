// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"errors"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/session"
	"github.com/jeranaias/polychat/internal/ui/chat"
)

func newTUICmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Full-screen chat interface",
		Long: `Full-screen chat interface.

Slash commands work as in "polychat chat". Use PgUp/PgDn to scroll and Esc
or Ctrl+C to quit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := RequiresTTY("polychat tui"); err != nil {
				return err
			}
			sess, api := a.openSession()
			defer sess.Wait()

			width := GetTerminalWidth()
			var (
				mu  sync.Mutex
				buf bytes.Buffer
			)
			r := newREPL(sess, api, &buf, width)
			md := newMarkdownRenderer(width - 4)

			m := chat.New(chat.Options{
				Session: sess,
				Theme:   theme(),
				Manager: session.NewManager(session.Config{HealthInterval: a.cfg.HealthInterval()}),
				Command: func(ctx context.Context, line string) (string, bool) {
					mu.Lock()
					defer mu.Unlock()
					buf.Reset()
					err := r.Handle(ctx, line)
					return buf.String(), errors.Is(err, errQuit)
				},
				Markdown: md.Render,
			})
			_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			return err
		},
	}
}
