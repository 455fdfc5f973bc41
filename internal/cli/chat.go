// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/config"
	"github.com/jeranaias/polychat/internal/session"
	"github.com/jeranaias/polychat/internal/ui/styles"
)

// =============================================================================
// SESSION BOOTSTRAP
// =============================================================================

// clientFor returns an API client for the configured server.
func (a *app) clientFor() *client.HTTPClient {
	timeout := time.Duration(a.cfg.Client.TimeoutSecs) * time.Second
	return client.NewHTTPClient(a.cfg.Client.APIURL, timeout)
}

// openSession restores the persisted client session. A first run gets a
// fresh user id, which is persisted so later runs keep the same history.
func (a *app) openSession() (*client.Session, *client.HTTPClient) {
	api := a.clientFor()
	sess := client.NewSession(api, client.Options{
		UserID: a.userID,
		Store:  session.NewFileStore(a.cfg.Client.SessionFile),
		Log:    a.log,
	})
	if sess.Snapshot().UserID == "" {
		sess.SetUser(uuid.NewString())
	}
	return sess, api
}

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader abstracts liner so piped input works too.
type lineReader interface {
	ReadLine(prompt string) (string, error)
	Close()
}

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads its history file.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	c := &ChatCLI{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(c.historyFile); err == nil {
		_, _ = c.line.ReadHistory(f)
		f.Close()
	}
	return c
}

// ReadLine reads one line, adding non-empty input to history.
func (c *ChatCLI) ReadLine(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history with owner-only permissions and restores the terminal.
func (c *ChatCLI) Close() {
	if err := os.MkdirAll(filepath.Dir(c.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = c.line.WriteHistory(f)
			f.Close()
		}
	}
	c.line.Close()
}

// pipeReader reads lines from a non-interactive stream.
type pipeReader struct {
	scanner *bufio.Scanner
}

func newPipeReader(r io.Reader) *pipeReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	return &pipeReader{scanner: s}
}

func (p *pipeReader) ReadLine(string) (string, error) {
	if p.scanner.Scan() {
		return p.scanner.Text(), nil
	}
	if err := p.scanner.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func (p *pipeReader) Close() {}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func newChatCmd(a *app) *cobra.Command {
	var opts struct {
		Mentor string
		Model  string
		New    bool
	}

	cmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with a mentor",
		Long: `Chat with a mentor.

With a message argument, sends it, prints the reply and exits. Without one,
starts an interactive session; type /help for commands.`,
		Example: `  polychat chat
  polychat chat "What does John 3:16 mean?"
  polychat chat --mentor chess "Best reply to 1.e4?"
  echo "Explain compound interest" | polychat chat`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			sess, api := a.openSession()
			defer sess.Wait()

			if opts.New {
				sess.ResetChat()
			}
			if opts.Mentor != "" {
				sess.SetMentor(opts.Mentor)
			}
			if opts.Model != "" {
				if _, err := sess.LoadChatModels(ctx); err != nil {
					return err
				}
				if err := sess.SelectChatModel(opts.Model); err != nil {
					return err
				}
			}

			r := newREPL(sess, api, a.out, GetTerminalWidth())
			if len(args) > 0 {
				return oneShot(ctx, r, strings.Join(args, " "))
			}

			var in lineReader
			if IsTTY() {
				in = NewChatCLI()
			} else {
				in = newPipeReader(cmd.InOrStdin())
			}
			defer in.Close()
			return runREPL(ctx, a, r, in)
		},
	}

	cmd.Flags().StringVarP(&opts.Mentor, "mentor", "m", "", "Lock a mentor (or \"auto\")")
	cmd.Flags().StringVar(&opts.Model, "model", "", "Chat model id from your catalog")
	cmd.Flags().BoolVar(&opts.New, "new", false, "Start a fresh conversation")
	return cmd
}

// oneShot sends a single message and fails when no reply arrived.
func oneShot(ctx context.Context, r *repl, text string) error {
	before := r.sess.Snapshot().State
	r.send(ctx, text)
	if v := r.sess.Snapshot(); v.State == client.StateError && before != client.StateError {
		return errors.New(v.LastError)
	}
	return nil
}

// runREPL reads input until /quit or EOF.
func runREPL(ctx context.Context, a *app, r *repl, in lineReader) error {
	mgr := session.NewManager(session.Config{HealthInterval: a.cfg.HealthInterval()})
	r.sess.CheckHealth(ctx)
	mgr.MarkHealthChecked()
	printBanner(r)

	for {
		if mgr.HealthDue() {
			r.sess.CheckHealth(ctx)
			mgr.MarkHealthChecked()
		}

		line, err := in.ReadLine(prompt(r.sess.Snapshot()))
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				break
			}
			return err
		}
		mgr.RecordActivity()

		if err := r.Handle(ctx, line); err != nil {
			if errors.Is(err, errQuit) {
				break
			}
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}

	status := mgr.GetStatus()
	r.println(DimStyle.Render(fmt.Sprintf("Session lasted %s.", session.FormatDuration(status.Duration))))
	return nil
}

func printBanner(r *repl) {
	v := r.sess.Snapshot()
	r.println(TitleStyle.Render("polychat") + " " + DimStyle.Render(Version))
	r.println(formatStatus(v))
	if v.APIOnline == client.OnlineNo {
		r.println(styles.RenderWarning("The polychat API is not reachable. Start it with: polychat serve"))
	}
	r.println(DimStyle.Render("Type a message, or /help for commands."))
}

// prompt shows the routing mode so users know who will answer.
func prompt(v client.View) string {
	who := "auto"
	if v.Mode == session.ModeManual {
		who = string(v.Mentor)
	}
	return fmt.Sprintf("%s> ", who)
}
