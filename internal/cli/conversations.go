// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/export"
	"github.com/jeranaias/polychat/internal/ui/styles"
)

// newConversationsCmd lists and manages conversations outside the REPL.
func newConversationsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "conversations",
		Aliases: []string{"conv", "convs"},
		Short:   "List and manage conversations",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConversations(cmd, a)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List conversations, freshest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listConversations(cmd, a)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <conversation-id>",
		Short: "Print a conversation and make it current",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			if err := sess.FetchExistingConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			v := sess.Snapshot()
			if a.jsonOutput {
				return writeJSON(a.out, "conversations show", map[string]any{
					"conversationId": v.ConversationID,
					"mentorId":       v.Mentor,
					"messages":       v.Messages,
				})
			}
			md := newMarkdownRenderer(GetTerminalWidth())
			for _, m := range v.Messages {
				fmt.Fprintln(a.out, formatMessage(m, md))
				fmt.Fprintln(a.out)
			}
			return nil
		},
	})

	var newMentor string
	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			conv, err := sess.StartNewConversation(cmd.Context(), newMentor)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "conversations new", conv)
			}
			fmt.Fprintln(a.out, styles.RenderSuccess("Started "+conv.ID+" with "+mentorName(conv.MentorID)+"."))
			return nil
		},
	}
	newCmd.Flags().StringVarP(&newMentor, "mentor", "m", "", "Mentor for the conversation")
	cmd.AddCommand(newCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "rename <conversation-id> <title>",
		Short: "Rename a conversation",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			conv, err := sess.RenameConversation(cmd.Context(), args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "conversations rename", conv)
			}
			fmt.Fprintln(a.out, styles.RenderSuccess("Renamed to "+conv.DisplayTitle()+"."))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "delete <conversation-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a conversation",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			if err := sess.DeleteConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "conversations delete", map[string]bool{"success": true})
			}
			fmt.Fprintln(a.out, styles.RenderSuccess("Conversation deleted."))
			return nil
		},
	})
	var exportOpts struct {
		Format string
		Out    string
		Bare   bool
	}
	exportCmd := &cobra.Command{
		Use:   "export <conversation-id>",
		Short: "Write a conversation to a Markdown, JSON or HTML file",
		Example: `  polychat conversations export 3f2c... --format html --out ./exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			if err := sess.FetchExistingConversation(cmd.Context(), args[0]); err != nil {
				return err
			}
			path, err := exportConversation(sess.Snapshot(), exportOpts.Format, exportOpts.Out, !exportOpts.Bare)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "conversations export", map[string]string{"path": path})
			}
			fmt.Fprintln(a.out, styles.RenderSuccess("Exported to "+path))
			return nil
		},
	}
	exportCmd.Flags().StringVarP(&exportOpts.Format, "format", "f", "md", "Export format: "+strings.Join(export.Formats, ", "))
	exportCmd.Flags().StringVarP(&exportOpts.Out, "out", "o", ".", "Output directory")
	exportCmd.Flags().BoolVar(&exportOpts.Bare, "bare", false, "Omit metadata and timestamps")
	cmd.AddCommand(exportCmd)
	return cmd
}

// exportConversation writes the open conversation of v to dir.
func exportConversation(v client.View, format, dir string, withMeta bool) (string, error) {
	opts := &export.Options{OutputDir: dir, IncludeMetadata: withMeta, IncludeTimestamps: withMeta}
	exp, err := export.ForFormat(format, opts)
	if err != nil {
		return "", err
	}
	t := &export.Transcript{
		ConversationID: v.ConversationID,
		UserID:         v.UserID,
		MentorID:       string(v.Mentor),
		Messages:       v.Messages,
		ExportedAt:     time.Now(),
	}
	for _, c := range v.Conversations {
		if c.ID == v.ConversationID && c.Title != nil {
			t.Title = *c.Title
		}
	}
	return export.ToFile(t, exp, opts)
}

func listConversations(cmd *cobra.Command, a *app) error {
	sess, _ := a.openSession()
	defer sess.Wait()
	if err := sess.LoadConversations(cmd.Context()); err != nil {
		return err
	}
	v := sess.Snapshot()
	if a.jsonOutput {
		return writeJSON(a.out, "conversations list", map[string]any{"conversations": v.Conversations})
	}
	fmt.Fprintln(a.out, formatConversations(v.Conversations, v.ConversationID, GetTerminalWidth()))
	return nil
}
