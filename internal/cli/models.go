// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/ui/styles"
)

// newModelsCmd manages the user's chat model catalog.
func newModelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "models",
		Aliases: []string{"model"},
		Short:   "Manage your chat model list",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listModels(cmd, a)
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List your chat models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listModels(cmd, a)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "add <model-id> [label]",
		Short:   "Add a chat model",
		Example: `  polychat models add mistralai/mistral-large "Mistral Large"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			ctx := cmd.Context()
			if _, err := sess.LoadChatModels(ctx); err != nil {
				return err
			}
			models, err := sess.AddChatModel(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}
			return printModels(a, "models add", models, sess.Snapshot().Model)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <model-id>",
		Aliases: []string{"rm"},
		Short:   "Remove a chat model",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			ctx := cmd.Context()
			if _, err := sess.LoadChatModels(ctx); err != nil {
				return err
			}
			models, err := sess.RemoveChatModel(ctx, args[0])
			if err != nil {
				return err
			}
			return printModels(a, "models remove", models, sess.Snapshot().Model)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "use <model-id>",
		Short: "Select the model used by chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, _ := a.openSession()
			defer sess.Wait()
			if _, err := sess.LoadChatModels(cmd.Context()); err != nil {
				return err
			}
			if err := sess.SelectChatModel(args[0]); err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "models use", map[string]string{"model": args[0]})
			}
			fmt.Fprintln(a.out, styles.RenderSuccess("Using "+args[0]+"."))
			return nil
		},
	})

	cmd.AddCommand(newModelDefaultsCmd(a))
	return cmd
}

// newModelDefaultsCmd shows or replaces the list new users are seeded with.
func newModelDefaultsCmd(a *app) *cobra.Command {
	var show adminFlags
	cmd := &cobra.Command{
		Use:   "defaults",
		Short: "Show the model list new users start with",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := show.client(a).ChatModelDefaults(cmd.Context())
			if err != nil {
				return err
			}
			return printModels(a, "models defaults", models, "")
		},
	}
	show.registerCredentials(cmd)

	var set adminFlags
	setCmd := &cobra.Command{
		Use:   "set <model-id[=label]>...",
		Short: "Replace the model list new users start with",
		Long: `Replace the system default model list, in argument order.

Users who already have a list keep it.`,
		Example: `  polychat models defaults set "openai/gpt-4o-mini=GPT-4o Mini" xai/grok-4-fast`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			models, err := set.client(a).ReplaceChatModelDefaults(cmd.Context(), parseModelArgs(args))
			if err != nil {
				return err
			}
			return printModels(a, "models defaults set", models, "")
		},
	}
	set.registerCredentials(setCmd)
	cmd.AddCommand(setCmd)
	return cmd
}

// parseModelArgs splits "id=label" arguments. The label is optional.
func parseModelArgs(args []string) []model.ChatModel {
	out := make([]model.ChatModel, 0, len(args))
	for i, arg := range args {
		id, label, _ := strings.Cut(arg, "=")
		out = append(out, model.ChatModel{ID: strings.TrimSpace(id), Label: strings.TrimSpace(label), Position: i})
	}
	return out
}

func listModels(cmd *cobra.Command, a *app) error {
	sess, _ := a.openSession()
	defer sess.Wait()
	models, err := sess.LoadChatModels(cmd.Context())
	if err != nil {
		return err
	}
	return printModels(a, "models list", models, sess.Snapshot().Model)
}

func printModels(a *app, command string, models []model.ChatModel, selected string) error {
	if a.jsonOutput {
		return writeJSON(a.out, command, map[string]any{"models": models, "selected": selected})
	}
	fmt.Fprintln(a.out, formatModels(models, selected))
	return nil
}
