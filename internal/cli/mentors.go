// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/client"
	"github.com/jeranaias/polychat/internal/mentor"
)

// adminFlags carries credentials for the guarded admin routes.
type adminFlags struct {
	Token     string
	OTP       string
	UpdatedBy string
}

func (f *adminFlags) register(cmd *cobra.Command) {
	f.registerCredentials(cmd)
	cmd.Flags().StringVar(&f.UpdatedBy, "by", "", "Name recorded as the editor")
}

func (f *adminFlags) registerCredentials(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.Token, "admin-token", os.Getenv("POLYCHAT_ADMIN_TOKEN"), "Admin bearer token (env POLYCHAT_ADMIN_TOKEN)")
	cmd.Flags().StringVar(&f.OTP, "otp", "", "Admin one-time code, when TOTP is enabled")
}

func (f *adminFlags) client(a *app) *client.HTTPClient {
	return a.clientFor().WithAdmin(f.Token, f.OTP)
}

// newMentorsCmd lists mentors and edits their draft/published configs.
func newMentorsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "mentors",
		Aliases: []string{"mentor"},
		Short:   "List mentors and manage their configs",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.clientFor().ListMentors(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "mentors", map[string]any{"mentors": list})
			}
			fmt.Fprintln(a.out, formatMentors(list))
			return nil
		},
	}

	var show adminFlags
	showCmd := &cobra.Command{
		Use:   "show <mentor-id>",
		Short: "Print the draft and published config of a mentor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := show.client(a).GetMentorConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, highlightJSON(raw))
			return nil
		},
	}
	show.register(showCmd)
	cmd.AddCommand(showCmd)

	var draft adminFlags
	draftCmd := &cobra.Command{
		Use:   "draft <mentor-id> <config.json|->",
		Short: "Save a mentor config draft",
		Long: `Save a mentor config draft from a JSON file, or stdin with "-".

The config is validated locally before it is sent. Unknown top-level keys
are preserved.`,
		Example: `  polychat mentors draft poetry ./poetry.json --by alice
  cat poetry.json | polychat mentors draft poetry -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readConfigArg(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			data, err = withMentorID(data, args[0])
			if err != nil {
				return err
			}
			cfg, err := mentor.ParseConfig(data)
			if err != nil {
				return err
			}
			body, err := json.Marshal(cfg)
			if err != nil {
				return err
			}
			raw, err := draft.client(a).SaveMentorDraft(cmd.Context(), args[0], body, draft.UpdatedBy)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, highlightJSON(raw))
			return nil
		},
	}
	draft.register(draftCmd)
	cmd.AddCommand(draftCmd)

	var publish adminFlags
	publishCmd := &cobra.Command{
		Use:   "publish <mentor-id>",
		Short: "Publish a mentor's draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := publish.client(a).PublishMentor(cmd.Context(), args[0], publish.UpdatedBy)
			if err != nil {
				return err
			}
			fmt.Fprintln(a.out, highlightJSON(raw))
			return nil
		},
	}
	publish.register(publishCmd)
	cmd.AddCommand(publishCmd)
	return cmd
}

// withMentorID sets the top-level id to the command argument so config files
// need not repeat it.
func withMentorID(data []byte, id string) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode mentor config: %w", err)
	}
	raw, err := json.Marshal(string(mentor.Clean(id)))
	if err != nil {
		return nil, err
	}
	doc["id"] = raw
	return json.Marshal(doc)
}

func readConfigArg(stdin io.Reader, arg string) ([]byte, error) {
	if arg == "-" {
		return io.ReadAll(io.LimitReader(stdin, 1<<20))
	}
	return os.ReadFile(arg)
}
