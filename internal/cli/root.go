// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/config"
	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/model"
	"github.com/jeranaias/polychat/internal/ui/styles"
)

// Version is the CLI version, set at build time.
var Version = "0.3.0"

// =============================================================================
// APPLICATION CONTEXT
// =============================================================================

// app carries global flags and the loaded configuration to every command.
type app struct {
	configPath string
	apiURL     string
	userID     string
	logLevel   string
	noColor    bool
	jsonOutput bool

	cfg *config.Config
	log *logger.Logger
	out io.Writer
	err io.Writer
}

// load reads configuration and initializes logging. Flags win over the file
// and environment.
func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.Client.APIURL = a.apiURL
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	a.cfg = cfg

	a.log = logger.InitGlobal(logger.Config{
		Level:      cfg.Logging.Level,
		Pretty:     cfg.Logging.Pretty,
		Output:     a.err,
		WithCaller: cfg.Logging.Caller,
	})

	if a.noColor {
		ForceColorsEnabled(false)
	}
	applyColorProfile()
	return nil
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCommand builds the polychat command tree writing to out and errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, err: errOut}

	root := &cobra.Command{
		Use:   "polychat",
		Short: "Multi-persona mentor chat",
		Long: `polychat routes each message to a specialized mentor persona, keeps
conversations per user, and lets every user curate a list of chat models.

Run "polychat serve" to start the API and "polychat chat" to talk to it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Config file (default ~/.polychat/config.toml)")
	flags.StringVar(&a.apiURL, "api-url", "", "polychat API base URL (overrides client.api_url)")
	flags.StringVarP(&a.userID, "user", "u", "", "User id (default: the persisted session user)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&a.jsonOutput, "json", false, "Print machine-readable JSON")

	root.AddCommand(
		newServeCmd(a),
		newChatCmd(a),
		newTUICmd(a),
		newModelsCmd(a),
		newConversationsCmd(a),
		newMentorsCmd(a),
		newAdminCmd(a),
		newVersionCmd(a),
	)
	return root
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the polychat version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.jsonOutput {
				return writeJSON(a.out, "version", map[string]string{"version": Version})
			}
			fmt.Fprintf(a.out, "polychat %s\n", Version)
			return nil
		},
	}
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	root := NewRootCommand(os.Stdout, os.Stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styles.RenderError(errorText(err)))
		return 1
	}
	return 0
}

// errorText prefers the user-facing message of domain errors.
func errorText(err error) string {
	if model.KindOf(err) != model.KindInternal {
		return model.PublicMessage(err)
	}
	return err.Error()
}
