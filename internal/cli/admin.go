// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/polychat/internal/server"
)

// newAdminCmd generates admin credentials for the mentor config routes.
func newAdminCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Generate admin credentials",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "token [token]",
		Short: "Create an admin token and print its bcrypt hash",
		Long: `Create an admin token and print its bcrypt hash.

Put the hash in [admin] token_hash (or POLYCHAT_ADMIN_TOKEN_HASH) on the
server and pass the token with --admin-token. Without an argument a random
token is generated.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				buf := make([]byte, 24)
				if _, err := rand.Read(buf); err != nil {
					return err
				}
				token = base64.RawURLEncoding.EncodeToString(buf)
			}
			hash, err := server.HashAdminToken(token)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "admin token", map[string]string{"token": token, "tokenHash": hash})
			}
			fmt.Fprintf(a.out, "token:      %s\ntoken_hash: %s\n", token, hash)
			return nil
		},
	})

	var account string
	totpCmd := &cobra.Command{
		Use:   "totp",
		Short: "Create a TOTP secret for admin requests",
		Long: `Create a TOTP secret for admin requests.

Put the secret in [admin] totp_secret on the server and add the otpauth URL
to an authenticator app. Admin commands then need --otp.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := server.GenerateAdminTOTP(account)
			if err != nil {
				return err
			}
			if a.jsonOutput {
				return writeJSON(a.out, "admin totp", map[string]string{"secret": key.Secret(), "url": key.URL()})
			}
			fmt.Fprintf(a.out, "totp_secret: %s\nurl:         %s\n", key.Secret(), key.URL())
			return nil
		},
	}
	totpCmd.Flags().StringVar(&account, "account", "admin", "Account name shown in the authenticator")
	cmd.AddCommand(totpCmd)
	return cmd
}
