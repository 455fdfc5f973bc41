// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"

	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/model"
)

// ============================================================================
// ADMIN GUARD
// ============================================================================

// AdminOTPHeader carries the one-time code when a TOTP secret is configured.
const AdminOTPHeader = "X-Admin-OTP"

// MsgAdminRequired is returned for any failed admin check. The reason is
// only logged.
const MsgAdminRequired = "Admin credentials required"

// AdminConfig guards the mentor config routes. With an empty TokenHash the
// guard is disabled.
type AdminConfig struct {
	// TokenHash is a bcrypt hash of the bearer token.
	TokenHash string
	// TOTPSecret is an optional base32 TOTP secret.
	TOTPSecret string
}

// Enabled reports whether admin credentials are required.
func (a AdminConfig) Enabled() bool {
	return a.TokenHash != ""
}

// HashAdminToken returns the bcrypt hash to store in configuration.
func HashAdminToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", errors.New("admin token must not be empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash admin token")
	}
	return string(hash), nil
}

// GenerateAdminTOTP creates a new TOTP key for the admin account.
func GenerateAdminTOTP(account string) (*otp.Key, error) {
	if account == "" {
		account = "admin"
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "polychat",
		AccountName: account,
	})
	if err != nil {
		return nil, errors.Wrap(err, "generate totp key")
	}
	return key, nil
}

// checkAdmin validates the request credentials against cfg.
func checkAdmin(cfg AdminConfig, authorization, code string, now time.Time) error {
	token, ok := strings.CutPrefix(authorization, "Bearer ")
	if !ok || token == "" {
		return errors.New("missing bearer token")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(cfg.TokenHash), []byte(token)); err != nil {
		return errors.Wrap(err, "token mismatch")
	}
	if cfg.TOTPSecret == "" {
		return nil
	}
	if code == "" {
		return errors.New("missing one-time code")
	}
	valid, err := totp.ValidateCustom(code, cfg.TOTPSecret, now.UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return errors.Wrap(err, "validate one-time code")
	}
	if !valid {
		return errors.New("invalid one-time code")
	}
	return nil
}

// AdminAuth rejects requests that lack valid admin credentials with 403.
// A disabled config passes every request through.
func AdminAuth(cfg AdminConfig, log *logger.Logger, now func() time.Time) gin.HandlerFunc {
	if !cfg.Enabled() {
		return func(c *gin.Context) { c.Next() }
	}
	if now == nil {
		now = time.Now
	}
	return func(c *gin.Context) {
		err := checkAdmin(cfg, c.GetHeader("Authorization"), c.GetHeader(AdminOTPHeader), now())
		if err != nil {
			log.Warn().
				Err(err).
				Str("path", c.Request.URL.Path).
				Str("ip", c.ClientIP()).
				Msg("admin check failed")
			writeError(c, log, model.NewForbidden(MsgAdminRequired))
			return
		}
		c.Next()
	}
}
