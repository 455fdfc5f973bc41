// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jeranaias/polychat/internal/logger"
	"github.com/jeranaias/polychat/internal/model"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   bool   `json:"error"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// StatusFor maps an error kind onto an HTTP status code.
func StatusFor(kind model.Kind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindForbidden:
		return http.StatusForbidden
	case model.KindNotFoundOrForbidden:
		return http.StatusNotFound
	case model.KindConflict:
		return http.StatusConflict
	case model.KindRateLimited:
		return http.StatusTooManyRequests
	case model.KindProviderUnavailable, model.KindProviderEmptyResponse:
		return http.StatusBadGateway
	case model.KindProviderTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as an ErrorResponse. Details are only exposed for
// user-fixable kinds; server-side failures are logged with their cause.
func writeError(c *gin.Context, log *logger.Logger, err error) {
	kind := model.KindOf(err)
	status := StatusFor(kind)
	resp := ErrorResponse{Error: true, Message: model.PublicMessage(err)}

	if e, ok := asModelError(err); ok {
		switch kind {
		case model.KindValidation, model.KindRateLimited, model.KindConflict:
			resp.Details = e.Details
		}
	}
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).
			Str("kind", kind.String()).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("request failed")
	}
	c.AbortWithStatusJSON(status, resp)
}

// badRequest answers a malformed body or query.
func badRequest(c *gin.Context, message string, details any) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: true, Message: message, Details: details})
}

func asModelError(err error) (*model.Error, bool) {
	var e *model.Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
