// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/switchyard/pkg/extensions"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
)

// Authenticate exchanges a username for a bearer token. The user is
// created on first authentication, so there is no separate signup
// step.
func Authenticate(eng *engine.Engine, provider extensions.AuthProvider) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AuthRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		username, err := eng.EnsureUser(req.Username)
		if err != nil {
			respondError(c, err)
			return
		}

		token, err := provider.Issue(c.Request.Context(), username)
		if err != nil {
			respondError(c, err)
			return
		}

		slog.Info("issued token", "user", username)
		c.JSON(http.StatusOK, datatypes.AuthResponse{Ok: true, Token: token})
	}
}
