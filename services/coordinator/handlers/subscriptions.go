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

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
	"github.com/AleutianAI/switchyard/services/coordinator/middleware"
)

// CreateSubscription records the caller's interest in exactly one of
// an operation, a component, or a tag.
func CreateSubscription(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.SubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		username := middleware.Username(c)
		if err := eng.Subscribe(username, req); err != nil {
			respondError(c, err)
			return
		}

		slog.Info("subscription created", "user", username)
		c.JSON(http.StatusOK, datatypes.OKResponse{Ok: true})
	}
}

// ListSubscriptions returns the caller's subscription sets, each
// sorted.
func ListSubscriptions(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		set, err := eng.Subscriptions(middleware.Username(c))
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusOK, datatypes.SubscriptionsResponse{
			Ok:         true,
			Operations: set.Operations,
			Components: set.Components,
			Tags:       set.Tags,
		})
	}
}
