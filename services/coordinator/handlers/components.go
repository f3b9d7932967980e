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
)

// CreateComponent registers a new shared component.
func CreateComponent(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateComponentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		err := eng.CreateComponent(datatypes.Component{
			Name:        req.Name,
			Description: req.Description,
			Owners:      req.Owners,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		slog.Info("component created", "name", req.Name)
		c.JSON(http.StatusOK, datatypes.OKResponse{Ok: true})
	}
}

// GetComponent looks a component up by name.
func GetComponent(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		component, err := eng.Component(c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.ComponentResponse{Ok: true, Component: component})
	}
}

// ListComponents returns every component, sorted by name.
func ListComponents(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.ComponentsResponse{
			Ok:         true,
			Components: eng.Components(),
		})
	}
}
