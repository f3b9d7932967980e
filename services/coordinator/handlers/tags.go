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

// CreateTag registers a new tag.
func CreateTag(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateTagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		err := eng.CreateTag(datatypes.Tag{
			Name:        req.Name,
			Description: req.Description,
		})
		if err != nil {
			respondError(c, err)
			return
		}

		slog.Info("tag created", "name", req.Name)
		c.JSON(http.StatusOK, datatypes.OKResponse{Ok: true})
	}
}

// GetTag looks a tag up by name.
func GetTag(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tag, err := eng.Tag(c.Param("name"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.TagResponse{Ok: true, Tag: tag})
	}
}

// ListTags returns every tag, sorted by name.
func ListTags(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, datatypes.TagsResponse{Ok: true, Tags: eng.Tags()})
	}
}
