// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers holds the coordinator's HTTP and WebSocket
// endpoints. Every handler is a closure over the engine plus its
// collaborators, returned as a gin.HandlerFunc, and every response is
// the flat ok/error envelope.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
)

// statusForError maps each engine error kind onto its HTTP status.
func statusForError(err error) int {
	var (
		notFound      *engine.NotFoundError
		alreadyExists *engine.AlreadyExistsError
		missingItem   *engine.MissingItemError
		blankItem     *engine.BlankItemError
		badTransition *engine.InvalidTransitionError
		lockFailed    *engine.LockFailedError
	)

	switch {
	case errors.Is(err, engine.ErrMissingToken):
		return http.StatusUnauthorized
	case errors.Is(err, engine.ErrUnmetDependency):
		return http.StatusFailedDependency
	case errors.As(err, &lockFailed):
		return http.StatusLocked
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &alreadyExists),
		errors.As(err, &missingItem),
		errors.As(err, &blankItem),
		errors.As(err, &badTransition),
		errors.Is(err, engine.ErrInvalidToken),
		errors.Is(err, engine.ErrInvalidURLScheme),
		errors.Is(err, engine.ErrLockingNonAffectedComponent),
		errors.Is(err, engine.ErrSubscribingMultipleEntities):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the failure envelope for err. Taxonomy
// rejections log at Debug; anything unexpected logs at Error and is
// masked as an internal error on the wire.
func respondError(c *gin.Context, err error) {
	status := statusForError(err)
	message := err.Error()

	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		message = engine.ErrInternal.Error()
	} else {
		slog.Debug("request rejected",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", status,
			"error", err)
	}

	c.JSON(status, datatypes.ErrorResponse{Error: message})
}

// respondBindError rejects a request whose body or query string did
// not bind.
func respondBindError(c *gin.Context, err error) {
	slog.Debug("request binding failed",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"error", err)
	c.JSON(http.StatusBadRequest, datatypes.ErrorResponse{Error: err.Error()})
}

// operationID parses the :id route parameter. A non-numeric id
// resolves to the same not-found error an unknown id would.
func operationID(c *gin.Context) (uint64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, &engine.NotFoundError{Entity: "operation", ID: raw}
	}
	return id, nil
}
