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
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
	"github.com/AleutianAI/switchyard/services/coordinator/middleware"
	"github.com/AleutianAI/switchyard/services/coordinator/observability"
)

// CreateOperation plans a new operation. The server assigns the id,
// forces the status to planned, and defaults the operators to the
// caller when the draft names none.
func CreateOperation(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateOperationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		requester := middleware.Username(c)
		id, err := eng.CreateOperation(datatypes.Operation{
			Title:       req.Title,
			Purpose:     req.Purpose,
			URL:         req.URL,
			Components:  req.Components,
			Locks:       req.Locks,
			Tags:        req.Tags,
			DependsOn:   req.DependsOn,
			Operators:   req.Operators,
			Annotations: req.Annotations,
		}, requester)
		if err != nil {
			respondError(c, err)
			return
		}

		if m := observability.DefaultMetrics; m != nil {
			m.RecordOperationCreated()
		}
		// Tag the server span so traces are searchable by operation.
		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			span.SetAttributes(attribute.Int64("operation.id", int64(id)))
		}
		slog.Info("operation created", "id", id, "title", req.Title, "user", requester)
		c.JSON(http.StatusOK, datatypes.CreateOperationResponse{Ok: true, ID: id})
	}
}

// GetOperation looks an operation up by id.
func GetOperation(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := operationID(c)
		if err != nil {
			respondError(c, err)
			return
		}

		op, err := eng.Operation(id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, datatypes.OperationResponse{Ok: true, Operation: op})
	}
}

// ListOperations returns operations matching the query filters, sorted
// by id. Each filter field may repeat; values within a field are OR-ed
// and fields are AND-ed.
func ListOperations(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q datatypes.ListOperationsQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			respondBindError(c, err)
			return
		}

		filter := engine.Filter{
			Components: q.Components,
			Tags:       q.Tags,
			Operators:  q.Operators,
		}
		for _, raw := range q.Statuses {
			status, err := datatypes.ParseOperationState(raw)
			if err != nil {
				respondBindError(c, err)
				return
			}
			filter.Statuses = append(filter.Statuses, status)
		}

		c.JSON(http.StatusOK, datatypes.OperationsResponse{
			Ok:         true,
			Operations: eng.Operations(filter),
		})
	}
}

// UpdateOperation applies a partial update. Only supplied fields
// change; annotations merge into the existing map.
func UpdateOperation(eng *engine.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := operationID(c)
		if err != nil {
			respondError(c, err)
			return
		}

		var req datatypes.UpdateOperationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}

		patch := engine.OperationPatch{
			Title:       req.Title,
			Purpose:     req.Purpose,
			URL:         req.URL,
			Components:  req.Components,
			Locks:       req.Locks,
			Tags:        req.Tags,
			DependsOn:   req.DependsOn,
			Operators:   req.Operators,
			Annotations: req.Annotations,
		}
		if req.Status != nil {
			status, err := datatypes.ParseOperationState(*req.Status)
			if err != nil {
				respondBindError(c, err)
				return
			}
			patch.Status = &status
		}

		if err := eng.UpdateOperation(id, patch); err != nil {
			respondError(c, err)
			return
		}

		if span := trace.SpanFromContext(c.Request.Context()); span.SpanContext().IsValid() {
			span.SetAttributes(attribute.Int64("operation.id", int64(id)))
			if patch.Status != nil {
				span.SetAttributes(attribute.String("operation.status", string(*patch.Status)))
			}
		}
		slog.Info("operation updated", "id", id, "user", middleware.Username(c))
		c.JSON(http.StatusOK, datatypes.OKResponse{Ok: true})
	}
}
