// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/switchyard/pkg/extensions"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
	"github.com/AleutianAI/switchyard/services/coordinator/middleware"
	"github.com/AleutianAI/switchyard/services/coordinator/observability"
)

var watchUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Watch upgrades to a WebSocket and streams operation changes. The
// session first sends the current state of every operation, ordered by
// id, then forwards each broadcast whose operation matches the
// caller's subscription set as of the start of the watch.
//
// A subscriber that falls behind the broadcast buffer misses events
// but keeps its session; only write failures and peer disconnects end
// it.
//
// Annotations pass through the filter before delivery. A blocked or
// failing filter suppresses the map rather than leaking it.
func Watch(eng *engine.Engine, filter extensions.AnnotationFilter) gin.HandlerFunc {
	return func(c *gin.Context) {
		username := middleware.Username(c)

		// Snapshot state and register the subscriber before upgrading,
		// so failures still get a JSON envelope.
		ops, set, sub, err := eng.WatchState(username)
		if err != nil {
			respondError(c, err)
			return
		}

		ws, err := watchUpgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			eng.UnsubscribeEvents(sub)
			slog.Error("failed to upgrade the websocket", "error", err)
			return
		}
		defer ws.Close()
		defer eng.UnsubscribeEvents(sub)

		sessionID := uuid.NewString()
		slog.Info("watch session started",
			"session_id", sessionID,
			"user", username,
			"operations", len(ops))
		if m := observability.DefaultMetrics; m != nil {
			m.WatchStarted()
			defer m.WatchEnded()
		}

		// The read loop discards inbound frames; its only job is to
		// notice the peer going away.
		disconnected := make(chan struct{})
		go func() {
			defer close(disconnected)
			for {
				if _, _, err := ws.ReadMessage(); err != nil {
					return
				}
			}
		}()

		for i := range ops {
			redactAnnotations(c.Request.Context(), filter, &ops[i])
			if err := ws.WriteJSON(ops[i]); err != nil {
				slog.Info("watch session ended while priming",
					"session_id", sessionID,
					"error", err)
				return
			}
		}

		for {
			select {
			case op, ok := <-sub.C:
				if !ok {
					slog.Info("watch session ended, broadcast bus closed",
						"session_id", sessionID)
					return
				}
				if !set.Matches(&op) {
					continue
				}
				redactAnnotations(c.Request.Context(), filter, &op)
				if err := ws.WriteJSON(op); err != nil {
					slog.Info("watch session ended",
						"session_id", sessionID,
						"error", err)
					return
				}
			case <-disconnected:
				slog.Info("watch client disconnected", "session_id", sessionID)
				return
			}
		}
	}
}

func redactAnnotations(ctx context.Context, filter extensions.AnnotationFilter, op *datatypes.Operation) {
	if filter == nil || len(op.Annotations) == 0 {
		return
	}
	result, err := filter.Redact(ctx, op.Annotations)
	if err != nil {
		if !errors.Is(err, extensions.ErrAnnotationBlocked) {
			slog.Warn("annotation filter failed, suppressing annotations", "error", err)
		}
		op.Annotations = nil
		return
	}
	op.Annotations = result.Annotations
}
