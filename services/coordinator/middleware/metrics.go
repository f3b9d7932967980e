// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"time"

	"github.com/AleutianAI/switchyard/services/coordinator/observability"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// Request Metrics
// =============================================================================

// RequestMetrics returns a Gin middleware recording request counts and
// latency into m.
//
// The route label uses the gin route template (c.FullPath()) rather than
// the raw URL, keeping label cardinality bounded by the route table.
// Requests matching no route are grouped under "unmatched".
//
// m must not be nil; pass observability.InitMetrics().
func RequestMetrics(m *observability.CoordinatorMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.RecordRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start).Seconds())
	}
}
