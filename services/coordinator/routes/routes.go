// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/switchyard/pkg/extensions"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
	"github.com/AleutianAI/switchyard/services/coordinator/handlers"
	"github.com/AleutianAI/switchyard/services/coordinator/middleware"
	"github.com/AleutianAI/switchyard/services/coordinator/telemetry"
)

// SetupRoutes registers the coordinator's HTTP surface on the router.
//
// Everything under /api/v1 except token issuance requires a bearer
// token. Health and metrics stay open for probes and scrapers.
func SetupRoutes(router *gin.Engine, eng *engine.Engine, service string,
	opts extensions.ServiceOptions, limiter *middleware.RateLimiter) {

	router.GET("/health", handlers.Health(service))
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	v1 := router.Group("/api/v1")
	{
		// Token issuance sits outside bearer auth; the rate limiter
		// keeps it from becoming a guessing oracle.
		auth := v1.Group("/auth")
		if limiter != nil {
			auth.Use(limiter.Middleware())
		}
		auth.POST("", handlers.Authenticate(eng, opts.AuthProvider))

		authed := v1.Group("")
		authed.Use(middleware.RequireAuth(opts.AuthProvider, eng))
		{
			components := authed.Group("/components")
			components.Use(middleware.RequireAuthorization(opts.AuthzProvider, "component"))
			{
				components.POST("", handlers.CreateComponent(eng))
				components.GET("", handlers.ListComponents(eng))
				components.GET("/:name", handlers.GetComponent(eng))
			}

			tags := authed.Group("/tags")
			tags.Use(middleware.RequireAuthorization(opts.AuthzProvider, "tag"))
			{
				tags.POST("", handlers.CreateTag(eng))
				tags.GET("", handlers.ListTags(eng))
				tags.GET("/:name", handlers.GetTag(eng))
			}

			operations := authed.Group("/operations")
			operations.Use(middleware.RequireAuthorization(opts.AuthzProvider, "operation"))
			{
				operations.POST("", handlers.CreateOperation(eng))
				operations.GET("", handlers.ListOperations(eng))
				operations.GET("/:id", handlers.GetOperation(eng))
				operations.PATCH("/:id", handlers.UpdateOperation(eng))
			}

			subscriptions := authed.Group("/subscriptions")
			subscriptions.Use(middleware.RequireAuthorization(opts.AuthzProvider, "subscription"))
			{
				subscriptions.POST("", handlers.CreateSubscription(eng))
				subscriptions.GET("", handlers.ListSubscriptions(eng))
				subscriptions.GET("/watch", handlers.Watch(eng, opts.AnnotationFilter))
			}
		}
	}
}
