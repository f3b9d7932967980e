// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the coordinator service.
//
// This package contains middleware for authentication, authorization,
// rate limiting, and request metrics. It integrates with the extensions
// package to support enterprise features.
//
// # Authentication Flow
//
// The auth middleware extracts a bearer token from the Authorization header,
// validates it using the configured AuthProvider, resolves the token's
// user against the registry, and stores the resulting AuthInfo in the
// Gin context for downstream handlers.
//
//	Request
//	   │
//	   ▼
//	RequireAuth
//	   │
//	   ├─► Extract token from "Authorization: Bearer <token>"
//	   │       (missing token is rejected before the provider runs)
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   ├─► users.UserExists(username)
//	   │
//	   └─► Store AuthInfo and username in context
//	           │
//	           ▼
//	       Handler (retrieves via GetAuthInfo / Username)
//
// # Open Source Behavior
//
// The standard wiring validates signed session tokens issued by the
// coordinator's own auth provider. With NopAuthProvider (embedded and
// test use), any presented token resolves to "local-user"; a request
// with no token at all is still rejected, because every coordinator
// write is attributed to a named user.
//
// # Enterprise Behavior
//
// Enterprise implementations validate tokens against identity providers
// (Okta, Auth0, Azure AD) and enforce per-resource policy through the
// AuthzProvider seam.
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/AleutianAI/switchyard/pkg/extensions"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
	"github.com/gin-gonic/gin"
)

// =============================================================================
// Context Keys
// =============================================================================

// authInfoKey is the context key for storing AuthInfo.
// Using a typed key prevents collisions with other context values.
const authInfoKey = "switchyard_auth_info"

// usernameKey is the context key for the authenticated username.
const usernameKey = "switchyard_username"

// =============================================================================
// User Registry
// =============================================================================

// UserRegistry resolves token usernames against the registered user set.
//
// The coordination engine satisfies this interface. Users are created at
// token issuance, so a well-signed token naming an unknown user means
// the store was reset since the token was issued; such tokens are
// rejected and the caller re-authenticates.
type UserRegistry interface {
	// UserExists reports whether the name resolves to a known user.
	UserExists(name string) bool
}

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated user info in the Gin context.
//
// # Description
//
// Called by RequireAuth after successful authentication.
// The stored AuthInfo can be retrieved by handlers via GetAuthInfo.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//   - info: Authenticated user information. May be nil.
//
// # Outputs
//
// None.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo retrieves the authenticated user info from the Gin context.
//
// # Description
//
// Called by handlers to access the authenticated user's identity.
// Returns nil if no AuthInfo is present (request not authenticated).
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//
// # Outputs
//
//   - *extensions.AuthInfo: User info, or nil if not authenticated
//
// # Examples
//
//	func (h *handler) HandleRequest(c *gin.Context) {
//	    authInfo := middleware.GetAuthInfo(c)
//	    if authInfo == nil {
//	        c.JSON(401, datatypes.ErrorResponse{Error: "not authenticated"})
//	        return
//	    }
//	    // Use authInfo.Username, authInfo.ExpiresAt, etc.
//	}
//
// # Limitations
//
//   - Returns nil if SetAuthInfo was not called or called with nil
//   - Returns nil if stored value is wrong type (defensive)
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// Username returns the authenticated username for the current request.
//
// Returns empty string on unauthenticated requests.
func Username(c *gin.Context) string {
	if v, exists := c.Get(usernameKey); exists {
		if name, ok := v.(string); ok {
			return name
		}
	}
	return ""
}

// =============================================================================
// Auth Middleware
// =============================================================================

// RequireAuth creates a Gin middleware that authenticates requests.
//
// # Description
//
// Extracts the bearer token from the Authorization header, validates it
// using the provided AuthProvider, checks the token's user against the
// registry, and stores the resulting AuthInfo and username in the
// context for downstream handlers.
//
// # Token Extraction
//
// The middleware expects tokens in the Authorization header:
//
//	Authorization: Bearer <token>
//
// A missing or malformed header is rejected with 401 before the provider
// is consulted. Tokens the provider rejects are reported as 400: the
// caller presented a credential, it just was not a valid one.
//
// # Inputs
//
//   - provider: AuthProvider to validate tokens. Must not be nil.
//   - users: Registry the token's user is resolved against.
//     May be nil to skip the existence check.
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Examples
//
//	// Apply to route group
//	v1 := router.Group("/api/v1")
//	v1.Use(middleware.RequireAuth(opts.AuthProvider, eng))
//
// # Limitations
//
//   - Only supports Bearer token authentication
//   - Does not cache validation results (validates every request)
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireAuth(provider extensions.AuthProvider, users UserRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, datatypes.ErrorResponse{
				Error: engine.ErrMissingToken.Error(),
			})
			return
		}

		authInfo, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, extensions.ErrUnauthorized) {
				c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{
					Error: engine.ErrInvalidToken.Error(),
				})
				return
			}
			// Provider failures (network issues, key store outages)
			c.AbortWithStatusJSON(http.StatusInternalServerError, datatypes.ErrorResponse{
				Error: engine.ErrInternal.Error(),
			})
			return
		}

		// A well-signed token naming an unknown user is not a usable
		// credential.
		if users != nil && !users.UserExists(authInfo.Username) {
			c.AbortWithStatusJSON(http.StatusBadRequest, datatypes.ErrorResponse{
				Error: engine.ErrInvalidToken.Error(),
			})
			return
		}

		SetAuthInfo(c, authInfo)
		c.Set(usernameKey, authInfo.Username)

		c.Next()
	}
}

// =============================================================================
// Authorization Middleware
// =============================================================================

// RequireAuthorization creates a Gin middleware that enforces per-resource
// policy through the AuthzProvider seam.
//
// # Description
//
// Derives the attempted action from the HTTP method, the resource
// instance from the :id route parameter, and asks the provider whether
// the authenticated user may proceed. Denials are reported as 403.
//
// The default NopAuthzProvider allows everything, so open-source
// deployments pay one interface call per request.
//
// # Inputs
//
//   - authz: AuthzProvider consulted per request. Must not be nil.
//   - resourceType: Category guarded by this route group, for example
//     "operation", "component", "tag", "subscription".
//
// # Outputs
//
//   - gin.HandlerFunc: Middleware function ready for use with Gin
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func RequireAuthorization(authz extensions.AuthzProvider, resourceType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		req := extensions.AuthzRequest{
			User:         GetAuthInfo(c),
			Action:       actionForMethod(c.Request.Method),
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
		}

		if err := authz.Authorize(c.Request.Context(), req); err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, datatypes.ErrorResponse{
				Error: "forbidden",
			})
			return
		}

		c.Next()
	}
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractBearerToken extracts the token from the Authorization header.
//
// # Description
//
// Parses the Authorization header expecting format: "Bearer <token>"
// Returns empty string if header is missing or malformed.
// The "Bearer" prefix is case-insensitive per RFC 7235.
//
// # Inputs
//
//   - c: Gin context. Must not be nil.
//
// # Outputs
//
//   - string: The extracted token, or empty string if not found
//
// # Examples
//
//	// Header: "Authorization: Bearer abc123"
//	token := extractBearerToken(c)
//	// token == "abc123"
//
//	// Header: "Authorization: bearer ABC123" (case insensitive)
//	token := extractBearerToken(c)
//	// token == "ABC123"
//
// # Limitations
//
//   - Only extracts Bearer tokens, not Basic or other schemes
//   - Token whitespace is trimmed
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

// actionForMethod maps an HTTP method to an authorization action.
func actionForMethod(method string) string {
	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPatch, http.MethodPut:
		return "update"
	case http.MethodDelete:
		return "delete"
	default:
		return "read"
	}
}
