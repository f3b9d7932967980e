// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"time"
)

// ErrUnauthorized is returned when authentication or authorization fails.
// Enterprise implementations should wrap this error with additional context.
//
// Example:
//
//	if !validToken {
//	    return nil, fmt.Errorf("invalid token format: %w", extensions.ErrUnauthorized)
//	}
var ErrUnauthorized = errors.New("unauthorized")

// AuthInfo contains identity information returned after successful
// credential validation.
//
// Required fields (always populated):
//   - Username: the identity the credential is bound to
//
// Optional fields (may be zero):
//   - ExpiresAt: credential expiry, if the scheme has one
//   - Metadata: arbitrary claims for enterprise extensions
type AuthInfo struct {
	// Username is the identity the credential was issued for.
	// This is the only required field and must never be empty.
	Username string

	// ExpiresAt is when the credential stops being valid.
	// Zero means the credential does not expire.
	ExpiresAt time.Time

	// Metadata holds additional claims from the identity provider.
	// Enterprise implementations can store provider-specific data here
	// without requiring changes to the core struct.
	//
	// Common metadata keys:
	//   - "groups": []string of group memberships
	//   - "mfa_verified": whether MFA was used
	//   - "session_id": identity provider session ID
	Metadata Metadata
}

// AuthProvider issues and validates the bearer credentials that every
// coordinator request carries.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthProvider accepts any token and resolves it to a
// single local user. The coordinator ships its own JWT-backed
// implementation; the Nop exists so the service can be embedded in
// tests and single-user tools without credential plumbing.
//
// # Enterprise Implementation
//
// Enterprise versions validate tokens against identity providers like
// Okta, Auth0, or Azure AD, and may refuse to issue local credentials
// entirely.
type AuthProvider interface {
	// Issue creates a new bearer credential bound to the username.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - username: the identity to bind, already normalized
	//
	// Returns:
	//   - string: the opaque credential handed to the client
	//   - error: non-nil if issuance failed (treated as an internal
	//     error by the transport layer)
	Issue(ctx context.Context, username string) (string, error)

	// Validate checks the credential and returns the bound identity.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeout control
	//   - token: the bearer credential presented by the client
	//
	// Returns:
	//   - *AuthInfo: identity information if valid
	//   - error: ErrUnauthorized (or wrapped) if invalid
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check request.
//
// This struct follows the common (subject, action, resource) pattern
// for access control decisions.
//
// Example:
//
//	req := AuthzRequest{
//	    User:         authInfo,
//	    Action:       "update",
//	    ResourceType: "operation",
//	    ResourceID:   "1234",
//	}
//	err := authzProvider.Authorize(ctx, req)
type AuthzRequest struct {
	// User is the authenticated user making the request.
	// This comes from AuthProvider.Validate().
	User *AuthInfo

	// Action is the operation being attempted.
	// Common actions: "create", "read", "update", "subscribe"
	Action string

	// ResourceType is the category of resource being accessed.
	// Examples: "operation", "component", "tag", "subscription"
	ResourceType string

	// ResourceID is the specific resource instance (optional).
	// If empty, the check is for the resource type in general.
	ResourceID string
}

// AuthzProvider checks if a user is authorized to perform an action.
//
// Implementations must be safe for concurrent use by multiple goroutines.
//
// # Open Source Behavior
//
// The default NopAuthzProvider allows all actions: every authenticated
// user may create and update any entity, which is the intended policy
// for a trusted-team deployment.
//
// # Enterprise Implementation
//
// Enterprise versions implement RBAC or policy-based control, for
// example restricting operation updates to the listed operators or
// component owners.
type AuthzProvider interface {
	// Authorize checks if the user is permitted to perform the action.
	//
	// Returns:
	//   - nil: Action is authorized
	//   - error: ErrUnauthorized (or wrapped) if denied
	Authorize(ctx context.Context, req AuthzRequest) error
}

// LocalUser is the identity every credential resolves to under the
// NopAuthProvider's single-user mode.
const LocalUser = "local-user"

// NopAuthProvider is the default credential provider for embedded and
// test use.
//
// Issue returns a fixed opaque token; Validate accepts any token and
// resolves it to the single local user.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Issue returns a fixed opaque credential for the local user.
func (p *NopAuthProvider) Issue(_ context.Context, username string) (string, error) {
	if username == "" {
		username = LocalUser
	}
	return "local-session-" + username, nil
}

// Validate accepts any token and returns the local user.
//
// The token parameter is ignored - any value (including empty string)
// results in successful authentication. This is intentional for
// embedded single-user deployments.
func (p *NopAuthProvider) Validate(_ context.Context, _ string) (*AuthInfo, error) {
	return &AuthInfo{Username: LocalUser}, nil
}

// NopAuthzProvider is the default authorization provider.
//
// It always allows all actions.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthzProvider struct{}

// Authorize always returns nil, allowing all actions.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
)
