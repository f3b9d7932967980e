// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package extensions defines interfaces for enterprise functionality.
//
// This package provides extension points that allow enterprise builds
// to add capabilities without modifying the core switchyard codebase.
// The open source version uses no-op defaults for all interfaces.
//
// # Design Philosophy
//
// The coordinator is a fully functional standalone service. Enterprise
// capabilities (SSO credential validation, policy-based authorization,
// compliance audit trails, annotation redaction) are implemented by
// providing concrete implementations of these interfaces and injecting
// them via ServiceOptions.
//
// # Extension Categories
//
// The package is organized by domain:
//
//   - auth.go: Credential issuance and validation (AuthProvider),
//     write authorization (AuthzProvider)
//   - audit.go: Compliance audit logging (AuditLogger)
//   - filter.go: Annotation redaction for outbound streams
//     (AnnotationFilter)
//
// # Thread Safety
//
// All interface implementations must be safe for concurrent use.
// Multiple goroutines may call methods simultaneously.
package extensions

// ServiceOptions groups all extension points for service configuration.
//
// Pass this to the coordinator constructor to enable enterprise
// features. All fields are optional; nil values are replaced with
// no-op defaults when DefaultOptions() is called or when services
// check for nil.
type ServiceOptions struct {
	// AuthProvider issues and validates bearer credentials.
	// Default: NopAuthProvider (single local user, opaque token)
	AuthProvider AuthProvider

	// AuthzProvider checks authorization for write actions.
	// Default: NopAuthzProvider (always allows all actions)
	AuthzProvider AuthzProvider

	// AuditLogger records security-relevant events.
	// Default: NopAuditLogger (discards all events)
	AuditLogger AuditLogger

	// AnnotationFilter redacts operation annotations before they are
	// sent to watch subscribers.
	// Default: NopAnnotationFilter (passes through unchanged)
	AnnotationFilter AnnotationFilter
}

// DefaultOptions returns ServiceOptions with no-op defaults.
//
// This is the configuration used by the open source version: every
// action is allowed, no audit trail, no redaction.
func DefaultOptions() ServiceOptions {
	return ServiceOptions{
		AuthProvider:     &NopAuthProvider{},
		AuthzProvider:    &NopAuthzProvider{},
		AuditLogger:      &NopAuditLogger{},
		AnnotationFilter: &NopAnnotationFilter{},
	}
}

// WithAuth returns a copy of opts with the given AuthProvider.
// Useful for fluent configuration.
func (opts ServiceOptions) WithAuth(provider AuthProvider) ServiceOptions {
	opts.AuthProvider = provider
	return opts
}

// WithAuthz returns a copy of opts with the given AuthzProvider.
func (opts ServiceOptions) WithAuthz(provider AuthzProvider) ServiceOptions {
	opts.AuthzProvider = provider
	return opts
}

// WithAudit returns a copy of opts with the given AuditLogger.
func (opts ServiceOptions) WithAudit(logger AuditLogger) ServiceOptions {
	opts.AuditLogger = logger
	return opts
}

// WithFilter returns a copy of opts with the given AnnotationFilter.
func (opts ServiceOptions) WithFilter(filter AnnotationFilter) ServiceOptions {
	opts.AnnotationFilter = filter
	return opts
}
