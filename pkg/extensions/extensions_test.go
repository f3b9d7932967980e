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
	"testing"
	"time"
)

// ============================================================================
// ServiceOptions Tests
// ============================================================================

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	// Verify all fields are set to non-nil nop implementations
	if opts.AuthProvider == nil {
		t.Error("DefaultOptions().AuthProvider should not be nil")
	}
	if opts.AuthzProvider == nil {
		t.Error("DefaultOptions().AuthzProvider should not be nil")
	}
	if opts.AuditLogger == nil {
		t.Error("DefaultOptions().AuditLogger should not be nil")
	}
	if opts.AnnotationFilter == nil {
		t.Error("DefaultOptions().AnnotationFilter should not be nil")
	}

	// Verify they are the correct nop types
	if _, ok := opts.AuthProvider.(*NopAuthProvider); !ok {
		t.Error("DefaultOptions().AuthProvider should be *NopAuthProvider")
	}
	if _, ok := opts.AuthzProvider.(*NopAuthzProvider); !ok {
		t.Error("DefaultOptions().AuthzProvider should be *NopAuthzProvider")
	}
	if _, ok := opts.AuditLogger.(*NopAuditLogger); !ok {
		t.Error("DefaultOptions().AuditLogger should be *NopAuditLogger")
	}
	if _, ok := opts.AnnotationFilter.(*NopAnnotationFilter); !ok {
		t.Error("DefaultOptions().AnnotationFilter should be *NopAnnotationFilter")
	}
}

func TestServiceOptions_WithAuth(t *testing.T) {
	original := DefaultOptions()
	customAuth := &mockAuthProvider{username: "custom-user"}

	newOpts := original.WithAuth(customAuth)

	if newOpts.AuthProvider != customAuth {
		t.Error("WithAuth should set the custom AuthProvider")
	}

	// Original should be unchanged (immutable copy)
	if _, ok := original.AuthProvider.(*NopAuthProvider); !ok {
		t.Error("Original options should be unchanged after WithAuth")
	}

	// Other fields should be preserved
	if newOpts.AuthzProvider == nil || newOpts.AuditLogger == nil || newOpts.AnnotationFilter == nil {
		t.Error("WithAuth should preserve the other extension points")
	}
}

func TestServiceOptions_WithAuthz(t *testing.T) {
	original := DefaultOptions()
	customAuthz := &mockAuthzProvider{}

	newOpts := original.WithAuthz(customAuthz)

	if newOpts.AuthzProvider != customAuthz {
		t.Error("WithAuthz should set the custom AuthzProvider")
	}
	if _, ok := original.AuthzProvider.(*NopAuthzProvider); !ok {
		t.Error("Original options should be unchanged after WithAuthz")
	}
}

func TestServiceOptions_WithAudit(t *testing.T) {
	original := DefaultOptions()
	customAudit := &mockAuditLogger{}

	newOpts := original.WithAudit(customAudit)

	if newOpts.AuditLogger != customAudit {
		t.Error("WithAudit should set the custom AuditLogger")
	}
	if _, ok := original.AuditLogger.(*NopAuditLogger); !ok {
		t.Error("Original options should be unchanged after WithAudit")
	}
}

func TestServiceOptions_WithFilter(t *testing.T) {
	original := DefaultOptions()
	customFilter := &mockAnnotationFilter{}

	newOpts := original.WithFilter(customFilter)

	if newOpts.AnnotationFilter != customFilter {
		t.Error("WithFilter should set the custom AnnotationFilter")
	}
	if _, ok := original.AnnotationFilter.(*NopAnnotationFilter); !ok {
		t.Error("Original options should be unchanged after WithFilter")
	}
}

func TestServiceOptions_FluentChaining(t *testing.T) {
	auth := &mockAuthProvider{username: "u"}
	audit := &mockAuditLogger{}

	opts := DefaultOptions().WithAuth(auth).WithAudit(audit)

	if opts.AuthProvider != auth {
		t.Error("Chained WithAuth lost its provider")
	}
	if opts.AuditLogger != audit {
		t.Error("Chained WithAudit lost its logger")
	}
	if _, ok := opts.AnnotationFilter.(*NopAnnotationFilter); !ok {
		t.Error("Chaining should preserve untouched defaults")
	}
}

// ============================================================================
// Nop implementation Tests
// ============================================================================

func TestNopAuthProvider(t *testing.T) {
	provider := &NopAuthProvider{}
	ctx := context.Background()

	token, err := provider.Issue(ctx, "alice")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if token == "" {
		t.Error("Expected a non-empty token")
	}

	info, err := provider.Validate(ctx, "anything")
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if info.Username == "" {
		t.Error("Expected a username")
	}

	// Empty token still validates for the nop provider
	if _, err := provider.Validate(ctx, ""); err != nil {
		t.Errorf("Expected empty token to validate, got %v", err)
	}
}

func TestNopAuthzProvider(t *testing.T) {
	provider := &NopAuthzProvider{}

	err := provider.Authorize(context.Background(), AuthzRequest{
		User:         &AuthInfo{Username: "anyone"},
		Action:       "update",
		ResourceType: "operation",
		ResourceID:   "1234",
	})
	if err != nil {
		t.Errorf("NopAuthzProvider should allow everything, got %v", err)
	}
}

func TestNopAuditLogger(t *testing.T) {
	logger := &NopAuditLogger{}
	ctx := context.Background()

	err := logger.Log(ctx, AuditEvent{
		EventType: "operation.transition",
		UserID:    "alice",
	})
	if err != nil {
		t.Errorf("Log failed: %v", err)
	}

	events, err := logger.Query(ctx, AuditFilter{UserID: "alice"})
	if err != nil {
		t.Errorf("Query failed: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("Expected no stored events, got %d", len(events))
	}

	if err := logger.Flush(ctx); err != nil {
		t.Errorf("Flush failed: %v", err)
	}
}

func TestNopAnnotationFilter(t *testing.T) {
	filter := &NopAnnotationFilter{}
	in := map[string]string{"ticket": "OPS-12", "db_password": "hunter2"}

	result, err := filter.Redact(context.Background(), in)
	if err != nil {
		t.Fatalf("Redact failed: %v", err)
	}
	if result.WasModified {
		t.Error("Nop filter should not modify annotations")
	}
	if len(result.Annotations) != 2 || result.Annotations["db_password"] != "hunter2" {
		t.Errorf("Nop filter altered annotations: %v", result.Annotations)
	}
}

// ============================================================================
// Metadata Tests
// ============================================================================

func TestMetadata_SetAndTypedGets(t *testing.T) {
	meta := NewMetadata().
		Set("issuer", "switchyard-coordinator").
		Set("mfa_verified", true)

	if s, ok := meta.GetString("issuer"); !ok || s != "switchyard-coordinator" {
		t.Errorf("GetString = %q, %v", s, ok)
	}
	if b, ok := meta.GetBool("mfa_verified"); !ok || !b {
		t.Errorf("GetBool = %v, %v", b, ok)
	}

	// Wrong type yields false
	if _, ok := meta.GetBool("issuer"); ok {
		t.Error("GetBool on a string should report false")
	}
	// Missing key yields false
	if _, ok := meta.GetString("missing"); ok {
		t.Error("GetString on a missing key should report false")
	}

	// Raw access still works for untyped values
	if v, ok := meta.Get("issuer"); !ok || v != "switchyard-coordinator" {
		t.Errorf("Get = %v, %v", v, ok)
	}
}

func TestMetadata_HasDeleteCloneMerge(t *testing.T) {
	meta := NewMetadata().Set("a", 1).Set("b", 2)

	if !meta.Has("a") || meta.Has("z") {
		t.Error("Has gave wrong answers")
	}

	clone := meta.Clone()
	clone.Set("a", 99)
	if v, _ := meta.Get("a"); v != 1 {
		t.Error("Clone mutation leaked into original")
	}

	meta.Delete("b")
	if meta.Has("b") {
		t.Error("Delete left the key behind")
	}

	meta.Merge(NewMetadata().Set("c", 3))
	if !meta.Has("c") {
		t.Error("Merge did not copy keys")
	}
	meta.Merge(nil) // no-op

	if meta.Len() != 2 {
		t.Errorf("Expected 2 entries, got %d", meta.Len())
	}
	if got := len(meta.Keys()); got != 2 {
		t.Errorf("Expected 2 keys, got %d", got)
	}
}

// ============================================================================
// AuthInfo Tests
// ============================================================================

func TestAuthInfo_Expiry(t *testing.T) {
	info := AuthInfo{
		Username:  "alice",
		ExpiresAt: time.Now().Add(time.Hour),
		Metadata:  NewMetadata().Set("session_id", "s-1"),
	}

	if info.ExpiresAt.Before(time.Now()) {
		t.Error("Expected expiry in the future")
	}
	if v, ok := info.Metadata.GetString("session_id"); !ok || v != "s-1" {
		t.Error("Metadata claim lost")
	}
}

// ============================================================================
// Test mocks
// ============================================================================

type mockAuthProvider struct {
	username string
}

func (m *mockAuthProvider) Issue(_ context.Context, _ string) (string, error) {
	return "mock-token", nil
}

func (m *mockAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	if token != "mock-token" {
		return nil, ErrUnauthorized
	}
	return &AuthInfo{Username: m.username}, nil
}

type mockAuthzProvider struct {
	denied bool
}

func (m *mockAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	if m.denied {
		return errors.New("denied: " + ErrUnauthorized.Error())
	}
	return nil
}

type mockAuditLogger struct {
	events []AuditEvent
}

func (m *mockAuditLogger) Log(_ context.Context, event AuditEvent) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockAuditLogger) Query(_ context.Context, _ AuditFilter) ([]AuditEvent, error) {
	return m.events, nil
}

func (m *mockAuditLogger) Flush(_ context.Context) error { return nil }

type mockAnnotationFilter struct{}

func (m *mockAnnotationFilter) Redact(_ context.Context, annotations map[string]string) (*RedactionResult, error) {
	return &RedactionResult{Annotations: annotations}, nil
}

var (
	_ AuthProvider     = (*mockAuthProvider)(nil)
	_ AuthzProvider    = (*mockAuthzProvider)(nil)
	_ AuditLogger      = (*mockAuditLogger)(nil)
	_ AnnotationFilter = (*mockAnnotationFilter)(nil)
)
