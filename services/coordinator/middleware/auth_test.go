// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/switchyard/pkg/extensions"
	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

// The coordination engine is the production user registry.
var _ UserRegistry = (*engine.Engine)(nil)

// mockAuthProvider is a configurable mock for testing.
type mockAuthProvider struct {
	authInfo *extensions.AuthInfo
	err      error
}

func (m *mockAuthProvider) Issue(_ context.Context, username string) (string, error) {
	return "mock-token-" + username, nil
}

func (m *mockAuthProvider) Validate(_ context.Context, _ string) (*extensions.AuthInfo, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.authInfo, nil
}

// mockUserRegistry reports membership from a fixed set.
type mockUserRegistry struct {
	users map[string]bool
}

func (m *mockUserRegistry) UserExists(name string) bool {
	return m.users[name]
}

// recordingAuthzProvider captures the request and returns a fixed error.
type recordingAuthzProvider struct {
	lastReq extensions.AuthzRequest
	err     error
}

func (p *recordingAuthzProvider) Authorize(_ context.Context, req extensions.AuthzRequest) error {
	p.lastReq = req
	return p.err
}

// decodeError unmarshals the standard error envelope from a recorder.
func decodeError(t *testing.T, w *httptest.ResponseRecorder) datatypes.ErrorResponse {
	t.Helper()
	var resp datatypes.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// =============================================================================
// extractBearerToken Tests
// =============================================================================

func TestExtractBearerToken_ValidToken(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	c.Request.Header.Set("Authorization", "Bearer abc123")

	token := extractBearerToken(c)

	assert.Equal(t, "abc123", token)
}

func TestExtractBearerToken_MissingHeader(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)

	token := extractBearerToken(c)

	assert.Empty(t, token)
}

func TestExtractBearerToken_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "abc123"},
		{"basic auth", "Basic abc123"},
		{"empty bearer", "Bearer "},
		{"only bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Request.Header.Set("Authorization", tt.header)

			token := extractBearerToken(c)

			assert.Empty(t, token)
		})
	}
}

func TestExtractBearerToken_CaseInsensitive(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"lowercase", "bearer abc123"},
		{"uppercase", "BEARER abc123"},
		{"mixed case", "BeArEr abc123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := gin.CreateTestContext(httptest.NewRecorder())
			c.Request = httptest.NewRequest("GET", "/", nil)
			c.Request.Header.Set("Authorization", tt.header)

			token := extractBearerToken(c)

			assert.Equal(t, "abc123", token)
		})
	}
}

// =============================================================================
// RequireAuth Tests
// =============================================================================

func TestRequireAuth_Success(t *testing.T) {
	provider := &mockAuthProvider{
		authInfo: &extensions.AuthInfo{Username: "casey"},
	}
	registry := &mockUserRegistry{users: map[string]bool{"casey": true}}

	router := gin.New()
	router.Use(RequireAuth(provider, registry))
	router.GET("/test", func(c *gin.Context) {
		authInfo := GetAuthInfo(c)
		require.NotNil(t, authInfo)
		assert.Equal(t, "casey", authInfo.Username)
		assert.Equal(t, "casey", Username(c))
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer valid-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	provider := &mockAuthProvider{
		authInfo: &extensions.AuthInfo{Username: "casey"},
	}

	router := gin.New()
	router.Use(RequireAuth(provider, nil))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Ok)
	assert.Equal(t, "missing authentication token", resp.Error)
}

func TestRequireAuth_InvalidToken(t *testing.T) {
	provider := &mockAuthProvider{
		err: fmt.Errorf("%w: signature mismatch", extensions.ErrUnauthorized),
	}

	router := gin.New()
	router.Use(RequireAuth(provider, nil))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer forged-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Ok)
	assert.Equal(t, "invalid authentication token", resp.Error)
}

func TestRequireAuth_ProviderError(t *testing.T) {
	provider := &mockAuthProvider{
		err: errors.New("key store down"),
	}

	router := gin.New()
	router.Use(RequireAuth(provider, nil))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "internal error", resp.Error)
}

func TestRequireAuth_UnknownUser(t *testing.T) {
	// A valid token naming a user the store no longer knows means the
	// store was reset since issuance.
	provider := &mockAuthProvider{
		authInfo: &extensions.AuthInfo{Username: "ghost"},
	}
	registry := &mockUserRegistry{users: map[string]bool{"casey": true}}

	router := gin.New()
	router.Use(RequireAuth(provider, registry))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer stale-token")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "invalid authentication token", resp.Error)
}

func TestRequireAuth_NopProvider(t *testing.T) {
	// NopAuthProvider accepts any presented token as local-user, but a
	// request with no token at all is still rejected.
	provider := &extensions.NopAuthProvider{}
	registry := &mockUserRegistry{users: map[string]bool{"local-user": true}}

	router := gin.New()
	router.Use(RequireAuth(provider, registry))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": Username(c)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer anything")
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// =============================================================================
// RequireAuthorization Tests
// =============================================================================

func TestRequireAuthorization_Allowed(t *testing.T) {
	authz := &extensions.NopAuthzProvider{}

	router := gin.New()
	router.Use(RequireAuthorization(authz, "operation"))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAuthorization_Denied(t *testing.T) {
	authz := &recordingAuthzProvider{err: errors.New("policy denies")}

	router := gin.New()
	router.Use(RequireAuthorization(authz, "operation"))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	resp := decodeError(t, w)
	assert.False(t, resp.Ok)
	assert.Equal(t, "forbidden", resp.Error)
}

func TestRequireAuthorization_RequestShape(t *testing.T) {
	authz := &recordingAuthzProvider{}
	info := &extensions.AuthInfo{Username: "casey"}

	router := gin.New()
	router.Use(func(c *gin.Context) { SetAuthInfo(c, info) })
	router.Use(RequireAuthorization(authz, "operation"))
	router.PATCH("/operations/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest("PATCH", "/operations/1234", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, info, authz.lastReq.User)
	assert.Equal(t, "update", authz.lastReq.Action)
	assert.Equal(t, "operation", authz.lastReq.ResourceType)
	assert.Equal(t, "1234", authz.lastReq.ResourceID)
}

func TestActionForMethod(t *testing.T) {
	tests := []struct {
		method string
		want   string
	}{
		{http.MethodPost, "create"},
		{http.MethodPatch, "update"},
		{http.MethodPut, "update"},
		{http.MethodDelete, "delete"},
		{http.MethodGet, "read"},
		{http.MethodHead, "read"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, actionForMethod(tt.method), "method %s", tt.method)
	}
}

// =============================================================================
// Context Helper Tests
// =============================================================================

func TestSetAndGetAuthInfo(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	expected := &extensions.AuthInfo{Username: "casey"}

	SetAuthInfo(c, expected)
	actual := GetAuthInfo(c)

	require.NotNil(t, actual)
	assert.Equal(t, expected.Username, actual.Username)
}

func TestGetAuthInfo_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	authInfo := GetAuthInfo(c)

	assert.Nil(t, authInfo)
}

func TestGetAuthInfo_WrongType(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set(authInfoKey, "not an AuthInfo")

	authInfo := GetAuthInfo(c)

	assert.Nil(t, authInfo)
}

func TestUsername_NotSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	assert.Empty(t, Username(c))
}
