// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/switchyard/pkg/extensions"
	"github.com/AleutianAI/switchyard/services/coordinator/engine"
	"github.com/AleutianAI/switchyard/services/coordinator/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(t *testing.T) (*gin.Engine, *engine.Engine) {
	t.Helper()
	eng := engine.New(engine.Config{})
	t.Cleanup(eng.Close)

	router := gin.New()
	SetupRoutes(router, eng, "coordinator", extensions.DefaultOptions(), nil)
	return router, eng
}

func TestSetupRoutes_RegistersAllEndpoints(t *testing.T) {
	router, _ := newRouter(t)

	expected := []struct {
		method string
		path   string
	}{
		{"GET", "/health"},
		{"GET", "/metrics"},
		{"POST", "/api/v1/auth"},
		{"POST", "/api/v1/components"},
		{"GET", "/api/v1/components"},
		{"GET", "/api/v1/components/:name"},
		{"POST", "/api/v1/tags"},
		{"GET", "/api/v1/tags"},
		{"GET", "/api/v1/tags/:name"},
		{"POST", "/api/v1/operations"},
		{"GET", "/api/v1/operations"},
		{"GET", "/api/v1/operations/:id"},
		{"PATCH", "/api/v1/operations/:id"},
		{"POST", "/api/v1/subscriptions"},
		{"GET", "/api/v1/subscriptions"},
		{"GET", "/api/v1/subscriptions/watch"},
	}

	routes := router.Routes()
	for _, want := range expected {
		found := false
		for _, r := range routes {
			if r.Method == want.method && r.Path == want.path {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected route %s %s not registered", want.method, want.path)
		}
	}

	if len(routes) != len(expected) {
		t.Errorf("registered %d routes, expected %d", len(routes), len(expected))
	}
}

func TestSetupRoutes_HealthIsOpen(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("health returned %d, want 200", w.Code)
	}
}

func TestSetupRoutes_MetricsIsOpen(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Errorf("metrics returned %d, want 200", w.Code)
	}
}

func TestSetupRoutes_APIRequiresToken(t *testing.T) {
	router, _ := newRouter(t)

	protected := []struct {
		method string
		path   string
	}{
		{"GET", "/api/v1/components"},
		{"GET", "/api/v1/tags"},
		{"GET", "/api/v1/operations"},
		{"GET", "/api/v1/subscriptions"},
		{"POST", "/api/v1/operations"},
	}

	for _, tc := range protected {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s returned %d without a token, want 401", tc.method, tc.path, w.Code)
		}
	}
}

func TestSetupRoutes_AuthEndpointIsOpen(t *testing.T) {
	router, eng := newRouter(t)

	body := strings.NewReader(`{"username": "casey"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("auth returned %d, want 200: %s", w.Code, w.Body.String())
	}
	if !eng.UserExists("casey") {
		t.Error("authenticating should register the user")
	}
}

func TestSetupRoutes_RateLimiterGuardsAuth(t *testing.T) {
	eng := engine.New(engine.Config{})
	t.Cleanup(eng.Close)

	router := gin.New()
	limiter := middleware.NewRateLimiter(1, 1)
	SetupRoutes(router, eng, "coordinator", extensions.DefaultOptions(), limiter)

	send := func() int {
		body := strings.NewReader(`{"username": "casey"}`)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth", body)
		req.Header.Set("Content-Type", "application/json")
		req.RemoteAddr = "203.0.113.9:4455"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	if code := send(); code != http.StatusOK {
		t.Fatalf("first auth returned %d, want 200", code)
	}
	if code := send(); code != http.StatusTooManyRequests {
		t.Errorf("second auth returned %d, want 429", code)
	}

	// Other endpoints are not rate limited.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.9:4455"
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("health returned %d after rate limit, want 200", w.Code)
	}
}
