// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// generate_api_docs generates a markdown reference for the coordinator
// HTTP API.
//
// Usage:
//
//	go run scripts/generate_api_docs.go > docs/api_reference.md
//
// The table below is maintained by hand against
// services/coordinator/routes/routes.go; keep the two in sync when
// adding endpoints.
package main

import (
	"fmt"
	"time"
)

// Endpoint describes one route of the coordinator API.
type Endpoint struct {
	Method   string
	Path     string
	Auth     string
	Request  string
	Response string
	Notes    string
}

// EndpointGroup is a resource-level section of the reference.
type EndpointGroup struct {
	Name        string
	Description string
	Endpoints   []Endpoint
}

var groups = []EndpointGroup{
	{
		Name:        "Service",
		Description: "Unauthenticated service endpoints.",
		Endpoints: []Endpoint{
			{"GET", "/health", "none", "-", "`{status, service, time}`", "Liveness probe."},
			{"GET", "/metrics", "none", "-", "Prometheus text format", "Scrape target for the collector."},
		},
	},
	{
		Name:        "Authentication",
		Description: "Token issuance. Every `/api/v1` route below requires the resulting bearer token.",
		Endpoints: []Endpoint{
			{"POST", "/api/v1/auth", "none (rate limited per IP)", "`{username}`", "`{ok, token}`",
				"Registers the user on first sight and returns a signed token."},
		},
	},
	{
		Name:        "Components",
		Description: "Named pieces of shared infrastructure operations act on.",
		Endpoints: []Endpoint{
			{"POST", "/api/v1/components", "bearer", "`{name, description, owners}`", "`{ok}`",
				"Owners must be non-empty; names are unique."},
			{"GET", "/api/v1/components", "bearer", "-", "`{ok, components}`", ""},
			{"GET", "/api/v1/components/:name", "bearer", "-", "`{ok, component}`", ""},
		},
	},
	{
		Name:        "Tags",
		Description: "Free-form labels for grouping operations.",
		Endpoints: []Endpoint{
			{"POST", "/api/v1/tags", "bearer", "`{name, description}`", "`{ok}`", "Names are unique."},
			{"GET", "/api/v1/tags", "bearer", "-", "`{ok, tags}`", ""},
			{"GET", "/api/v1/tags/:name", "bearer", "-", "`{ok, tag}`", ""},
		},
	},
	{
		Name:        "Operations",
		Description: "Change operations and their lifecycle.",
		Endpoints: []Endpoint{
			{"POST", "/api/v1/operations", "bearer",
				"`{title, purpose, url, components, locks?, tags?, depends_on?, operators?, annotations?}`",
				"`{ok, id}`",
				"Created as `planned`. `locks` must be a subset of `components`; `operators` defaults to the caller."},
			{"GET", "/api/v1/operations", "bearer",
				"query: `component`, `tag`, `operator`, `status` (repeatable)",
				"`{ok, operations}`",
				"Filters of the same key union; different keys intersect."},
			{"GET", "/api/v1/operations/:id", "bearer", "-", "`{ok, operation}`", ""},
			{"PATCH", "/api/v1/operations/:id", "bearer",
				"any subset of the create fields plus `status`",
				"`{ok}`",
				"Status moves run the state machine: 424 on unmet dependencies, 423 on lock conflicts."},
		},
	},
	{
		Name:        "Subscriptions",
		Description: "Per-user interest sets and the event stream they feed.",
		Endpoints: []Endpoint{
			{"POST", "/api/v1/subscriptions", "bearer",
				"exactly one of `{operation}`, `{component}`, `{tag}`", "`{ok}`", ""},
			{"GET", "/api/v1/subscriptions", "bearer", "-", "`{ok, operations, components, tags}`", ""},
			{"GET", "/api/v1/subscriptions/watch", "bearer", "-", "WebSocket",
				"Primes the session with every operation ordered by id, then streams matched changes."},
		},
	},
}

func main() {
	fmt.Println("# Coordinator API Reference")
	fmt.Println()
	fmt.Printf("Generated: %s\n", time.Now().Format("2006-01-02"))
	fmt.Println()
	fmt.Println("All request and response bodies are JSON. Successful responses set")
	fmt.Println("`\"ok\": true`; failures return `{\"ok\": false, \"error\": \"...\"}` with a")
	fmt.Println("status code describing the rejection.")

	total := 0
	for _, g := range groups {
		fmt.Printf("\n## %s\n\n", g.Name)
		fmt.Println(g.Description)
		fmt.Println()
		fmt.Println("| Method | Path | Auth | Request | Response |")
		fmt.Println("|--------|------|------|---------|----------|")
		for _, e := range g.Endpoints {
			fmt.Printf("| %s | `%s` | %s | %s | %s |\n",
				e.Method, e.Path, e.Auth, dash(e.Request), dash(e.Response))
		}
		for _, e := range g.Endpoints {
			if e.Notes != "" {
				fmt.Printf("\n- `%s %s` — %s\n", e.Method, e.Path, e.Notes)
			}
		}
		total += len(g.Endpoints)
	}

	fmt.Println("\n## Error Statuses")
	fmt.Println()
	fmt.Println("| Status | Meaning |")
	fmt.Println("|--------|---------|")
	fmt.Println("| 400 | Validation or taxonomy rejection |")
	fmt.Println("| 401 | Missing or invalid token |")
	fmt.Println("| 404 | Unknown component, tag, or operation |")
	fmt.Println("| 423 | A required component lock is held elsewhere |")
	fmt.Println("| 424 | An operation in `depends_on` is not completed |")
	fmt.Println("| 429 | Token issuance rate exceeded |")

	fmt.Printf("\n---\n\n%d endpoints across %d resource groups.\n", total, len(groups))
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
