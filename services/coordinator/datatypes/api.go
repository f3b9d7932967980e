// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

// Every HTTP response is a flat envelope: "ok" plus payload fields on
// success, "ok": false plus "error" on failure.

// AuthRequest asks for a bearer token for a username. The user is
// created on first authentication.
type AuthRequest struct {
	Username string `json:"username"`
}

// AuthResponse carries the issued bearer token.
type AuthResponse struct {
	Ok    bool   `json:"ok"`
	Token string `json:"token"`
}

// CreateComponentRequest registers a new shared component.
type CreateComponentRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Owners      []string `json:"owners"`
}

// CreateTagRequest registers a new tag.
type CreateTagRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateOperationRequest is the full draft of a new operation. The
// server assigns the id and forces the status to planned. Operators
// defaults to the requesting user when empty.
type CreateOperationRequest struct {
	Title       string            `json:"title"`
	Purpose     string            `json:"purpose"`
	URL         string            `json:"url"`
	Components  []string          `json:"components"`
	Locks       []string          `json:"locks,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	DependsOn   []uint64          `json:"depends_on,omitempty"`
	Operators   []string          `json:"operators,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// UpdateOperationRequest is a partial update. Nil fields are left
// untouched; Annotations entries are merged into the existing map,
// never replacing it wholesale.
type UpdateOperationRequest struct {
	Title       *string           `json:"title,omitempty"`
	Purpose     *string           `json:"purpose,omitempty"`
	URL         *string           `json:"url,omitempty"`
	Components  *[]string         `json:"components,omitempty"`
	Locks       *[]string         `json:"locks,omitempty"`
	Tags        *[]string         `json:"tags,omitempty"`
	DependsOn   *[]uint64         `json:"depends_on,omitempty"`
	Operators   *[]string         `json:"operators,omitempty"`
	Status      *string           `json:"status,omitempty"`
	Annotations map[string]string `json:"annotations,omitempty"`
}

// ListOperationsQuery holds the list filters. Each field may repeat in
// the query string; values within a field are OR-ed, fields are AND-ed.
type ListOperationsQuery struct {
	Components []string `form:"component"`
	Tags       []string `form:"tag"`
	Operators  []string `form:"operator"`
	Statuses   []string `form:"status"`
}

// SubscribeRequest targets exactly one of an operation id, a component
// name, or a tag name.
type SubscribeRequest struct {
	Operation *uint64 `json:"operation,omitempty"`
	Component *string `json:"component,omitempty"`
	Tag       *string `json:"tag,omitempty"`
}

// OKResponse is the bare success envelope.
type OKResponse struct {
	Ok bool `json:"ok"`
}

// ErrorResponse is the failure envelope.
type ErrorResponse struct {
	Ok    bool   `json:"ok"`
	Error string `json:"error"`
}

// CreateOperationResponse returns the server-assigned id.
type CreateOperationResponse struct {
	Ok bool   `json:"ok"`
	ID uint64 `json:"id"`
}

// OperationResponse wraps a single operation.
type OperationResponse struct {
	Ok        bool      `json:"ok"`
	Operation Operation `json:"operation"`
}

// OperationsResponse wraps an operation listing, sorted by id.
type OperationsResponse struct {
	Ok         bool        `json:"ok"`
	Operations []Operation `json:"operations"`
}

// ComponentResponse wraps a single component.
type ComponentResponse struct {
	Ok        bool      `json:"ok"`
	Component Component `json:"component"`
}

// ComponentsResponse wraps a component listing, sorted by name.
type ComponentsResponse struct {
	Ok         bool        `json:"ok"`
	Components []Component `json:"components"`
}

// TagResponse wraps a single tag.
type TagResponse struct {
	Ok  bool `json:"ok"`
	Tag Tag  `json:"tag"`
}

// TagsResponse wraps a tag listing, sorted by name.
type TagsResponse struct {
	Ok   bool  `json:"ok"`
	Tags []Tag `json:"tags"`
}

// SubscriptionsResponse lists the caller's subscription sets, each
// sorted.
type SubscriptionsResponse struct {
	Ok         bool     `json:"ok"`
	Operations []uint64 `json:"operations"`
	Components []string `json:"components"`
	Tags       []string `json:"tags"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Time    string `json:"time"`
}
