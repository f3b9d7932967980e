// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extensions

import (
	"context"
	"errors"
)

// ErrAnnotationBlocked is returned when an annotation value is
// rejected outright rather than redacted. Enterprise implementations
// should wrap this error with the reason.
var ErrAnnotationBlocked = errors.New("annotation blocked by filter")

// RedactionResult contains the outcome of an annotation filter pass.
//
// Operation annotations are free-form key-value pairs and are the one
// place where operators can paste credentials, hostnames, or ticket
// contents that must not leave the service unchecked. The filter runs
// on every operation sent to a watch subscriber.
//
// Example:
//
//	result := RedactionResult{
//	    Annotations: map[string]string{"db_password": "[REDACTED]"},
//	    Redacted:    []string{"db_password"},
//	    WasModified: true,
//	}
type RedactionResult struct {
	// Annotations is the annotation map after filtering. If
	// WasModified is false, it is the input map unchanged.
	Annotations map[string]string

	// Redacted lists the keys whose values were altered or removed.
	Redacted []string

	// WasModified indicates if any transformations were applied.
	WasModified bool
}

// AnnotationFilter transforms operation annotations before they are
// delivered to watch subscribers.
//
// Implementations must be safe for concurrent use by multiple
// goroutines and must not mutate the input map.
//
// # Open Source Behavior
//
// The default NopAnnotationFilter passes annotations through
// unchanged.
//
// # Enterprise Implementation
//
// Enterprise versions redact secrets and PII before broadcast:
//
//	func (f *SecretFilter) Redact(ctx context.Context, in map[string]string) (*RedactionResult, error) {
//	    out := make(map[string]string, len(in))
//	    var hits []string
//	    for k, v := range in {
//	        if f.looksLikeSecret(k, v) {
//	            out[k] = "[REDACTED]"
//	            hits = append(hits, k)
//	            continue
//	        }
//	        out[k] = v
//	    }
//	    return &RedactionResult{Annotations: out, Redacted: hits, WasModified: len(hits) > 0}, nil
//	}
type AnnotationFilter interface {
	// Redact inspects an annotation map and returns the version safe
	// for delivery to subscribers.
	//
	// Returns:
	//   - *RedactionResult: the outcome, never nil on success
	//   - error: ErrAnnotationBlocked (or wrapped) to suppress the
	//     whole map, other errors for filter failures
	Redact(ctx context.Context, annotations map[string]string) (*RedactionResult, error)
}

// NopAnnotationFilter is the default filter for open source.
//
// It passes annotations through unchanged.
//
// Thread-safe: This implementation has no mutable state.
type NopAnnotationFilter struct{}

// Redact returns the input unchanged.
func (f *NopAnnotationFilter) Redact(_ context.Context, annotations map[string]string) (*RedactionResult, error) {
	return &RedactionResult{Annotations: annotations}, nil
}

// Compile-time interface compliance check.
var _ AnnotationFilter = (*NopAnnotationFilter)(nil)
