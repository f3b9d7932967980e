// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides the input normalization and validation
// helpers shared by the coordinator engine and the CLI: canonical set
// semantics for list-valued fields, blank checks, and URL scheme
// checks.
package validation

import (
	"net/url"
	"sort"
	"strings"
)

// Blank reports whether s is empty after trimming whitespace.
func Blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// TrimName returns s with surrounding whitespace removed.
func TrimName(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeSet canonicalizes a list-valued field: each element is
// trimmed, empties are dropped, the rest sorted and deduplicated. The
// result is never nil so the wire form is [] rather than null.
func NormalizeSet(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	sort.Strings(out)
	return dedupStrings(out)
}

// NormalizeIDSet sorts and deduplicates numeric ids. Never nil.
func NormalizeIDSet(ids []uint64) []uint64 {
	out := make([]uint64, 0, len(ids))
	out = append(out, ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 0
	for i, v := range out {
		if i > 0 && out[n-1] == v {
			continue
		}
		out[n] = v
		n++
	}
	return out[:n]
}

// ValidHTTPURL reports whether raw parses as a URL with an http or
// https scheme.
func ValidHTTPURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func dedupStrings(sorted []string) []string {
	n := 0
	for i, v := range sorted {
		if i > 0 && sorted[n-1] == v {
			continue
		}
		sorted[n] = v
		n++
	}
	return sorted[:n]
}
