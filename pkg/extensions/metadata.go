// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

// Metadata is the claims bag carried on AuthInfo and handed to
// authorization providers.
//
// A defined type beats map[string]any at the seam: providers get a
// fluent builder on the issuing side and typed accessors on the
// checking side, and signatures say what they carry. Keys in use
// today: "issuer" from the JWT validator; identity providers add
// "session_id" and "groups"; enterprise filters may stamp
// "ip_address".
//
// Metadata is a plain map underneath and is not safe for concurrent
// mutation. Token validation builds one per request and never shares
// it, so no locking is needed on that path.
type Metadata map[string]any

// NewMetadata returns an empty, non-nil Metadata. Always start here; a
// nil Metadata panics on Set.
func NewMetadata() Metadata {
	return make(Metadata)
}

// Set stores a key and returns the Metadata for chaining:
//
//	extensions.NewMetadata().Set("issuer", claims.Issuer)
func (m Metadata) Set(key string, value any) Metadata {
	m[key] = value
	return m
}

// Get returns the raw value and whether the key was present.
func (m Metadata) Get(key string) (any, bool) {
	value, ok := m[key]
	return value, ok
}

// GetString returns the value if it is present and a string.
func (m Metadata) GetString(key string) (string, bool) {
	value, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// GetBool returns the value if it is present and a bool.
func (m Metadata) GetBool(key string) (bool, bool) {
	value, ok := m[key]
	if !ok {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// Has reports whether the key exists, even with a nil value.
func (m Metadata) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// Delete removes a key and returns the Metadata for chaining. Filters
// use this to strip claims before they cross a trust boundary.
func (m Metadata) Delete(key string) Metadata {
	delete(m, key)
	return m
}

// Clone returns a shallow copy. Reference values still alias the
// originals.
func (m Metadata) Clone() Metadata {
	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}

// Merge copies every pair from other into m, overwriting collisions,
// and returns m. A nil other is a no-op.
func (m Metadata) Merge(other Metadata) Metadata {
	if other == nil {
		return m
	}
	for k, v := range other {
		m[k] = v
	}
	return m
}

// Keys returns the key set in no particular order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Len returns the number of pairs.
func (m Metadata) Len() int {
	return len(m)
}
