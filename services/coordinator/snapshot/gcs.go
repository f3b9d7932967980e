// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

const (
	// DefaultMirrorPrefix is the object prefix for mirrored snapshots.
	DefaultMirrorPrefix = "snapshots"

	// DefaultMirrorKeep is how many mirrored snapshots to retain.
	DefaultMirrorKeep = 10
)

// GCSMirrorConfig holds configuration for mirroring snapshots to a
// Google Cloud Storage bucket.
type GCSMirrorConfig struct {
	// Bucket is the GCS bucket name. Required.
	Bucket string

	// Prefix is the object name prefix. Defaults to DefaultMirrorPrefix.
	Prefix string

	// CredentialsFile is the path to a service account key file.
	// If empty, Application Default Credentials are used.
	CredentialsFile string

	// Keep is how many mirrored snapshots to retain in the bucket.
	// Older objects beyond this count are pruned after each save.
	// Defaults to DefaultMirrorKeep.
	Keep int

	// Service names the coordinator instance in object names, so
	// several coordinators can share one bucket.
	// Defaults to "coordinator".
	Service string
}

// GCSMirror wraps another Store and mirrors every saved snapshot to a
// GCS bucket as a timestamped JSON object.
//
// The wrapped store remains the source of truth: a save fails only if
// the wrapped store fails. Mirror uploads and retention pruning are
// best effort and log a warning on failure, so a network outage never
// blocks local persistence. Load always reads from the wrapped store.
//
// # Thread Safety
//
// Safe for concurrent use if the wrapped store is.
type GCSMirror struct {
	inner  Store
	client *storage.Client
	cfg    GCSMirrorConfig
}

var _ Store = (*GCSMirror)(nil)

// NewGCSMirror creates a mirroring store around inner.
func NewGCSMirror(ctx context.Context, inner Store, cfg GCSMirrorConfig) (*GCSMirror, error) {
	if inner == nil {
		return nil, errors.New("inner store is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("bucket name is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultMirrorPrefix
	}
	if cfg.Keep <= 0 {
		cfg.Keep = DefaultMirrorKeep
	}
	if cfg.Service == "" {
		cfg.Service = "coordinator"
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		if _, err := os.Stat(cfg.CredentialsFile); err != nil {
			return nil, fmt.Errorf("credentials file not accessible: %w", err)
		}
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}

	return &GCSMirror{inner: inner, client: client, cfg: cfg}, nil
}

// Save persists the snapshot in the wrapped store, then mirrors it.
func (m *GCSMirror) Save(ctx context.Context, snap datatypes.Snapshot) error {
	if err := m.inner.Save(ctx, snap); err != nil {
		return err
	}

	if err := m.upload(ctx, snap); err != nil {
		slog.Warn("snapshot mirror upload failed",
			"bucket", m.cfg.Bucket,
			"error", err)
		return nil
	}

	if err := m.prune(ctx); err != nil {
		slog.Warn("snapshot mirror pruning failed",
			"bucket", m.cfg.Bucket,
			"error", err)
	}

	return nil
}

// Load reads the snapshot from the wrapped store.
func (m *GCSMirror) Load(ctx context.Context) (datatypes.Snapshot, error) {
	return m.inner.Load(ctx)
}

// Close closes the storage client and the wrapped store.
func (m *GCSMirror) Close() error {
	clientErr := m.client.Close()
	innerErr := m.inner.Close()
	if clientErr != nil {
		return clientErr
	}
	return innerErr
}

// objectName builds a sortable, timestamped object name.
func (m *GCSMirror) objectName(savedAt time.Time) string {
	stamp := savedAt.UTC().Format("20060102T150405Z")
	return fmt.Sprintf("%s/%s-%s.json", m.cfg.Prefix, m.cfg.Service, stamp)
}

func (m *GCSMirror) upload(ctx context.Context, snap datatypes.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	name := m.objectName(snap.SavedAt)
	w := m.client.Bucket(m.cfg.Bucket).Object(name).NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(payload); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s: %w", name, err)
	}

	return nil
}

// prune deletes the oldest mirrored snapshots beyond the retention
// count. Timestamped names sort chronologically, so lexical order is
// age order.
func (m *GCSMirror) prune(ctx context.Context) error {
	bucket := m.client.Bucket(m.cfg.Bucket)
	query := &storage.Query{Prefix: m.cfg.Prefix + "/" + m.cfg.Service + "-"}

	var names []string
	it := bucket.Objects(ctx, query)
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return fmt.Errorf("list mirrored snapshots: %w", err)
		}
		names = append(names, attrs.Name)
	}

	if len(names) <= m.cfg.Keep {
		return nil
	}

	sort.Strings(names)
	for _, name := range names[:len(names)-m.cfg.Keep] {
		if err := bucket.Object(name).Delete(ctx); err != nil {
			return fmt.Errorf("delete object %s: %w", name, err)
		}
	}

	return nil
}
