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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/switchyard/services/coordinator/datatypes"
)

// selfWriteWindow is how long after our own save a change event on the
// snapshot file is attributed to that save rather than to an outside
// writer.
const selfWriteWindow = 500 * time.Millisecond

// FileStore persists snapshots as a single JSON file.
//
// Saves are atomic: the payload is written to a temp file in the same
// directory, synced, and renamed over the target, so a crash mid-save
// leaves the previous snapshot intact.
//
// The store watches the snapshot's directory and logs a warning when
// another process modifies the file. The coordinator overwrites such
// edits on its next save; the warning gives operators a chance to
// notice before that happens.
//
// # Thread Safety
//
// All methods are safe for concurrent use.
type FileStore struct {
	path string

	mu            sync.Mutex
	suppressUntil time.Time

	watcher   *fsnotify.Watcher
	closeOnce sync.Once
}

var _ Store = (*FileStore)(nil)

// NewFileStore creates a store writing to path, creating parent
// directories as needed.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path must not be empty")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("create snapshot directory %s: %w", dir, err)
	}

	s := &FileStore{path: path}

	// External-change detection is best effort: a host without inotify
	// capacity still gets a working store.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		slog.Warn("snapshot file watching disabled", "error", err)
		return s, nil
	}
	if err := watcher.Add(dir); err != nil {
		slog.Warn("snapshot file watching disabled", "error", err)
		watcher.Close()
		return s, nil
	}
	s.watcher = watcher
	go s.watchLoop()

	return s, nil
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Save writes the snapshot atomically.
func (s *FileStore) Save(ctx context.Context, snap datatypes.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	s.suppressUntil = time.Now().Add(selfWriteWindow)
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace snapshot: %w", err)
	}

	return nil
}

// Load reads the snapshot file.
func (s *FileStore) Load(ctx context.Context) (datatypes.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Snapshot{}, err
	}

	payload, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return datatypes.Snapshot{}, ErrNoSnapshot
		}
		return datatypes.Snapshot{}, fmt.Errorf("read snapshot: %w", err)
	}

	var snap datatypes.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return datatypes.Snapshot{}, fmt.Errorf("decode snapshot %s: %w", s.path, err)
	}

	return snap, nil
}

// Close stops the file watcher.
func (s *FileStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}

func (s *FileStore) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			s.handleWatchEvent(event)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("snapshot file watcher error", "error", err)
		}
	}
}

func (s *FileStore) handleWatchEvent(event fsnotify.Event) {
	if event.Name != s.path {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	s.mu.Lock()
	ours := time.Now().Before(s.suppressUntil)
	s.mu.Unlock()
	if ours {
		return
	}

	slog.Warn("snapshot file changed outside the coordinator",
		"path", s.path,
		"op", event.Op.String())
}
