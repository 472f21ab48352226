// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// AtomicWriter writes to a randomly-named temp path under dir, then renames
// into place on Close, guaranteeing the final path never observes a
// partially-written file even if the writer crashes mid-stream.
type AtomicWriter struct {
	final   string
	tmp     string
	f       *os.File
	renamed bool
}

// NewAtomicWriter opens a temp file under dir for the eventual destination
// "dir/name".
func NewAtomicWriter(dir, name string) (*AtomicWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating cache directory %q", dir)
	}
	tmp := filepath.Join(dir, ".tmp-"+uuid.NewString())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "creating temp file %q", tmp)
	}
	return &AtomicWriter{final: filepath.Join(dir, name), tmp: tmp, f: f}, nil
}

// Write implements io.Writer.
func (w *AtomicWriter) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

var _ io.Writer = (*AtomicWriter)(nil)

// Commit flushes, closes, and atomically renames the temp file into place.
func (w *AtomicWriter) Commit() error {
	if err := w.f.Sync(); err != nil {
		w.Abort()
		return errors.Wrap(err, "syncing cache entry")
	}
	if err := w.f.Close(); err != nil {
		w.Abort()
		return errors.Wrap(err, "closing cache entry")
	}
	if err := os.Rename(w.tmp, w.final); err != nil {
		os.Remove(w.tmp)
		return errors.Wrapf(err, "renaming cache entry into place at %q", w.final)
	}
	w.renamed = true
	return nil
}

// Abort closes and removes the temp file without renaming it into place.
// Safe to call after Commit has already succeeded (a no-op in that case).
func (w *AtomicWriter) Abort() {
	if w.renamed {
		return
	}
	w.f.Close()
	os.Remove(w.tmp)
}
