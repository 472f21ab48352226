// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestArchiveStoreStoreAndHas(t *testing.T) {
	root := t.TempDir()
	a := ArchiveStore{Bucket: Bucket{Root: root, Name: "archive", Version: 1}}
	digest := "aabbccdd00112233"
	if a.Has(digest) {
		t.Fatal("expected entry to be absent initially")
	}
	path, err := a.Store(context.Background(), digest, func(dst string) error {
		return os.WriteFile(filepath.Join(dst, "METADATA"), []byte("Name: foo\n"), 0o644)
	})
	if err != nil {
		t.Fatal(err)
	}
	if !a.Has(digest) {
		t.Error("expected entry to be present after Store")
	}
	if _, err := os.Stat(filepath.Join(path, "METADATA")); err != nil {
		t.Errorf("expected METADATA file at %q: %v", path, err)
	}
}

func TestArchiveStoreIdempotent(t *testing.T) {
	root := t.TempDir()
	a := ArchiveStore{Bucket: Bucket{Root: root, Name: "archive", Version: 1}}
	digest := "aabbccdd00112233"
	calls := 0
	populate := func(dst string) error {
		calls++
		return os.WriteFile(filepath.Join(dst, "f"), []byte("x"), 0o644)
	}
	if _, err := a.Store(context.Background(), digest, populate); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Store(context.Background(), digest, populate); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected populate to run once, ran %d times", calls)
	}
}

func TestDigestDirStable(t *testing.T) {
	root := t.TempDir()
	os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644)
	d1, err := DigestDir(root)
	if err != nil {
		t.Fatal(err)
	}
	d2, err := DigestDir(root)
	if err != nil {
		t.Fatal(err)
	}
	if d1 != d2 {
		t.Error("expected DigestDir to be stable across calls")
	}
}
