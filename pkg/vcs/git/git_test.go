// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package git

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func createLocalRepo(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatal(err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatal(err)
	}
	for name, content := range files {
		full := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := wt.Add(name); err != nil {
			t.Fatal(err)
		}
	}
	sig := &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
	if _, err := wt.Commit("initial", &git.CommitOptions{Author: sig}); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestDefaultSourceFetchHEAD(t *testing.T) {
	repoDir := createLocalRepo(t, map[string]string{"pyproject.toml": "[project]\nname = \"pkg\"\n"})
	s := &DefaultSource{Dir: t.TempDir()}
	rev, checkout, err := s.Fetch(context.Background(), "file://"+repoDir, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rev) != 40 {
		t.Errorf("revision = %q, want a 40-char sha", rev)
	}
	b, err := fs.ReadFile(checkout, "pyproject.toml")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[project]\nname = \"pkg\"\n" {
		t.Errorf("pyproject.toml content = %q", b)
	}
}
