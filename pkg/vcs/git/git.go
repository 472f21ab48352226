// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package git fetches and checks out a source tree from a Git remote for
// sdist-from-VCS and local-directory build sources.
package git

import (
	"context"
	"io/fs"
	"os"
	"regexp"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
	"github.com/pkg/errors"
)

// fullHashRE matches a full (not abbreviated) hex commit sha, the only form
// plumbing.NewHash can resolve without a repository lookup.
var fullHashRE = regexp.MustCompile(`^[0-9a-f]{40}$`)

// Source fetches a precise revision of a repository and makes its checked
// out worktree available as an fs.FS.
type Source interface {
	// Fetch resolves ref (a branch, tag, or commit sha) to a precise commit,
	// checks that commit out, and returns the checkout rooted at checkout.
	Fetch(ctx context.Context, url, ref string) (revision string, checkout fs.FS, err error)
}

// DefaultSource is the go-git-backed Source used outside of tests.
type DefaultSource struct {
	// Dir is the parent directory under which scratch clones are created.
	// An empty value uses os.MkdirTemp's default.
	Dir string
}

var _ Source = &DefaultSource{}

// Fetch implements Source by cloning into a fresh temp directory and
// checking out ref (defaulting to the remote's default branch when empty).
// A ref that looks like a full commit sha is resolved by checking it out
// explicitly after an unqualified clone, since go-git cannot fetch a bare
// hash as a ReferenceName.
func (s *DefaultSource) Fetch(ctx context.Context, url, ref string) (string, fs.FS, error) {
	dir, err := os.MkdirTemp(s.Dir, "pep-git-checkout-*")
	if err != nil {
		return "", nil, errors.Wrap(err, "creating checkout directory")
	}
	isHash := fullHashRE.MatchString(ref)
	// A full clone is needed to resolve a bare commit sha, which may not be
	// reachable from the default branch's history alone.
	opts := &git.CloneOptions{URL: url, SingleBranch: !isHash}
	if ref != "" && !isHash {
		opts.ReferenceName = plumbing.NewBranchReferenceName(ref)
	}
	wfs := osfs.New(dir)
	storer := filesystem.NewStorage(osfs.New(dir+"/.git"), cache.NewObjectLRUDefault())
	repo, err := git.CloneContext(ctx, storer, wfs, opts)
	if err != nil && ref != "" && !isHash {
		// ref may be a tag rather than a branch; retry as the default branch
		// and resolve it as a revision afterward. The failed clone has
		// already initialized a repository here, so start over empty.
		os.RemoveAll(dir)
		storer = filesystem.NewStorage(osfs.New(dir+"/.git"), cache.NewObjectLRUDefault())
		opts.ReferenceName = ""
		repo, err = git.CloneContext(ctx, storer, wfs, opts)
		if err == nil {
			err = checkoutRevision(repo, ref)
		}
	} else if err == nil && isHash {
		err = checkoutRevision(repo, ref)
	}
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, errors.Wrapf(err, "fetching %q@%q", url, ref)
	}
	head, err := repo.Head()
	if err != nil {
		os.RemoveAll(dir)
		return "", nil, errors.Wrap(err, "resolving HEAD")
	}
	return head.Hash().String(), os.DirFS(dir), nil
}

// checkoutRevision resolves ref (a tag, a commit sha, or any go-git revision
// expression) against the full repository history and checks it out.
func checkoutRevision(repo *git.Repository, ref string) error {
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return errors.Wrapf(err, "resolving revision %q", ref)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return err
	}
	return wt.Checkout(&git.CheckoutOptions{Hash: *hash, Force: true})
}
