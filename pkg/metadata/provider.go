// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package metadata

import (
	"bytes"
	"context"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/cache"
	"github.com/pep-run/pep/pkg/pypi/distname"
	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/registry/simple"
)

// SdistMetadataFetcher resolves an sdist's Core Metadata without
// necessarily performing a full build, per spec.md §4.2's "Cache lookup
// without a build". Implemented by pkg/distdb.DB.
type SdistMetadataFetcher interface {
	FetchSdistMetadata(ctx context.Context, projectName string, sdist CompatibleFile) (*CoreMetadata, error)
}

// Provider is the per-resolve metadata provider described in spec.md §4.3:
// it fetches and memoises a package's VersionMap and per-version Core
// Metadata, matching the teacher's CoalescingMemoryCache.GetOrSet
// compute-once idiom via the generic pkg/cache.Memo.
type Provider struct {
	Index          simple.Client
	DB             SdistMetadataFetcher
	RequiresPython pep440.Range
	Tags           []distname.Tag
	Pinned         map[string]bool

	versionMaps cache.Memo[string, *VersionMap]
	metadatas   cache.Memo[string, *CoreMetadata]
}

// VersionMap returns the memoised VersionMap for projectName, computing it
// from the index on first request.
func (p *Provider) VersionMap(ctx context.Context, projectName string) (*VersionMap, error) {
	key := name.Normalize(projectName)
	return p.versionMaps.GetOrCompute(key, func() (*VersionMap, error) {
		meta, err := p.Index.Simple(ctx, projectName)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching simple index for %q", projectName)
		}
		return BuildVersionMap(meta, BuildOptions{
			RequiresPython: p.RequiresPython,
			Tags:           p.Tags,
			Pinned:         p.Pinned,
		}), nil
	})
}

// Metadata returns the memoised Core Metadata for (projectName, version),
// preferring a compatible wheel's PEP 658 side-channel and falling back to
// the sdist build-metadata path.
func (p *Provider) Metadata(ctx context.Context, projectName string, version pep440.Version) (*CoreMetadata, error) {
	key := name.Normalize(projectName) + "==" + version.String()
	return p.metadatas.GetOrCompute(key, func() (*CoreMetadata, error) {
		vm, err := p.VersionMap(ctx, projectName)
		if err != nil {
			return nil, err
		}
		files := vm.Files[version.String()]
		if len(files) == 0 {
			return nil, errors.Errorf("no compatible files for %s %s", projectName, version)
		}
		if wheel := firstWheel(files); wheel != nil {
			return p.metadataFromWheel(ctx, *wheel)
		}
		sdist := files[0]
		if p.DB == nil {
			return nil, errors.Errorf("%s %s has no wheel and no build backend is configured", projectName, version)
		}
		return p.DB.FetchSdistMetadata(ctx, projectName, sdist)
	})
}

func (p *Provider) metadataFromWheel(ctx context.Context, f CompatibleFile) (*CoreMetadata, error) {
	b, err := p.Index.WheelMetadata(ctx, f.File)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching metadata for %q", f.Filename)
	}
	return ParseCoreMetadata(bytes.NewReader(b))
}

func firstWheel(files []CompatibleFile) *CompatibleFile {
	for i := range files {
		if files[i].IsWheel() {
			return &files[i]
		}
	}
	return nil
}
