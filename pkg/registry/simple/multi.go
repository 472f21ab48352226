// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/pypi/distname"
)

// IndexStrategy controls how MultiIndexClient combines results from
// multiple configured indexes for the same package name.
type IndexStrategy int

const (
	// FirstIndex queries indexes in order; the first with any version whose
	// filename parses wins, and later indexes are not consulted.
	FirstIndex IndexStrategy = iota
	// UnsafeFirstMatch uses the first index with any file at all, parseable
	// or not.
	UnsafeFirstMatch
	// UnsafeBestMatch unions files across every configured index.
	UnsafeBestMatch
)

// MultiIndexClient fans a lookup out across Indexes according to Strategy.
type MultiIndexClient struct {
	Indexes  []Client
	Strategy IndexStrategy
}

var _ Client = &MultiIndexClient{}

// Simple implements Client.
func (m *MultiIndexClient) Simple(ctx context.Context, name string) (*SimpleMetadata, error) {
	switch m.Strategy {
	case UnsafeBestMatch:
		return m.simpleUnion(ctx, name)
	default:
		return m.simpleFirst(ctx, name)
	}
}

func (m *MultiIndexClient) simpleFirst(ctx context.Context, name string) (*SimpleMetadata, error) {
	var lastErr error
	for _, idx := range m.Indexes {
		meta, err := idx.Simple(ctx, name)
		if err != nil {
			lastErr = err
			continue
		}
		if len(meta.Files) == 0 {
			continue
		}
		if m.Strategy == UnsafeFirstMatch {
			return meta, nil
		}
		if hasParseableVersion(meta) {
			return meta, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, errors.Errorf("package %q not found on any configured index", name)
}

func (m *MultiIndexClient) simpleUnion(ctx context.Context, name string) (*SimpleMetadata, error) {
	merged := &SimpleMetadata{Name: name}
	seen := map[string]bool{}
	var lastErr error
	found := false
	for _, idx := range m.Indexes {
		meta, err := idx.Simple(ctx, name)
		if err != nil {
			lastErr = err
			continue
		}
		found = true
		for _, f := range meta.Files {
			if seen[f.Filename] {
				continue
			}
			seen[f.Filename] = true
			merged.Files = append(merged.Files, f)
		}
	}
	if !found {
		if lastErr != nil {
			return nil, lastErr
		}
		return nil, errors.Errorf("package %q not found on any configured index", name)
	}
	return merged, nil
}

func hasParseableVersion(meta *SimpleMetadata) bool {
	for _, f := range meta.Files {
		if _, err := distname.ParseWheelName(f.Filename, ""); err == nil {
			return true
		}
		if _, err := distname.ParseSdistName(f.Filename, ""); err == nil {
			return true
		}
	}
	return false
}

// WheelMetadata tries each configured index's implementation in turn; since
// a File's URL is absolute, any index's transport can resolve it.
func (m *MultiIndexClient) WheelMetadata(ctx context.Context, f File) ([]byte, error) {
	var lastErr error
	for _, idx := range m.Indexes {
		b, err := idx.WheelMetadata(ctx, f)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// Stream tries each configured index's implementation in turn.
func (m *MultiIndexClient) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error
	for _, idx := range m.Indexes {
		rc, err := idx.Stream(ctx, url)
		if err == nil {
			return rc, nil
		}
		lastErr = err
	}
	return nil, lastErr
}
