// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package simple implements a client for the Python Package Index Simple
// Repository API (PEP 503/691/658).
package simple

import (
	"context"
	"io"

	"github.com/pep-run/pep/pkg/pypi/digest"
)

// File describes one entry in a project's Simple API listing.
type File struct {
	Filename string
	URL      string
	Hashes   digest.Hashes
	// RequiresPython is the raw PEP 440 specifier string advertised for this
	// file, or empty if the index did not declare one.
	RequiresPython string
	// Yanked is non-nil if the file is yanked; a non-empty string gives the
	// reason.
	Yanked *string
	// CoreMetadata is non-nil if the index advertises a PEP 658 metadata
	// side-channel for this file (the boolean or per-algorithm hash form,
	// normalized to a hash set that may be empty).
	CoreMetadata *digest.Hashes
}

// SimpleMetadata is the parsed Simple API response for one project.
type SimpleMetadata struct {
	Name  string
	Files []File
}

// Client is the index client interface exercised by the resolver and
// distribution database.
type Client interface {
	// Simple returns the file listing for a normalized project name.
	Simple(ctx context.Context, name string) (*SimpleMetadata, error)
	// WheelMetadata returns the PEP 658 Core Metadata for a built wheel
	// file, using the cheapest strategy the index supports.
	WheelMetadata(ctx context.Context, f File) ([]byte, error)
	// Stream returns the response body for a direct URL, honoring
	// conditional/cache semantics of the underlying transport.
	Stream(ctx context.Context, url string) (io.ReadCloser, error)
}
