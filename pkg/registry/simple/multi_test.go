// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"context"
	"io"
	"testing"
)

type stubIndex struct {
	meta *SimpleMetadata
	err  error
}

func (s stubIndex) Simple(ctx context.Context, name string) (*SimpleMetadata, error) {
	return s.meta, s.err
}

func (s stubIndex) WheelMetadata(ctx context.Context, f File) ([]byte, error) {
	return nil, s.err
}

func (s stubIndex) Stream(ctx context.Context, url string) (io.ReadCloser, error) {
	return nil, s.err
}

func TestMultiIndexFirstIndexSkipsUnparseable(t *testing.T) {
	m := &MultiIndexClient{
		Strategy: FirstIndex,
		Indexes: []Client{
			stubIndex{meta: &SimpleMetadata{Files: []File{{Filename: "not-a-valid-name"}}}},
			stubIndex{meta: &SimpleMetadata{Files: []File{{Filename: "pkg-1.0-py3-none-any.whl"}}}},
		},
	}
	meta, err := m.Simple(context.Background(), "pkg")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Files) != 1 || meta.Files[0].Filename != "pkg-1.0-py3-none-any.whl" {
		t.Errorf("meta = %+v, want second index's file", meta)
	}
}

func TestMultiIndexUnsafeFirstMatchTakesFirst(t *testing.T) {
	m := &MultiIndexClient{
		Strategy: UnsafeFirstMatch,
		Indexes: []Client{
			stubIndex{meta: &SimpleMetadata{Files: []File{{Filename: "not-a-valid-name"}}}},
			stubIndex{meta: &SimpleMetadata{Files: []File{{Filename: "pkg-1.0-py3-none-any.whl"}}}},
		},
	}
	meta, err := m.Simple(context.Background(), "pkg")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Files) != 1 || meta.Files[0].Filename != "not-a-valid-name" {
		t.Errorf("meta = %+v, want first index's file even though unparseable", meta)
	}
}

func TestMultiIndexUnsafeBestMatchUnions(t *testing.T) {
	m := &MultiIndexClient{
		Strategy: UnsafeBestMatch,
		Indexes: []Client{
			stubIndex{meta: &SimpleMetadata{Files: []File{{Filename: "pkg-1.0-py3-none-any.whl"}}}},
			stubIndex{meta: &SimpleMetadata{Files: []File{{Filename: "pkg-2.0-py3-none-any.whl"}, {Filename: "pkg-1.0-py3-none-any.whl"}}}},
		},
	}
	meta, err := m.Simple(context.Background(), "pkg")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Files) != 2 {
		t.Fatalf("meta.Files = %+v, want 2 deduped entries", meta.Files)
	}
}
