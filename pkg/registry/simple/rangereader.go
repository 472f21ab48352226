// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/internal/httpx"
)

// rangeReaderAt implements io.ReaderAt over HTTP range requests, the way
// the central-directory metadata strategy in client.go needs: archive/zip
// seeks to the tail of the file to locate the end-of-central-directory
// record, then reads the directory itself, without ever requiring the full
// body.
type rangeReaderAt struct {
	ctx    context.Context
	client httpx.BasicClient
	url    string
}

func newRangeReaderAt(ctx context.Context, client httpx.BasicClient, url string) (*rangeReaderAt, int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, errors.Wrapf(err, "HEAD %q", url)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, 0, errors.Errorf("HEAD %q: %v", url, resp.Status)
	}
	if resp.ContentLength <= 0 {
		return nil, 0, errors.Errorf("HEAD %q: server did not report Content-Length", url)
	}
	return &rangeReaderAt{ctx: ctx, client: client, url: url}, resp.ContentLength, nil
}

// ReadAt implements io.ReaderAt via a single-range HTTP GET.
func (r *rangeReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	end := off + int64(len(p)) - 1
	req, err := http.NewRequestWithContext(r.ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))
	resp, err := r.client.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "ranged GET %q", r.url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusPartialContent {
		return 0, errors.Errorf("ranged GET %q: server returned %v, not 206", r.url, resp.Status)
	}
	n, err := io.ReadFull(resp.Body, p)
	if err != nil && err != io.ErrUnexpectedEOF {
		return n, err
	}
	return n, nil
}

// bytesReaderAt adapts an in-memory buffer to io.ReaderAt, used by the
// full-download metadata fallback.
type bytesReaderAt struct {
	b *bytes.Reader
}

func newBytesReaderAt(b []byte) *bytesReaderAt {
	return &bytesReaderAt{b: bytes.NewReader(b)}
}

func (r *bytesReaderAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(p, off)
}
