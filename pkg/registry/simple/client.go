// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"archive/zip"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/internal/httpx"
	"github.com/pep-run/pep/pkg/pypi/name"
)

// HTTPClient implements Client against a single Simple-API index root.
type HTTPClient struct {
	Client httpx.BasicClient
	Root   *url.URL
}

var _ Client = &HTTPClient{}

// Simple fetches and parses the project page, preferring the PEP 691 JSON
// representation and falling back to HTML.
func (c *HTTPClient) Simple(ctx context.Context, projectName string) (*SimpleMetadata, error) {
	u := c.Root.ResolveReference(&url.URL{Path: c.Root.Path + "/" + name.Normalize(projectName) + "/"})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", JSONContentType+", text/html;q=0.9")
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching simple index for %q", projectName)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("simple index error for %q: %v", projectName, resp.Status)
	}
	ct, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if ct == JSONContentType {
		return parseJSON(resp.Body)
	}
	return parseHTML(resp.Body, u, projectName)
}

// WheelMetadata returns the PEP 658 Core Metadata for f, using the cheapest
// strategy the index and file support: the metadata side-channel if
// advertised, otherwise a ranged read of the wheel's central directory,
// otherwise a full download.
func (c *HTTPClient) WheelMetadata(ctx context.Context, f File) ([]byte, error) {
	if f.CoreMetadata != nil {
		return c.fetchMetadataSidecar(ctx, f)
	}
	if !strings.HasSuffix(f.Filename, ".whl") {
		return nil, errors.Errorf("cannot extract wheel metadata from non-wheel file %q", f.Filename)
	}
	if b, err := c.fetchMetadataByRange(ctx, f); err == nil {
		return b, nil
	}
	return c.fetchMetadataByFullDownload(ctx, f)
}

func (c *HTTPClient) fetchMetadataSidecar(ctx context.Context, f File) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL+".metadata", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching metadata sidecar for %q", f.Filename)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("metadata sidecar error for %q: %v", f.Filename, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func (c *HTTPClient) fetchMetadataByRange(ctx context.Context, f File) ([]byte, error) {
	ra, size, err := newRangeReaderAt(ctx, c.Client, f.URL)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, errors.Wrap(err, "reading wheel central directory")
	}
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, ".dist-info/METADATA") {
			rc, err := zf.Open()
			if err != nil {
				return nil, err
			}
			defer rc.Close()
			return io.ReadAll(rc)
		}
	}
	return nil, errors.Errorf("no .dist-info/METADATA entry found in %q", f.Filename)
}

func (c *HTTPClient) fetchMetadataByFullDownload(ctx context.Context, f File) ([]byte, error) {
	rc, err := c.Stream(ctx, f.URL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	ra := newBytesReaderAt(b)
	zr, err := zip.NewReader(ra, int64(len(b)))
	if err != nil {
		return nil, errors.Wrap(err, "reading downloaded wheel")
	}
	for _, zf := range zr.File {
		if strings.HasSuffix(zf.Name, ".dist-info/METADATA") {
			r, err := zf.Open()
			if err != nil {
				return nil, err
			}
			defer r.Close()
			return io.ReadAll(r)
		}
	}
	return nil, errors.Errorf("no .dist-info/METADATA entry found in %q", f.Filename)
}

// Stream returns the response body for url.
func (c *HTTPClient) Stream(ctx context.Context, rawurl string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "streaming %q", rawurl)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, errors.Errorf("streaming %q: %v", rawurl, resp.Status)
	}
	return resp.Body, nil
}
