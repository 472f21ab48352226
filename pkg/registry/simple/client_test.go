// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"testing"
)

type fakeClient struct {
	t        *testing.T
	wheel    []byte
	indexRaw string
	indexCT  string
}

func (f *fakeClient) Do(req *http.Request) (*http.Response, error) {
	switch {
	case strings.Contains(req.URL.Path, "/simple/"):
		return &http.Response{
			StatusCode: 200,
			Header:     http.Header{"Content-Type": []string{f.indexCT}},
			Body:       io.NopCloser(strings.NewReader(f.indexRaw)),
		}, nil
	case strings.HasSuffix(req.URL.Path, ".whl") && req.Method == http.MethodHead:
		return &http.Response{
			StatusCode:    200,
			ContentLength: int64(len(f.wheel)),
			Header:        http.Header{},
			Body:          http.NoBody,
		}, nil
	case strings.HasSuffix(req.URL.Path, ".whl") && req.Method == http.MethodGet:
		rng := req.Header.Get("Range")
		if rng == "" {
			return &http.Response{StatusCode: 200, Body: io.NopCloser(bytes.NewReader(f.wheel))}, nil
		}
		var start, end int
		fmt.Sscanf(rng, "bytes=%d-%d", &start, &end)
		if end >= len(f.wheel) {
			end = len(f.wheel) - 1
		}
		return &http.Response{
			StatusCode: http.StatusPartialContent,
			Header:     http.Header{"Content-Range": []string{"bytes " + strconv.Itoa(start) + "-" + strconv.Itoa(end) + "/" + strconv.Itoa(len(f.wheel))}},
			Body:       io.NopCloser(bytes.NewReader(f.wheel[start : end+1])),
		}, nil
	}
	return nil, fmt.Errorf("unhandled request: %s %s", req.Method, req.URL)
}

func buildTestWheel(t *testing.T, metadata string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("pkg-1.0.dist-info/METADATA")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write([]byte(metadata)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestHTTPClientSimpleJSON(t *testing.T) {
	root, _ := url.Parse("https://example.com/simple")
	fc := &fakeClient{
		indexCT:  JSONContentType,
		indexRaw: `{"name": "pkg", "files": [{"filename": "pkg-1.0-py3-none-any.whl", "url": "https://example.com/pkg-1.0-py3-none-any.whl"}]}`,
	}
	c := &HTTPClient{Client: fc, Root: root}
	meta, err := c.Simple(context.Background(), "pkg")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Files) != 1 || meta.Files[0].Filename != "pkg-1.0-py3-none-any.whl" {
		t.Errorf("meta = %+v", meta)
	}
}

func TestHTTPClientWheelMetadataByRange(t *testing.T) {
	wheel := buildTestWheel(t, "Metadata-Version: 2.1\nName: pkg\nVersion: 1.0\n")
	root, _ := url.Parse("https://example.com/simple")
	fc := &fakeClient{wheel: wheel}
	c := &HTTPClient{Client: fc, Root: root}
	f := File{Filename: "pkg-1.0-py3-none-any.whl", URL: "https://example.com/pkg-1.0-py3-none-any.whl"}
	b, err := c.WheelMetadata(context.Background(), f)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Name: pkg") {
		t.Errorf("metadata = %q", b)
	}
}
