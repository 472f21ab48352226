// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package httpx

import "net/http"

// Revalidator stores the validators (ETag / Last-Modified) needed to
// revalidate a previously cached response for a given URL.
type Revalidator interface {
	Load(url string) (etag, lastModified string, ok bool)
	Store(url, etag, lastModified string)
}

// MemoryRevalidator is an in-memory Revalidator, sufficient for one process
// lifetime; the on-disk Simple API cache persists the same fields
// alongside the cached body.
type MemoryRevalidator struct {
	entries map[string][2]string
}

// NewMemoryRevalidator returns an empty MemoryRevalidator.
func NewMemoryRevalidator() *MemoryRevalidator {
	return &MemoryRevalidator{entries: map[string][2]string{}}
}

// Load implements Revalidator.
func (m *MemoryRevalidator) Load(url string) (string, string, bool) {
	v, ok := m.entries[url]
	return v[0], v[1], ok
}

// Store implements Revalidator.
func (m *MemoryRevalidator) Store(url, etag, lastModified string) {
	m.entries[url] = [2]string{etag, lastModified}
}

// ConditionalClient adds If-None-Match/If-Modified-Since headers to GET
// requests using a previously observed ETag/Last-Modified, and records the
// validators from each 200 response for next time. Honours CacheHeaders'
// immutable directive by skipping revalidation entirely once it has been
// observed for a URL.
type ConditionalClient struct {
	BasicClient
	Revalidator Revalidator
	immutable   map[string]bool
}

var _ BasicClient = &ConditionalClient{}

// Do implements BasicClient.
func (c *ConditionalClient) Do(req *http.Request) (*http.Response, error) {
	if c.immutable == nil {
		c.immutable = map[string]bool{}
	}
	url := req.URL.String()
	if req.Method == http.MethodGet && !c.immutable[url] {
		if etag, lastMod, ok := c.Revalidator.Load(url); ok {
			if etag != "" {
				req.Header.Set("If-None-Match", etag)
			}
			if lastMod != "" {
				req.Header.Set("If-Modified-Since", lastMod)
			}
		}
	}
	resp, err := c.BasicClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		ch := ParseCacheHeaders(resp.Header.Values("Cache-Control"))
		if ch.IsImmutable() {
			c.immutable[url] = true
		}
		c.Revalidator.Store(url, resp.Header.Get("ETag"), resp.Header.Get("Last-Modified"))
	}
	return resp, nil
}
