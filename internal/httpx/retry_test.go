// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package httpx

import (
	"net/http"
	"testing"
	"time"
)

type flakyClient struct {
	responses []*http.Response
	errs      []error
	i         int
}

func (f *flakyClient) Do(req *http.Request) (*http.Response, error) {
	resp, err := f.responses[f.i], f.errs[f.i]
	f.i++
	return resp, err
}

func TestRetryingClientRetriesOn5xx(t *testing.T) {
	fc := &flakyClient{
		responses: []*http.Response{{StatusCode: 503}, {StatusCode: 200}},
		errs:      []error{nil, nil},
	}
	c := &RetryingClient{BasicClient: fc, MaxRetries: 2, BaseDelay: time.Millisecond, Sleep: func(time.Duration) {}}
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", resp.StatusCode)
	}
	if fc.i != 2 {
		t.Errorf("expected 2 attempts, got %d", fc.i)
	}
}

func TestRetryingClientExhaustsRetries(t *testing.T) {
	fc := &flakyClient{
		responses: []*http.Response{{StatusCode: 503}, {StatusCode: 503}},
		errs:      []error{nil, nil},
	}
	c := &RetryingClient{BasicClient: fc, MaxRetries: 1, BaseDelay: time.Millisecond, Sleep: func(time.Duration) {}}
	req, _ := http.NewRequest(http.MethodGet, "https://example.com", nil)
	resp, err := c.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != 503 {
		t.Errorf("expected final 503 response to be returned, got %d", resp.StatusCode)
	}
}
