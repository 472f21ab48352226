// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package httpx

import (
	"bytes"
	"io"
	"math/rand/v2"
	"net/http"
	"time"
)

// RetryingClient retries requests that fail with 429 or 5xx, with
// exponential backoff plus jitter, bounded by MaxRetries.
type RetryingClient struct {
	BasicClient
	MaxRetries int
	BaseDelay  time.Duration
	Sleep      func(time.Duration) // overridable for tests; defaults to time.Sleep
}

var _ BasicClient = &RetryingClient{}

// Do sends req, retrying on 429/5xx responses and transport errors.
func (c *RetryingClient) Do(req *http.Request) (*http.Response, error) {
	sleep := c.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}
	base := c.BaseDelay
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	var bodyBytes []byte
	if req.Body != nil {
		b, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		bodyBytes = b
		req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	}
	var lastErr error
	var lastResp *http.Response
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			if bodyBytes != nil {
				req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			}
			delay := base * time.Duration(1<<uint(attempt-1))
			delay += time.Duration(rand.Int64N(int64(base)))
			sleep(delay)
		}
		resp, err := c.BasicClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			lastResp = resp
			lastErr = nil
			continue
		}
		return resp, nil
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return lastResp, nil
}
