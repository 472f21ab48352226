// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package httpx

import (
	"net/http"

	"github.com/pkg/errors"
)

// OfflineError is returned for every request made through an OfflineClient,
// naming the URL that would have been fetched.
type OfflineError struct {
	URL string
}

func (e *OfflineError) Error() string {
	return "offline: " + e.URL
}

// OfflineClient fails every request without touching the network, used
// when --offline is set.
type OfflineClient struct{}

// Do always returns an *OfflineError.
func (OfflineClient) Do(req *http.Request) (*http.Response, error) {
	return nil, errors.WithStack(&OfflineError{URL: req.URL.String()})
}

var _ BasicClient = OfflineClient{}
