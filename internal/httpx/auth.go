// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package httpx

import "net/http"

// AuthPolicy governs when AuthenticatingClient consults its
// CredentialProvider.
type AuthPolicy int

const (
	AuthAuto AuthPolicy = iota
	AuthAlways
	AuthNever
)

// CredentialProvider resolves credentials for a URL. Concrete
// implementations (config file, keyring, interactive prompt) are outside
// this module's scope per spec.md §1; only the interface and the staged
// lookup order live here.
type CredentialProvider interface {
	// Credentials returns a username/password (or token as password with an
	// empty username) for url, and whether any were found.
	Credentials(url string) (username, password string, ok bool)
}

// ChainCredentialProvider consults each provider in order (config → keyring
// → interactive prompt, by convention of construction order) and returns the
// first match.
type ChainCredentialProvider []CredentialProvider

// Credentials implements CredentialProvider.
func (c ChainCredentialProvider) Credentials(url string) (string, string, bool) {
	for _, p := range c {
		if u, pw, ok := p.Credentials(url); ok {
			return u, pw, true
		}
	}
	return "", "", false
}

// AuthenticatingClient retries a 401/403 response once with credentials
// from Provider, subject to Policy.
type AuthenticatingClient struct {
	BasicClient
	Provider CredentialProvider
	Policy   AuthPolicy
}

var _ BasicClient = &AuthenticatingClient{}

// Do implements BasicClient.
func (c *AuthenticatingClient) Do(req *http.Request) (*http.Response, error) {
	if c.Policy == AuthAlways {
		c.authenticate(req)
	}
	resp, err := c.BasicClient.Do(req)
	if err != nil {
		return nil, err
	}
	if c.Policy != AuthNever && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		if c.authenticate(req) {
			resp.Body.Close()
			return c.BasicClient.Do(req)
		}
	}
	return resp, nil
}

func (c *AuthenticatingClient) authenticate(req *http.Request) bool {
	if c.Provider == nil {
		return false
	}
	user, pass, ok := c.Provider.Credentials(req.URL.String())
	if !ok {
		return false
	}
	req.SetBasicAuth(user, pass)
	return true
}
