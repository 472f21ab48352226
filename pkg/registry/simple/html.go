// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"io"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/net/html"

	"github.com/pep-run/pep/pkg/pypi/digest"
)

// parseHTML parses a Simple API HTML index page (PEP 503) into a
// SimpleMetadata. base resolves any relative hrefs.
func parseHTML(r io.Reader, base *url.URL, name string) (*SimpleMetadata, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, errors.Wrap(err, "parsing simple index HTML")
	}
	meta := &SimpleMetadata{Name: name}
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			if f, ok := parseAnchor(n, base); ok {
				meta.Files = append(meta.Files, f)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return meta, nil
}

func parseAnchor(n *html.Node, base *url.URL) (File, bool) {
	var href, requiresPython, yanked string
	var hasYanked, hasCoreMetadata bool
	var coreMetadataHashes digest.Hashes
	for _, a := range n.Attr {
		switch a.Key {
		case "href":
			href = a.Val
		case "data-requires-python":
			requiresPython = html.UnescapeString(a.Val)
		case "data-yanked":
			hasYanked = true
			yanked = a.Val
		case "data-core-metadata", "data-dist-info-metadata":
			hasCoreMetadata = true
			coreMetadataHashes = parseHashFragment(a.Val)
		}
	}
	if href == "" {
		return File{}, false
	}
	filename := textContent(n)
	fileURL, hashes := splitHashFragment(href)
	if base != nil {
		if u, err := base.Parse(fileURL); err == nil {
			fileURL = u.String()
		}
	}
	f := File{Filename: strings.TrimSpace(filename), URL: fileURL, Hashes: hashes, RequiresPython: requiresPython}
	if hasYanked {
		f.Yanked = &yanked
	}
	if hasCoreMetadata {
		f.CoreMetadata = &coreMetadataHashes
	}
	return f, true
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// splitHashFragment splits a PEP 503 "#sha256=..." fragment off a file URL.
func splitHashFragment(href string) (string, digest.Hashes) {
	u, hashes := href, digest.Hashes(nil)
	if idx := strings.IndexByte(href, '#'); idx >= 0 {
		u = href[:idx]
		if h, ok := parseHashFragmentString(href[idx+1:]); ok {
			hashes = append(hashes, h)
		}
	}
	return u, hashes
}

func parseHashFragment(val string) digest.Hashes {
	if val == "true" || val == "" {
		return digest.Hashes{}
	}
	if h, ok := parseHashFragmentString(val); ok {
		return digest.Hashes{h}
	}
	return digest.Hashes{}
}

func parseHashFragmentString(s string) (digest.Digest, bool) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return digest.Digest{}, false
	}
	return digest.Digest{Algorithm: digest.Algorithm(s[:idx]), Hex: s[idx+1:]}, true
}
