// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"net/url"
	"strings"
	"testing"
)

func TestParseHTMLBasic(t *testing.T) {
	const body = `<!DOCTYPE html>
<html><body>
<a href="flask-3.0.1-py3-none-any.whl#sha256=abc123" data-requires-python="&gt;=3.8" data-core-metadata="true">flask-3.0.1-py3-none-any.whl</a>
<a href="flask-3.0.0-py3-none-any.whl#sha256=xyz" data-yanked="superseded">flask-3.0.0-py3-none-any.whl</a>
</body></html>`
	base, _ := url.Parse("https://pypi.org/simple/flask/")
	meta, err := parseHTML(strings.NewReader(body), base, "flask")
	if err != nil {
		t.Fatal(err)
	}
	if len(meta.Files) != 2 {
		t.Fatalf("got %d files, want 2", len(meta.Files))
	}
	f0 := meta.Files[0]
	if f0.Filename != "flask-3.0.1-py3-none-any.whl" {
		t.Errorf("Filename = %q", f0.Filename)
	}
	if f0.RequiresPython != ">=3.8" {
		t.Errorf("RequiresPython = %q", f0.RequiresPython)
	}
	if len(f0.Hashes) != 1 || f0.Hashes[0].Hex != "abc123" {
		t.Errorf("Hashes = %+v", f0.Hashes)
	}
	if f0.CoreMetadata == nil {
		t.Error("expected core metadata flag set")
	}
	if !strings.HasPrefix(f0.URL, "https://pypi.org/simple/flask/") {
		t.Errorf("URL not resolved against base: %q", f0.URL)
	}
	f1 := meta.Files[1]
	if f1.Yanked == nil || *f1.Yanked != "superseded" {
		t.Errorf("Yanked = %v", f1.Yanked)
	}
}
