// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"strings"
	"testing"
)

func TestParseJSONBasic(t *testing.T) {
	const body = `{
	  "name": "flask",
	  "files": [
	    {
	      "filename": "flask-3.0.1-py3-none-any.whl",
	      "url": "https://files.pythonhosted.org/flask-3.0.1-py3-none-any.whl",
	      "hashes": {"sha256": "abc123"},
	      "requires-python": ">=3.8",
	      "yanked": false,
	      "core-metadata": {"sha256": "def456"}
	    },
	    {
	      "filename": "flask-3.0.0-py3-none-any.whl",
	      "url": "https://files.pythonhosted.org/flask-3.0.0-py3-none-any.whl",
	      "hashes": {"sha256": "xyz"},
	      "yanked": "superseded by 3.0.1"
	    }
	  ]
	}`
	meta, err := parseJSON(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	if meta.Name != "flask" || len(meta.Files) != 2 {
		t.Fatalf("meta = %+v", meta)
	}
	f0 := meta.Files[0]
	if f0.RequiresPython != ">=3.8" {
		t.Errorf("RequiresPython = %q", f0.RequiresPython)
	}
	if f0.Yanked != nil {
		t.Errorf("expected not yanked, got %v", *f0.Yanked)
	}
	if f0.CoreMetadata == nil || len(*f0.CoreMetadata) != 1 || (*f0.CoreMetadata)[0].Hex != "def456" {
		t.Errorf("CoreMetadata = %+v", f0.CoreMetadata)
	}
	f1 := meta.Files[1]
	if f1.Yanked == nil || *f1.Yanked != "superseded by 3.0.1" {
		t.Errorf("expected yanked reason, got %v", f1.Yanked)
	}
	if f1.CoreMetadata != nil {
		t.Errorf("expected no core metadata, got %+v", f1.CoreMetadata)
	}
}

func TestParseJSONCoreMetadataTrue(t *testing.T) {
	const body = `{"name": "x", "files": [{"filename": "x-1.0-py3-none-any.whl", "url": "u", "core-metadata": true}]}`
	meta, err := parseJSON(strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	f := meta.Files[0]
	if f.CoreMetadata == nil || len(*f.CoreMetadata) != 0 {
		t.Errorf("CoreMetadata = %+v, want empty non-nil hash set", f.CoreMetadata)
	}
}
