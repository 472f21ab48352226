// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package distname

import "testing"

func TestParseWheelName(t *testing.T) {
	w, err := ParseWheelName("flask-3.0.1-py3-none-any.whl", "flask")
	if err != nil {
		t.Fatalf("ParseWheelName error: %v", err)
	}
	if w.Distribution != "flask" || w.Version.String() != "3.0.1" {
		t.Errorf("got %+v", w)
	}
	if w.Build.Present() {
		t.Error("expected no build tag")
	}
	if len(w.Tags()) != 1 || w.Tags()[0] != (Tag{Python: "py3", ABI: "none", Platform: "any"}) {
		t.Errorf("Tags() = %v", w.Tags())
	}
}

func TestParseWheelNameWithBuildTag(t *testing.T) {
	w, err := ParseWheelName("numpy-1.26.0-1-cp311-cp311-manylinux_2_17_x86_64.whl", "numpy")
	if err != nil {
		t.Fatalf("ParseWheelName error: %v", err)
	}
	if !w.Build.Present() || w.Build.Digits != 1 {
		t.Errorf("expected build tag 1, got %+v", w.Build)
	}
}

func TestParseWheelNameCompressedTags(t *testing.T) {
	w, err := ParseWheelName("foo-1.0-py2.py3-none-any.whl", "foo")
	if err != nil {
		t.Fatal(err)
	}
	if len(w.PyTags) != 2 {
		t.Errorf("expected 2 python tags, got %v", w.PyTags)
	}
	if len(w.Tags()) != 2 {
		t.Errorf("expected 2 compatibility tags, got %v", w.Tags())
	}
}

func TestParseWheelNameRejectsMismatchedName(t *testing.T) {
	if _, err := ParseWheelName("flask-3.0.1-py3-none-any.whl", "django"); err == nil {
		t.Fatal("expected name-mismatch error")
	}
}

func TestParseSdistName(t *testing.T) {
	cases := []struct{ filename, ext string }{
		{"flask-3.0.1.tar.gz", ".tar.gz"},
		{"flask-3.0.1.zip", ".zip"},
		{"flask-3.0.1.tar.zst", ".tar.zst"},
	}
	for _, c := range cases {
		s, err := ParseSdistName(c.filename, "flask")
		if err != nil {
			t.Fatalf("ParseSdistName(%q) error: %v", c.filename, err)
		}
		if s.Ext != c.ext {
			t.Errorf("Ext = %q, want %q", s.Ext, c.ext)
		}
		if s.Version.String() != "3.0.1" {
			t.Errorf("Version = %q", s.Version.String())
		}
	}
}

func TestParseSdistNameInvalidExt(t *testing.T) {
	if _, err := ParseSdistName("flask-3.0.1.rar", "flask"); err == nil {
		t.Fatal("expected error for unrecognized extension")
	}
}

func TestCompatibleTags(t *testing.T) {
	target := []Tag{{Python: "cp311", ABI: "cp311", Platform: "manylinux_2_17_x86_64"}, {Python: "py3", ABI: "none", Platform: "any"}}
	if !CompatibleTags([]Tag{{Python: "py3", ABI: "none", Platform: "any"}}, target) {
		t.Error("expected a matching universal tag to be compatible")
	}
	if CompatibleTags([]Tag{{Python: "cp310", ABI: "cp310", Platform: "manylinux_2_17_x86_64"}}, target) {
		t.Error("expected a non-matching cpython tag to be incompatible")
	}
	if !CompatibleTags(nil, target) {
		t.Error("expected an sdist (no tags) to always be compatible")
	}
}
