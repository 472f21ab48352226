// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package name

import "testing"

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Django":       "django",
		"flask":        "flask",
		"foo-bar":      "foo-bar",
		"foo_bar":      "foo-bar",
		"foo.bar":      "foo-bar",
		"FOO...-_Bar":  "foo-bar",
		"a--b":         "a-b",
		"":             "",
		"zope.interface": "zope-interface",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{"Django", "foo__bar.baz", "A.B.C", "already-normal"} {
		once := Normalize(s)
		twice := Normalize(once)
		if once != twice {
			t.Errorf("Normalize not idempotent for %q: %q != %q", s, once, twice)
		}
	}
}

func TestEqual(t *testing.T) {
	if !Equal("Foo_Bar", "foo-bar") {
		t.Error("expected Foo_Bar and foo-bar to be equal")
	}
	if Equal("foo", "bar") {
		t.Error("expected foo and bar to differ")
	}
}

func TestToDistInfoForm(t *testing.T) {
	if got, want := ToDistInfoForm("zope.interface"), "zope_interface"; got != want {
		t.Errorf("ToDistInfoForm = %q, want %q", got, want)
	}
	if got, want := ToDistInfoForm("foo-bar"), "foo_bar"; got != want {
		t.Errorf("ToDistInfoForm = %q, want %q", got, want)
	}
}
