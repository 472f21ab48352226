// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package pep440

import "testing"

func TestSpecifierContains(t *testing.T) {
	cases := []struct {
		spec string
		ver  string
		want bool
	}{
		{"==1.0", "1.0", true},
		{"==1.0", "1.0.0", true},
		{"==1.0", "1.1", false},
		{"==1.0.*", "1.0.1", true},
		{"==1.0.*", "1.0a1", true},
		{"==1.0.*", "1.1", false},
		{"!=1.0", "1.1", true},
		{"!=1.0", "1.0", false},
		{">=1.0", "1.0", true},
		{">=1.0", "0.9", false},
		{"<=1.0", "1.0", true},
		{"<=1.0", "1.1", false},
		{">1.0", "1.1", true},
		{">1.0", "1.0", false},
		{">1.0", "1.0a1", false},
		{"<2.0", "1.9", true},
		{"<2.0", "2.0a1", false},
		{"~=2.2", "2.3", true},
		{"~=2.2", "3.0", false},
		{"~=2.2.1", "2.2.9", true},
		{"~=2.2.1", "2.3.0", false},
		{"===1.0+local", "1.0+local", true},
	}
	for _, c := range cases {
		spec, err := ParseSpecifier(c.spec)
		if err != nil {
			t.Fatalf("ParseSpecifier(%q) error: %v", c.spec, err)
		}
		v := MustParse(c.ver)
		if got := spec.Contains(v); got != c.want {
			t.Errorf("Specifier(%q).Contains(%q) = %v, want %v", c.spec, c.ver, got, c.want)
		}
	}
}

func TestParseSpecifiersConjunction(t *testing.T) {
	specs, err := ParseSpecifiers(">=1.0,<2.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(specs) != 2 {
		t.Fatalf("expected 2 specifiers, got %d", len(specs))
	}
	if !specs.Contains(MustParse("1.5")) {
		t.Error("expected 1.5 to satisfy >=1.0,<2.0")
	}
	if specs.Contains(MustParse("2.0")) {
		t.Error("expected 2.0 to fail >=1.0,<2.0")
	}
}

func TestParseSpecifierInvalid(t *testing.T) {
	if _, err := ParseSpecifier("bogus"); err == nil {
		t.Fatal("expected error for invalid specifier")
	}
}
