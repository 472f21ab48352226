// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package pep440

import "testing"

func TestParseAndString(t *testing.T) {
	cases := []struct{ in, want string }{
		{"1.0", "1.0"},
		{"1.0.0", "1.0.0"},
		{"1!1.0", "1!1.0"},
		{"1.0a1", "a1"}, // special-cased below
		{"1.0.post1", "1.0.post1"},
		{"1.0.dev1", "1.0.dev1"},
		{"1.0+local.1", "1.0+local.1"},
		{"1.0b2", "b2"},
		{"1.0rc1", "rc1"},
	}
	for _, c := range cases {
		v, err := Parse(c.in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", c.in, err)
		}
		if c.in == "1.0a1" || c.in == "1.0b2" || c.in == "1.0rc1" {
			if v.Pre == nil {
				t.Errorf("Parse(%q): expected pre-release", c.in)
			}
			continue
		}
		if got := v.String(); got != c.want {
			t.Errorf("Parse(%q).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCompareOrdering(t *testing.T) {
	ordered := []string{
		"1.0.dev0", "1.0a1", "1.0a1.post1.dev0", "1.0a1.post1",
		"1.0b1.dev0", "1.0b1", "1.0b2.post345.dev0", "1.0b2.post345",
		"1.0rc1.dev0", "1.0rc1", "1.0", "1.0+abc.5", "1.0+abc.7", "1.0+1", "1.0.post456.dev0", "1.0.post456",
		"1.1.dev1", "1.2",
	}
	for i := 1; i < len(ordered); i++ {
		a, err := Parse(ordered[i-1])
		if err != nil {
			t.Fatal(err)
		}
		b, err := Parse(ordered[i])
		if err != nil {
			t.Fatal(err)
		}
		if Compare(a, b) >= 0 {
			t.Errorf("expected %q < %q, got Compare=%d", ordered[i-1], ordered[i], Compare(a, b))
		}
	}
}

func TestCompareTotalOrder(t *testing.T) {
	versions := []string{"1.0", "1.0.1", "2.0", "1.0a1", "1.0.post1", "1.0.dev1"}
	for _, sa := range versions {
		for _, sb := range versions {
			a, _ := Parse(sa)
			b, _ := Parse(sb)
			if Compare(a, b) == 0 && a.String() != b.String() {
				// Only identical canonical forms may compare equal.
				t.Errorf("%q and %q compare equal but differ: %q vs %q", sa, sb, a.String(), b.String())
			}
			if Compare(a, b) != -Compare(b, a) {
				t.Errorf("Compare(%q,%q) not anti-symmetric", sa, sb)
			}
		}
	}
}

func TestEqualRequiresIdenticalCanonicalBytes(t *testing.T) {
	a := MustParse("01.0")
	b := MustParse("1.0")
	if !Equal(a, b) {
		t.Fatal("expected 01.0 == 1.0")
	}
	if a.String() != b.String() {
		t.Fatalf("canonical forms differ: %q vs %q", a.String(), b.String())
	}
}

func TestIsPreRelease(t *testing.T) {
	if !MustParse("1.0a1").IsPreRelease() {
		t.Error("1.0a1 should be a pre-release")
	}
	if !MustParse("1.0.dev1").IsPreRelease() {
		t.Error("1.0.dev1 should be a pre-release")
	}
	if MustParse("1.0").IsPreRelease() {
		t.Error("1.0 should not be a pre-release")
	}
}

func TestInvalidVersion(t *testing.T) {
	if _, err := Parse("not-a-version"); err == nil {
		t.Fatal("expected error for invalid version")
	}
}
