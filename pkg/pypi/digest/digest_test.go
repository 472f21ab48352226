// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package digest

import (
	"strings"
	"testing"
)

func TestComputeAndSatisfies(t *testing.T) {
	want := Hashes{{Algorithm: SHA256}}
	got, err := Compute(strings.NewReader("a"), want)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Algorithm != SHA256 || got[0].Hex == "" {
		t.Fatalf("got %+v", got)
	}
	// A second computation of the same content must match: Satisfies is
	// reflexive over identical digest sets.
	again, err := Compute(strings.NewReader("a"), want)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Satisfies(again) {
		t.Errorf("expected identical content to produce satisfying digests, got %+v vs %+v", got, again)
	}
}

func TestSatisfiesEmptyAlwaysTrue(t *testing.T) {
	var empty Hashes
	if !empty.Satisfies(Hashes{{Algorithm: SHA256, Hex: "ff"}}) {
		t.Error("expected an empty requirement set to be satisfied")
	}
}

func TestPolicyEnforce(t *testing.T) {
	mismatch := Hashes{{Algorithm: SHA256, Hex: "deadbeef"}}
	computed := Hashes{{Algorithm: SHA256, Hex: "cafebabe"}}

	if err := Disabled.Enforce(mismatch, computed); err != nil {
		t.Errorf("Disabled should never fail: %v", err)
	}
	if err := Verify.Enforce(nil, computed); err != nil {
		t.Errorf("Verify with no declared hashes should pass: %v", err)
	}
	if err := Verify.Enforce(mismatch, computed); err == nil {
		t.Error("expected Verify to fail on mismatch")
	}
	if err := Require.Enforce(nil, computed); err == nil {
		t.Error("expected Require to fail when no hash is configured")
	}
	if err := Require.Enforce(mismatch, computed); err == nil {
		t.Error("expected Require to fail on mismatch")
	}
}
