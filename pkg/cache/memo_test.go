// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"testing"
)

func TestMemoComputesOnce(t *testing.T) {
	var m Memo[string, int]
	calls := 0
	fetch := func() (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 5; i++ {
		v, err := m.GetOrCompute("k", fetch)
		if err != nil {
			t.Fatal(err)
		}
		if v != 42 {
			t.Errorf("got %d, want 42", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected fetch called once, got %d", calls)
	}
}

func TestMemoRetriesAfterFailure(t *testing.T) {
	var m Memo[string, int]
	attempt := 0
	fetch := func() (int, error) {
		attempt++
		if attempt == 1 {
			return 0, errors.New("boom")
		}
		return 7, nil
	}
	if _, err := m.GetOrCompute("k", fetch); err == nil {
		t.Fatal("expected first attempt to fail")
	}
	v, err := m.GetOrCompute("k", fetch)
	if err != nil {
		t.Fatal(err)
	}
	if v != 7 {
		t.Errorf("got %d, want 7", v)
	}
}
