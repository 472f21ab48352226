// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseRFC822(t *testing.T) {
	const input = "Metadata-Version: 2.1\n" +
		"Name: flask\n" +
		"Version: 3.0.1\n" +
		"Classifier: Programming Language :: Python :: 3\n" +
		"Classifier: Framework :: Flask\n" +
		"Requires-Dist: Werkzeug (>=3.0.0)\n" +
		"\n" +
		"A simple framework.\nSecond line.\n"
	msg, err := ParseRFC822(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := msg.Get("Name"); v != "flask" {
		t.Errorf("Get(Name) = %q, want flask", v)
	}
	if got, want := msg.GetAll("Classifier"), []string{
		"Programming Language :: Python :: 3",
		"Framework :: Flask",
	}; !cmp.Equal(got, want) {
		t.Errorf("GetAll(Classifier) diff: %s", cmp.Diff(want, got))
	}
	if !strings.Contains(msg.Body, "A simple framework.") {
		t.Errorf("Body missing content: %q", msg.Body)
	}
}

func TestParseRFC822Continuation(t *testing.T) {
	const input = "Name: foo\nDescription: line one\n line two\n\n"
	msg, err := ParseRFC822(strings.NewReader(input))
	if err != nil {
		t.Fatal(err)
	}
	v, _ := msg.Get("Description")
	if want := "line one\nline two"; v != want {
		t.Errorf("Get(Description) = %q, want %q", v, want)
	}
}

func TestParseRFC822InvalidLine(t *testing.T) {
	if _, err := ParseRFC822(strings.NewReader("not-a-header-line\n")); err == nil {
		t.Fatal("expected error for missing colon")
	}
}

func TestParseRFC822UnexpectedContinuation(t *testing.T) {
	if _, err := ParseRFC822(strings.NewReader(" continuation\n")); err == nil {
		t.Fatal("expected error for leading continuation")
	}
}
