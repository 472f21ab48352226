// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package resolver

import "strings"

// Cause explains why an Incompatibility holds: either it is Derived from
// two other incompatibilities by resolution, or it is an External fact
// (no matching version, a failed metadata fetch, a Requires-Python
// mismatch, a yank, an exclusion, or the root/dependency incompatibilities
// themselves).
type Cause struct {
	External string
	Left     *Incompatibility
	Right    *Incompatibility
}

func (c Cause) isDerived() bool { return c.Left != nil && c.Right != nil }

// Incompatibility is a clause: at least one of its Terms must be false in
// any valid solution.
type Incompatibility struct {
	Terms []Term
	Cause Cause
}

func external(reason string, terms ...Term) *Incompatibility {
	return &Incompatibility{Terms: terms, Cause: Cause{External: reason}}
}

func derived(left, right *Incompatibility, terms ...Term) *Incompatibility {
	return &Incompatibility{Terms: terms, Cause: Cause{Left: left, Right: right}}
}

// Relation classifies an Incompatibility against the current partial
// solution (spec.md §4.4 step 1).
type Relation int

const (
	// Inconclusive means two or more terms are still undetermined.
	Inconclusive Relation = iota
	// Satisfied means every term holds, so the incompatibility proves a
	// conflict.
	Satisfied
	// Almost means exactly one term is undetermined and every other term
	// holds; propagation can derive that term's negation.
	Almost
	// Contradicted means at least one term is already false, so the
	// incompatibility is trivially satisfied and carries no information.
	Contradicted
)

func (ic *Incompatibility) String() string {
	parts := make([]string, len(ic.Terms))
	for i, t := range ic.Terms {
		parts[i] = t.String()
	}
	return strings.Join(parts, " and ") + " are incompatible"
}
