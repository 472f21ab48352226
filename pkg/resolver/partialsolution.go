// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package resolver

import "github.com/pep-run/pep/pkg/pypi/pep440"

// Assignment is one entry in the partial solution: either a Decision
// (Package fixed at Version) or a Derivation (a Term forced true by unit
// propagation, with the Incompatibility that forced it).
type Assignment struct {
	Package         Package
	Term            Term // the derived term; for decisions, an equality term at Version
	Version         pep440.Version
	Decision        bool
	DecisionLevel   int
	Cause           *Incompatibility // nil for decisions
}

// PartialSolution is the resolver's working state: the ordered assignment
// log, the fixed decisions, and the running intersection of every term
// asserted per package, matching spec.md §4.4's description.
type PartialSolution struct {
	assignments []Assignment
	decisions   map[Package]pep440.Version
	derived     map[Package]pep440.Range
	level       int
}

func newPartialSolution() *PartialSolution {
	return &PartialSolution{
		decisions: map[Package]pep440.Version{},
		derived:   map[Package]pep440.Range{},
	}
}

func (ps *PartialSolution) decided(pkg Package) (pep440.Version, bool) {
	v, ok := ps.decisions[pkg]
	return v, ok
}

// derivedRange returns the intersection of every term asserted so far for
// pkg (Full() if none).
func (ps *PartialSolution) derivedRange(pkg Package) pep440.Range {
	if r, ok := ps.derived[pkg]; ok {
		return r
	}
	return pep440.Full()
}

func termRange(t Term) pep440.Range {
	if t.Positive {
		return t.Range
	}
	return t.Range.Complement()
}

func (ps *PartialSolution) addDerivation(t Term, cause *Incompatibility) {
	ps.derived[t.Package] = ps.derivedRange(t.Package).Intersect(termRange(t))
	ps.assignments = append(ps.assignments, Assignment{
		Package: t.Package, Term: t, DecisionLevel: ps.level, Cause: cause,
	})
}

func (ps *PartialSolution) addDecision(pkg Package, v pep440.Version) {
	ps.level++
	ps.decisions[pkg] = v
	eq := Term{Package: pkg, Positive: true, Range: pep440.FromPredicate(func(o pep440.Version) bool {
		return pep440.Compare(o, v) == 0
	})}
	ps.derived[pkg] = ps.derivedRange(pkg).Intersect(eq.Range)
	ps.assignments = append(ps.assignments, Assignment{
		Package: pkg, Term: eq, Version: v, Decision: true, DecisionLevel: ps.level,
	})
}

// backtrackTo discards every assignment made at a decision level greater
// than level, rebuilding decisions/derived from what remains.
func (ps *PartialSolution) backtrackTo(level int) {
	var kept []Assignment
	for _, a := range ps.assignments {
		if a.DecisionLevel <= level {
			kept = append(kept, a)
		}
	}
	ps.assignments = kept
	ps.level = level
	ps.decisions = map[Package]pep440.Version{}
	ps.derived = map[Package]pep440.Range{}
	for _, a := range kept {
		if a.Decision {
			ps.decisions[a.Package] = a.Version
		}
		ps.derived[a.Package] = ps.derivedRange(a.Package).Intersect(termRange(a.Term))
	}
}

// satisfierLevel reports the highest decision level among the assignments
// that together make t true, used to find the backtrack target during
// conflict resolution (spec.md §4.4 step 2).
func (ps *PartialSolution) satisfierLevel(t Term) int {
	level := 0
	for _, a := range ps.assignments {
		if a.Package != t.Package {
			continue
		}
		if a.DecisionLevel > level {
			level = a.DecisionLevel
		}
	}
	return level
}
