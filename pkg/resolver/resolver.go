// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package resolver

import (
	"context"
	"fmt"

	"github.com/pep-run/pep/pkg/pypi/name"
	"github.com/pep-run/pep/pkg/pypi/pep440"
	"github.com/pep-run/pep/pkg/pypi/pep508"
)

var rootPackage = Package{Kind: Root}
var pythonPackage = Package{Kind: Python}

// Resolver drives the PubGrub search described in spec.md §4.4.
type Resolver struct {
	Provider     *Provider
	Requirements []pep508.Requirement

	incompatibilities []*Incompatibility
	ps                *PartialSolution

	// activeExtras accumulates, per normalized package name, every extra
	// any requirement anywhere in the graph enabled for it. Rather than
	// modelling each extra as its own virtual PubGrub package (spec.md
	// §4.4's literal description), activeExtras is consulted directly
	// when the package's own dependencies are computed — equivalent in
	// effect ("the package's Requires-Dist simplified against its active
	// extras", exactly metadata.CoreMetadata.SimplifyExtras's contract)
	// and far simpler, since an extra can never select a different
	// version than its base package.
	activeExtras map[string][]string

	// forkUrls and forkIndexes catch a package reached through two edges
	// pinned to different URLs or indexes. This resolver solves a single
	// environment rather than forking the search over marker-disjoint
	// environments, so there is no per-fork table to key these by; the
	// bookkeeping still catches the conflict spec.md §4.4 names.
	forkUrls    ForkUrls
	forkIndexes ForkIndexes
	// knownMarkers records, per normalized package name, the marker each
	// requirement edge reaching it carried, for lock emission.
	knownMarkers KnownMarkers
}

// New builds a Resolver over the given root requirements.
func New(p *Provider, requirements []pep508.Requirement) *Resolver {
	names := make([]string, 0, len(requirements))
	for _, r := range requirements {
		names = append(names, r.Name)
	}
	p.SetDirect(names)
	r := &Resolver{
		Provider:     p,
		Requirements: requirements,
		activeExtras: map[string][]string{},
		forkUrls:     ForkUrls{},
		forkIndexes:  ForkIndexes{},
		knownMarkers: KnownMarkers{},
	}
	for _, req := range requirements {
		r.recordExtras(req)
	}
	return r
}

// recordExtras folds req's requested extras into activeExtras, since a
// requirement anywhere in the graph can enable an extra on a package first
// reached through a different edge.
func (r *Resolver) recordExtras(req pep508.Requirement) {
	if len(req.Extras) == 0 {
		return
	}
	key := name.Normalize(req.Name)
	existing := r.activeExtras[key]
	for _, e := range req.Extras {
		found := false
		for _, have := range existing {
			if have == e {
				found = true
				break
			}
		}
		if !found {
			existing = append(existing, e)
		}
	}
	r.activeExtras[key] = existing
}

// Solve runs the resolver to completion, returning the pinned resolution or
// a *NoSolutionError (possibly wrapping a more specific external-fact
// error as its root cause).
func (r *Resolver) Solve(ctx context.Context) (*Resolution, error) {
	r.ps = newPartialSolution()
	r.ps.addDecision(rootPackage, pep440.Version{})
	r.ps.addDecision(pythonPackage, r.Provider.PythonVersion)

	root := external("the user's requirements", Term{Package: rootPackage, Positive: false, Range: pep440.Full()})
	r.incompatibilities = append(r.incompatibilities, root)

	if err := r.addRootIncompatibilities(ctx); err != nil {
		return nil, err
	}

	for {
		changed, err := r.propagate(ctx)
		if err != nil {
			if ns, ok := err.(*NoSolutionError); ok {
				return nil, ns
			}
			return nil, err
		}
		if !changed {
			next, done, err := r.nextUndecided(ctx)
			if err != nil {
				return nil, err
			}
			if done {
				return r.buildResolution(), nil
			}
			if err := r.decide(ctx, next); err != nil {
				if ns, ok := err.(*NoSolutionError); ok {
					return nil, ns
				}
				return nil, err
			}
		}
	}
}

// addRootIncompatibilities seeds one incompatibility per root requirement:
// {Root, ¬Package}.
func (r *Resolver) addRootIncompatibilities(ctx context.Context) error {
	for _, req := range r.Requirements {
		pkg, rng, err := r.termFor(ctx, req)
		if err != nil {
			return err
		}
		if err := r.recordForkBookkeeping(req, pkg); err != nil {
			return err
		}
		ic := external("root requirement "+req.Name, Term{Package: rootPackage, Positive: true, Range: pep440.Full()}, Term{Package: pkg, Positive: false, Range: rng, Universe: r.universe(ctx, pkg)})
		r.incompatibilities = append(r.incompatibilities, ic)
	}
	return nil
}

// recordForkBookkeeping records the URL/index pin and marker condition req
// places on dep, per spec.md §4.4's ForkUrls/ForkIndexes/KnownMarkers: a
// package reached through two requirement edges pinned to different URLs
// or indexes is a conflict, and every marker a package was reached under
// is kept for lock emission (pkg/lockfile.FromResolution).
func (r *Resolver) recordForkBookkeeping(req pep508.Requirement, dep Package) error {
	if dep.URL != "" {
		if err := r.forkUrls.record(dep.Name, dep.URL); err != nil {
			return err
		}
	}
	if reg := req.Source.Registry; reg != nil && reg.Index != "" {
		if err := r.forkIndexes.record(dep.Name, reg.Index); err != nil {
			return err
		}
	}
	r.knownMarkers.record(dep.Name, req.Marker)
	return nil
}

func (r *Resolver) universe(ctx context.Context, pkg Package) []pep440.Version {
	if pkg.Kind != Real {
		return nil
	}
	vm, err := r.Provider.Metadata.VersionMap(ctx, pkg.Name)
	if err != nil || vm == nil {
		return nil
	}
	return vm.Versions
}

// termFor converts a parsed requirement into the (Package, Range) it
// constrains, mapping Source to a Package identity and Range. It records
// no fork bookkeeping; its callers do that through recordForkBookkeeping.
func (r *Resolver) termFor(ctx context.Context, req pep508.Requirement) (Package, pep440.Range, error) {
	pkg := Package{Kind: Real, Name: name.Normalize(req.Name)}
	switch {
	case req.Source.Registry != nil:
		return pkg, pep440.Compile(req.Source.Registry.Specifier), nil
	case req.Source.URL != nil:
		pkg.URL = req.Source.URL.URL
		return pkg, pep440.Full(), nil
	case req.Source.Git != nil:
		pkg.URL = "git+" + req.Source.Git.Repository
		if req.Source.Git.Reference != "" {
			pkg.URL += "@" + req.Source.Git.Reference
		}
		return pkg, pep440.Full(), nil
	case req.Source.Path != nil:
		pkg.URL = "file://" + req.Source.Path.InstallPath
		return pkg, pep440.Full(), nil
	case req.Source.Directory != nil:
		pkg.URL = "file://" + req.Source.Directory.InstallPath
		return pkg, pep440.Full(), nil
	default:
		return pkg, pep440.Full(), nil
	}
}

// propagate performs unit propagation (spec.md §4.4 step 1): while any
// incompatibility is Almost-satisfied, derive the negation of its
// remaining term. Returns true if at least one derivation was made.
func (r *Resolver) propagate(ctx context.Context) (bool, error) {
	changed := false
	for {
		progressed := false
		for _, ic := range r.incompatibilities {
			rel, idx := r.relation(ic)
			switch rel {
			case Satisfied:
				root, err := r.resolveConflict(ctx, ic)
				if err != nil {
					return false, err
				}
				if root != nil {
					return false, &NoSolutionError{Root: root}
				}
				progressed = true
			case Almost:
				t := ic.Terms[idx]
				negated := Term{Package: t.Package, Range: t.Range, Positive: !t.Positive, Universe: t.Universe}
				r.ps.addDerivation(negated, ic)
				progressed = true
				changed = true
			}
		}
		if !progressed {
			return changed, nil
		}
	}
}

// relation classifies ic against the current partial solution per spec.md
// §4.4: decided packages are checked exactly; undecided packages fall back
// to range (non-)emptiness over the term's recorded Universe.
func (r *Resolver) relation(ic *Incompatibility) (Relation, int) {
	unknownIdx := -1
	unknownCount := 0
	for i, t := range ic.Terms {
		if v, ok := r.ps.decided(t.Package); ok {
			if t.satisfiedBy(v, true) {
				continue
			}
			return Contradicted, -1
		}
		derived := r.ps.derivedRange(t.Package)
		tr := termRange(t)
		switch {
		case derived.Intersect(tr.Complement()).IsEmpty(t.Universe):
			continue // every remaining candidate satisfies t
		case derived.Intersect(tr).IsEmpty(t.Universe):
			return Contradicted, -1
		default:
			unknownCount++
			unknownIdx = i
		}
	}
	switch {
	case unknownCount == 0:
		return Satisfied, -1
	case unknownCount == 1:
		return Almost, unknownIdx
	default:
		return Inconclusive, -1
	}
}

// resolveConflict implements conflict-driven backtracking (spec.md §4.4
// step 2): resolve ic against the cause of each of its satisfied terms
// until a root-cause incompatibility is reached, then backtrack to the
// decision level of the second-most-recent satisfier. Returns a non-nil
// *Incompatibility only when the conflict is irreconcilable (the root
// incompatibility itself was satisfied), signalling NoSolution.
func (r *Resolver) resolveConflict(ctx context.Context, ic *Incompatibility) (*Incompatibility, error) {
	current := ic
	for {
		if len(current.Terms) == 1 && current.Terms[0].Package == rootPackage {
			return current, nil
		}
		satisfierTerm, satisfierAssignment, ok := r.mostRecentSatisfier(current)
		if !ok {
			return current, nil
		}
		if satisfierAssignment.Decision || satisfierAssignment.Cause == nil {
			level := r.previousSatisfierLevel(current, satisfierTerm)
			r.ps.backtrackTo(level)
			r.incompatibilities = append(r.incompatibilities, current)
			return nil, nil
		}
		current = r.resolveTerms(current, satisfierTerm, satisfierAssignment.Cause)
	}
}

// mostRecentSatisfier finds, among ic's terms, the one whose satisfying
// assignment was made most recently (by assignment-log order).
func (r *Resolver) mostRecentSatisfier(ic *Incompatibility) (Term, Assignment, bool) {
	var best Assignment
	var bestTerm Term
	found := false
	for _, a := range r.ps.assignments {
		for _, t := range ic.Terms {
			if t.Package != a.Package {
				continue
			}
			if !found || a.DecisionLevel >= best.DecisionLevel {
				best, bestTerm, found = a, t, true
			}
		}
	}
	return bestTerm, best, found
}

func (r *Resolver) previousSatisfierLevel(ic *Incompatibility, exclude Term) int {
	level := 0
	for _, a := range r.ps.assignments {
		if a.Package == exclude.Package {
			continue
		}
		for _, t := range ic.Terms {
			if t.Package == a.Package && a.DecisionLevel > level {
				level = a.DecisionLevel
			}
		}
	}
	return level
}

// resolveTerms produces the resolvent of ic and cause over their shared
// package, the standard PubGrub resolution rule.
func (r *Resolver) resolveTerms(ic *Incompatibility, shared Term, cause *Incompatibility) *Incompatibility {
	var terms []Term
	for _, t := range ic.Terms {
		if t.Package != shared.Package {
			terms = append(terms, t)
		}
	}
	for _, t := range cause.Terms {
		if t.Package != shared.Package {
			terms = append(terms, t)
		}
	}
	return derived(ic, cause, terms...)
}

// nextUndecided selects the highest-priority package with no decision yet,
// per spec.md §4.4 step 3. done is true once every relevant package is
// decided.
func (r *Resolver) nextUndecided(ctx context.Context) (Package, bool, error) {
	seen := map[Package]bool{}
	var rankings []candidateRanking
	for _, ic := range r.incompatibilities {
		for _, t := range ic.Terms {
			if t.Package.Kind != Real || seen[t.Package] {
				continue
			}
			if _, ok := r.ps.decided(t.Package); ok {
				continue
			}
			seen[t.Package] = true
			vers, err := r.Provider.candidates(ctx, t.Package, r.ps.derivedRange(t.Package))
			if err != nil {
				return Package{}, false, err
			}
			rankings = append(rankings, candidateRanking{
				pkg:           t.Package,
				class:         r.Provider.classify(t.Package, t.Package.URL != ""),
				numCandidates: len(vers),
			})
		}
	}
	if len(rankings) == 0 {
		return Package{}, true, nil
	}
	return rankings[pickHighestPriority(rankings)].pkg, false, nil
}

// decide performs candidate selection and dependency expansion for pkg
// (spec.md §4.4 steps 3-4): pick its next candidate version, add
// dependency incompatibilities, or derive a terminal "no candidate"
// incompatibility when none remain.
func (r *Resolver) decide(ctx context.Context, pkg Package) error {
	rng := r.ps.derivedRange(pkg)

	var v pep440.Version
	var found bool
	if pkg.URL != "" {
		resolved, err := r.Provider.resolveURLVersion(ctx, pkg)
		if err == nil {
			v, found = resolved, true
		}
	} else {
		cands, err := r.Provider.candidates(ctx, pkg, rng)
		if err != nil {
			return &MissingMetadataError{Package: pkg.Name, Err: err}
		}
		if len(cands) > 0 {
			v, found = cands[0], true
		}
	}

	if !found {
		ic := external("no candidate version for "+pkg.String(), Term{Package: pkg, Positive: true, Range: rng, Universe: r.universe(ctx, pkg)})
		r.incompatibilities = append(r.incompatibilities, ic)
		return nil
	}

	reqs, err := r.Provider.dependencies(ctx, pkg, v, r.activeExtras[pkg.Name])
	if err != nil {
		return &MissingMetadataError{Package: pkg.Name, Err: err}
	}
	// dependencies has already evaluated each marker against the
	// environment and pkg's active extras.
	for _, req := range reqs {
		r.recordExtras(req)
		depPkg, depRange, err := r.termFor(ctx, req)
		if err != nil {
			return err
		}
		if err := r.recordForkBookkeeping(req, depPkg); err != nil {
			return err
		}
		self := Term{Package: pkg, Positive: true, Range: pep440.FromPredicate(func(o pep440.Version) bool { return pep440.Compare(o, v) == 0 })}
		dep := Term{Package: depPkg, Positive: false, Range: depRange, Universe: r.universe(ctx, depPkg)}
		reason := fmt.Sprintf("%s %s depends on %s", pkg.Name, v, depPkg.String())
		r.incompatibilities = append(r.incompatibilities, external(reason, self, dep))
	}

	r.ps.addDecision(pkg, v)
	return nil
}

func (r *Resolver) buildResolution() *Resolution {
	res := newResolution()
	for pkg, v := range r.ps.decisions {
		if pkg.Kind != Real {
			continue
		}
		res.merge(pkg.Name, v, pkg.URL, r.activeExtras[pkg.Name], r.knownMarkers[pkg.Name])
	}
	res.KnownMarkers = r.knownMarkers
	return res
}
