// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package preparer drives the distribution database for every Remote
// entry a plan names, under separate bounded concurrency ceilings for
// downloads and builds, per spec.md §4.6.
package preparer

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/pep-run/pep/pkg/distdb"
	"github.com/pep-run/pep/pkg/planner"
	"github.com/pep-run/pep/pkg/pypi/digest"
	"github.com/pep-run/pep/pkg/pypi/name"
)

// Concurrency bounds the preparer's two independent pools: builds and
// downloads share no pool, since a build may itself trigger downloads
// through its own dependency provider (spec.md §4.6).
type Concurrency struct {
	Downloads int
	Builds    int
}

// Reporter receives progress events as the preparer works through a plan,
// mirroring the original source's progress trait (on_start/on_progress/
// on_complete).
type Reporter interface {
	OnStart(dist distdb.Dist)
	OnProgress(dist distdb.Dist, bytesDone int64)
	OnComplete(dist distdb.Dist, err error)
}

// NopReporter discards every event, for callers that don't need progress
// output (e.g. tests, or `pep`'s non-interactive modes).
type NopReporter struct{}

func (NopReporter) OnStart(distdb.Dist)           {}
func (NopReporter) OnProgress(distdb.Dist, int64) {}
func (NopReporter) OnComplete(distdb.Dist, error) {}

// Prepared is one fetched/built/unpacked distribution, ready for
// pkg/installer.
type Prepared struct {
	Dist   distdb.Dist
	Wheel  distdb.LocalWheel
	Hashes digest.Hashes
}

// HashRequirement names the acceptable digests and enforcement policy for
// one Dist, keyed by normalized name, as carried by a lockfile or
// `--hash` flag.
type HashRequirement struct {
	Want   digest.Hashes
	Policy digest.Policy
}

// Prepare fetches/builds/unpacks every Remote entry in plan concurrently.
// A CachedEntry is passed straight through — planner already confirmed its
// wheel is unpacked — with no digest re-verification, since its hashes
// were already checked on write (spec.md §4.2's cache contract: an entry
// is written once and trusted thereafter). The first failure cancels every
// other in-flight task cooperatively via ctx.
func Prepare(ctx context.Context, db *distdb.DB, plan *planner.Plan, hashes map[string]HashRequirement, conc Concurrency, reporter Reporter) ([]Prepared, error) {
	if reporter == nil {
		reporter = NopReporter{}
	}
	prepared := make([]Prepared, len(plan.Cached)+len(plan.Remote))
	for i, c := range plan.Cached {
		prepared[i] = Prepared{Dist: c.Entry, Wheel: c.Wheel}
	}

	gctx, cancel := context.WithCancel(ctx)
	defer cancel()
	var downloads, builds errgroup.Group
	downloads.SetLimit(max1(conc.Downloads))
	builds.SetLimit(max1(conc.Builds))
	var mu sync.Mutex
	var firstErr error
	recordErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for idx, d := range plan.Remote {
		idx, d := idx, d
		task := func() error {
			req := hashes[name.Normalize(d.Name)]
			reporter.OnStart(d)
			wheel, got, err := db.Get(gctx, d, req.Want, req.Policy)
			reporter.OnComplete(d, err)
			if err != nil {
				recordErr(err)
				return err
			}
			mu.Lock()
			prepared[len(plan.Cached)+idx] = Prepared{Dist: d, Wheel: wheel, Hashes: got}
			mu.Unlock()
			return nil
		}
		if d.IsPrebuiltWheel() {
			downloads.Go(task)
		} else {
			builds.Go(task)
		}
	}
	downloadsErr := downloads.Wait()
	buildsErr := builds.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	if downloadsErr != nil {
		return nil, downloadsErr
	}
	if buildsErr != nil {
		return nil, buildsErr
	}
	return prepared, nil
}

func max1(n int) int {
	if n < 1 {
		return 1
	}
	return n
}
