// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"

	"github.com/pep-run/pep/internal/syncx"
)

// Memo is the in-memory, per-process compute-once cache used for
// request-scoped data (VersionMap/Metadata lookups) that should not survive
// past one resolve. It generalizes the teacher's
// internal/cache.CoalescingMemoryCache to be type-safe via generics, using
// sync.OnceValues directly per spec.md §5's OnceMap definition rather than
// the teacher's "any"-typed fn wrapper.
type Memo[K comparable, V any] struct {
	m syncx.Map[K, func() (V, error)]
}

// GetOrCompute returns the memoised value for key, computing it via fetch
// exactly once even under concurrent callers. A failed computation is not
// retained: the next caller (whether concurrent or subsequent) recomputes,
// matching spec.md §5's "a failed computation is recorded so waiters
// observe the error instead of hanging" for in-flight callers, while still
// allowing recovery on a later, independent call.
func (m *Memo[K, V]) GetOrCompute(key K, fetch func() (V, error)) (V, error) {
	once, _ := m.m.LoadOrStore(key, sync.OnceValues(fetch))
	v, err := once()
	if err != nil {
		m.m.Delete(key)
	}
	return v, err
}

// Clear empties the memo; used between independent resolves.
func (m *Memo[K, V]) Clear() {
	m.m.Clear()
}
