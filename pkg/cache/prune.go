// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Stats summarizes the outcome of a Prune pass.
type Stats struct {
	RemovedDirs   int
	RemovedBytes  int64
	StaleBuckets  []string
}

// Prune walks every bucket's root directory and removes: sibling
// directories whose bucket-version suffix does not match the bucket's
// current version, and (within the archive bucket) entries not present in
// live. Directories left empty by removal are removed as well.
func Prune(ctx context.Context, buckets *Buckets, liveArchive map[string]bool) (Stats, error) {
	var stats Stats
	for _, b := range buckets.All() {
		if err := pruneStaleVersions(b, &stats); err != nil {
			return stats, err
		}
	}
	if err := pruneArchive(buckets.Archive, liveArchive, &stats); err != nil {
		return stats, err
	}
	return stats, nil
}

// pruneStaleVersions removes sibling "<name>-v<M>" directories where M is
// not the bucket's current version.
func pruneStaleVersions(b Bucket, stats *Stats) error {
	entries, err := os.ReadDir(b.Root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading cache root %q", b.Root)
	}
	prefix := b.Name + "-v"
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		verStr := strings.TrimPrefix(e.Name(), prefix)
		ver, err := strconv.Atoi(verStr)
		if err != nil || ver == b.Version {
			continue
		}
		path := filepath.Join(b.Root, e.Name())
		size, _ := dirSize(path)
		if err := os.RemoveAll(path); err != nil {
			return errors.Wrapf(err, "removing stale bucket version %q", path)
		}
		stats.RemovedDirs++
		stats.RemovedBytes += size
		stats.StaleBuckets = append(stats.StaleBuckets, e.Name())
	}
	return nil
}

// pruneArchive removes archive entries not referenced by any live wheel
// pointer entry.
func pruneArchive(archive Bucket, live map[string]bool, stats *Stats) error {
	root := archive.Dir()
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Wrapf(err, "reading archive bucket %q", root)
	}
	for _, l1 := range entries {
		if !l1.IsDir() {
			continue
		}
		l1Path := filepath.Join(root, l1.Name())
		l2Entries, err := os.ReadDir(l1Path)
		if err != nil {
			continue
		}
		for _, l2 := range l2Entries {
			if !l2.IsDir() {
				continue
			}
			l2Path := filepath.Join(l1Path, l2.Name())
			rests, err := os.ReadDir(l2Path)
			if err != nil {
				continue
			}
			for _, rest := range rests {
				digest := l1.Name() + l2.Name() + rest.Name()
				if live[digest] {
					continue
				}
				path := filepath.Join(l2Path, rest.Name())
				size, _ := dirSize(path)
				if err := os.RemoveAll(path); err != nil {
					return errors.Wrapf(err, "removing orphan archive entry %q", path)
				}
				stats.RemovedDirs++
				stats.RemovedBytes += size
			}
			// os.Remove only succeeds on a directory that is now empty.
			os.Remove(l2Path)
		}
		os.Remove(l1Path)
	}
	return nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	return total, err
}
