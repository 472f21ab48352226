// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

// Package record reads and writes a wheel's RECORD file: the CSV manifest
// of every file a wheel installs, per spec.md §4.7 step 1.
package record

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/pypi/digest"
)

// Entry is one RECORD line: a relative path, an optional "algo=hex" hash
// (empty for the RECORD entry describing itself), and an optional size.
type Entry struct {
	Path string
	Algo digest.Algorithm
	Hex  string
	Size int64
	// HasHash distinguishes an entry with no hash (RECORD's own self-entry,
	// or a directory symlink some installers emit) from a zero-length file.
	HasHash bool
}

// Unhashed reports whether e carries no digest, matching the RECORD self-
// entry convention ("path,,").
func (e Entry) Unhashed() bool { return !e.HasHash }

// Read parses a RECORD CSV stream.
func Read(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.ReuseRecord = true
	var entries []Entry
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "parsing RECORD")
		}
		e := Entry{Path: row[0]}
		if row[1] != "" {
			algo, hex, ok := strings.Cut(row[1], "=")
			if !ok {
				return nil, errors.Errorf("malformed RECORD hash field %q", row[1])
			}
			e.Algo, e.Hex, e.HasHash = digest.Algorithm(algo), hex, true
		}
		if row[2] != "" {
			size, err := strconv.ParseInt(row[2], 10, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing RECORD size for %q", e.Path)
			}
			e.Size = size
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Write serializes entries as a RECORD CSV stream, in the order given.
func Write(w io.Writer, entries []Entry) error {
	cw := csv.NewWriter(w)
	for _, e := range entries {
		hash, size := "", ""
		if e.HasHash {
			hash = string(e.Algo) + "=" + e.Hex
		}
		if e.Size > 0 || e.HasHash {
			size = strconv.FormatInt(e.Size, 10)
		}
		if err := cw.Write([]string{e.Path, hash, size}); err != nil {
			return errors.Wrap(err, "writing RECORD")
		}
	}
	cw.Flush()
	return cw.Error()
}

// SelfEntry builds the RECORD's own unhashed entry for distInfoRecordPath
// ("<name>-<version>.dist-info/RECORD").
func SelfEntry(distInfoRecordPath string) Entry {
	return Entry{Path: distInfoRecordPath}
}
