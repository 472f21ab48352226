// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

package simple

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/pep-run/pep/pkg/pypi/digest"
)

// JSONContentType is the PEP 691 media type.
const JSONContentType = "application/vnd.pypi.simple.v1+json"

type jsonIndex struct {
	Name  string    `json:"name"`
	Files []jsonFile `json:"files"`
}

type jsonFile struct {
	Filename       string            `json:"filename"`
	URL            string            `json:"url"`
	Hashes         map[string]string `json:"hashes"`
	RequiresPython *string           `json:"requires-python"`
	Yanked         json.RawMessage   `json:"yanked"`
	CoreMetadata   json.RawMessage   `json:"core-metadata"`
	// DistInfoMetadata is the PEP 658 legacy key name, kept for indexes that
	// have not migrated to "core-metadata" yet.
	DistInfoMetadata json.RawMessage `json:"dist-info-metadata"`
}

func parseJSON(r io.Reader) (*SimpleMetadata, error) {
	var idx jsonIndex
	if err := json.NewDecoder(r).Decode(&idx); err != nil {
		return nil, errors.Wrap(err, "decoding simple index JSON")
	}
	meta := &SimpleMetadata{Name: idx.Name}
	for _, jf := range idx.Files {
		f := File{Filename: jf.Filename, URL: jf.URL}
		for alg, hex := range jf.Hashes {
			f.Hashes = append(f.Hashes, digest.Digest{Algorithm: digest.Algorithm(alg), Hex: hex})
		}
		if jf.RequiresPython != nil {
			f.RequiresPython = *jf.RequiresPython
		}
		if y, ok := decodeYanked(jf.Yanked); ok {
			f.Yanked = &y
		}
		cm := jf.CoreMetadata
		if len(cm) == 0 {
			cm = jf.DistInfoMetadata
		}
		if h, ok := decodeCoreMetadata(cm); ok {
			f.CoreMetadata = &h
		}
		meta.Files = append(meta.Files, f)
	}
	return meta, nil
}

// decodeYanked handles the "yanked" field, which per PEP 691 is either
// absent/false (not yanked), true (yanked, no reason), or a string (yanked
// with a reason).
func decodeYanked(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return "", b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	return "", false
}

// decodeCoreMetadata handles the "core-metadata" field: absent/false means
// no side-channel, true means available with unknown hashes, and an object
// gives per-algorithm hashes of the .metadata file itself.
func decodeCoreMetadata(raw json.RawMessage) (digest.Hashes, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if !b {
			return nil, false
		}
		return digest.Hashes{}, true
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err == nil {
		h := make(digest.Hashes, 0, len(m))
		for alg, hex := range m {
			h = append(h, digest.Digest{Algorithm: digest.Algorithm(alg), Hex: hex})
		}
		return h, true
	}
	return nil, false
}
