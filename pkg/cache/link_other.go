// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package cache

import "errors"

// reflink is unavailable on this platform; Materialize falls back to a hard
// link or copy.
func reflink(src, dst string) error {
	return errors.ErrUnsupported
}
