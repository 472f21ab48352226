// Copyright 2025 Google LLC
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package cache

import (
	"os"

	"golang.org/x/sys/unix"
)

// reflink attempts a copy-on-write clone via the FICLONE ioctl, as the
// original source's reflink.rs does via macOS clonefile.
func reflink(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer out.Close()
	return unix.IoctlFileClone(int(out.Fd()), int(in.Fd()))
}
