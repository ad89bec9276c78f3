//go:build unix || linux || darwin

// mmap_unix.go -- mmap(2)/munmap(2) via golang.org/x/sys/unix.
//
// Grounded on jpl-au-folio's lock_unix.go/lock_windows.go split: OS-specific
// syscalls live in their own build-tagged file behind a small shared
// interface, rather than #ifdef-style branching inside one file. The
// teacher's mmap.go used the raw syscall package directly; x/sys/unix is
// the maintained replacement (syscall's mmap surface is frozen).
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import (
	"os"

	"golang.org/x/sys/unix"
)

func mmapFile(f *os.File, size int64) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
}

func munmapFile(b []byte) error {
	return unix.Munmap(b)
}
