//go:build windows

// mmap_windows.go -- CreateFileMapping/MapViewOfFile via golang.org/x/sys/windows.
//
// Counterpart to mmap_unix.go, grounded on the same jpl-au-folio
// lock_unix.go/lock_windows.go split.
//
// (c) 2024 go-ckv contributors
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim is made to its
// suitability for any purpose.

package ckv

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

type windowsMapping struct {
	handle windows.Handle
	addr   uintptr
}

var windowsMappings = map[uintptr]windowsMapping{}

func mmapFile(f *os.File, size int64) ([]byte, error) {
	h, err := windows.CreateFileMapping(windows.Handle(f.Fd()), nil, windows.PAGE_READONLY, 0, 0, nil)
	if err != nil {
		return nil, fmt.Errorf("ckv: CreateFileMapping: %w", err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_READ, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("ckv: MapViewOfFile: %w", err)
	}

	b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	windowsMappings[addr] = windowsMapping{handle: h, addr: addr}
	return b, nil
}

func munmapFile(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	addr := uintptr(unsafe.Pointer(&b[0]))
	m, ok := windowsMappings[addr]
	if !ok {
		return fmt.Errorf("ckv: munmap: unknown mapping")
	}
	delete(windowsMappings, addr)

	if err := windows.UnmapViewOfFile(m.addr); err != nil {
		return err
	}
	return windows.CloseHandle(m.handle)
}
