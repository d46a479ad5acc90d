//go:build windows

package store

import (
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/windows"
)

// DiskSpaceInfo reports free/available space for the vault's filesystem.
type DiskSpaceInfo struct {
	Total     uint64
	Free      uint64
	Available uint64
	UsedPct   int
}

// CheckDiskSpace returns disk space information for the directory
// containing root (or root itself, whichever exists).
func CheckDiskSpace(root string) (*DiskSpaceInfo, error) {
	path := root
	if _, err := os.Stat(path); os.IsNotExist(err) {
		path = filepath.Dir(path)
	}

	var freeBytesAvailable, totalBytes, totalFreeBytes uint64
	pathPtr, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return nil, fmt.Errorf("store: failed to convert path: %w", err)
	}

	if err := windows.GetDiskFreeSpaceEx(pathPtr, &freeBytesAvailable, &totalBytes, &totalFreeBytes); err != nil {
		return nil, fmt.Errorf("store: failed to get disk stats: %w", err)
	}

	usedPct := 0
	if totalBytes > 0 {
		usedPct = int(100 * (totalBytes - totalFreeBytes) / totalBytes)
	}

	return &DiskSpaceInfo{Total: totalBytes, Free: totalFreeBytes, Available: freeBytesAvailable, UsedPct: usedPct}, nil
}
