//go:build !windows

package store

import (
	"fmt"
	"path/filepath"
	"syscall"
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
	var stat syscall.Statfs_t
	if err := syscall.Statfs(root, &stat); err != nil {
		parent := filepath.Dir(root)
		if err := syscall.Statfs(parent, &stat); err != nil {
			return nil, fmt.Errorf("store: failed to get disk stats: %w", err)
		}
	}

	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bfree * uint64(stat.Bsize)
	available := stat.Bavail * uint64(stat.Bsize)

	usedPct := 0
	if total > 0 {
		usedPct = int(100 * (total - free) / total)
	}

	return &DiskSpaceInfo{Total: total, Free: free, Available: available, UsedPct: usedPct}, nil
}
