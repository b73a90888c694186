//go:build !windows

package pathsync

import (
	"errors"

	"golang.org/x/sys/unix"
)

// errCrossDevice is what rename reports when source and target live on
// different filesystems.
var errCrossDevice error = unix.EXDEV

func isCrossDevice(err error) bool {
	return errors.Is(err, errCrossDevice)
}
