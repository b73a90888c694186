//go:build windows

package pathsync

import (
	"errors"

	"golang.org/x/sys/windows"
)

// errCrossDevice is what MoveFileEx reports when source and target live on
// different volumes.
var errCrossDevice error = windows.ERROR_NOT_SAME_DEVICE

func isCrossDevice(err error) bool {
	return errors.Is(err, errCrossDevice)
}
