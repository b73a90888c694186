//go:build windows

package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// checkVolumeExists verifies that the drive or network share root for a
// given path exists. For example, for "Z:\backup", it checks if "Z:\" exists.
func checkVolumeExists(path string) error {
	if isUnsafeRoot(path) {
		return fmt.Errorf("destination cannot be the current directory or a bare drive letter: %s", path)
	}

	volume := filepath.VolumeName(path)
	if volume == "" {
		return nil
	}

	checkVol := volume
	if !strings.HasSuffix(checkVol, string(filepath.Separator)) {
		checkVol += string(filepath.Separator)
	}
	checkVol = filepath.Clean(checkVol)

	if _, err := os.Stat(checkVol); os.IsNotExist(err) {
		return fmt.Errorf("volume root does not exist: %s. Ensure the drive is connected", checkVol)
	}
	return nil
}

// validateMountPoint is a no-op on Windows; volumes are checked by
// checkVolumeExists.
func validateMountPoint(string) error { return nil }

// isUnsafeRoot checks if the given path is the current directory or a bare drive letter (e.g., "C:").
func isUnsafeRoot(path string) bool {
	if path == "." || path == string(filepath.Separator) {
		return true
	}

	// filepath.Clean("C:") produces "C:.", so both forms count as bare.
	// A UNC path like `\\server\share` is safe because its volume name contains a separator.
	vol := filepath.VolumeName(path)
	isBareDrive := vol != "" && path == vol && !strings.Contains(vol, string(filepath.Separator))
	isCleanedBareDrive := vol != "" && path == vol+"."
	return isBareDrive || isCleanedBareDrive
}
