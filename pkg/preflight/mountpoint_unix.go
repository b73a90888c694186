//go:build !windows

package preflight

import (
	"io/fs"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// isMountPoint reports whether path is the root of a mounted filesystem,
// that is, whether it lives on another device than its parent.
func isMountPoint(path string) (bool, error) {
	var st, parentSt unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return false, &fs.PathError{Op: "stat", Path: path, Err: err}
	}

	parent := filepath.Dir(path)
	if err := unix.Stat(parent, &parentSt); err != nil {
		return false, &fs.PathError{Op: "stat", Path: parent, Err: err}
	}

	// "/" is its own parent and always a mount point.
	return st.Dev != parentSt.Dev || path == parent, nil
}
