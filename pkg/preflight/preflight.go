// Package preflight provides read-only checks that run before a sync starts.
// They turn common setup mistakes (a missing source, a destination on an
// unmounted drive) into clear errors instead of letting the sync fail
// half-way, and they never change the filesystem.
package preflight

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// CheckSourceAccessible validates that the source exists and has the expected
// type: a directory when wantDir is set, a regular file otherwise.
func CheckSourceAccessible(srcPath string, wantDir bool) error {
	srcInfo, err := os.Stat(srcPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("source %s does not exist", srcPath)
		}
		return fmt.Errorf("cannot stat source %s: %w", srcPath, err)
	}

	if wantDir && !srcInfo.IsDir() {
		return fmt.Errorf("source path %s is not a directory", srcPath)
	}
	if !wantDir && !srcInfo.Mode().IsRegular() {
		return fmt.Errorf("source path %s is not a regular file", srcPath)
	}
	return nil
}

// CheckDestinationAccessible performs pre-flight checks to ensure the
// destination directory is usable. It provides more user-friendly errors than
// letting the first MkdirAll fail.
//
// The checks include:
//  1. On Windows, the destination must not be an ambiguous root and its
//     drive or network share must exist.
//  2. If the destination exists, it must be a directory.
//  3. If it does not exist, its deepest existing ancestor must be accessible.
//  4. On Unix, a destination below a removable-media root such as /mnt or
//     /media must sit on a mounted volume, so a sync never fills a "ghost"
//     directory on the system disk.
func CheckDestinationAccessible(dstPath string) error {
	if err := checkVolumeExists(dstPath); err != nil {
		return err
	}

	info, err := os.Stat(dstPath)
	if errors.Is(err, fs.ErrNotExist) {
		ancestor, err := deepestExistingAncestor(dstPath)
		if err != nil {
			return err
		}
		return validateMountPoint(ancestor)
	} else if err != nil {
		return fmt.Errorf("cannot access destination %s: %w", dstPath, err)
	}

	if !info.IsDir() {
		return fmt.Errorf("destination %s exists but is not a directory", dstPath)
	}
	return validateMountPoint(dstPath)
}

// deepestExistingAncestor walks up from path until it finds a directory that
// exists.
func deepestExistingAncestor(path string) (string, error) {
	ancestor := path
	for {
		parent := filepath.Dir(ancestor)
		if parent == ancestor {
			return ancestor, nil
		}
		info, err := os.Stat(parent)
		switch {
		case err == nil && !info.IsDir():
			return "", fmt.Errorf("ancestor %s of destination %s is not a directory", parent, path)
		case err == nil:
			return parent, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("cannot access ancestor directory %s: %w", parent, err)
		}
		ancestor = parent
	}
}
