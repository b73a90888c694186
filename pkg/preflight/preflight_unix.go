//go:build !windows

package preflight

import (
	"fmt"
	"path/filepath"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// mountRoots are directories under which removable or network volumes are
// mounted.
var mountRoots = []string{"/mnt", "/media", "/run/media", "/Volumes"}

func checkVolumeExists(string) error { return nil }

// validateMountPoint rejects paths below a mount root that do not sit on a
// mounted volume. Between the mount root and path (inclusive) at least one
// directory must be a mount point; otherwise the drive is not mounted and the
// path is a plain directory on the parent filesystem.
func validateMountPoint(path string) error {
	path = filepath.Clean(path)
	for _, root := range mountRoots {
		if path == root || !util.IsSameOrChild(util.NormalizePath(root), util.NormalizePath(path)) {
			continue
		}
		for dir := path; dir != root && dir != filepath.Dir(dir); dir = filepath.Dir(dir) {
			mounted, err := isMountPoint(dir)
			if err != nil {
				return fmt.Errorf("failed to check mount point %s: %w", dir, err)
			}
			if mounted {
				return nil
			}
		}
		return fmt.Errorf("path '%s' is not on a mounted volume below %s. "+
			"Ensure your external drive is mounted", path, root)
	}
	return nil
}
