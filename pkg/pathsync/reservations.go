package pathsync

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// reservations records which destination paths the planner has claimed.
// Claimed paths are never chosen as move candidates and never deleted by the
// mirror pass. Owned by the planning goroutine.
type reservations struct {
	paths mapset.Set[string] // exact
	files mapset.Set[string] // exact, claimed as file targets
	dirs  mapset.Set[string] // whole subtrees
}

func newReservations() *reservations {
	return &reservations{
		paths: mapset.NewThreadUnsafeSet[string](),
		files: mapset.NewThreadUnsafeSet[string](),
		dirs:  mapset.NewThreadUnsafeSet[string](),
	}
}

func (r *reservations) reservePath(p string) {
	r.paths.Add(util.NormalizePath(p))
}

func (r *reservations) reserveFile(p string) {
	norm := util.NormalizePath(p)
	r.paths.Add(norm)
	r.files.Add(norm)
}

func (r *reservations) reserveDir(p string) {
	r.dirs.Add(util.NormalizePath(p))
}

// isReserved reports whether p was claimed exactly or lies in a claimed subtree.
func (r *reservations) isReserved(p string) bool {
	norm := util.NormalizePath(p)
	if r.paths.Contains(norm) {
		return true
	}
	found := false
	r.dirs.Each(func(d string) bool {
		found = util.IsSameOrChild(d, norm)
		return found
	})
	return found
}

// isCommitted reports whether p itself was claimed, ignoring subtree claims.
func (r *reservations) isCommitted(p string) bool {
	norm := util.NormalizePath(p)
	return r.paths.Contains(norm) || r.dirs.Contains(norm)
}

// isFileTarget reports whether p was claimed as the target of a file action.
func (r *reservations) isFileTarget(p string) bool {
	return r.files.Contains(util.NormalizePath(p))
}
