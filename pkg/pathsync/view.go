package pathsync

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// pendingMove is a rename the planner emitted but that is not on disk.
type pendingMove struct {
	targetNorm string
	target     string
	source     string
}

// destView answers questions about the destination as it will look once the
// actions emitted so far have been applied. In a live run those actions are
// applied as they are emitted, so the view reads the filesystem directly. When
// planning without applying (dry-run, Plan) it overlays the emitted removals
// and renames on top of the untouched tree.
type destView struct {
	fs      afero.Fs
	overlay bool

	removed mapset.Set[string] // normalized; whole subtrees
	moves   []pendingMove
}

func newDestView(fsys afero.Fs, overlay bool) *destView {
	return &destView{fs: fsys, overlay: overlay, removed: mapset.NewThreadUnsafeSet[string]()}
}

// remove records that p and everything below it no longer exist.
func (v *destView) remove(p string) {
	if v.overlay {
		v.removed.Add(util.NormalizePath(p))
	}
}

// move records that source now lives at target.
func (v *destView) move(source, target string) {
	if !v.overlay {
		return
	}
	v.removed.Add(util.NormalizePath(source))
	v.moves = append(v.moves, pendingMove{targetNorm: util.NormalizePath(target), target: target, source: source})
}

func (v *destView) isRemoved(p string) bool {
	norm := util.NormalizePath(p)
	found := false
	v.removed.Each(func(r string) bool {
		found = util.IsSameOrChild(r, norm)
		return found
	})
	return found
}

// physical maps a path of the view to the on-disk path holding its content.
// Later moves are resolved first because a move's source may itself be the
// target of an earlier move.
func (v *destView) physical(p string) string {
	if !v.overlay {
		return p
	}
	for i := len(v.moves) - 1; i >= 0; i-- {
		m := v.moves[i]
		if util.IsSameOrChild(m.targetNorm, util.NormalizePath(p)) {
			if rebased, err := util.Rebase(m.target, m.source, p); err == nil {
				p = rebased
			}
		}
	}
	return p
}

func (v *destView) lstat(p string) (os.FileInfo, error) {
	if v.overlay && v.isRemoved(p) {
		return nil, &os.PathError{Op: "lstat", Path: p, Err: fs.ErrNotExist}
	}
	info, err := lstat(v.fs, v.physical(p))
	if err != nil {
		return nil, err
	}
	if name := filepath.Base(p); name != info.Name() {
		return renamedInfo{FileInfo: info, name: name}, nil
	}
	return info, nil
}

func (v *destView) exists(p string) bool {
	_, err := v.lstat(p)
	return err == nil
}

// readDir lists dir sorted by name.
func (v *destView) readDir(dir string) ([]os.FileInfo, error) {
	if v.overlay && v.isRemoved(dir) {
		return nil, &os.PathError{Op: "readdir", Path: dir, Err: fs.ErrNotExist}
	}
	entries, err := afero.ReadDir(v.fs, v.physical(dir))
	if err != nil && !(v.overlay && errors.Is(err, fs.ErrNotExist)) {
		return nil, err
	}
	if !v.overlay {
		return entries, nil
	}

	out := entries[:0]
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if v.isRemoved(filepath.Join(dir, e.Name())) {
			continue
		}
		seen[e.Name()] = true
		out = append(out, e)
	}

	dirNorm := util.NormalizePath(dir)
	for _, m := range v.moves {
		if util.NormalizePath(filepath.Dir(m.target)) != dirNorm {
			continue
		}
		name := filepath.Base(m.target)
		if seen[name] {
			continue
		}
		info, err := v.lstat(m.target)
		if err != nil {
			continue
		}
		seen[name] = true
		out = append(out, info)
	}

	if err != nil && len(out) == 0 {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out, nil
}

// renamedInfo presents a FileInfo under the name it has in the view.
type renamedInfo struct {
	os.FileInfo
	name string
}

func (r renamedInfo) Name() string { return r.name }

// lstat uses Lstat where the filesystem supports it so symlinks are seen as such.
func lstat(fsys afero.Fs, p string) (os.FileInfo, error) {
	if l, ok := fsys.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(p)
		return info, err
	}
	return fsys.Stat(p)
}
