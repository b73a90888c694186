package pathsync

import (
	"context"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-sync/pkg/fingerprint"
	"github.com/paulschiretz/pgl-sync/pkg/ignore"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

type fingerprintSet = mapset.Set[fingerprint.Fingerprint]

// dirFingerprints computes, and remembers, the set of strong fingerprints of
// the regular non-ignored files below a directory. Source directories are read
// from the source filesystem, destination directories through the view.
type dirFingerprints struct {
	srcFs    afero.Fs
	view     *destView
	destRoot string
	matcher  *ignore.Matcher
	hasher   *fingerprint.Hasher
	cache    map[string]fingerprintSet
}

func newDirFingerprints(srcFs afero.Fs, view *destView, destRoot string, matcher *ignore.Matcher, hasher *fingerprint.Hasher) *dirFingerprints {
	return &dirFingerprints{
		srcFs:    srcFs,
		view:     view,
		destRoot: destRoot,
		matcher:  matcher,
		hasher:   hasher,
		cache:    make(map[string]fingerprintSet),
	}
}

// source returns the fingerprint set of a source directory.
func (d *dirFingerprints) source(ctx context.Context, dir string) (fingerprintSet, error) {
	return d.memo(ctx, dir, func(p string) ([]os.FileInfo, error) {
		return afero.ReadDir(d.srcFs, p)
	}, func(p string, isDir bool) bool {
		return d.matcher.Matches(p, isDir)
	}, func(p string) string { return p })
}

// destination returns the fingerprint set of a destination directory.
func (d *dirFingerprints) destination(ctx context.Context, dir string) (fingerprintSet, error) {
	return d.memo(ctx, dir, d.view.readDir, func(p string, isDir bool) bool {
		return d.matcher.MatchesDestination(d.destRoot, p, isDir)
	}, d.view.physical)
}

func (d *dirFingerprints) memo(
	ctx context.Context,
	dir string,
	readDir func(string) ([]os.FileInfo, error),
	ignored func(string, bool) bool,
	physical func(string) string,
) (fingerprintSet, error) {
	key := util.NormalizePath(dir)
	if set, ok := d.cache[key]; ok {
		return set, nil
	}

	set := mapset.NewThreadUnsafeSet[fingerprint.Fingerprint]()
	var walk func(string) error
	walk = func(p string) error {
		entries, err := readDir(p)
		if err != nil {
			plog.Debug("Cannot list directory for fingerprinting", "path", p, "error", err)
			return nil
		}
		for _, info := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			child := filepath.Join(p, info.Name())
			if ignored(child, info.IsDir()) {
				continue
			}
			if info.IsDir() {
				if err := walk(child); err != nil {
					return err
				}
				continue
			}
			if !info.Mode().IsRegular() || isStagingName(info.Name()) {
				continue
			}
			r, err := d.hasher.SumInfo(physical(child), info)
			if err != nil {
				plog.Error("Cannot fingerprint file", "path", child, "error", err)
				continue
			}
			if r.IsStrong() {
				set.Add(r.Value)
			}
		}
		return nil
	}
	if err := walk(dir); err != nil {
		return nil, err
	}
	d.cache[key] = set
	return set, nil
}

// overlapRatio returns |src ∩ cand| / |src|, and false when src is empty.
func overlapRatio(src, cand fingerprintSet) (common, total int, ok bool) {
	total = src.Cardinality()
	if total == 0 {
		return 0, 0, false
	}
	return src.Intersect(cand).Cardinality(), total, true
}

// meetsMoveThreshold reports whether common/total ≥ 0.85, in integer arithmetic.
func meetsMoveThreshold(common, total int) bool {
	return common*20 >= total*17
}
