package pathsync

import (
	"context"
	"path/filepath"
	"slices"

	"github.com/paulschiretz/pgl-sync/pkg/fingerprint"
	"github.com/paulschiretz/pgl-sync/pkg/ignore"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

type indexEntry struct {
	path string
	norm string
}

// destinationIndex maps strong fingerprints to the destination files that
// carry them, in walk order. Entries are dropped once they have been consumed
// by a move or can no longer serve as one.
type destinationIndex struct {
	byFingerprint map[fingerprint.Fingerprint][]indexEntry
	size          int
}

func newDestinationIndex() *destinationIndex {
	return &destinationIndex{byFingerprint: make(map[fingerprint.Fingerprint][]indexEntry)}
}

// buildDestinationIndex walks destRoot in lexicographic order and indexes
// every regular, non-ignored file with a strong fingerprint.
func buildDestinationIndex(ctx context.Context, view *destView, destRoot string, matcher *ignore.Matcher, hasher *fingerprint.Hasher) (*destinationIndex, error) {
	idx := newDestinationIndex()
	var walk func(dir string) error
	walk = func(dir string) error {
		entries, err := view.readDir(dir)
		if err != nil {
			plog.Warn("Cannot list destination directory, not indexed", "path", dir, "error", err)
			return nil
		}
		for _, info := range entries {
			if err := ctx.Err(); err != nil {
				return err
			}
			p := filepath.Join(dir, info.Name())
			if matcher.MatchesDestination(destRoot, p, info.IsDir()) {
				continue
			}
			if info.IsDir() {
				if err := walk(p); err != nil {
					return err
				}
				continue
			}
			if !info.Mode().IsRegular() || isStagingName(info.Name()) {
				continue
			}
			r, err := hasher.SumInfo(view.physical(p), info)
			if err != nil {
				plog.Error("Cannot fingerprint destination file", "path", p, "error", err)
				continue
			}
			if !r.IsStrong() {
				continue
			}
			idx.add(r.Value, p)
		}
		return nil
	}

	if _, err := view.lstat(destRoot); err != nil {
		return idx, nil
	}
	if err := walk(destRoot); err != nil {
		return nil, err
	}
	plog.Debug("Destination index built", "files", idx.Len(), "fingerprints", len(idx.byFingerprint))
	return idx, nil
}

func (idx *destinationIndex) add(fp fingerprint.Fingerprint, path string) {
	idx.byFingerprint[fp] = append(idx.byFingerprint[fp], indexEntry{path: path, norm: util.NormalizePath(path)})
	idx.size++
}

// lookup returns the entries for fp in index order. The slice must not be modified.
func (idx *destinationIndex) lookup(fp fingerprint.Fingerprint) []indexEntry {
	return idx.byFingerprint[fp]
}

// remove drops the entry for path under fp.
func (idx *destinationIndex) remove(fp fingerprint.Fingerprint, path string) {
	norm := util.NormalizePath(path)
	entries := idx.byFingerprint[fp]
	i := slices.IndexFunc(entries, func(e indexEntry) bool { return e.norm == norm })
	if i < 0 {
		return
	}
	entries = slices.Delete(entries, i, i+1)
	idx.size--
	if len(entries) == 0 {
		delete(idx.byFingerprint, fp)
		return
	}
	idx.byFingerprint[fp] = entries
}

// removePath drops path wherever it appears.
func (idx *destinationIndex) removePath(path string) {
	norm := util.NormalizePath(path)
	idx.removeWhere(func(e indexEntry) bool { return e.norm == norm })
}

// removeUnder drops every entry at or below dir.
func (idx *destinationIndex) removeUnder(dir string) {
	dirNorm := util.NormalizePath(dir)
	idx.removeWhere(func(e indexEntry) bool { return util.IsSameOrChild(dirNorm, e.norm) })
}

func (idx *destinationIndex) removeWhere(match func(indexEntry) bool) {
	for fp, entries := range idx.byFingerprint {
		kept := slices.DeleteFunc(entries, match)
		idx.size -= len(entries) - len(kept)
		if len(kept) == 0 {
			delete(idx.byFingerprint, fp)
			continue
		}
		idx.byFingerprint[fp] = kept
	}
}

// Len returns the number of indexed files.
func (idx *destinationIndex) Len() int { return idx.size }

// contains reports whether fp is indexed at all.
func (idx *destinationIndex) contains(fp fingerprint.Fingerprint) bool {
	_, ok := idx.byFingerprint[fp]
	return ok
}
