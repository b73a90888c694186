package pathsync

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
)

// mirror deletes destination entries that have no counterpart in the source.
// Entries shielded by an ignore rule, entries the planner claimed and the
// staging files of running copies are kept, and so is every directory that
// still holds something kept. Doomed entries are deleted deepest first.
func (p *planner) mirror(ctx context.Context) error {
	var doomed []string
	if _, err := p.mirrorDir(ctx, p.req.Destination, &doomed); err != nil {
		return err
	}

	sort.Sort(sort.Reverse(sort.StringSlice(doomed)))
	for _, path := range doomed {
		p.emit(ctx, Action{Kind: DeletePath, Target: path})
		p.view.remove(path)
	}
	return nil
}

// mirrorDir collects the doomed entries below dir and reports whether
// anything below dir is kept.
func (p *planner) mirrorDir(ctx context.Context, dir string, doomed *[]string) (bool, error) {
	entries, err := p.view.readDir(dir)
	if err != nil {
		plog.Warn("Cannot list destination directory, keeping it", "path", dir, "error", err)
		return true, nil
	}

	keptAny := false
	for _, info := range entries {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		kept, err := p.mirrorEntry(ctx, filepath.Join(dir, info.Name()), info, doomed)
		if err != nil {
			return false, err
		}
		keptAny = keptAny || kept
	}
	return keptAny, nil
}

func (p *planner) mirrorEntry(ctx context.Context, path string, info os.FileInfo, doomed *[]string) (bool, error) {
	if p.exec != nil && p.exec.isStaging(path) {
		return true, nil
	}
	if p.matcher.MatchesDestination(p.req.Destination, path, info.IsDir()) {
		return true, nil
	}

	claimed := p.reserved.isCommitted(path)
	if claimed && p.reserved.isFileTarget(path) {
		return true, nil
	}
	keep := claimed || p.hasSourceCounterpart(path)
	if !info.IsDir() {
		if !keep {
			*doomed = append(*doomed, path)
		}
		return keep, nil
	}

	if keep {
		_, err := p.mirrorDir(ctx, path, doomed)
		return true, err
	}

	// A doomed directory goes as a whole unless something inside is kept.
	var inner []string
	keptInside, err := p.mirrorDir(ctx, path, &inner)
	if err != nil {
		return false, err
	}
	if keptInside {
		*doomed = append(*doomed, inner...)
		return true, nil
	}
	*doomed = append(*doomed, path)
	return false, nil
}
