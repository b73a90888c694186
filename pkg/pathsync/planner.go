package pathsync

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-sync/pkg/fingerprint"
	"github.com/paulschiretz/pgl-sync/pkg/hints"
	"github.com/paulschiretz/pgl-sync/pkg/ignore"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/pool"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// planner walks the source tree once and decides, entry by entry, what has
// to happen at the destination. All of its state is owned by the goroutine
// calling run. When exec is set every action is handed to it as soon as it is
// emitted; otherwise actions are only collected.
type planner struct {
	req     SyncRequest
	fs      afero.Fs
	view    *destView
	matcher *ignore.Matcher
	hasher  *fingerprint.Hasher
	index   *destinationIndex
	dirFps  *dirFingerprints
	metrics Metrics

	reserved         *reservations
	movedSourceRoots mapset.Set[string]

	exec    *executor
	actions []Action
}

func newPlanner(fsys afero.Fs, req SyncRequest, buffers *pool.Buffers, exec *executor) (*planner, error) {
	sourceRoot := req.Source
	if req.Mode == FileMode {
		sourceRoot = filepath.Dir(req.Source)
	}
	matcher, err := ignore.New(sourceRoot, req.Ignore, req.Exclude)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPrecondition, err)
	}

	var metrics Metrics = &SyncMetrics{}
	if exec != nil {
		metrics = exec.metrics
	}
	view := newDestView(fsys, exec == nil || req.DryRun)
	hasher := fingerprint.New(fsys, req.StrongHash, buffers)
	return &planner{
		req:              req,
		fs:               fsys,
		view:             view,
		matcher:          matcher,
		hasher:           hasher,
		index:            newDestinationIndex(),
		dirFps:           newDirFingerprints(fsys, view, req.Destination, matcher, hasher),
		metrics:          metrics,
		reserved:         newReservations(),
		movedSourceRoots: mapset.NewThreadUnsafeSet[string](),
		exec:             exec,
	}, nil
}

// run plans the whole request, including the mirror pass.
func (p *planner) run(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.req.Mode == FileMode {
		return p.planFile(ctx)
	}

	p.claimDestinationRoot(ctx)
	if p.req.StrongHash {
		plog.Info("Indexing destination", "path", p.req.Destination)
		idx, err := buildDestinationIndex(ctx, p.view, p.req.Destination, p.matcher, p.hasher)
		if err != nil {
			return err
		}
		p.index = idx
	}

	plog.Info("Scanning source", "path", p.req.Source)
	if err := p.descend(ctx, p.req.Source, false); err != nil {
		return err
	}

	if p.req.Mirror {
		return p.mirror(ctx)
	}
	return nil
}

func (p *planner) emit(ctx context.Context, a Action) {
	p.actions = append(p.actions, a)
	if p.exec != nil {
		p.exec.apply(ctx, a)
		return
	}
	if plog.Enabled(plog.LevelDebug) {
		plog.Debug("Planned", "action", a.String())
	}
}

// claimDestinationRoot reserves the destination root, creating it if needed.
func (p *planner) claimDestinationRoot(ctx context.Context) {
	if info, err := p.view.lstat(p.req.Destination); err != nil || !info.IsDir() {
		p.emit(ctx, Action{Kind: CreateDir, Target: p.req.Destination})
	}
	p.reserved.reservePath(p.req.Destination)
}

// descend visits the children of srcDir. A directory that cannot be listed
// is reported and treated as empty.
func (p *planner) descend(ctx context.Context, srcDir string, reconcile bool) error {
	err := p.walk(ctx, srcDir, reconcile)
	if err != nil && hints.IsHint(err) {
		plog.Warn("Skipping unreadable source directory", "error", err)
		return nil
	}
	return err
}

func (p *planner) walk(ctx context.Context, srcDir string, reconcile bool) error {
	entries, err := afero.ReadDir(p.fs, srcDir)
	if err != nil {
		return hints.Wrap(fmt.Errorf("cannot list %s: %w", srcDir, err))
	}
	for _, info := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.visit(ctx, filepath.Join(srcDir, info.Name()), info, reconcile); err != nil {
			return err
		}
	}
	return nil
}

func (p *planner) visit(ctx context.Context, src string, info os.FileInfo, reconcile bool) error {
	p.metrics.AddEntriesProcessed(1)

	if !reconcile && p.underMovedRoot(src) {
		plog.Debug("Already moved with its parent directory", "path", src)
		return nil
	}
	if p.matcher.Matches(src, info.IsDir()) {
		p.emit(ctx, Action{Kind: SkipIgnored, Target: src})
		return nil
	}

	target, err := util.Rebase(p.req.Source, p.req.Destination, src)
	if err != nil {
		return fmt.Errorf("cannot map %s into %s: %w", src, p.req.Destination, err)
	}
	switch {
	case info.IsDir():
		return p.visitDir(ctx, src, target, reconcile)
	case info.Mode().IsRegular():
		p.visitFile(ctx, src, info, target)
		return nil
	default:
		p.emit(ctx, Action{Kind: Noop, Target: src, Reason: ReasonUnsupportedType})
		return nil
	}
}

func (p *planner) underMovedRoot(src string) bool {
	norm := util.NormalizePath(src)
	found := false
	p.movedSourceRoots.Each(func(root string) bool {
		found = util.IsSameOrChild(root, norm)
		return found
	})
	return found
}

func (p *planner) visitDir(ctx context.Context, src, target string, reconcile bool) error {
	info, err := p.view.lstat(target)
	switch {
	case err == nil && info.IsDir():
		p.reserved.reservePath(target)
		return p.descend(ctx, src, reconcile)
	case err == nil:
		// A file sits where the directory belongs.
		p.emit(ctx, Action{Kind: DeletePath, Target: target})
		p.view.remove(target)
		p.index.removePath(target)
	case !errors.Is(err, fs.ErrNotExist):
		plog.Warn("Cannot stat destination directory", "path", target, "error", err)
		p.reserved.reservePath(target)
		return p.descend(ctx, src, reconcile)
	}

	if p.req.StrongHash && !reconcile {
		moved, err := p.detectDirMove(ctx, src, target)
		if err != nil || moved {
			return err
		}
	}

	p.emit(ctx, Action{Kind: CreateDir, Target: target})
	p.reserved.reservePath(target)
	return p.descend(ctx, src, reconcile)
}

// detectDirMove looks for an existing sibling of target whose content
// covers at least 85% of the source directory's fingerprints and renames the
// first one found. The moved subtree is then reconciled against src.
func (p *planner) detectDirMove(ctx context.Context, src, target string) (bool, error) {
	srcFps, err := p.dirFps.source(ctx, src)
	if err != nil {
		return false, err
	}
	if srcFps.Cardinality() == 0 {
		return false, nil
	}

	parent := filepath.Dir(target)
	siblings, err := p.view.readDir(parent)
	if err != nil {
		return false, nil
	}
	for _, info := range siblings {
		if !info.IsDir() {
			continue
		}
		candidate := filepath.Join(parent, info.Name())
		if !p.isMoveCandidate(candidate, true) {
			continue
		}
		candFps, err := p.dirFps.destination(ctx, candidate)
		if err != nil {
			return false, err
		}
		common, total, ok := overlapRatio(srcFps, candFps)
		if !ok || !meetsMoveThreshold(common, total) {
			continue
		}

		plog.Debug("Directory move detected", "from", candidate, "to", target, "overlap", fmt.Sprintf("%d/%d", common, total))
		p.emit(ctx, Action{Kind: RenameDir, Source: candidate, Target: target, CrossVolumeFallback: true})
		p.reserved.reserveDir(target)
		p.movedSourceRoots.Add(util.NormalizePath(src))
		p.view.move(candidate, target)
		p.index.removeUnder(candidate)
		return true, p.descend(ctx, src, true)
	}
	return false, nil
}

// isMoveCandidate reports whether an existing destination entry may be
// consumed by a move: unclaimed, not shielded by an ignore rule and not
// mirroring a source entry that still exists.
func (p *planner) isMoveCandidate(path string, isDir bool) bool {
	if p.reserved.isReserved(path) {
		return false
	}
	if p.matcher.MatchesDestination(p.req.Destination, path, isDir) {
		return false
	}
	return !p.hasSourceCounterpart(path)
}

func (p *planner) hasSourceCounterpart(destPath string) bool {
	src, err := p.matcher.SourceEquivalent(p.req.Destination, destPath)
	if err != nil {
		return false
	}
	_, err = lstat(p.fs, src)
	return err == nil
}

func (p *planner) visitFile(ctx context.Context, src string, info os.FileInfo, target string) {
	tInfo, err := p.view.lstat(target)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if p.req.StrongHash && p.index.Len() > 0 && p.detectFileMove(ctx, src, info, target) {
			return
		}
		p.emitCopy(ctx, src, info, target)
	case err != nil:
		plog.Warn("Cannot stat destination file, copying", "path", target, "error", err)
		p.emitCopy(ctx, src, info, target)
	case tInfo.IsDir():
		// A directory sits where the file belongs. The copy replaces it.
		p.index.removeUnder(target)
		p.view.remove(target)
		p.emitCopy(ctx, src, info, target)
	case p.needsCopy(src, info, target, tInfo):
		p.emitCopy(ctx, src, info, target)
	default:
		p.emit(ctx, Action{Kind: Noop, Target: src, Reason: ReasonUpToDate})
		p.reserved.reserveFile(target)
	}
}

func (p *planner) emitCopy(ctx context.Context, src string, info os.FileInfo, target string) {
	p.emit(ctx, Action{Kind: CopyFile, Source: src, Target: target, Size: info.Size()})
	p.reserved.reserveFile(target)
}

// detectFileMove renames the first unclaimed destination file with the same
// strong fingerprint into target.
func (p *planner) detectFileMove(ctx context.Context, src string, info os.FileInfo, target string) bool {
	if info.Size() == 0 {
		return false
	}
	r, err := p.hasher.SumInfo(src, info)
	if err != nil {
		plog.Error("Cannot fingerprint source file", "path", src, "error", err)
		return false
	}
	if !r.IsStrong() {
		return false
	}

	for _, entry := range p.index.lookup(r.Value) {
		cInfo, err := p.view.lstat(entry.path)
		if err != nil || !cInfo.Mode().IsRegular() {
			continue
		}
		if !p.isMoveCandidate(entry.path, false) {
			continue
		}

		plog.Debug("File move detected", "from", entry.path, "to", target)
		p.emit(ctx, Action{Kind: RenameFile, Source: entry.path, Target: target, Size: info.Size(), CrossVolumeFallback: true})
		p.reserved.reserveFile(target)
		p.reserved.reservePath(entry.path)
		p.view.move(entry.path, target)
		p.index.remove(r.Value, entry.path)
		return true
	}
	return false
}

// needsCopy decides whether an existing destination file must be refreshed.
// With strong hashing content decides; otherwise a newer source mtime does.
func (p *planner) needsCopy(src string, info os.FileInfo, target string, tInfo os.FileInfo) bool {
	if !tInfo.Mode().IsRegular() {
		return true
	}
	if !p.req.StrongHash {
		return info.ModTime().After(tInfo.ModTime())
	}
	if info.Size() != tInfo.Size() {
		return true
	}
	if info.Size() == 0 {
		return false
	}

	srcFp, err := p.hasher.SumInfo(src, info)
	if err != nil {
		plog.Error("Cannot fingerprint source file", "path", src, "error", err)
		return true
	}
	dstFp, err := p.hasher.SumInfo(p.view.physical(target), tInfo)
	if err != nil {
		plog.Error("Cannot fingerprint destination file", "path", target, "error", err)
		return true
	}
	return !srcFp.Matches(dstFp)
}

// planFile handles single-file mode: the source file lands directly in the
// destination directory. There is no move detection and no mirror pass.
func (p *planner) planFile(ctx context.Context) error {
	info, err := lstat(p.fs, p.req.Source)
	if err != nil {
		return fmt.Errorf("%w: cannot stat source %s: %v", ErrPrecondition, p.req.Source, err)
	}
	if p.matcher.Matches(p.req.Source, false) {
		p.emit(ctx, Action{Kind: SkipIgnored, Target: p.req.Source})
		return nil
	}
	p.metrics.AddEntriesProcessed(1)
	p.claimDestinationRoot(ctx)
	p.visitFile(ctx, p.req.Source, info, filepath.Join(p.req.Destination, filepath.Base(p.req.Source)))
	return nil
}
