package pathsync

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/pool"
	"github.com/paulschiretz/pgl-sync/pkg/sharded"
	"github.com/paulschiretz/pgl-sync/pkg/util"
)

const (
	stagingPrefix = ".pgl-sync-"
	stagingSuffix = ".tmp"

	copyBufferSize = 256 * 1024
)

// isStagingName reports whether name looks like an in-flight or abandoned copy.
func isStagingName(name string) bool {
	return strings.HasPrefix(name, stagingPrefix) && strings.HasSuffix(name, stagingSuffix)
}

type failure struct {
	seq int64
	op  string
	err error
}

// executor applies actions. Copies run on a bounded pool; everything else is
// applied inline, in the order it arrives. Failures are recorded, never fatal.
type executor struct {
	fs         afero.Fs
	dryRun     bool
	retryCount int
	retryWait  time.Duration
	buffers    *pool.Buffers
	metrics    *SyncMetrics

	copies   errgroup.Group
	mkdirs   singleflight.Group
	staging  *sharded.Set
	failures *sharded.Map[failure]
	seq      atomic.Int64
}

func newExecutor(fsys afero.Fs, req SyncRequest, buffers *pool.Buffers) *executor {
	e := &executor{
		fs:         fsys,
		dryRun:     req.DryRun,
		retryCount: req.RetryCount,
		retryWait:  req.RetryWait,
		buffers:    buffers,
		metrics:    &SyncMetrics{},
		staging:    sharded.NewSet(sharded.DefaultShards),
		failures:   sharded.NewMap[failure](sharded.DefaultShards),
	}
	e.copies.SetLimit(max(req.Workers, 1))
	return e
}

func (e *executor) apply(ctx context.Context, a Action) {
	if e.dryRun {
		e.simulate(a)
		return
	}

	switch a.Kind {
	case CreateDir:
		plog.Change("MKDIR", "path", a.Target)
		if err := e.fs.MkdirAll(a.Target, util.UserWritableDirPerms); err != nil {
			e.fail("mkdir", &OpError{Op: "mkdir", Path: a.Target, Err: err})
			return
		}
		e.metrics.AddDirsCreated(1)

	case CopyFile:
		plog.Change("COPY", "source", a.Source, "target", a.Target)
		e.copies.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			if err := e.copyFile(a.Source, a.Target); err != nil {
				e.fail("copy", &OpError{Op: "copy", Path: a.Source, Target: a.Target, Err: err})
				return nil
			}
			e.metrics.AddFilesCopied(1)
			return nil
		})

	case RenameFile, RenameDir:
		plog.Change("MOVE", "source", a.Source, "target", a.Target)
		crossed, err := e.move(a)
		if err != nil {
			e.fail("rename", &OpError{Op: "rename", Path: a.Source, Target: a.Target, Err: err})
			return
		}
		if crossed {
			e.metrics.AddCrossVolumeMoves(1)
		}
		if a.Kind == RenameFile {
			e.metrics.AddFilesRenamed(1)
		} else {
			e.metrics.AddDirsRenamed(1)
		}

	case DeletePath:
		plog.Change("DELETE", "path", a.Target)
		if err := e.fs.RemoveAll(a.Target); err != nil {
			e.fail("delete", &OpError{Op: "delete", Path: a.Target, Err: err})
			return
		}
		e.metrics.AddPathsDeleted(1)

	default:
		e.account(a)
	}
}

// simulate logs what apply would do and counts it as done.
func (e *executor) simulate(a Action) {
	switch a.Kind {
	case CreateDir:
		plog.Change("[DRY RUN] MKDIR", "path", a.Target)
		e.metrics.AddDirsCreated(1)
	case CopyFile:
		plog.Change("[DRY RUN] COPY", "source", a.Source, "target", a.Target)
		e.metrics.AddFilesCopied(1)
		e.metrics.AddBytesCopied(a.Size)
	case RenameFile:
		plog.Change("[DRY RUN] MOVE", "source", a.Source, "target", a.Target)
		e.metrics.AddFilesRenamed(1)
	case RenameDir:
		plog.Change("[DRY RUN] MOVE", "source", a.Source, "target", a.Target)
		e.metrics.AddDirsRenamed(1)
	case DeletePath:
		plog.Change("[DRY RUN] DELETE", "path", a.Target)
		e.metrics.AddPathsDeleted(1)
	default:
		e.account(a)
	}
}

// account handles the kinds that never touch the destination.
func (e *executor) account(a Action) {
	switch a.Kind {
	case SkipIgnored:
		plog.Info("SKIP", "path", a.Target, "reason", "ignored")
		e.metrics.AddEntriesIgnored(1)
	case Noop:
		if a.Reason == ReasonUpToDate {
			plog.Debug("UPTODATE", "path", a.Target)
			e.metrics.AddFilesUpToDate(1)
			return
		}
		plog.Info("SKIP", "path", a.Target, "reason", a.Reason)
		e.metrics.AddEntriesSkipped(1)
	}
}

// move renames a.Source to a.Target. When the rename crosses devices and the
// action allows it, the content is copied and the original removed instead.
func (e *executor) move(a Action) (crossed bool, err error) {
	if err := e.ensureDir(filepath.Dir(a.Target)); err != nil {
		return false, err
	}
	err = e.fs.Rename(a.Source, a.Target)
	if err == nil {
		return false, nil
	}
	if !a.CrossVolumeFallback || !isCrossDevice(err) {
		return false, err
	}

	plog.Warn("Rename crosses devices, copying instead", "source", a.Source, "target", a.Target)
	if a.Kind == RenameDir {
		err = e.copyTree(a.Source, a.Target)
	} else {
		err = e.copyFile(a.Source, a.Target)
	}
	if err != nil {
		return true, fmt.Errorf("cross-device fallback copy failed: %w", err)
	}
	if err := e.fs.RemoveAll(a.Source); err != nil {
		return true, fmt.Errorf("cross-device fallback could not remove original: %w", err)
	}
	return true, nil
}

// copyTree copies the regular files and directories below src to dst.
func (e *executor) copyTree(src, dst string) error {
	return afero.Walk(e.fs, src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		target, err := util.Rebase(src, dst, path)
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			return e.fs.MkdirAll(target, util.UserWritableDirPerms)
		case info.Mode().IsRegular():
			return e.copyFile(path, target)
		default:
			plog.Warn("Not copying unsupported file type", "path", path)
			return nil
		}
	})
}

// ensureDir creates dir once, however many workers ask for it concurrently.
func (e *executor) ensureDir(dir string) error {
	_, err, _ := e.mkdirs.Do(util.NormalizePath(dir), func() (any, error) {
		return nil, e.fs.MkdirAll(dir, util.UserWritableDirPerms)
	})
	return err
}

// copyFile copies src to dst through a staging file next to dst, so dst is
// either the old content or the new content, never a partial file.
func (e *executor) copyFile(src, dst string) error {
	var lastErr error
	for i := 0; i < e.retryCount+1; i++ {
		if i > 0 {
			plog.Warn("Retrying file copy", "file", src, "attempt", fmt.Sprintf("%d/%d", i, e.retryCount), "after", e.retryWait)
			time.Sleep(e.retryWait)
		}
		if lastErr = e.copyFileOnce(src, dst); lastErr == nil {
			return nil
		}
	}
	if e.retryCount == 0 {
		return lastErr
	}
	return fmt.Errorf("failed after %d attempts: %w", e.retryCount+1, lastErr)
}

func (e *executor) copyFileOnce(src, dst string) (err error) {
	in, err := e.fs.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file %s: %w", src, err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat source file %s: %w", src, err)
	}

	dir := filepath.Dir(dst)
	if err := e.ensureDir(dir); err != nil {
		return fmt.Errorf("failed to create parent directory %s: %w", dir, err)
	}

	tmp := filepath.Join(dir, stagingPrefix+uuid.NewString()+stagingSuffix)
	// Stays registered for the whole run so the mirror pass never races a rename.
	e.staging.Store(util.NormalizePath(tmp))

	out, err := e.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, util.UserWritableFilePerms)
	if err != nil {
		return fmt.Errorf("failed to create staging file in %s: %w", dir, err)
	}
	defer func() {
		if tmp != "" {
			out.Close()
			e.fs.Remove(tmp)
		}
	}()

	bufPtr := e.buffers.Get(copyBufferSize)
	defer e.buffers.Put(bufPtr)

	written, err := io.CopyBuffer(out, in, *bufPtr)
	if err != nil {
		return fmt.Errorf("failed to copy content from %s to %s: %w", src, tmp, err)
	}
	// Closing flushes, which may touch the mtime, so it has to come before Chtimes.
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close staging file %s: %w", tmp, err)
	}
	if err := e.fs.Chmod(tmp, util.WithUserWritePermission(info.Mode().Perm())); err != nil {
		return fmt.Errorf("failed to set permissions on %s: %w", tmp, err)
	}
	if err := e.fs.Chtimes(tmp, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("failed to set timestamps on %s: %w", tmp, err)
	}

	if existing, err := e.fs.Stat(dst); err == nil && existing.IsDir() {
		if err := e.fs.RemoveAll(dst); err != nil {
			return fmt.Errorf("failed to replace directory %s: %w", dst, err)
		}
	}
	if err := e.fs.Rename(tmp, dst); err != nil {
		return fmt.Errorf("failed to move staging file into place: %w", err)
	}
	tmp = ""
	e.metrics.AddBytesCopied(written)
	return nil
}

func (e *executor) isStaging(path string) bool {
	return e.staging.Has(util.NormalizePath(path))
}

func (e *executor) fail(op string, err error) {
	seq := e.seq.Add(1)
	plog.Error("Action failed", "error", err)
	e.failures.Store(fmt.Sprintf("%s:%d", op, seq), failure{seq: seq, op: op, err: err})
}

// wait blocks until every dispatched copy has finished.
func (e *executor) wait() {
	_ = e.copies.Wait()
	plog.Debug("Copies finished", "staged", e.staging.Count(), "failures", e.failures.Count())
}

// summary collects counters and failures. Call it after wait.
func (e *executor) summary() Summary {
	s := e.metrics.snapshot()
	s.DryRun = e.dryRun
	var first failure
	e.failures.Range(func(_ string, f failure) bool {
		s.Errors++
		if f.op == "copy" {
			s.CopyErrors++
		}
		if first.err == nil || f.seq < first.seq {
			first = f
		}
		return true
	})
	s.FirstError = first.err
	return s
}
