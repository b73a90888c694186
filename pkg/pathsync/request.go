package pathsync

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-sync/pkg/util"
)

// SyncRequest describes one run. It is not modified once the run starts.
type SyncRequest struct {
	Mode        Mode
	Source      string
	Destination string

	// Ignore lists source paths that are never copied, and whose destination
	// counterparts are never written, moved or deleted.
	Ignore []string
	// Exclude lists gitignore-style patterns relative to Source with the same effect.
	Exclude []string

	Mirror     bool
	DryRun     bool
	StrongHash bool

	// Workers bounds concurrent file copies. Zero means GOMAXPROCS.
	Workers    int
	RetryCount int
	RetryWait  time.Duration

	// ProgressInterval enables periodic progress logs when positive.
	ProgressInterval time.Duration
}

// prepare returns a copy of the request with absolute paths and defaults
// filled in, or an error wrapping ErrPrecondition.
func (r SyncRequest) prepare(fsys afero.Fs) (SyncRequest, error) {
	if _, ok := modeToString[r.Mode]; !ok {
		return r, preconditionf("invalid mode %d", r.Mode)
	}
	if r.Source == "" {
		return r, preconditionf("source path cannot be empty")
	}
	if r.Destination == "" {
		return r, preconditionf("destination path cannot be empty")
	}

	var err error
	if r.Source, err = filepath.Abs(r.Source); err != nil {
		return r, preconditionf("could not resolve source %s: %v", r.Source, err)
	}
	if r.Destination, err = filepath.Abs(r.Destination); err != nil {
		return r, preconditionf("could not resolve destination %s: %v", r.Destination, err)
	}

	maxWorkers := runtime.GOMAXPROCS(0)
	if r.Workers <= 0 || r.Workers > maxWorkers {
		r.Workers = maxWorkers
	}
	if r.RetryCount < 0 {
		r.RetryCount = 0
	}

	srcInfo, err := fsys.Stat(r.Source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return r, preconditionf("source %s does not exist", r.Source)
		}
		return r, preconditionf("cannot stat source %s: %v", r.Source, err)
	}
	switch r.Mode {
	case DirectoryMode:
		if !srcInfo.IsDir() {
			return r, preconditionf("source %s is not a directory", r.Source)
		}
		src, dst := util.NormalizePath(r.Source), util.NormalizePath(r.Destination)
		if util.IsSameOrChild(src, dst) || util.IsSameOrChild(dst, src) {
			return r, preconditionf("source %s and destination %s must not be nested", r.Source, r.Destination)
		}
	case FileMode:
		if !srcInfo.Mode().IsRegular() {
			return r, preconditionf("source %s is not a regular file", r.Source)
		}
	}

	if dstInfo, err := fsys.Stat(r.Destination); err == nil && !dstInfo.IsDir() {
		return r, preconditionf("destination %s exists but is not a directory", r.Destination)
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return r, preconditionf("cannot stat destination %s: %v", r.Destination, err)
	}
	return r, nil
}

// String renders the request for logs.
func (r SyncRequest) String() string {
	return fmt.Sprintf("%s %s -> %s (mirror=%t dry-run=%t strong-hash=%t)",
		r.Mode, r.Source, r.Destination, r.Mirror, r.DryRun, r.StrongHash)
}
