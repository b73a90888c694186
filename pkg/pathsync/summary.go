package pathsync

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
)

// Summary reports what a run did, or in dry-run would have done.
type Summary struct {
	RunID  string
	DryRun bool

	DirsCreated      int64
	FilesCopied      int64
	FilesRenamed     int64
	DirsRenamed      int64
	CrossVolumeMoves int64
	PathsDeleted     int64
	EntriesIgnored   int64
	FilesUpToDate    int64
	EntriesSkipped   int64
	BytesCopied      int64
	BytesHashed      int64

	// Errors counts every action that failed. CopyErrors is the subset
	// raised by copy workers.
	Errors     int
	CopyErrors int
	FirstError error

	Duration time.Duration
}

// Changes returns the number of mutating actions performed.
func (s Summary) Changes() int64 {
	return s.DirsCreated + s.FilesCopied + s.FilesRenamed + s.DirsRenamed + s.PathsDeleted
}

// Err returns nil when every action succeeded, otherwise an error wrapping
// ErrSyncIncomplete and the first failure.
func (s Summary) Err() error {
	if s.Errors == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d action(s) failed, first error: %w", ErrSyncIncomplete, s.Errors, s.FirstError)
}

// Log writes the final summary line.
func (s Summary) Log() {
	msg := "Sync finished"
	if s.DryRun {
		msg = "[DRY RUN] Sync finished"
	}
	args := []any{
		"run_id", s.RunID,
		"dirs_created", s.DirsCreated,
		"files_copied", s.FilesCopied,
		"files_renamed", s.FilesRenamed,
		"dirs_renamed", s.DirsRenamed,
		"paths_deleted", s.PathsDeleted,
		"files_uptodate", s.FilesUpToDate,
		"entries_ignored", s.EntriesIgnored,
		"bytes_copied", humanize.IBytes(uint64(s.BytesCopied)),
		"bytes_hashed", humanize.IBytes(uint64(s.BytesHashed)),
		"duration", s.Duration.Round(time.Millisecond),
	}
	if s.CrossVolumeMoves > 0 {
		args = append(args, "cross_volume_moves", s.CrossVolumeMoves)
	}
	if s.EntriesSkipped > 0 {
		args = append(args, "entries_skipped", s.EntriesSkipped)
	}
	if s.Errors > 0 {
		args = append(args, "errors", s.Errors)
		plog.Warn(msg, args...)
		return
	}
	plog.Change(msg, args...)
}

func (m *SyncMetrics) snapshot() Summary {
	return Summary{
		DirsCreated:      m.DirsCreated.Load(),
		FilesCopied:      m.FilesCopied.Load(),
		FilesRenamed:     m.FilesRenamed.Load(),
		DirsRenamed:      m.DirsRenamed.Load(),
		CrossVolumeMoves: m.CrossVolumeMoves.Load(),
		PathsDeleted:     m.PathsDeleted.Load(),
		EntriesIgnored:   m.EntriesIgnored.Load(),
		FilesUpToDate:    m.FilesUpToDate.Load(),
		EntriesSkipped:   m.EntriesSkipped.Load(),
		BytesCopied:      m.BytesCopied.Load(),
	}
}
