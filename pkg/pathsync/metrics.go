package pathsync

import (
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
)

// Metrics defines the interface for collecting and reporting synchronization statistics.
type Metrics interface {
	AddDirsCreated(n int64)
	AddFilesCopied(n int64)
	AddFilesRenamed(n int64)
	AddDirsRenamed(n int64)
	AddCrossVolumeMoves(n int64)
	AddPathsDeleted(n int64)
	AddEntriesIgnored(n int64)
	AddFilesUpToDate(n int64)
	AddEntriesSkipped(n int64)
	AddBytesCopied(n int64)
	AddEntriesProcessed(n int64)
	LogSummary(msg string)

	StartProgress(msg string, interval time.Duration)
	StopProgress()
}

// SyncMetrics holds the atomic counters for tracking the sync operation's progress.
// It is the concrete implementation of the Metrics interface.
type SyncMetrics struct {
	DirsCreated      atomic.Int64
	FilesCopied      atomic.Int64
	FilesRenamed     atomic.Int64
	DirsRenamed      atomic.Int64
	CrossVolumeMoves atomic.Int64
	PathsDeleted     atomic.Int64
	EntriesIgnored   atomic.Int64
	FilesUpToDate    atomic.Int64
	EntriesSkipped   atomic.Int64
	BytesCopied      atomic.Int64
	EntriesProcessed atomic.Int64

	stopChan  chan struct{}
	startTime time.Time
}

func (m *SyncMetrics) AddDirsCreated(n int64)      { m.DirsCreated.Add(n) }
func (m *SyncMetrics) AddFilesCopied(n int64)      { m.FilesCopied.Add(n) }
func (m *SyncMetrics) AddFilesRenamed(n int64)     { m.FilesRenamed.Add(n) }
func (m *SyncMetrics) AddDirsRenamed(n int64)      { m.DirsRenamed.Add(n) }
func (m *SyncMetrics) AddCrossVolumeMoves(n int64) { m.CrossVolumeMoves.Add(n) }
func (m *SyncMetrics) AddPathsDeleted(n int64)     { m.PathsDeleted.Add(n) }
func (m *SyncMetrics) AddEntriesIgnored(n int64)   { m.EntriesIgnored.Add(n) }
func (m *SyncMetrics) AddFilesUpToDate(n int64)    { m.FilesUpToDate.Add(n) }
func (m *SyncMetrics) AddEntriesSkipped(n int64)   { m.EntriesSkipped.Add(n) }
func (m *SyncMetrics) AddBytesCopied(n int64)      { m.BytesCopied.Add(n) }
func (m *SyncMetrics) AddEntriesProcessed(n int64) { m.EntriesProcessed.Add(n) }

func (m *SyncMetrics) StartProgress(msg string, interval time.Duration) {
	m.startTime = time.Now()
	m.stopChan = make(chan struct{})
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.LogSummary(msg)
			case <-m.stopChan:
				return
			}
		}
	}()
}

func (m *SyncMetrics) StopProgress() {
	if m.stopChan != nil {
		close(m.stopChan)
		m.stopChan = nil
	}
}

// LogSummary prints the current counters with a custom message.
// It is called by the progress ticker and can be called at any time.
func (m *SyncMetrics) LogSummary(msg string) {
	duration := time.Duration(0)
	if !m.startTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	plog.Info(msg,
		"entries_processed", m.EntriesProcessed.Load(),
		"bytes_copied", humanize.IBytes(uint64(m.BytesCopied.Load())),
		"files_copied", m.FilesCopied.Load(),
		"files_uptodate", m.FilesUpToDate.Load(),
		"files_renamed", m.FilesRenamed.Load(),
		"dirs_renamed", m.DirsRenamed.Load(),
		"dirs_created", m.DirsCreated.Load(),
		"paths_deleted", m.PathsDeleted.Load(),
		"entries_ignored", m.EntriesIgnored.Load(),
		"duration", duration.Round(time.Millisecond),
	)
}

// Statically assert that our types implement the interface.
var _ Metrics = (*SyncMetrics)(nil)
