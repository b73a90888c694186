package pathsync_test

import (
	"bytes"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/paulschiretz/pgl-sync/pkg/pathsync"
	"github.com/paulschiretz/pgl-sync/pkg/plog"
)

func TestSyncMetrics_Adders(t *testing.T) {
	t.Run("correctly increments all counters", func(t *testing.T) {
		m := &pathsync.SyncMetrics{}

		m.AddFilesCopied(5)
		m.AddPathsDeleted(3)
		m.AddEntriesIgnored(2)
		m.AddFilesUpToDate(10)
		m.AddBytesCopied(1024)
		m.AddDirsCreated(4)
		m.AddDirsRenamed(1)
		m.AddFilesRenamed(6)
		m.AddCrossVolumeMoves(1)

		if got := m.FilesCopied.Load(); got != 5 {
			t.Errorf("expected FilesCopied to be 5, got %d", got)
		}
		if got := m.PathsDeleted.Load(); got != 3 {
			t.Errorf("expected PathsDeleted to be 3, got %d", got)
		}
		if got := m.EntriesIgnored.Load(); got != 2 {
			t.Errorf("expected EntriesIgnored to be 2, got %d", got)
		}
		if got := m.FilesUpToDate.Load(); got != 10 {
			t.Errorf("expected FilesUpToDate to be 10, got %d", got)
		}
		if got := m.BytesCopied.Load(); got != 1024 {
			t.Errorf("expected BytesCopied to be 1024, got %d", got)
		}
		if got := m.DirsCreated.Load(); got != 4 {
			t.Errorf("expected DirsCreated to be 4, got %d", got)
		}
		if got := m.DirsRenamed.Load(); got != 1 {
			t.Errorf("expected DirsRenamed to be 1, got %d", got)
		}
		if got := m.FilesRenamed.Load(); got != 6 {
			t.Errorf("expected FilesRenamed to be 6, got %d", got)
		}
		if got := m.CrossVolumeMoves.Load(); got != 1 {
			t.Errorf("expected CrossVolumeMoves to be 1, got %d", got)
		}
	})
}

func TestSyncMetrics_Log(t *testing.T) {
	t.Run("logs the correct summary values", func(t *testing.T) {
		var logBuf bytes.Buffer
		plog.SetOutput(&logBuf)
		oldLevel := plog.GetLevel()
		plog.SetLevel(plog.LevelInfo)
		t.Cleanup(func() {
			plog.SetLevel(oldLevel)
			plog.SetOutput(os.Stderr)
		})

		m := &pathsync.SyncMetrics{}
		m.AddFilesCopied(10)
		m.AddFilesUpToDate(20)
		m.AddBytesCopied(500)
		m.StartProgress("Test", time.Hour) // Initialize startTime
		m.StopProgress()                   // Stop immediately to avoid leaks
		m.LogSummary("Test Summary")

		output := logBuf.String()
		for _, want := range []string{
			`msg="Test Summary"`,
			"files_copied=10",
			`bytes_copied="500 B"`,
			"files_uptodate=20",
			"paths_deleted=0",
			"duration=",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected log output to contain %q, but it didn't. Got: %s", want, output)
			}
		}
	})
}

func TestSummary_Err(t *testing.T) {
	if err := (pathsync.Summary{}).Err(); err != nil {
		t.Errorf("expected nil error for a clean summary, got %v", err)
	}

	s := pathsync.Summary{Errors: 2, FirstError: os.ErrPermission}
	err := s.Err()
	if err == nil {
		t.Fatal("expected an error for a summary with failures")
	}
	if !strings.Contains(err.Error(), "2 action(s) failed") {
		t.Errorf("expected the failure count in the error, got %v", err)
	}
	if !errors.Is(err, pathsync.ErrSyncIncomplete) || !errors.Is(err, os.ErrPermission) {
		t.Errorf("expected error to wrap ErrSyncIncomplete and the first error, got %v", err)
	}
}
