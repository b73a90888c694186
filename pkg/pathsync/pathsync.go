// Package pathsync makes a destination tree reflect a source tree.
//
// A run walks the source once, in lexicographic order, and emits one Action
// per decision: create a directory, copy a file, move an existing
// destination file or directory into place, delete, skip. With strong
// hashing, files and directories that were renamed on the source side are
// detected by content and renamed at the destination instead of copied
// again. Destination paths the planner has decided about are reserved so no
// later decision, and no mirror deletion, can touch them.
//
// Copies run on a bounded worker pool; every other action is applied in the
// order it was emitted. In dry-run nothing is written and the planner reasons
// about the destination as it would look after the actions it has emitted.
package pathsync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/paulschiretz/pgl-sync/pkg/plog"
	"github.com/paulschiretz/pgl-sync/pkg/pool"
)

// PathSyncer runs sync requests against a filesystem.
type PathSyncer struct {
	fs      afero.Fs
	buffers *pool.Buffers
}

// NewPathSyncer creates a PathSyncer. A nil fs means the OS filesystem.
func NewPathSyncer(fsys afero.Fs) *PathSyncer {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &PathSyncer{fs: fsys, buffers: pool.New(64*1024, copyBufferSize)}
}

// Plan computes the actions for req without applying any of them.
func (s *PathSyncer) Plan(ctx context.Context, req SyncRequest) (*Plan, error) {
	req, err := req.prepare(s.fs)
	if err != nil {
		return nil, err
	}
	p, err := newPlanner(s.fs, req, s.buffers, nil)
	if err != nil {
		return nil, err
	}
	if err := p.run(ctx); err != nil {
		return nil, err
	}
	return &Plan{Request: req, RunID: uuid.NewString(), Actions: p.actions}, nil
}

// Execute applies a plan produced by Plan. When the plan's request is a
// dry-run the actions are only logged.
func (s *PathSyncer) Execute(ctx context.Context, plan *Plan) (Summary, error) {
	start := time.Now()
	exec := newExecutor(s.fs, plan.Request, s.buffers)
	stop := s.startProgress(exec, plan.Request)
	defer stop()

	var ctxErr error
	for _, a := range plan.Actions {
		if ctxErr = ctx.Err(); ctxErr != nil {
			break
		}
		exec.apply(ctx, a)
	}
	exec.wait()

	sum := exec.summary()
	sum.RunID = plan.RunID
	sum.Duration = time.Since(start)
	return s.finish(ctx, sum, ctxErr)
}

// Run plans req and applies each action as soon as it is decided.
func (s *PathSyncer) Run(ctx context.Context, req SyncRequest) (Summary, error) {
	start := time.Now()
	req, err := req.prepare(s.fs)
	if err != nil {
		return Summary{}, err
	}

	runID := uuid.NewString()
	plog.Info("Starting sync", "run_id", runID, "request", req.String())

	exec := newExecutor(s.fs, req, s.buffers)
	p, err := newPlanner(s.fs, req, s.buffers, exec)
	if err != nil {
		return Summary{}, err
	}
	stop := s.startProgress(exec, req)
	defer stop()

	planErr := p.run(ctx)
	exec.wait()

	sum := exec.summary()
	sum.RunID = runID
	sum.BytesHashed = p.hasher.BytesRead()
	sum.Duration = time.Since(start)
	return s.finish(ctx, sum, planErr)
}

func (s *PathSyncer) startProgress(exec *executor, req SyncRequest) func() {
	if req.ProgressInterval <= 0 {
		return func() {}
	}
	exec.metrics.StartProgress("Sync progress", req.ProgressInterval)
	return exec.metrics.StopProgress
}

func (s *PathSyncer) finish(ctx context.Context, sum Summary, runErr error) (Summary, error) {
	if runErr != nil {
		if ctx.Err() != nil {
			plog.Warn("Sync canceled", "run_id", sum.RunID, "after", sum.Duration.Round(time.Millisecond))
		}
		return sum, fmt.Errorf("sync aborted: %w", runErr)
	}
	if sum.DryRun && sum.Changes() == 0 && sum.Errors == 0 {
		plog.Change("[DRY RUN] Destination is already in sync")
	}
	sum.Log()
	return sum, sum.Err()
}
