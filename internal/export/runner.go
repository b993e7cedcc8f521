// Package export runs bulk bakes as cancellable background jobs.
//
// A job is a fixed list of tasks, each producing one artifact. Tasks run
// in chunks; inside a chunk at most Workers tasks run at once. Progress is
// published after every finished task and cancellation is checked between
// tasks. Finished jobs stay queryable until they are older than the TTL.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/models"
	"github.com/starford/gridsplit/internal/sse"
)

// State is the lifecycle position of a job.
type State string

const (
	Running   State = "running"
	Completed State = "completed"
	Failed    State = "failed"
	Cancelled State = "cancelled"
)

// Finished reports whether s is terminal.
func (s State) Finished() bool {
	return s != Running
}

// Task produces one artifact.
type Task func(ctx context.Context) (models.Artifact, error)

// Spec describes a job to start.
type Spec struct {
	SessionID   string
	Mode        string
	ArchiveName string
	Tasks       []Task
}

// Status is a snapshot of a job.
type Status struct {
	ID          string            `json:"id"`
	SessionID   string            `json:"session_id"`
	Mode        string            `json:"mode"`
	State       State             `json:"state"`
	Total       int               `json:"total"`
	Done        int               `json:"done"`
	Error       string            `json:"error,omitempty"`
	ArchiveName string            `json:"archive_name"`
	Artifacts   []models.Artifact `json:"artifacts,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	FinishedAt  *time.Time        `json:"finished_at,omitempty"`
}

// Publisher receives job events.
type Publisher interface {
	Publish(sse.Event)
}

// Options configures a Runner.
type Options struct {
	Workers   int
	ChunkSize int
	JobTTL    time.Duration
}

type job struct {
	status Status
	cancel context.CancelFunc
}

// Runner owns the jobs.
type Runner struct {
	opts   Options
	pub    Publisher
	logger *slog.Logger

	mu   sync.Mutex
	jobs map[string]*job
	wg   sync.WaitGroup
	now  func() time.Time
}

// NewRunner returns a runner. pub may be nil.
func NewRunner(opts Options, pub Publisher, logger *slog.Logger) *Runner {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.ChunkSize < 1 {
		opts.ChunkSize = 8
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = 15 * time.Minute
	}
	return &Runner{opts: opts, pub: pub, logger: logger, jobs: map[string]*job{}, now: time.Now}
}

// Start launches spec in the background and returns its initial status.
// The job keeps running after ctx returns; cancel it with Cancel or Close.
func (r *Runner) Start(spec Spec) (Status, error) {
	if len(spec.Tasks) == 0 {
		return Status{}, apperr.ErrEmptyExport
	}
	ctx, cancel := context.WithCancel(context.Background())
	j := &job{
		status: Status{
			ID:          uuid.NewString(),
			SessionID:   spec.SessionID,
			Mode:        spec.Mode,
			State:       Running,
			Total:       len(spec.Tasks),
			ArchiveName: spec.ArchiveName,
			CreatedAt:   r.now(),
		},
		cancel: cancel,
	}

	r.mu.Lock()
	r.jobs[j.status.ID] = j
	snapshot := j.status
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.run(ctx, j, spec.Tasks)
	}()

	r.logger.Info("export: started", slog.String("job", snapshot.ID), slog.String("session", spec.SessionID), slog.Int("tasks", snapshot.Total))
	return snapshot, nil
}

func (r *Runner) run(ctx context.Context, j *job, tasks []Task) {
	artifacts := make([]models.Artifact, len(tasks))
	var err error
	for start := 0; start < len(tasks) && err == nil; start += r.opts.ChunkSize {
		if err = ctx.Err(); err != nil {
			break
		}
		end := min(start+r.opts.ChunkSize, len(tasks))
		err = r.runChunk(ctx, j, tasks, artifacts, start, end)
	}
	r.finish(j, artifacts, err)
}

func (r *Runner) runChunk(ctx context.Context, j *job, tasks []Task, out []models.Artifact, start, end int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Workers)
	for i := start; i < end; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := tasks[i](gctx)
			if err != nil {
				return fmt.Errorf("task %d: %w", i+1, err)
			}
			out[i] = a
			r.progress(j)
			return nil
		})
	}
	return g.Wait()
}

func (r *Runner) progress(j *job) {
	r.mu.Lock()
	j.status.Done++
	payload := map[string]any{"id": j.status.ID, "done": j.status.Done, "total": j.status.Total}
	session := j.status.SessionID
	r.mu.Unlock()
	r.publish(sse.ExportProgress, session, payload)
}

func (r *Runner) finish(j *job, artifacts []models.Artifact, err error) {
	now := r.now()
	r.mu.Lock()
	j.status.FinishedAt = &now
	switch {
	case err == nil:
		j.status.State = Completed
		j.status.Artifacts = artifacts
	case errors.Is(err, context.Canceled):
		j.status.State = Cancelled
	default:
		j.status.State = Failed
		j.status.Error = err.Error()
	}
	st := j.status
	r.mu.Unlock()

	event := map[string]any{"id": st.ID, "session_id": st.SessionID, "done": st.Done, "total": st.Total}
	switch st.State {
	case Completed:
		r.logger.Info("export: completed", slog.String("job", st.ID), slog.Int("artifacts", len(artifacts)))
		r.publish(sse.ExportCompleted, st.SessionID, event)
	case Cancelled:
		r.logger.Info("export: cancelled", slog.String("job", st.ID), slog.Int("done", st.Done))
		r.publish(sse.ExportCancelled, st.SessionID, event)
	default:
		event["error"] = st.Error
		r.logger.Warn("export: failed", slog.String("job", st.ID), slog.String("error", st.Error))
		r.publish(sse.ExportFailed, st.SessionID, event)
	}
}

func (r *Runner) publish(kind, session string, data any) {
	if r.pub != nil {
		r.pub.Publish(sse.Event{Type: kind, Data: data, Session: session})
	}
}

// Get returns a snapshot of job id.
func (r *Runner) Get(id string) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return Status{}, fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	st := j.status
	st.Artifacts = append([]models.Artifact(nil), j.status.Artifacts...)
	return st, nil
}

// Artifacts returns the artifacts of a completed job. Jobs that have not
// completed yield apperr.ErrConflict.
func (r *Runner) Artifacts(id string) ([]models.Artifact, string, error) {
	st, err := r.Get(id)
	if err != nil {
		return nil, "", err
	}
	if st.State != Completed {
		return nil, "", fmt.Errorf("job %s is %s: %w", id, st.State, apperr.ErrConflict)
	}
	return st.Artifacts, st.ArchiveName, nil
}

// Wait blocks until job id finishes or ctx is done and returns its status.
func (r *Runner) Wait(ctx context.Context, id string) (Status, error) {
	t := time.NewTicker(10 * time.Millisecond)
	defer t.Stop()
	for {
		st, err := r.Get(id)
		if err != nil || st.State.Finished() {
			return st, err
		}
		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-t.C:
		}
	}
}

// Cancel stops a running job. Cancelling a finished job is a no-op.
func (r *Runner) Cancel(id string) error {
	r.mu.Lock()
	j, ok := r.jobs[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s: %w", id, apperr.ErrNotFound)
	}
	j.cancel()
	return nil
}

// CancelSession stops every running job of a session.
func (r *Runner) CancelSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.status.SessionID == sessionID && !j.status.State.Finished() {
			j.cancel()
		}
	}
}

// Sweep evicts finished jobs older than the TTL and returns how many went.
func (r *Runner) Sweep() int {
	cutoff := r.now().Add(-r.opts.JobTTL)
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, j := range r.jobs {
		if j.status.FinishedAt != nil && j.status.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
			n++
		}
	}
	return n
}

// Run sweeps expired jobs periodically until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	t := time.NewTicker(max(r.opts.JobTTL/4, time.Second))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("export: swept jobs", slog.Int("count", n))
			}
		}
	}
}

// Close cancels every job and waits for them to stop.
func (r *Runner) Close() {
	r.mu.Lock()
	for _, j := range r.jobs {
		j.cancel()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
