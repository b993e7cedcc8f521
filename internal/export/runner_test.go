package export

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/gridsplit/internal/apperr"
	"github.com/starford/gridsplit/internal/models"
	"github.com/starford/gridsplit/internal/sse"
)

type recorder struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recorder) Publish(e sse.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == kind {
			n++
		}
	}
	return n
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func artifactTask(i int) Task {
	return func(context.Context) (models.Artifact, error) {
		return models.NewArtifact(fmt.Sprintf("split_%d.png", i+1), "image/png", []byte{byte(i)}), nil
	}
}

func wait(t *testing.T, r *Runner, id string) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := r.Wait(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestRunnerCompletesInOrder(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(Options{Workers: 3, ChunkSize: 4}, rec, testLogger())
	defer r.Close()

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = artifactTask(i)
	}
	st, err := r.Start(Spec{SessionID: "s1", Mode: "split", ArchiveName: SplitArchive, Tasks: tasks})
	if err != nil {
		t.Fatal(err)
	}
	if st.State != Running || st.Total != 10 {
		t.Fatalf("initial status = %+v", st)
	}

	st = wait(t, r, st.ID)
	if st.State != Completed || st.Done != 10 || len(st.Artifacts) != 10 {
		t.Fatalf("final status = %+v", st)
	}
	for i, a := range st.Artifacts {
		if a.Name != fmt.Sprintf("split_%d.png", i+1) {
			t.Fatalf("artifact %d = %s", i, a.Name)
		}
	}
	if rec.count(sse.ExportProgress) != 10 || rec.count(sse.ExportCompleted) != 1 {
		t.Fatalf("events: progress=%d completed=%d", rec.count(sse.ExportProgress), rec.count(sse.ExportCompleted))
	}
}

func TestRunnerRespectsWorkerLimit(t *testing.T) {
	r := NewRunner(Options{Workers: 2, ChunkSize: 10}, nil, testLogger())
	defer r.Close()

	var running, peak atomic.Int32
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (models.Artifact, error) {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return models.Artifact{Name: "x"}, nil
		}
	}
	st, _ := r.Start(Spec{Tasks: tasks})
	wait(t, r, st.ID)
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d", peak.Load())
	}
}

func TestRunnerCancel(t *testing.T) {
	rec := &recorder{}
	r := NewRunner(Options{Workers: 1, ChunkSize: 1}, rec, testLogger())
	defer r.Close()

	// Every task blocks until the job is cancelled.
	tasks := make([]Task, 5)
	for i := range tasks {
		tasks[i] = func(ctx context.Context) (models.Artifact, error) {
			<-ctx.Done()
			return models.Artifact{}, ctx.Err()
		}
	}
	st, _ := r.Start(Spec{SessionID: "s", Tasks: tasks})
	if err := r.Cancel(st.ID); err != nil {
		t.Fatal(err)
	}

	st = wait(t, r, st.ID)
	if st.State != Cancelled || st.Done != 0 {
		t.Fatalf("status = %+v", st)
	}
	if _, _, err := r.Artifacts(st.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("artifacts err = %v", err)
	}
	if rec.count(sse.ExportCancelled) != 1 {
		t.Fatal("missing cancelled event")
	}
}

func TestRunnerFailure(t *testing.T) {
	r := NewRunner(Options{Workers: 2, ChunkSize: 2}, nil, testLogger())
	defer r.Close()

	boom := errors.New("boom")
	tasks := []Task{
		artifactTask(0),
		func(context.Context) (models.Artifact, error) { return models.Artifact{}, boom },
		artifactTask(2),
	}
	st, _ := r.Start(Spec{Tasks: tasks})
	st = wait(t, r, st.ID)
	if st.State != Failed || st.Error == "" {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunnerEmptyAndUnknown(t *testing.T) {
	r := NewRunner(Options{}, nil, testLogger())
	defer r.Close()
	if _, err := r.Start(Spec{}); !errors.Is(err, apperr.ErrEmptyExport) {
		t.Fatalf("empty start err = %v", err)
	}
	if _, err := r.Get("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get err = %v", err)
	}
	if err := r.Cancel("nope"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("cancel err = %v", err)
	}
}

func TestRunnerSweep(t *testing.T) {
	r := NewRunner(Options{JobTTL: time.Minute}, nil, testLogger())
	defer r.Close()

	st, _ := r.Start(Spec{Tasks: []Task{artifactTask(0)}})
	wait(t, r, st.ID)
	if r.Sweep() != 0 {
		t.Fatal("fresh job swept")
	}
	r.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	if r.Sweep() != 1 {
		t.Fatal("expired job kept")
	}
	if _, err := r.Get(st.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get after sweep err = %v", err)
	}
}

func TestWriteZip(t *testing.T) {
	arts := []models.Artifact{
		models.NewArtifact("split_1.jpg", "image/jpeg", []byte("one")),
		models.NewArtifact("split_2.jpg", "image/jpeg", []byte("two")),
	}
	var buf bytes.Buffer
	if err := WriteZip(&buf, arts); err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 2 || zr.File[1].Name != "split_2.jpg" {
		t.Fatalf("entries = %v", zr.File)
	}
	rc, _ := zr.File[0].Open()
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "one" {
		t.Fatalf("content = %q", data)
	}
	if a, ok := Find(arts, "split_2.jpg"); !ok || string(a.Data) != "two" {
		t.Fatal("find failed")
	}
}
