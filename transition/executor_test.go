package transition

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/duckpond-io/pondctl/api"
)

type fakeSessions struct {
	mu       sync.Mutex
	statuses []string
	idx      int

	createErr    error
	terminateErr error
	terminated   []string
}

func (f *fakeSessions) CreateSession(ctx context.Context, notebookPath string) (*api.CreateSessionResponse, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &api.CreateSessionResponse{SessionID: "sess-1", NotebookPath: notebookPath, Status: api.StatusStarting}, nil
}

func (f *fakeSessions) GetSession(ctx context.Context, sessionID string) (*api.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.statuses) {
		f.idx = len(f.statuses) - 1
	}
	status := f.statuses[f.idx]
	f.idx++
	if status == "gone" {
		return nil, &api.Error{Status: 404, Detail: "session not found"}
	}
	return &api.Session{SessionID: sessionID, Status: status}, nil
}

func (f *fakeSessions) TerminateSession(ctx context.Context, sessionID string) error {
	if f.terminateErr != nil {
		return f.terminateErr
	}
	f.mu.Lock()
	f.terminated = append(f.terminated, sessionID)
	f.mu.Unlock()
	return nil
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
	done  []string
}

func (r *recorder) update(s Snapshot) {
	r.mu.Lock()
	r.snaps = append(r.snaps, s)
	r.mu.Unlock()
}

func (r *recorder) finished(id string) {
	r.mu.Lock()
	r.done = append(r.done, id)
	r.mu.Unlock()
}

func (r *recorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snaps[len(r.snaps)-1]
}

func newTestExecutor(t *testing.T, fake *fakeSessions, rec *recorder) *Executor {
	t.Helper()
	return NewExecutor(fake, slog.New(slog.DiscardHandler),
		WithPollInterval(time.Millisecond),
		WithStepTimeout(200*time.Millisecond),
		WithUpdateFunc(rec.update),
		WithDoneFunc(rec.finished),
	)
}

func TestStartAdvancesOnObservedStatus(t *testing.T) {
	fake := &fakeSessions{statuses: []string{api.StatusStarting, api.StatusStarting, api.StatusRunning}}
	rec := &recorder{}
	exec := newTestExecutor(t, fake, rec)

	if err := exec.Start(context.Background(), "acct/a.py"); err != nil {
		t.Fatalf("Start: %v", err)
	}

	last := rec.last()
	if !last.Done || last.Err != nil {
		t.Fatalf("final snapshot done=%v err=%v", last.Done, last.Err)
	}
	if last.SessionID != "sess-1" {
		t.Fatalf("session id = %q, want sess-1", last.SessionID)
	}
	for i, step := range last.Steps {
		if step.State != StepDone {
			t.Fatalf("step %d (%s) state = %v, want done", i, step.Name, step.State)
		}
	}
	if len(rec.done) != 1 || rec.done[0] != "acct/a.py" {
		t.Fatalf("done callbacks = %v", rec.done)
	}
}

func TestStartFailsWhenSessionCrashes(t *testing.T) {
	fake := &fakeSessions{statuses: []string{api.StatusStarting, api.StatusCrashed}}
	rec := &recorder{}
	exec := newTestExecutor(t, fake, rec)

	err := exec.Start(context.Background(), "acct/a.py")
	if err == nil {
		t.Fatal("expected failure on crashed session")
	}

	last := rec.last()
	if !last.Done || last.Err == nil {
		t.Fatalf("final snapshot done=%v err=%v", last.Done, last.Err)
	}
	if got := last.Steps[last.Cursor].State; got != StepFailed {
		t.Fatalf("failing step state = %v, want failed", got)
	}
	if len(rec.done) != 1 {
		t.Fatalf("done callback fired %d times, want 1 even on failure", len(rec.done))
	}
}

func TestStartCreateErrorFailsFirstStep(t *testing.T) {
	fake := &fakeSessions{createErr: errors.New("quota exceeded")}
	rec := &recorder{}
	exec := newTestExecutor(t, fake, rec)

	if err := exec.Start(context.Background(), "acct/a.py"); err == nil {
		t.Fatal("expected create error")
	}
	last := rec.last()
	if last.Cursor != 0 || last.Steps[0].State != StepFailed {
		t.Fatalf("cursor=%d step0=%v, want failure on step 0", last.Cursor, last.Steps[0].State)
	}
	if last.SessionID != "" {
		t.Fatalf("session id = %q, want empty when create failed", last.SessionID)
	}
}

func TestStopDrainsUntilSessionGone(t *testing.T) {
	fake := &fakeSessions{statuses: []string{api.StatusStopping, "gone"}}
	rec := &recorder{}
	exec := newTestExecutor(t, fake, rec)

	if err := exec.Stop(context.Background(), "acct/a.py", "sess-9"); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(fake.terminated) != 1 || fake.terminated[0] != "sess-9" {
		t.Fatalf("terminated = %v", fake.terminated)
	}
	last := rec.last()
	if !last.Done || last.Err != nil {
		t.Fatalf("final snapshot done=%v err=%v", last.Done, last.Err)
	}
}

func TestStopWithoutSessionRefused(t *testing.T) {
	rec := &recorder{}
	exec := newTestExecutor(t, &fakeSessions{}, rec)

	if err := exec.Stop(context.Background(), "acct/a.py", ""); !errors.Is(err, ErrMissingSession) {
		t.Fatalf("err = %v, want ErrMissingSession", err)
	}
	if len(rec.snaps) != 0 {
		t.Fatalf("refused stop emitted %d snapshots", len(rec.snaps))
	}
}

func TestConcurrentTransitionOnSameNotebookRefused(t *testing.T) {
	fake := &fakeSessions{statuses: []string{api.StatusStarting}}
	rec := &recorder{}
	exec := NewExecutor(fake, slog.New(slog.DiscardHandler),
		WithPollInterval(time.Millisecond),
		WithStepTimeout(time.Second),
		WithUpdateFunc(rec.update),
	)

	started := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		close(started)
		errc <- exec.Start(context.Background(), "acct/a.py")
	}()
	<-started
	for !exec.InFlight("acct/a.py") {
		time.Sleep(time.Millisecond)
	}

	if err := exec.Start(context.Background(), "acct/a.py"); !errors.Is(err, ErrActive) {
		t.Fatalf("second start err = %v, want ErrActive", err)
	}
	if err := exec.Stop(context.Background(), "acct/a.py", "sess-1"); !errors.Is(err, ErrActive) {
		t.Fatalf("stop during start err = %v, want ErrActive", err)
	}

	fake.mu.Lock()
	fake.statuses = []string{api.StatusRunning}
	fake.idx = 0
	fake.mu.Unlock()

	if err := <-errc; err != nil {
		t.Fatalf("first start: %v", err)
	}
	if exec.InFlight("acct/a.py") {
		t.Fatal("transition still marked in flight after completion")
	}
}

func TestStepTimeout(t *testing.T) {
	fake := &fakeSessions{statuses: []string{api.StatusStarting}}
	rec := &recorder{}
	exec := NewExecutor(fake, slog.New(slog.DiscardHandler),
		WithPollInterval(time.Millisecond),
		WithStepTimeout(20*time.Millisecond),
		WithUpdateFunc(rec.update),
	)

	err := exec.Start(context.Background(), "acct/a.py")
	if err == nil {
		t.Fatal("expected timeout waiting for readiness")
	}
	last := rec.last()
	if last.Steps[last.Cursor].State != StepFailed {
		t.Fatalf("step state = %v, want failed", last.Steps[last.Cursor].State)
	}
}

func TestSnapshotStepsAreCopies(t *testing.T) {
	fake := &fakeSessions{statuses: []string{api.StatusRunning}}
	rec := &recorder{}
	exec := newTestExecutor(t, fake, rec)

	if err := exec.Start(context.Background(), "acct/a.py"); err != nil {
		t.Fatalf("Start: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	first := rec.snaps[0]
	if first.Steps[0].State != StepActive {
		t.Fatalf("first snapshot step 0 = %v, want active (snapshots must not share backing arrays)", first.Steps[0].State)
	}
}
