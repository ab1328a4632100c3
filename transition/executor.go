// Package transition drives multi-step start/stop actions for one
// notebook at a time, reporting step progress to the UI and forcing a
// reconciliation refresh once the outcome is server-confirmed.
package transition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/duckpond-io/pondctl/api"
)

// Kind distinguishes the two state machines.
type Kind int

const (
	KindStart Kind = iota
	KindStop
)

func (k Kind) String() string {
	if k == KindStop {
		return "stop"
	}
	return "start"
}

// StepState is the lifecycle of one step.
type StepState int

const (
	StepPending StepState = iota
	StepActive
	StepDone
	StepFailed
)

// Step is one entry on the progress rail.
type Step struct {
	Name  string
	State StepState
}

// Snapshot is an immutable view of one transition, emitted on every step
// change. Keyed by notebook id; transitions for different ids are
// independent.
type Snapshot struct {
	Kind       Kind
	NotebookID string
	SessionID  string
	Steps      []Step
	Cursor     int
	Done       bool
	Err        error
}

// Failed reports whether the transition ended in error.
func (s Snapshot) Failed() bool { return s.Err != nil }

// ErrActive reports a second start/stop for an id that already has a
// transition in flight.
var ErrActive = errors.New("transition already in flight")

// ErrMissingSession reports a stop for a notebook with no matched session.
var ErrMissingSession = errors.New("no session to stop")

// SessionAPI is the narrow client surface the executor drives.
type SessionAPI interface {
	CreateSession(ctx context.Context, notebookPath string) (*api.CreateSessionResponse, error)
	GetSession(ctx context.Context, sessionID string) (*api.Session, error)
	TerminateSession(ctx context.Context, sessionID string) error
}

// Executor runs transitions. Start's later steps advance on observed
// session status rather than guessed timings: the executor polls the
// session until it reports running (or the step times out).
type Executor struct {
	client       SessionAPI
	logger       *slog.Logger
	pollInterval time.Duration
	stepTimeout  time.Duration

	onUpdate func(Snapshot)
	onDone   func(notebookID string)

	mu     sync.Mutex
	active map[string]struct{}
}

// Option configures an Executor.
type Option func(*Executor)

// WithPollInterval sets the session status poll period.
func WithPollInterval(d time.Duration) Option {
	return func(e *Executor) { e.pollInterval = d }
}

// WithStepTimeout bounds how long a polling step may wait.
func WithStepTimeout(d time.Duration) Option {
	return func(e *Executor) { e.stepTimeout = d }
}

// WithUpdateFunc registers the progress callback.
func WithUpdateFunc(fn func(Snapshot)) Option {
	return func(e *Executor) { e.onUpdate = fn }
}

// WithDoneFunc registers the terminal callback, fired on success and
// failure alike; the shell uses it to trigger a silent reconcile refresh.
func WithDoneFunc(fn func(notebookID string)) Option {
	return func(e *Executor) { e.onDone = fn }
}

// NewExecutor builds an executor over client.
func NewExecutor(client SessionAPI, logger *slog.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		client:       client,
		logger:       logger,
		pollInterval: time.Second,
		stepTimeout:  45 * time.Second,
		active:       make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start runs the start machine for notebookID, blocking until a terminal
// state. Call it from its own goroutine; progress arrives via the update
// callback.
func (e *Executor) Start(ctx context.Context, notebookID string) error {
	if err := e.claim(notebookID); err != nil {
		return err
	}
	defer e.release(notebookID)

	snap := Snapshot{
		Kind:       KindStart,
		NotebookID: notebookID,
		Steps: []Step{
			{Name: "Create session"},
			{Name: "Container starting"},
			{Name: "Waiting for readiness"},
		},
	}

	return e.run(ctx, snap, []stepFunc{
		func(ctx context.Context, snap *Snapshot) error {
			resp, err := e.client.CreateSession(ctx, notebookID)
			if err != nil {
				return err
			}
			snap.SessionID = resp.SessionID
			return nil
		},
		func(ctx context.Context, snap *Snapshot) error {
			// Session visible and past creation.
			return e.pollUntil(ctx, snap.SessionID, func(s *api.Session) (bool, error) {
				if s == nil {
					return false, fmt.Errorf("session %s disappeared", snap.SessionID)
				}
				return s.Status != "", nil
			})
		},
		func(ctx context.Context, snap *Snapshot) error {
			return e.pollUntil(ctx, snap.SessionID, func(s *api.Session) (bool, error) {
				if s == nil {
					return false, fmt.Errorf("session %s disappeared", snap.SessionID)
				}
				switch s.Status {
				case api.StatusCrashed, api.StatusStopped, api.StatusUnhealthy:
					// Terminal without ever running; surface it now
					// instead of waiting out the timeout.
					return false, fmt.Errorf("session %s entered %s", snap.SessionID, s.Status)
				}
				return s.Status == api.StatusRunning, nil
			})
		},
	})
}

// Stop runs the stop machine. sessionID must come from the merged view;
// a notebook without one cannot be stopped.
func (e *Executor) Stop(ctx context.Context, notebookID, sessionID string) error {
	if sessionID == "" {
		return ErrMissingSession
	}
	if err := e.claim(notebookID); err != nil {
		return err
	}
	defer e.release(notebookID)

	snap := Snapshot{
		Kind:       KindStop,
		NotebookID: notebookID,
		SessionID:  sessionID,
		Steps: []Step{
			{Name: "Terminate session"},
			{Name: "Draining"},
		},
	}

	return e.run(ctx, snap, []stepFunc{
		func(ctx context.Context, snap *Snapshot) error {
			return e.client.TerminateSession(ctx, snap.SessionID)
		},
		func(ctx context.Context, snap *Snapshot) error {
			return e.pollUntil(ctx, snap.SessionID, func(s *api.Session) (bool, error) {
				return s == nil || s.Status == api.StatusStopped, nil
			})
		},
	})
}

type stepFunc func(ctx context.Context, snap *Snapshot) error

func (e *Executor) run(ctx context.Context, snap Snapshot, steps []stepFunc) error {
	defer func() {
		if e.onDone != nil {
			e.onDone(snap.NotebookID)
		}
	}()

	for i, step := range steps {
		snap.Cursor = i
		snap.Steps[i].State = StepActive
		e.emit(snap)

		if err := step(ctx, &snap); err != nil {
			snap.Steps[i].State = StepFailed
			snap.Err = err
			snap.Done = true
			e.emit(snap)
			e.logger.Warn("transition failed",
				"kind", snap.Kind.String(), "notebook", snap.NotebookID, "step", snap.Steps[i].Name, "error", err)
			return err
		}
		snap.Steps[i].State = StepDone
		e.emit(snap)
	}

	snap.Done = true
	e.emit(snap)
	return nil
}

// pollUntil polls the session until ok accepts it. A 404 is delivered to
// ok as nil (the session is gone). The step fails on timeout, on a fetch
// error, or when ok rejects the state outright.
func (e *Executor) pollUntil(ctx context.Context, sessionID string, ok func(*api.Session) (bool, error)) error {
	deadline := time.NewTimer(e.stepTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(e.pollInterval)
	defer tick.Stop()

	for {
		s, err := e.client.GetSession(ctx, sessionID)
		switch {
		case errors.Is(err, api.ErrNotFound):
			s = nil
		case err != nil:
			return err
		}
		done, err := ok(s)
		if err != nil {
			return err
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return fmt.Errorf("session %s not ready after %s", sessionID, e.stepTimeout)
		case <-tick.C:
		}
	}
}

func (e *Executor) emit(snap Snapshot) {
	if e.onUpdate == nil {
		return
	}
	// Copy the steps so the UI never shares the mutating slice.
	steps := make([]Step, len(snap.Steps))
	copy(steps, snap.Steps)
	snap.Steps = steps
	e.onUpdate(snap)
}

func (e *Executor) claim(notebookID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, busy := e.active[notebookID]; busy {
		return fmt.Errorf("%w: %s", ErrActive, notebookID)
	}
	e.active[notebookID] = struct{}{}
	return nil
}

func (e *Executor) release(notebookID string) {
	e.mu.Lock()
	delete(e.active, notebookID)
	e.mu.Unlock()
}

// InFlight reports whether notebookID has an active transition.
func (e *Executor) InFlight(notebookID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, busy := e.active[notebookID]
	return busy
}
