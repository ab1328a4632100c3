// Package syncer mirrors a local notebook directory to the server.
// Local edits win; the server copy is overwritten on every change.
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/duckpond-io/pondctl/api"
)

// NotebookAPI is the client surface the syncer needs.
type NotebookAPI interface {
	ListNotebooks(ctx context.Context) ([]api.NotebookFile, error)
	CreateNotebook(ctx context.Context, filename, content string) (*api.NotebookFile, error)
	UpdateNotebook(ctx context.Context, filename, content string) error
	DeleteNotebook(ctx context.Context, filename string) error
}

// EventCallback is called after each applied change.
// kind is one of "uploaded", "updated", "deleted".
type EventCallback func(kind string, filename string)

// Syncer watches a flat local directory of .py notebooks and pushes
// changes to the server.
type Syncer struct {
	client   NotebookAPI
	localDir string
	logger   *slog.Logger
	cb       EventCallback
	debounce time.Duration
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithEventCallback registers cb for applied changes.
func WithEventCallback(cb EventCallback) Option {
	return func(s *Syncer) { s.cb = cb }
}

// WithDebounce sets how long a write must settle before the file is
// pushed. Editors often write a file several times in quick succession.
func WithDebounce(d time.Duration) Option {
	return func(s *Syncer) { s.debounce = d }
}

// New builds a Syncer over client for localDir.
func New(client NotebookAPI, localDir string, logger *slog.Logger, opts ...Option) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Syncer{
		client:   client,
		localDir: localDir,
		logger:   logger,
		debounce: 300 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SyncOnce pushes every local notebook that is missing from the server
// or whose size differs from the server copy. Matching sizes count as in
// sync; a same-size edit is picked up by the watcher, not this pass.
// It is the initial pass before watching.
func (s *Syncer) SyncOnce(ctx context.Context) error {
	remote, err := s.client.ListNotebooks(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]int64, len(remote))
	for _, nb := range remote {
		known[nb.Filename] = nb.SizeBytes
	}

	entries, err := os.ReadDir(s.localDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".py") {
			continue
		}
		if size, ok := known[e.Name()]; ok {
			if info, err := e.Info(); err == nil && info.Size() == size {
				s.logger.Debug("sync: unchanged", "file", e.Name())
				continue
			}
		}
		if err := s.push(ctx, e.Name(), known); err != nil {
			s.logger.Warn("sync: push failed", "file", e.Name(), "error", err)
		}
	}
	return nil
}

// Watch runs SyncOnce and then watches localDir until ctx is cancelled.
// Writes are debounced per file; removes and renames delete the server
// copy.
func (s *Syncer) Watch(ctx context.Context) error {
	if err := s.SyncOnce(ctx); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(s.localDir); err != nil {
		return err
	}
	s.logger.Info("sync: watching", "dir", s.localDir)

	pending := make(map[string]*time.Timer)
	fire := make(chan string)
	defer func() {
		for _, t := range pending {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sync: stopped")
			return nil

		case name := <-fire:
			delete(pending, name)
			if err := s.push(ctx, name, nil); err != nil {
				s.logger.Warn("sync: push failed", "file", name, "error", err)
			}

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".py") {
				continue
			}

			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				if t, exists := pending[name]; exists {
					t.Reset(s.debounce)
					continue
				}
				n := name
				pending[name] = time.AfterFunc(s.debounce, func() {
					select {
					case fire <- n:
					case <-ctx.Done():
					}
				})

			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if t, exists := pending[name]; exists {
					t.Stop()
					delete(pending, name)
				}
				if err := s.remove(ctx, name); err != nil {
					s.logger.Warn("sync: delete failed", "file", name, "error", err)
				}
			}

		case watchErr, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("sync: watch error", "error", watchErr)
		}
	}
}

// push uploads name, creating or updating the server copy. known, when
// non-nil, maps filenames already on the server to their sizes; a nil
// map means unknown and the update-then-create order is tried.
func (s *Syncer) push(ctx context.Context, name string, known map[string]int64) error {
	data, err := os.ReadFile(filepath.Join(s.localDir, name))
	if err != nil {
		// The file may have vanished between the event and the read.
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	content := string(data)

	exists := true
	if known != nil {
		_, exists = known[name]
	}

	if exists {
		err = s.client.UpdateNotebook(ctx, name, content)
		if errors.Is(err, api.ErrNotFound) {
			exists = false
		} else if err != nil {
			return err
		}
	}
	if !exists {
		if _, err := s.client.CreateNotebook(ctx, name, content); err != nil {
			return err
		}
		if known != nil {
			known[name] = int64(len(data))
		}
		s.logger.Info("sync: uploaded", "file", name)
		s.emit("uploaded", name)
		return nil
	}

	s.logger.Debug("sync: updated", "file", name)
	s.emit("updated", name)
	return nil
}

func (s *Syncer) remove(ctx context.Context, name string) error {
	err := s.client.DeleteNotebook(ctx, name)
	if errors.Is(err, api.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	s.logger.Info("sync: deleted", "file", name)
	s.emit("deleted", name)
	return nil
}

func (s *Syncer) emit(kind, name string) {
	if s.cb != nil {
		s.cb(kind, name)
	}
}
