package cli

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
)

// adminView is one mounted screen inside the shell's content region.
// Teardown must be idempotent; the shell calls it before mounting a
// replacement and once more when the program exits.
type adminView interface {
	Init() tea.Cmd
	Update(msg tea.Msg) (adminView, tea.Cmd)
	Render(width, height int) string
	Teardown()
}

// epochMsg is implemented by async view messages so the shell can drop
// results that arrive after the view that requested them was torn down.
type epochMsg interface {
	viewEpoch() int
}

// viewHost carries state written by route handlers and guards, which run
// synchronously inside Router.Navigate, back to the shell's Update loop.
// send becomes non-nil once the bubbletea program exists; workers started
// before that point must not post.
type viewHost struct {
	mu      sync.Mutex
	pending adminView
	queued  bool
	loading bool
	title   string
	epochN  int
	send    func(tea.Msg)
}

// nextEpoch advances the mount counter. Handlers call it when building a
// view so stale async results can be recognized after a route change.
func (h *viewHost) nextEpoch() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.epochN++
	return h.epochN
}

func (h *viewHost) epoch() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.epochN
}

func (h *viewHost) mount(v adminView) {
	h.mu.Lock()
	h.pending = v
	h.queued = true
	h.mu.Unlock()
}

// takePending returns the view mounted by the last dispatched handler.
// The second value is false when no handler ran since the previous take.
func (h *viewHost) takePending() (adminView, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.queued {
		return nil, false
	}
	v := h.pending
	h.pending = nil
	h.queued = false
	return v, true
}

func (h *viewHost) setLoading(on bool) {
	h.mu.Lock()
	h.loading = on
	h.mu.Unlock()
}

func (h *viewHost) isLoading() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.loading
}

func (h *viewHost) setTitle(title string) {
	h.mu.Lock()
	h.title = title
	h.mu.Unlock()
}

func (h *viewHost) currentTitle() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title
}

func (h *viewHost) setSend(fn func(tea.Msg)) {
	h.mu.Lock()
	h.send = fn
	h.mu.Unlock()
}

// post delivers msg to the program from any goroutine. Messages posted
// before the program starts are dropped.
func (h *viewHost) post(msg tea.Msg) {
	h.mu.Lock()
	fn := h.send
	h.mu.Unlock()
	if fn != nil {
		fn(msg)
	}
}
