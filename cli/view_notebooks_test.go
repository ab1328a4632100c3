package cli

import (
	"io"
	"log/slog"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/duckpond-io/pondctl/api"
	"github.com/duckpond-io/pondctl/reconcile"
	"github.com/duckpond-io/pondctl/transition"
)

func TestValidateNotebookFilename(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"analysis.py", false},
		{"my-data_v2.py", false},
		{"a.py", false},
		{"", true},
		{".py", true},
		{"notes.txt", true},
		{"dir/notes.py", true},
		{"no extension", true},
	}

	for _, tt := range tests {
		err := validateNotebookFilename(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("validateNotebookFilename(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}

func newTestNotebooksView() *notebooksView {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := api.New("http://localhost:8000", api.WithLogger(logger))
	loop := reconcile.NewLoop(client, time.Second, logger)
	exec := transition.NewExecutor(client, logger)
	return newNotebooksView(newTUITheme(), client, loop, exec, 1)
}

func notebooksFixture() []reconcile.MergedNotebook {
	return []reconcile.MergedNotebook{
		{Filename: "etl.py", Status: api.StatusRunning, SessionID: "s-1", UIURL: "/notebooks/sessions/s-1/ui"},
		{Filename: "report.py", Status: api.StatusStopped},
		{Filename: "scratch.py", Status: api.StatusCrashed, SessionID: "s-2"},
	}
}

func TestNotebooksDataMsgPopulatesRows(t *testing.T) {
	v := newTestNotebooksView()

	av, cmd := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)

	if len(v.visible) != 3 {
		t.Fatalf("expected 3 visible rows, got %d", len(v.visible))
	}
	if v.syncErr != nil {
		t.Fatalf("unexpected sync error: %v", v.syncErr)
	}
	if v.lastSync.IsZero() {
		t.Fatal("lastSync should be stamped on success")
	}
	if cmd == nil {
		t.Fatal("a successful tick must arm the next poll")
	}
}

func TestNotebooksFilterCycleNarrowsRows(t *testing.T) {
	v := newTestNotebooksView()
	av, _ := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)

	av, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	v = av.(*notebooksView)
	if v.filter != reconcile.FilterActive {
		t.Fatalf("filter = %v, want active", v.filter)
	}
	if len(v.visible) != 1 || v.visible[0].Filename != "etl.py" {
		t.Fatalf("active filter rows = %v", v.visible)
	}

	av, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	v = av.(*notebooksView)
	if v.filter != reconcile.FilterIdle {
		t.Fatalf("filter = %v, want idle", v.filter)
	}
	if len(v.visible) != 2 {
		t.Fatalf("idle filter rows = %v", v.visible)
	}
}

func TestNotebooksSelectionClampsAfterFilter(t *testing.T) {
	v := newTestNotebooksView()
	av, _ := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)

	v.selected = 2
	av, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	v = av.(*notebooksView)

	if v.selected != 0 {
		t.Fatalf("selection not clamped, got %d", v.selected)
	}
}

func TestNotebooksSearchCapturesKeys(t *testing.T) {
	v := newTestNotebooksView()
	av, _ := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)

	av, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/")})
	v = av.(*notebooksView)
	if !v.capturesInput() {
		t.Fatal("search focus should capture input")
	}

	av, _ = v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("etl")})
	v = av.(*notebooksView)
	if len(v.visible) != 1 || v.visible[0].Filename != "etl.py" {
		t.Fatalf("search rows = %v", v.visible)
	}

	av, _ = v.Update(tea.KeyMsg{Type: tea.KeyEsc})
	v = av.(*notebooksView)
	if v.capturesInput() {
		t.Fatal("esc should blur the search input")
	}
}

func TestNotebooksEnterNavigatesToDetail(t *testing.T) {
	v := newTestNotebooksView()
	av, _ := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should produce a navigation command")
	}
	msg, ok := cmd().(navigateMsg)
	if !ok {
		t.Fatalf("expected navigateMsg, got %T", cmd())
	}
	if msg.path != "/notebooks/etl.py" {
		t.Fatalf("navigate path = %q", msg.path)
	}
}

func TestNotebooksStopWithoutSessionWarns(t *testing.T) {
	v := newTestNotebooksView()
	av, _ := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)
	v.selected = 1 // report.py, no session

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	if cmd == nil {
		t.Fatal("expected a toast command")
	}
	toast, ok := cmd().(shellToastMsg)
	if !ok || toast.level != "warn" {
		t.Fatalf("expected warn toast, got %#v", cmd())
	}
}

func TestNotebooksTransitionSnapshotLifecycle(t *testing.T) {
	v := newTestNotebooksView()
	av, _ := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)

	snap := transitionFixture()
	av, _ = v.Update(transitionUpdateMsg{snap: snap})
	v = av.(*notebooksView)
	if _, ok := v.transitions["etl.py"]; !ok {
		t.Fatal("in-flight snapshot should be tracked")
	}

	snap.Done = true
	av, cmd := v.Update(transitionUpdateMsg{snap: snap})
	v = av.(*notebooksView)
	if cmd == nil {
		t.Fatal("a terminal snapshot should schedule its removal")
	}

	av, _ = v.Update(transitionClearMsg{epoch: 1, notebookID: "etl.py"})
	v = av.(*notebooksView)
	if _, ok := v.transitions["etl.py"]; ok {
		t.Fatal("terminal snapshot should clear")
	}
}

func TestNotebooksTornViewIgnoresData(t *testing.T) {
	v := newTestNotebooksView()
	v.Teardown()

	av, cmd := v.Update(notebooksDataMsg{epoch: 1, items: notebooksFixture()})
	v = av.(*notebooksView)
	if cmd != nil {
		t.Fatal("a torn view must not arm another poll")
	}
	if len(v.visible) != 0 {
		t.Fatal("a torn view must not apply data")
	}
}
