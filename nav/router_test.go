package nav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	return NewRouter("/notebooks", slog.New(slog.DiscardHandler))
}

func TestNavigateCommitsStateHistoryAndHandler(t *testing.T) {
	r := testRouter(t)
	var gotParams map[string]string
	mustRegister(t, r, "/notebooks", nil, Options{Title: "Notebooks"})
	mustRegister(t, r, "/notebooks/:name", func(_ context.Context, p map[string]string) error {
		gotParams = p
		return nil
	}, Options{Title: "Notebook"})

	if err := r.Navigate(context.Background(), "/notebooks/a.py"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	if gotParams["name"] != "a.py" {
		t.Fatalf("handler params = %v", gotParams)
	}
	st := r.State()
	if st.Path != "/notebooks/a.py" || st.Options.Title != "Notebook" {
		t.Fatalf("state = %+v", st)
	}
	if r.History().Current() != "/notebooks/a.py" || r.History().Len() != 1 {
		t.Fatalf("history = %q len=%d", r.History().Current(), r.History().Len())
	}
}

func TestVetoLeavesEverythingUntouched(t *testing.T) {
	r := testRouter(t)
	handlerRuns := 0
	afterRuns := 0
	mustRegister(t, r, "/notebooks", func(context.Context, map[string]string) error {
		handlerRuns++
		return nil
	}, Options{})
	mustRegister(t, r, "/account", func(context.Context, map[string]string) error {
		handlerRuns++
		return nil
	}, Options{RequiresAuth: true})

	if err := r.Navigate(context.Background(), "/notebooks"); err != nil {
		t.Fatalf("initial Navigate: %v", err)
	}
	before := r.State()
	histLen := r.History().Len()

	r.Before(func(_ context.Context, target string, _ State) error {
		if target == "/account" {
			return fmt.Errorf("%w: not signed in", ErrVetoed)
		}
		return nil
	})
	r.After(func(context.Context, string) { afterRuns++ })

	err := r.Navigate(context.Background(), "/account")
	if !errors.Is(err, ErrVetoed) {
		t.Fatalf("err = %v, want ErrVetoed", err)
	}
	if got := r.State(); got.Path != before.Path || got.Options != before.Options {
		t.Fatalf("state changed on veto: %+v", got)
	}
	if r.History().Len() != histLen || r.History().Current() != "/notebooks" {
		t.Fatalf("history changed on veto: %q len=%d", r.History().Current(), r.History().Len())
	}
	if handlerRuns != 1 {
		t.Fatalf("handler runs = %d, want 1", handlerRuns)
	}
	if afterRuns != 0 {
		t.Fatalf("after-guards ran on vetoed navigation: %d", afterRuns)
	}
}

func TestGuardsRunInOrderBeforeHistory(t *testing.T) {
	r := testRouter(t)
	var order []string
	mustRegister(t, r, "/notebooks", func(context.Context, map[string]string) error {
		order = append(order, "handler")
		return nil
	}, Options{})

	r.Before(func(context.Context, string, State) error {
		order = append(order, "before1")
		return nil
	})
	r.Before(func(context.Context, string, State) error {
		order = append(order, "before2")
		return nil
	})
	r.After(func(context.Context, string) { order = append(order, "after") })

	if err := r.Navigate(context.Background(), "/notebooks"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	want := []string{"before1", "before2", "handler", "after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v", order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestUnknownPathRedirectsToDefaultOnce(t *testing.T) {
	r := testRouter(t)
	resolved := make([]string, 0, 2)
	mustRegister(t, r, "/notebooks", nil, Options{})
	r.After(func(_ context.Context, path string) { resolved = append(resolved, path) })

	if err := r.Navigate(context.Background(), "/nope"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if len(resolved) != 1 || resolved[0] != "/notebooks" {
		t.Fatalf("resolved = %v, want single default resolution", resolved)
	}
	// The redirect replaces the bad entry rather than stacking a second one.
	if r.History().Len() != 1 || r.History().Current() != "/notebooks" {
		t.Fatalf("history = %q len=%d", r.History().Current(), r.History().Len())
	}
}

func TestUnresolvableDefaultPathFailsHard(t *testing.T) {
	r := NewRouter("/also-missing", slog.New(slog.DiscardHandler))
	mustRegister(t, r, "/notebooks", nil, Options{})

	err := r.Navigate(context.Background(), "/missing")
	if !errors.Is(err, ErrNoRoute) {
		t.Fatalf("err = %v, want ErrNoRoute", err)
	}
}

func TestHandlerErrorIsContainedAndAfterGuardsStillRun(t *testing.T) {
	r := testRouter(t)
	afterRuns := 0
	mustRegister(t, r, "/notebooks", func(context.Context, map[string]string) error {
		return errors.New("render exploded")
	}, Options{})
	r.After(func(context.Context, string) { afterRuns++ })

	if err := r.Navigate(context.Background(), "/notebooks"); err != nil {
		t.Fatalf("handler error should be contained, got %v", err)
	}
	if afterRuns != 1 {
		t.Fatalf("after-guard runs = %d, want 1", afterRuns)
	}
	if r.State().Path != "/notebooks" {
		t.Fatalf("state not committed after contained failure: %+v", r.State())
	}
}

func TestHandlerPanicIsContained(t *testing.T) {
	r := testRouter(t)
	mustRegister(t, r, "/notebooks", func(context.Context, map[string]string) error {
		panic("boom")
	}, Options{})

	if err := r.Navigate(context.Background(), "/notebooks"); err != nil {
		t.Fatalf("panic should be contained, got %v", err)
	}
	if r.State().Path != "/notebooks" {
		t.Fatalf("state = %+v", r.State())
	}
}

func TestBackReplaysPreviousRoute(t *testing.T) {
	r := testRouter(t)
	var mounted []string
	record := func(path string) HandlerFunc {
		return func(context.Context, map[string]string) error {
			mounted = append(mounted, path)
			return nil
		}
	}
	mustRegister(t, r, "/notebooks", record("/notebooks"), Options{})
	mustRegister(t, r, "/account", record("/account"), Options{})

	ctx := context.Background()
	if err := r.Navigate(ctx, "/notebooks"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := r.Navigate(ctx, "/account"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := r.Back(ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}

	if r.State().Path != "/notebooks" || r.History().Len() != 1 {
		t.Fatalf("state=%q histLen=%d", r.State().Path, r.History().Len())
	}
	if len(mounted) != 3 || mounted[2] != "/notebooks" {
		t.Fatalf("mounted = %v", mounted)
	}

	// Back at the bottom of the stack is a no-op.
	if err := r.Back(ctx); err != nil {
		t.Fatalf("Back at bottom: %v", err)
	}
	if r.History().Len() != 1 {
		t.Fatalf("histLen = %d", r.History().Len())
	}
}

func TestVetoedBackKeepsHistoryEntry(t *testing.T) {
	r := testRouter(t)
	mustRegister(t, r, "/notebooks", nil, Options{})
	mustRegister(t, r, "/account", nil, Options{})

	ctx := context.Background()
	if err := r.Navigate(ctx, "/notebooks"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := r.Navigate(ctx, "/account"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}

	blocked := true
	r.Before(func(context.Context, string, State) error {
		if blocked {
			return fmt.Errorf("%w: blocked", ErrVetoed)
		}
		return nil
	})

	if err := r.Back(ctx); !errors.Is(err, ErrVetoed) {
		t.Fatalf("err = %v, want ErrVetoed", err)
	}
	if r.History().Len() != 2 || r.History().Current() != "/account" {
		t.Fatalf("history lost entries on vetoed back: %q len=%d",
			r.History().Current(), r.History().Len())
	}
	if r.State().Path != "/account" {
		t.Fatalf("state = %q, want /account", r.State().Path)
	}

	// Retrying once the guard allows it still finds the entry.
	blocked = false
	if err := r.Back(ctx); err != nil {
		t.Fatalf("Back: %v", err)
	}
	if r.State().Path != "/notebooks" || r.History().Len() != 1 {
		t.Fatalf("state=%q histLen=%d", r.State().Path, r.History().Len())
	}
}

func mustRegister(t *testing.T, r *Router, template string, h HandlerFunc, opts Options) {
	t.Helper()
	if h == nil {
		h = func(context.Context, map[string]string) error { return nil }
	}
	if err := r.Register(template, h, opts); err != nil {
		t.Fatalf("Register(%q): %v", template, err)
	}
}
