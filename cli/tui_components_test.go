package cli

import (
	"strings"
	"testing"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in    string
		limit int
		want  string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
		{"abc", 0, ""},
	}

	for _, tt := range tests {
		got := truncateRunes(tt.in, tt.limit)
		if got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.limit, got, tt.want)
		}
	}
}

func TestSplitHeightsSumToTotal(t *testing.T) {
	for _, total := range []int{4, 12, 24, 61} {
		top, bottom := splitHeights(total)
		if top+bottom != total {
			t.Errorf("splitHeights(%d) = %d + %d, does not sum to total", total, top, bottom)
		}
		if total >= 12 && (top < 4 || bottom < 6) {
			t.Errorf("splitHeights(%d) = %d, %d: panel collapsed below minimum", total, top, bottom)
		}
		if total >= 12 && bottom < top {
			t.Errorf("splitHeights(%d) = %d, %d: list should keep the larger share", total, top, bottom)
		}
	}
}

func TestRenderStepRailMarksAllSteps(t *testing.T) {
	theme := newTUITheme()
	steps := []string{"Create session", "Container starting", "Waiting for readiness"}

	rail := renderStepRail(theme, steps, 1)
	for _, marker := range []string{"[x] Create session", "[>] Container starting", "[ ] Waiting for readiness"} {
		if !strings.Contains(rail, marker) {
			t.Errorf("rail missing marker %q: %s", marker, rail)
		}
	}

	if renderStepRail(theme, nil, 0) != "" {
		t.Error("expected empty rail for no steps")
	}
}

func TestRenderEmptyStateCarriesHint(t *testing.T) {
	theme := newTUITheme()
	out := renderEmptyState(theme, "No notebooks",
		"This account has no notebook files yet.",
		"c creates one", 40)
	for _, want := range []string{"No notebooks", "no notebook files", "c creates one"} {
		if !strings.Contains(out, want) {
			t.Errorf("empty state missing %q:\n%s", want, out)
		}
	}
}

func TestRenderRowListWindowsSelection(t *testing.T) {
	theme := newTUITheme()
	rows := make([]listRow, 30)
	for i := range rows {
		rows[i] = listRow{label: strings.Repeat("x", 5), note: "2026-08-31"}
	}

	out := renderRowList(theme, "API keys", rows, 25, 40, 8)
	if !strings.Contains(out, "API keys") {
		t.Error("list missing title")
	}
	if !strings.Contains(out, "> ") {
		t.Error("list missing selection marker")
	}
	if !strings.Contains(out, "2026-08-31") {
		t.Error("list missing row note")
	}
}
