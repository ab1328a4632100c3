package reconcile

import (
	"testing"

	"github.com/duckpond-io/pondctl/api"
)

func defs(names ...string) []api.NotebookFile {
	files := make([]api.NotebookFile, 0, len(names))
	for _, n := range names {
		files = append(files, api.NotebookFile{Filename: n, Path: n})
	}
	return files
}

func TestMergePairsSessionBySuffix(t *testing.T) {
	files := defs("a.py", "b.py")
	sessions := []api.Session{
		{SessionID: "s1", NotebookPath: "acct/a.py", Status: api.StatusRunning},
	}

	merged := Merge(files, sessions)
	if len(merged) != 2 {
		t.Fatalf("merged len = %d", len(merged))
	}

	a := merged[0]
	if a.Status != api.StatusRunning || a.SessionID != "s1" {
		t.Fatalf("a.py = %+v", a)
	}
	if a.UIURL != "/notebooks/sessions/s1/ui" {
		t.Fatalf("a.py UIURL = %q", a.UIURL)
	}

	b := merged[1]
	if b.Status != api.StatusStopped || b.SessionID != "" || b.UIURL != "" {
		t.Fatalf("b.py = %+v", b)
	}
}

func TestMergeExactMatchBeatsSuffix(t *testing.T) {
	files := defs("a.py")
	sessions := []api.Session{
		{SessionID: "s-suffix", NotebookPath: "other/a.py", Status: api.StatusRunning},
		{SessionID: "s-exact", NotebookPath: "a.py", Status: api.StatusStarting},
	}

	merged := Merge(files, sessions)
	if merged[0].SessionID != "s-exact" || merged[0].Status != api.StatusStarting {
		t.Fatalf("merged = %+v", merged[0])
	}
}

func TestMergeSuffixRequiresPathBoundary(t *testing.T) {
	files := defs("a.py")
	sessions := []api.Session{
		{SessionID: "s1", NotebookPath: "acct/data_a.py", Status: api.StatusRunning},
	}

	merged := Merge(files, sessions)
	if merged[0].SessionID != "" || merged[0].Status != api.StatusStopped {
		t.Fatalf("non-boundary suffix matched: %+v", merged[0])
	}
}

func TestMergeSessionPairsAtMostOnce(t *testing.T) {
	// One session whose path ends in b.py must not be claimed by both
	// files even though "b.py" is a boundary suffix for it.
	files := defs("b.py", "nested/b.py")
	sessions := []api.Session{
		{SessionID: "s1", NotebookPath: "acct/nested/b.py", Status: api.StatusRunning},
	}

	merged := Merge(files, sessions)
	paired := 0
	for _, m := range merged {
		if m.SessionID != "" {
			paired++
		}
	}
	if paired != 1 {
		t.Fatalf("session paired %d times, want 1: %+v", paired, merged)
	}
}

func TestApplySubstringFilterCaseInsensitive(t *testing.T) {
	items := Merge(defs("a.py", "b.py"), nil)

	got := Apply(items, "A", FilterAll, SortAsc)
	if len(got) != 1 || got[0].Filename != "a.py" {
		t.Fatalf("filtered = %+v", got)
	}

	got = Apply(items, "", FilterAll, SortAsc)
	if len(got) != 2 || got[0].Filename != "a.py" || got[1].Filename != "b.py" {
		t.Fatalf("unfiltered = %+v", got)
	}
}

func TestApplyStatusFilter(t *testing.T) {
	items := Merge(defs("a.py", "b.py"), []api.Session{
		{SessionID: "s1", NotebookPath: "a.py", Status: api.StatusRunning},
	})

	active := Apply(items, "", FilterActive, SortAsc)
	if len(active) != 1 || active[0].Filename != "a.py" {
		t.Fatalf("active = %+v", active)
	}

	idle := Apply(items, "", FilterIdle, SortAsc)
	if len(idle) != 1 || idle[0].Filename != "b.py" {
		t.Fatalf("idle = %+v", idle)
	}

	// A starting session is not running, so it is idle for filtering.
	items = Merge(defs("c.py"), []api.Session{
		{SessionID: "s2", NotebookPath: "c.py", Status: api.StatusStarting},
	})
	if got := Apply(items, "", FilterActive, SortAsc); len(got) != 0 {
		t.Fatalf("starting session counted as active: %+v", got)
	}
}

func TestApplySortToggleReversesDeterministically(t *testing.T) {
	items := Merge(defs("m.py", "a.py", "z.py"), nil)

	asc := Apply(items, "", FilterAll, SortAsc)
	desc := Apply(items, "", FilterAll, SortDesc)

	if asc[0].Filename != "a.py" || asc[2].Filename != "z.py" {
		t.Fatalf("asc = %+v", asc)
	}
	for i := range asc {
		if asc[i].Filename != desc[len(desc)-1-i].Filename {
			t.Fatalf("desc is not the reverse of asc: %+v vs %+v", asc, desc)
		}
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	items := Merge(defs("b.py", "a.py"), nil)

	_ = Apply(items, "", FilterAll, SortAsc)

	if items[0].Filename != "b.py" || items[1].Filename != "a.py" {
		t.Fatalf("input mutated: %+v", items)
	}
}

func TestFilterAndOrderCycles(t *testing.T) {
	if FilterAll.Next() != FilterActive || FilterActive.Next() != FilterIdle || FilterIdle.Next() != FilterAll {
		t.Fatal("filter cycle broken")
	}
	if SortAsc.Toggle() != SortDesc || SortDesc.Toggle() != SortAsc {
		t.Fatal("sort toggle broken")
	}
}
