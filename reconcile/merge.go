// Package reconcile merges the two independently fetched server
// collections (notebook files and compute sessions) into the view model
// the admin dashboard renders, and keeps it fresh with a polling loop.
package reconcile

import (
	"sort"
	"strings"

	"github.com/duckpond-io/pondctl/api"
)

// MergedNotebook pairs a notebook definition with at most one session.
// Recomputed every tick; never persisted, never mutated by the user.
type MergedNotebook struct {
	Filename   string  `json:"filename"`
	SizeBytes  int64   `json:"size_bytes"`
	ModifiedAt float64 `json:"modified_at"`
	Status     string  `json:"status"`
	SessionID  string  `json:"session_id,omitempty"`
	UIURL      string  `json:"ui_url,omitempty"`
}

// Running reports whether the paired session counts as active.
func (m MergedNotebook) Running() bool { return m.Status == api.StatusRunning }

// StatusFilter narrows the merged view by session activity.
type StatusFilter int

const (
	FilterAll StatusFilter = iota
	FilterActive
	FilterIdle
)

func (f StatusFilter) String() string {
	switch f {
	case FilterActive:
		return "active"
	case FilterIdle:
		return "idle"
	default:
		return "all"
	}
}

// Next cycles to the following filter value.
func (f StatusFilter) Next() StatusFilter {
	switch f {
	case FilterAll:
		return FilterActive
	case FilterActive:
		return FilterIdle
	default:
		return FilterAll
	}
}

// SortOrder is the lexicographic direction of the filename sort.
type SortOrder int

const (
	SortAsc SortOrder = iota
	SortDesc
)

func (o SortOrder) String() string {
	if o == SortDesc {
		return "desc"
	}
	return "asc"
}

// Toggle flips the order.
func (o SortOrder) Toggle() SortOrder {
	if o == SortAsc {
		return SortDesc
	}
	return SortAsc
}

// Merge pairs each notebook file with the first session whose path names
// it. Exact path equality wins; otherwise the filename must be a suffix
// of the session path at a "/" boundary, so "acct/a.py" pairs with "a.py"
// but "data_a.py" never does. Each session pairs with at most one file.
// Unmatched files report stopped with no session id.
func Merge(files []api.NotebookFile, sessions []api.Session) []MergedNotebook {
	used := make([]bool, len(sessions))
	merged := make([]MergedNotebook, 0, len(files))

	for _, f := range files {
		item := MergedNotebook{
			Filename:   f.Filename,
			SizeBytes:  f.SizeBytes,
			ModifiedAt: f.ModifiedAt,
			Status:     api.StatusStopped,
		}
		if idx := matchSession(f.Filename, sessions, used); idx >= 0 {
			used[idx] = true
			item.Status = sessions[idx].Status
			item.SessionID = sessions[idx].SessionID
			item.UIURL = api.SessionUIURL(sessions[idx].SessionID)
		}
		merged = append(merged, item)
	}
	return merged
}

func matchSession(filename string, sessions []api.Session, used []bool) int {
	for i, s := range sessions {
		if !used[i] && s.NotebookPath == filename {
			return i
		}
	}
	for i, s := range sessions {
		if !used[i] && strings.HasSuffix(s.NotebookPath, "/"+filename) {
			return i
		}
	}
	return -1
}

// Apply filters and sorts a merged snapshot: case-insensitive substring
// filter on filename (empty query keeps everything), then the status
// filter, then a lexicographic filename sort. The input is not mutated.
func Apply(items []MergedNotebook, query string, filter StatusFilter, order SortOrder) []MergedNotebook {
	query = strings.ToLower(strings.TrimSpace(query))

	out := make([]MergedNotebook, 0, len(items))
	for _, item := range items {
		if query != "" && !strings.Contains(strings.ToLower(item.Filename), query) {
			continue
		}
		switch filter {
		case FilterActive:
			if !item.Running() {
				continue
			}
		case FilterIdle:
			if item.Running() {
				continue
			}
		}
		out = append(out, item)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if order == SortDesc {
			return out[i].Filename > out[j].Filename
		}
		return out[i].Filename < out[j].Filename
	})
	return out
}
