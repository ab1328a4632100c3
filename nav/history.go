package nav

// History is an in-process navigation stack mirroring pushState/replaceState
// semantics. It records committed paths only; vetoed navigations never touch
// it.
type History struct {
	entries []string
}

// Push appends a new entry.
func (h *History) Push(path string) {
	h.entries = append(h.entries, path)
}

// Replace swaps the current entry, or pushes when the stack is empty.
func (h *History) Replace(path string) {
	if len(h.entries) == 0 {
		h.entries = append(h.entries, path)
		return
	}
	h.entries[len(h.entries)-1] = path
}

// Peek returns the entry beneath the current one without changing the
// stack. It reports false when there is nothing to go back to.
func (h *History) Peek() (string, bool) {
	if len(h.entries) < 2 {
		return "", false
	}
	return h.entries[len(h.entries)-2], true
}

// Back pops the current entry and returns the one beneath it. It reports
// false when there is nothing to go back to.
func (h *History) Back() (string, bool) {
	if len(h.entries) < 2 {
		return "", false
	}
	h.entries = h.entries[:len(h.entries)-1]
	return h.entries[len(h.entries)-1], true
}

// Current returns the top entry, or "" for an empty stack.
func (h *History) Current() string {
	if len(h.entries) == 0 {
		return ""
	}
	return h.entries[len(h.entries)-1]
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }
