package log

import "sync"

// Recorder is a Sink that keeps every entry in memory.
// It is intended for tests that assert on emitted events.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Write implements Sink.
func (r *Recorder) Write(e Entry) {
	r.mu.Lock()
	r.entries = append(r.entries, e)
	r.mu.Unlock()
}

// Entries returns a copy of the recorded entries.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Filter returns recorded entries at the given level and category.
func (r *Recorder) Filter(level Level, cat Category) []Entry {
	var out []Entry
	for _, e := range r.Entries() {
		if e.Level == level && e.Category == cat {
			out = append(out, e)
		}
	}
	return out
}

// Count returns how many recorded entries at level have the given message.
func (r *Recorder) Count(level Level, msg string) int {
	n := 0
	for _, e := range r.Entries() {
		if e.Level == level && e.Message == msg {
			n++
		}
	}
	return n
}

// Reset drops all recorded entries.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.entries = nil
	r.mu.Unlock()
}
