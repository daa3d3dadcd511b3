package model

import (
	"encoding/json"
	"fmt"
)

// Severity classifies a feedback entry.
type Severity string

const (
	SeverityNotice Severity = "notice"
	SeverityError  Severity = "error"
)

// FeedbackEntry is a single user-visible message. It encodes as
// {"error": "..."} or {"notice": "..."}.
type FeedbackEntry struct {
	Severity Severity
	Message  string
}

func (e FeedbackEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{string(e.Severity): e.Message})
}

func (e *FeedbackEntry) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("feedback entry must have exactly one key, got %d", len(m))
	}
	for k, v := range m {
		e.Severity = Severity(k)
		e.Message = v
	}
	return nil
}

// Feedback is the ordered multiset of messages accumulated while one request
// is processed. Duplicates are kept until Dedup is called.
type Feedback struct {
	entries []FeedbackEntry
}

// Error appends an error entry.
func (f *Feedback) Error(msg string) {
	f.entries = append(f.entries, FeedbackEntry{Severity: SeverityError, Message: msg})
}

// Notice appends a notice entry.
func (f *Feedback) Notice(msg string) {
	f.entries = append(f.entries, FeedbackEntry{Severity: SeverityNotice, Message: msg})
}

// Len returns the number of entries, duplicates included.
func (f *Feedback) Len() int { return len(f.entries) }

// HasErrors reports whether any entry has error severity.
func (f *Feedback) HasErrors() bool {
	for _, e := range f.entries {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Entries returns a copy of the entries in insertion order.
func (f *Feedback) Entries() []FeedbackEntry {
	out := make([]FeedbackEntry, len(f.entries))
	copy(out, f.entries)
	return out
}

// Messages returns the messages of the given severity in order.
func (f *Feedback) Messages(sev Severity) []string {
	var out []string
	for _, e := range f.entries {
		if e.Severity == sev {
			out = append(out, e.Message)
		}
	}
	return out
}

// Dedup removes repeated (severity, message) pairs, keeping the first
// occurrence of each.
func (f *Feedback) Dedup() {
	seen := make(map[FeedbackEntry]bool, len(f.entries))
	out := f.entries[:0]
	for _, e := range f.entries {
		if seen[e] {
			continue
		}
		seen[e] = true
		out = append(out, e)
	}
	f.entries = out
}

func (f Feedback) MarshalJSON() ([]byte, error) {
	if f.entries == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.entries)
}

func (f *Feedback) UnmarshalJSON(data []byte) error {
	// A bare string is accepted as a single notice.
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		f.entries = []FeedbackEntry{{Severity: SeverityNotice, Message: s}}
		return nil
	}
	return json.Unmarshal(data, &f.entries)
}
