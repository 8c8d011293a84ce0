// Package contentsync decides when externally owned content is pushed into
// an editable document and when it must wait because the user is typing.
//
// A Synchronizer is a small state machine driven by two triggers:
// Reconcile (external content changed) and LocalChanged (the user edited
// the document). It belongs to one editing surface and is not safe for
// concurrent use.
package contentsync

import (
	"fmt"
	"log/slog"
)

// State is the synchronizer's view of the document.
type State int

const (
	// Initial: no external content has been reconciled since mount or
	// the last identity change. The next external value always wins.
	Initial State = iota
	// Synced: the document was last set from external content.
	Synced
	// UserEditing: the user changed the document after it was synced.
	UserEditing
)

func (s State) String() string {
	switch s {
	case Initial:
		return "initial"
	case Synced:
		return "synced"
	case UserEditing:
		return "user_editing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Decision is the outcome of one Reconcile.
type Decision int

const (
	// Noop: the document already serializes to the external value.
	Noop Decision = iota
	// Replace: the document was replaced by the parsed external value.
	Replace
	// Defer: the user is editing; the value is kept as pending.
	Defer
	// Skip: no external value has arrived yet.
	Skip
)

func (d Decision) String() string {
	switch d {
	case Noop:
		return "noop"
	case Replace:
		return "replace"
	case Defer:
		return "defer"
	case Skip:
		return "skip"
	}
	return fmt.Sprintf("Decision(%d)", int(d))
}

// Content is an external value that may not have arrived yet. The zero
// value is Unset. Value("") is an explicit clear.
type Content struct {
	value string
	set   bool
}

// Value wraps an arrived external value.
func Value(s string) Content { return Content{value: s, set: true} }

// Unset is the value before anything has arrived.
func Unset() Content { return Content{} }

// Get returns the value and whether it has arrived.
func (c Content) Get() (string, bool) { return c.value, c.set }

// IsSet reports whether a value has arrived.
func (c Content) IsSet() bool { return c.set }

// Document is the editable side the synchronizer reconciles against.
type Document interface {
	// Markdown serializes the current document.
	Markdown() string
	// Focused reports whether the user is currently in the editor.
	Focused() bool
	// Replace parses content into the document without emitting a local
	// change.
	Replace(content string) error
}

// Synchronizer decides how external content reaches one surface's document.
type Synchronizer struct {
	state   State
	pending Content
	log     *slog.Logger
}

// New returns a synchronizer in the Initial state. A nil logger discards.
func New(log *slog.Logger) *Synchronizer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Synchronizer{log: log}
}

// State returns the current state.
func (s *Synchronizer) State() State { return s.state }

// Pending returns the last deferred external value, if any.
func (s *Synchronizer) Pending() (string, bool) { return s.pending.Get() }

// Reconcile handles an external content change.
//
// If the document already serializes to the value nothing happens. The
// document is replaced when the state is Initial, when the editor is not
// focused, or when the value is the empty string; otherwise the value is
// deferred. A failed replace leaves state and document untouched.
func (s *Synchronizer) Reconcile(external Content, doc Document) (Decision, error) {
	value, ok := external.Get()
	if !ok {
		s.log.Debug("content sync", "decision", Skip, "state", s.state)
		return Skip, nil
	}

	if doc.Markdown() == value {
		// Initial survives a match so late content still replaces.
		s.pending = Unset()
		s.log.Debug("content sync", "decision", Noop, "state", s.state)
		return Noop, nil
	}

	if s.state == Initial || !doc.Focused() || value == "" {
		if err := doc.Replace(value); err != nil {
			s.log.Warn("content sync replace failed", "state", s.state, "error", err)
			return Noop, fmt.Errorf("replace document: %w", err)
		}
		prev := s.state
		s.state = Synced
		s.pending = Unset()
		s.log.Info("content sync", "decision", Replace, "from", prev, "bytes", len(value))
		return Replace, nil
	}

	s.pending = external
	s.log.Info("content sync", "decision", Defer, "state", s.state, "bytes", len(value))
	return Defer, nil
}

// LocalChanged handles a local edit. A synced document becomes
// UserEditing; Initial is kept so the first external value still wins.
func (s *Synchronizer) LocalChanged() {
	if s.state == Synced {
		s.state = UserEditing
	}
}

// ResetIdentity handles a change of the record being edited while the
// surface stays mounted.
func (s *Synchronizer) ResetIdentity() {
	s.state = Initial
	s.pending = Unset()
}

// Retry reconciles the pending value again, typically after the editor
// lost focus. It returns Skip when nothing is pending.
func (s *Synchronizer) Retry(doc Document) (Decision, error) {
	if !s.pending.IsSet() {
		return Skip, nil
	}
	return s.Reconcile(s.pending, doc)
}
