package contentsync

import (
	"errors"
	"testing"
)

type fakeDoc struct {
	md       string
	focused  bool
	replaces int
	err      error
}

func (d *fakeDoc) Markdown() string { return d.md }
func (d *fakeDoc) Focused() bool    { return d.focused }
func (d *fakeDoc) Replace(content string) error {
	if d.err != nil {
		return d.err
	}
	d.md = content
	d.replaces++
	return nil
}

func reconcile(t *testing.T, s *Synchronizer, c Content, d *fakeDoc) Decision {
	t.Helper()
	dec, err := s.Reconcile(c, d)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	return dec
}

func TestReconcile_Table(t *testing.T) {
	tests := []struct {
		name      string
		state     State
		doc       string
		focused   bool
		external  Content
		want      Decision
		wantState State
		wantDoc   string
	}{
		{"equal is noop", UserEditing, "a", true, Value("a"), Noop, UserEditing, "a"},
		{"initial replaces while focused", Initial, "typed", true, Value("loaded"), Replace, Synced, "loaded"},
		{"initial equal stays initial", Initial, "", true, Value(""), Noop, Initial, ""},
		{"blurred replaces", UserEditing, "mine", false, Value("theirs"), Replace, Synced, "theirs"},
		{"focused editing defers", UserEditing, "mine", true, Value("theirs"), Defer, UserEditing, "mine"},
		{"focused synced defers", Synced, "mine", true, Value("theirs"), Defer, Synced, "mine"},
		{"empty clears while focused", UserEditing, "mine", true, Value(""), Replace, Synced, ""},
		{"unset skips", Initial, "mine", false, Unset(), Skip, Initial, "mine"},
		{"zero value skips", Synced, "mine", false, Content{}, Skip, Synced, "mine"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(nil)
			s.state = tt.state
			d := &fakeDoc{md: tt.doc, focused: tt.focused}
			if got := reconcile(t, s, tt.external, d); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
			if s.State() != tt.wantState {
				t.Errorf("expected state %s, got %s", tt.wantState, s.State())
			}
			if d.md != tt.wantDoc {
				t.Errorf("expected doc %q, got %q", tt.wantDoc, d.md)
			}
		})
	}
}

func TestEchoIsNoop(t *testing.T) {
	s := New(nil)
	d := &fakeDoc{focused: true}
	reconcile(t, s, Value("hello"), d)

	// The user types; the owner stores onChange(serialize) and echoes it.
	d.md = "hello world"
	s.LocalChanged()
	if s.State() != UserEditing {
		t.Fatalf("expected user_editing, got %s", s.State())
	}
	if got := reconcile(t, s, Value("hello world"), d); got != Noop {
		t.Errorf("expected echo to be noop, got %s", got)
	}
	if d.replaces != 1 {
		t.Errorf("expected a single replace, got %d", d.replaces)
	}
}

func TestDeferThenRetry(t *testing.T) {
	s := New(nil)
	d := &fakeDoc{focused: true}
	reconcile(t, s, Value("v1"), d)
	s.LocalChanged()
	d.md = "v1 edited"

	if got := reconcile(t, s, Value("v2"), d); got != Defer {
		t.Fatalf("expected defer, got %s", got)
	}
	if p, ok := s.Pending(); !ok || p != "v2" {
		t.Fatalf("expected pending v2, got %q %v", p, ok)
	}

	// Still focused: retry defers again.
	dec, err := s.Retry(d)
	if err != nil || dec != Defer {
		t.Fatalf("expected defer on focused retry, got %s %v", dec, err)
	}

	d.focused = false
	dec, err = s.Retry(d)
	if err != nil || dec != Replace {
		t.Fatalf("expected replace after blur, got %s %v", dec, err)
	}
	if d.md != "v2" {
		t.Errorf("expected v2, got %q", d.md)
	}
	if _, ok := s.Pending(); ok {
		t.Error("expected pending to be cleared")
	}
	if dec, _ := s.Retry(d); dec != Skip {
		t.Errorf("expected skip with nothing pending, got %s", dec)
	}
}

func TestResetIdentity(t *testing.T) {
	s := New(nil)
	d := &fakeDoc{focused: true}
	reconcile(t, s, Value("lesson A"), d)
	s.LocalChanged()
	d.md = "lesson A typed"
	reconcile(t, s, Value("lesson A v2"), d)

	s.ResetIdentity()
	if s.State() != Initial {
		t.Fatalf("expected initial, got %s", s.State())
	}
	if _, ok := s.Pending(); ok {
		t.Error("expected identity change to drop pending content")
	}
	if got := reconcile(t, s, Value("lesson B"), d); got != Replace {
		t.Errorf("expected replace for new identity while focused, got %s", got)
	}
}

func TestLocalChangedKeepsInitial(t *testing.T) {
	s := New(nil)
	s.LocalChanged()
	if s.State() != Initial {
		t.Errorf("expected initial, got %s", s.State())
	}
}

func TestReplaceFailure(t *testing.T) {
	s := New(nil)
	boom := errors.New("boom")
	d := &fakeDoc{md: "old", err: boom}
	dec, err := s.Reconcile(Value("new"), d)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if dec != Noop || s.State() != Initial || d.md != "old" {
		t.Errorf("expected nothing to change, got %s %s %q", dec, s.State(), d.md)
	}
}

func TestStrings(t *testing.T) {
	if UserEditing.String() != "user_editing" || Defer.String() != "defer" {
		t.Errorf("unexpected names %s %s", UserEditing, Defer)
	}
	if State(9).String() != "State(9)" {
		t.Errorf("unexpected %s", State(9))
	}
}
