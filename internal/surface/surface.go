// Package surface is a mounted editing surface: one editor engine, one
// content synchronizer and the serializer that links them. Surfaces are
// owned resources; Mount creates one and Unmount releases it.
package surface

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgallion1/lessonsync/internal/contentsync"
	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/editor"
	"github.com/dgallion1/lessonsync/internal/heading"
	"github.com/dgallion1/lessonsync/internal/markdown"
)

// ErrUnmounted is returned by every operation after Unmount.
var ErrUnmounted = errors.New("surface unmounted")

// Options configures a surface.
type Options struct {
	// Identity names the record being edited, e.g. a lesson ID.
	Identity     string
	Classifier   *heading.Classifier
	HistoryDepth int
	// OnChange receives the serialized document after every local edit.
	OnChange func(markdown string)
	// OnDecision receives each synchronizer decision with the external
	// value it was made for.
	OnDecision func(d contentsync.Decision, external string)
	Logger     *slog.Logger
}

// Surface serializes access to its engine with a mutex. Callbacks run
// after the mutex is released, so they may call back into the surface.
type Surface struct {
	mu       sync.Mutex
	identity string
	focused  bool
	mounted  bool

	engine *editor.Engine
	sync   *contentsync.Synchronizer
	ser    *markdown.Serializer
	log    *slog.Logger

	onChange   func(string)
	onDecision func(contentsync.Decision, string)
	outbox     []func()
}

// Mount creates a surface and reconciles the initial content, which may
// be Unset if it has not arrived yet.
func Mount(opts Options, initial contentsync.Content) (*Surface, error) {
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("identity", opts.Identity)
	cls := opts.Classifier
	if cls == nil {
		cls = heading.Parse("")
	}

	s := &Surface{
		identity:   opts.Identity,
		mounted:    true,
		engine:     editor.New(editor.Options{Classifier: cls, HistoryDepth: opts.HistoryDepth}),
		sync:       contentsync.New(log),
		ser:        &markdown.Serializer{Classifier: cls},
		log:        log,
		onChange:   opts.OnChange,
		onDecision: opts.OnDecision,
	}
	s.engine.Subscribe(editor.EventUpdate, s.localChanged)

	s.mu.Lock()
	_, err := s.reconcile(initial)
	s.unlockAndDeliver()
	if err != nil {
		s.Unmount()
		return nil, fmt.Errorf("mount: %w", err)
	}
	log.Debug("surface mounted")
	return s, nil
}

// Unmount destroys the engine. Queued callbacks are dropped and every
// later call returns ErrUnmounted. Unmount is idempotent.
func (s *Surface) Unmount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return
	}
	s.mounted = false
	s.outbox = nil
	s.engine.Destroy()
	s.log.Debug("surface unmounted")
}

// Mounted reports whether Unmount has not been called yet.
func (s *Surface) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// SetContent handles a change of the external content value.
func (s *Surface) SetContent(c contentsync.Content) (contentsync.Decision, error) {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if !s.mounted {
		return contentsync.Skip, ErrUnmounted
	}
	return s.reconcile(c)
}

// SetIdentity switches the surface to another record. A new identity
// resets the synchronizer so c replaces the document even while focused.
func (s *Surface) SetIdentity(id string, c contentsync.Content) (contentsync.Decision, error) {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if !s.mounted {
		return contentsync.Skip, ErrUnmounted
	}
	if id != s.identity {
		s.log.Info("identity changed", "to", id)
		s.identity = id
		s.log = s.log.With("identity", id)
		s.sync.ResetIdentity()
	}
	return s.reconcile(c)
}

// Focus marks the editor as focused.
func (s *Surface) Focus() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return ErrUnmounted
	}
	s.focused = true
	return nil
}

// Blur marks the editor as unfocused and applies deferred content, if any.
func (s *Surface) Blur() (contentsync.Decision, error) {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if !s.mounted {
		return contentsync.Skip, ErrUnmounted
	}
	s.focused = false
	pending, _ := s.sync.Pending()
	d, err := s.sync.Retry(document{s})
	if err == nil && d != contentsync.Skip {
		s.queueDecision(d, pending)
	}
	return d, err
}

// Apply runs an editor command as a local edit.
func (s *Surface) Apply(name string, args editor.Args) error {
	s.mu.Lock()
	defer s.unlockAndDeliver()
	if !s.mounted {
		return ErrUnmounted
	}
	return s.engine.Apply(name, args)
}

// Can reports whether a command would apply.
func (s *Surface) Can(name string, args editor.Args) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted && s.engine.Can(name, args)
}

// Snapshot is a consistent read of the surface.
type Snapshot struct {
	Identity    string `json:"identity"`
	State       string `json:"state"`
	Focused     bool   `json:"focused"`
	Markdown    string `json:"markdown"`
	HTML        string `json:"html"`
	Pending     bool   `json:"pending"`
	ActiveStyle string `json:"active_style"`
}

// Snapshot reads the surface under one lock.
func (s *Surface) Snapshot() (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return Snapshot{}, ErrUnmounted
	}
	_, pending := s.sync.Pending()
	t := s.engine.Tree()
	return Snapshot{
		Identity:    s.identity,
		State:       s.sync.State().String(),
		Focused:     s.focused,
		Markdown:    s.ser.Serialize(t),
		HTML:        s.ser.HTML(t),
		Pending:     pending,
		ActiveStyle: s.engine.ActiveStyle(0),
	}, nil
}

// Markdown serializes the current document.
func (s *Surface) Markdown() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return "", ErrUnmounted
	}
	return s.ser.Serialize(s.engine.Tree()), nil
}

// State returns the synchronizer state.
func (s *Surface) State() (contentsync.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return contentsync.Initial, ErrUnmounted
	}
	return s.sync.State(), nil
}

// ActiveStyle names the style of a top-level block for a toolbar.
func (s *Surface) ActiveStyle(block int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return "", ErrUnmounted
	}
	return s.engine.ActiveStyle(block), nil
}

// Outline returns the heading hierarchy of the document.
func (s *Surface) Outline() (*doctree.Outline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.mounted {
		return nil, ErrUnmounted
	}
	return doctree.BuildOutline(s.engine.Tree()), nil
}

func (s *Surface) reconcile(c contentsync.Content) (contentsync.Decision, error) {
	d, err := s.sync.Reconcile(c, document{s})
	if err != nil {
		return d, err
	}
	if v, ok := c.Get(); ok {
		s.queueDecision(d, v)
	}
	return d, nil
}

// localChanged runs inside engine.Apply, with the mutex held.
func (s *Surface) localChanged(t *doctree.Tree) {
	s.sync.LocalChanged()
	if s.onChange == nil {
		return
	}
	md := s.ser.Serialize(t)
	cb := s.onChange
	s.outbox = append(s.outbox, func() { cb(md) })
}

func (s *Surface) queueDecision(d contentsync.Decision, external string) {
	if s.onDecision == nil {
		return
	}
	cb := s.onDecision
	s.outbox = append(s.outbox, func() { cb(d, external) })
}

// unlockAndDeliver releases the mutex and then runs queued callbacks.
func (s *Surface) unlockAndDeliver() {
	out := s.outbox
	s.outbox = nil
	s.mu.Unlock()
	for _, fn := range out {
		fn()
	}
}

// document adapts the surface to contentsync.Document. Its methods run
// with the mutex held.
type document struct{ s *Surface }

func (d document) Markdown() string { return d.s.ser.Serialize(d.s.engine.Tree()) }
func (d document) Focused() bool    { return d.s.focused }

// Replace sets content without emitting a local change.
func (d document) Replace(content string) error {
	return d.s.engine.SetContent(content, false)
}
