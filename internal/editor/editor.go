// Package editor is the rich-text engine behind an editing surface. It
// owns a content tree, applies named commands to it, keeps a bounded
// undo history and notifies subscribers of changes.
//
// An Engine is not safe for concurrent use; the owning surface serializes
// access.
package editor

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/heading"
	"github.com/dgallion1/lessonsync/internal/parser"
)

var (
	ErrUnknownCommand  = errors.New("unknown command")
	ErrBlockOutOfRange = errors.New("block out of range")
	ErrInvalidLevel    = errors.New("heading level must be 1-5")
	ErrInvalidArgs     = errors.New("invalid command arguments")
	ErrNoHistory       = errors.New("nothing to undo or redo")
	ErrDestroyed       = errors.New("editor destroyed")
)

// DefaultHistoryDepth bounds the undo stack when Options leaves it unset.
const DefaultHistoryDepth = 100

// Event names a change notification.
type Event string

const (
	// EventUpdate fires after a local command changed the document.
	EventUpdate Event = "update"
	// EventTransaction fires after every change, programmatic or local.
	EventTransaction Event = "transaction"
)

// Listener receives the document after a change. It must not modify it.
type Listener func(t *doctree.Tree)

// Options configures an Engine.
type Options struct {
	Classifier   *heading.Classifier
	HistoryDepth int
}

// Engine owns one document tree and applies commands to it.
type Engine struct {
	cls   *heading.Classifier
	depth int

	tree *doctree.Tree
	undo []*doctree.Tree
	redo []*doctree.Tree

	listeners map[Event][]subscription
	nextSub   int
	destroyed bool
}

type subscription struct {
	id int
	fn Listener
}

// New returns an engine holding an empty document.
func New(opts Options) *Engine {
	depth := opts.HistoryDepth
	if depth <= 0 {
		depth = DefaultHistoryDepth
	}
	cls := opts.Classifier
	if cls == nil {
		cls = heading.Parse("")
	}
	return &Engine{
		cls:       cls,
		depth:     depth,
		tree:      doctree.New(),
		listeners: make(map[Event][]subscription),
	}
}

// Classifier returns the heading classifier used to parse content.
func (e *Engine) Classifier() *heading.Classifier { return e.cls }

// Tree returns the current document. Callers must not modify it; use
// Apply.
func (e *Engine) Tree() *doctree.Tree { return e.tree }

// SetContent replaces the document with parsed content. The replace is
// recorded in history. EventTransaction always fires; EventUpdate only
// when emitUpdate is set.
func (e *Engine) SetContent(content string, emitUpdate bool) error {
	if e.destroyed {
		return ErrDestroyed
	}
	tree, err := parser.Content(content, e.cls)
	if err != nil {
		return fmt.Errorf("set content: %w", err)
	}
	e.commit(tree)
	e.emit(EventTransaction)
	if emitUpdate {
		e.emit(EventUpdate)
	}
	return nil
}

// Apply runs a named command. Commands are atomic: on error the document
// is unchanged and no event fires.
func (e *Engine) Apply(name string, args Args) error {
	if e.destroyed {
		return ErrDestroyed
	}
	switch name {
	case "undo":
		if !e.step(&e.undo, &e.redo) {
			return ErrNoHistory
		}
	case "redo":
		if !e.step(&e.redo, &e.undo) {
			return ErrNoHistory
		}
	default:
		cmd, ok := commands[name]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownCommand, name)
		}
		work := e.tree.Clone()
		if err := cmd(work, args); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		e.commit(work)
	}
	e.emit(EventTransaction)
	e.emit(EventUpdate)
	return nil
}

// Can reports whether Apply would succeed, without changing anything.
func (e *Engine) Can(name string, args Args) bool {
	if e.destroyed {
		return false
	}
	switch name {
	case "undo":
		return len(e.undo) > 0
	case "redo":
		return len(e.redo) > 0
	}
	cmd, ok := commands[name]
	if !ok {
		return false
	}
	return cmd(e.tree.Clone(), args) == nil
}

// Subscribe registers fn for ev and returns a function that removes it.
func (e *Engine) Subscribe(ev Event, fn Listener) (unsubscribe func()) {
	e.nextSub++
	id := e.nextSub
	e.listeners[ev] = append(e.listeners[ev], subscription{id: id, fn: fn})
	return func() {
		subs := e.listeners[ev]
		for i, s := range subs {
			if s.id == id {
				e.listeners[ev] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// ActiveStyle names the block style at top-level index block: "h1".."h5"
// for headings, "p" for everything else.
func (e *Engine) ActiveStyle(block int) string {
	id := e.tree.Block(block)
	if id == doctree.NoNode {
		return "p"
	}
	if n := e.tree.At(id); n.Kind == doctree.KindHeading && n.Level >= 1 && n.Level <= 5 {
		return "h" + strconv.Itoa(n.Level)
	}
	return "p"
}

// Destroy drops all listeners and history. Later calls fail with
// ErrDestroyed.
func (e *Engine) Destroy() {
	e.destroyed = true
	e.listeners = make(map[Event][]subscription)
	e.undo, e.redo = nil, nil
}

// Destroyed reports whether Destroy has been called.
func (e *Engine) Destroyed() bool { return e.destroyed }

func (e *Engine) commit(next *doctree.Tree) {
	e.undo = append(e.undo, e.tree)
	if len(e.undo) > e.depth {
		e.undo = e.undo[len(e.undo)-e.depth:]
	}
	e.redo = nil
	e.tree = next
}

// step moves the current tree onto to and restores the top of from.
func (e *Engine) step(from, to *[]*doctree.Tree) bool {
	if len(*from) == 0 {
		return false
	}
	prev := (*from)[len(*from)-1]
	*from = (*from)[:len(*from)-1]
	*to = append(*to, e.tree)
	e.tree = prev
	return true
}

func (e *Engine) emit(ev Event) {
	// Copy so listeners may unsubscribe while being notified.
	subs := append([]subscription(nil), e.listeners[ev]...)
	for _, s := range subs {
		s.fn(e.tree)
	}
}
