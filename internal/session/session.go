// Package session keeps mounted editing surfaces addressable by ID so that
// HTTP and MCP clients can drive them. Idle sessions are unmounted after a
// TTL.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/lessonsync/internal/contentsync"
	"github.com/dgallion1/lessonsync/internal/heading"
	"github.com/dgallion1/lessonsync/internal/sse"
	"github.com/dgallion1/lessonsync/internal/surface"
)

var ErrNotFound = errors.New("session not found")

// Publisher receives session events. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
	PublishContent(kind, session string, data any)
}

// Options configures a Registry.
type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	HistoryDepth  int
	Classifier    *heading.Classifier
}

// Session is one mounted surface plus the value its owner last stored.
type Session struct {
	ID        string
	Surface   *surface.Surface
	CreatedAt time.Time

	mu       sync.Mutex
	lastUsed time.Time
	stored   string
	changes  int
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastUsed = time.Now()
}

// Stored returns the markdown last emitted by onChange and how many local
// changes the session has seen.
func (s *Session) Stored() (string, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stored, s.changes
}

func (s *Session) store(md string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stored = md
	s.changes++
	s.lastUsed = time.Now()
}

func (s *Session) idle(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed)
}

// Registry is a thread-safe set of sessions with TTL eviction.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	opts Options
	pub  Publisher
	log  *slog.Logger
}

// NewRegistry returns an empty registry. pub and log may be nil.
func NewRegistry(opts Options, pub Publisher, log *slog.Logger) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = 30 * time.Minute
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		sessions: make(map[string]*Session),
		opts:     opts,
		pub:      pub,
		log:      log,
	}
}

// Create mounts a surface for identity with initial content, which may be
// Unset.
func (r *Registry) Create(identity string, initial contentsync.Content) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        uuid.NewString(),
		CreatedAt: now,
		lastUsed:  now,
	}
	log := r.log.With("session_id", sess.ID)

	surf, err := surface.Mount(surface.Options{
		Identity:     identity,
		Classifier:   r.opts.Classifier,
		HistoryDepth: r.opts.HistoryDepth,
		Logger:       log,
		OnChange: func(md string) {
			sess.store(md)
			r.publishContent(sse.TypeContentChanged, sess.ID, map[string]any{"markdown": md})
		},
		OnDecision: func(d contentsync.Decision, external string) {
			switch d {
			case contentsync.Replace:
				r.publishContent(sse.TypeContentReplaced, sess.ID, map[string]any{"bytes": len(external)})
			case contentsync.Defer:
				r.publishContent(sse.TypeContentDeferred, sess.ID, map[string]any{"bytes": len(external)})
			}
		},
	}, initial)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess.Surface = surf

	r.mu.Lock()
	r.sessions[sess.ID] = sess
	r.mu.Unlock()

	log.Info("session created", "identity", identity)
	return sess, nil
}

// Get returns a live session and marks it used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	sess.touch()
	return sess, nil
}

// Deliver hands external content to a session, as when a network load or
// an import finishes.
func (r *Registry) Deliver(id, content string) (contentsync.Decision, error) {
	sess, err := r.Get(id)
	if err != nil {
		return contentsync.Skip, err
	}
	return sess.Surface.SetContent(contentsync.Value(content))
}

// Close unmounts and removes a session.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	r.unmount(sess, "closed")
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep unmounts sessions idle for longer than the TTL.
func (r *Registry) Sweep() int {
	now := time.Now()
	var expired []*Session
	r.mu.Lock()
	for id, sess := range r.sessions {
		if sess.idle(now) > r.opts.TTL {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, sess := range expired {
		r.unmount(sess, "expired")
	}
	return len(expired)
}

// Run sweeps until ctx is done, then unmounts every session.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.closeAll()
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.log.Info("expired sessions", "count", n)
			}
		}
	}
}

func (r *Registry) closeAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()
	for _, sess := range all {
		r.unmount(sess, "shutdown")
	}
}

func (r *Registry) unmount(sess *Session, reason string) {
	sess.Surface.Unmount()
	r.log.Info("session closed", "session_id", sess.ID, "reason", reason)
	if r.pub != nil {
		r.pub.Publish(sse.Event{Type: sse.TypeSessionClosed, Session: sess.ID, Data: map[string]string{"reason": reason}})
	}
}

func (r *Registry) publishContent(kind, id string, data any) {
	if r.pub != nil {
		r.pub.PublishContent(kind, id, data)
	}
}
