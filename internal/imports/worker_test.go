package imports

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/lessonsync/internal/contentsync"
	"github.com/dgallion1/lessonsync/internal/sse"
)

type fakeDeliverer struct {
	mu       sync.Mutex
	calls    []string
	decision contentsync.Decision
	err      error
}

func (f *fakeDeliverer) Deliver(session, content string) (contentsync.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, session+":"+content)
	return f.decision, f.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (f *fakePublisher) Publish(e sse.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

func (f *fakePublisher) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.events)
}

func TestProcess_MarkdownWithoutSession(t *testing.T) {
	pub := &fakePublisher{}
	o := NewOrchestrator(Options{}, nil, pub, nil)
	job := NewJob("lesson.md", "", "", []byte("# Title\n\nBody text"))

	NewWorker(o, o.log).Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.Blocks != 2 || snap.Progress.Headings != 1 {
		t.Errorf("expected 2 blocks and 1 heading, got %+v", snap.Progress)
	}
	if snap.Markdown != "# Title\n\nBody text" {
		t.Errorf("unexpected markdown %q", snap.Markdown)
	}
	if pub.len() != 1 || pub.events[0].Type != sse.TypeImportFinished {
		t.Errorf("expected one import.finished event, got %+v", pub.events)
	}
}

func TestProcess_DeliversAndDeduplicates(t *testing.T) {
	d := &fakeDeliverer{decision: contentsync.Replace}
	o := NewOrchestrator(Options{}, d, nil, nil)
	w := NewWorker(o, o.log)

	first := NewJob("notes.txt", "", "sess-1", []byte("Hello\n\nWorld"))
	w.Process(context.Background(), first)
	if got := first.Snapshot(); got.Status != StatusCompleted || got.Decision != "replace" {
		t.Fatalf("expected completed replace, got %s %q", got.Status, got.Decision)
	}

	again := NewJob("notes.txt", "", "sess-1", []byte("Hello\n\nWorld"))
	w.Process(context.Background(), again)
	if got := again.Snapshot().Status; got != StatusDupSkipped {
		t.Errorf("expected duplicate_skipped, got %s", got)
	}

	other := NewJob("notes.txt", "", "sess-2", []byte("Hello\n\nWorld"))
	w.Process(context.Background(), other)
	if got := other.Snapshot().Status; got != StatusCompleted {
		t.Errorf("expected other session to receive content, got %s", got)
	}
	if len(d.calls) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(d.calls))
	}
	if !strings.HasPrefix(d.calls[0], "sess-1:Hello") {
		t.Errorf("unexpected delivery %q", d.calls[0])
	}
}

func TestProcess_Failures(t *testing.T) {
	o := NewOrchestrator(Options{}, &fakeDeliverer{err: errors.New("session not found")}, nil, nil)
	w := NewWorker(o, o.log)

	unsupported := NewJob("slides.pptx", "", "", []byte("x"))
	w.Process(context.Background(), unsupported)
	if got := unsupported.Snapshot(); got.Status != StatusFailed || len(got.Progress.Errors) != 1 {
		t.Errorf("expected failed with one error, got %s %v", got.Status, got.Progress.Errors)
	}

	empty := NewJob("blank.txt", "", "", []byte("\n\n"))
	w.Process(context.Background(), empty)
	if got := empty.Snapshot().Status; got != StatusFailed {
		t.Errorf("expected empty document to fail, got %s", got)
	}

	undeliverable := NewJob("a.txt", "", "gone", []byte("text"))
	w.Process(context.Background(), undeliverable)
	snap := undeliverable.Snapshot()
	if snap.Status != StatusFailed || snap.Phase != "delivering" {
		t.Errorf("expected failure while delivering, got %s/%s", snap.Status, snap.Phase)
	}
}

func TestOrchestrator_SubmitProcesses(t *testing.T) {
	pub := &fakePublisher{}
	o := NewOrchestrator(Options{Workers: 1}, nil, pub, nil)
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("a.html", "Custom", "", []byte(`<p style="font-size:24pt">Big</p><p>Small</p>`))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Fatal("expected job to be retrievable")
	}

	deadline := time.Now().Add(5 * time.Second)
	for pub.len() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", snap.Status)
	}
	if snap.Markdown != "# Big\n\nSmall" {
		t.Errorf("expected 24pt paragraph to become h1, got %q", snap.Markdown)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	o := NewOrchestrator(Options{MaxQueueSize: 1}, nil, nil, nil)
	if err := o.Submit(NewJob("a.txt", "", "", []byte("a"))); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := NewJob("b.txt", "", "", []byte("b"))
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if second.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %s", second.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected depth 1, got %d", o.QueueDepth())
	}
}
