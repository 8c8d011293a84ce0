// Package imports converts uploaded documents to lesson markdown in the
// background and optionally hands the result to an editing session as
// external content.
package imports

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/lessonsync/internal/contentsync"
	"github.com/dgallion1/lessonsync/internal/markdown"
	"github.com/dgallion1/lessonsync/internal/parser"
	"github.com/dgallion1/lessonsync/internal/sse"
)

// Deliverer accepts converted content for a session.
// *session.Registry implements it.
type Deliverer interface {
	Deliver(session, content string) (contentsync.Decision, error)
}

// Publisher receives import.finished events. *sse.Broker implements it.
type Publisher interface {
	Publish(event sse.Event)
}

// Options configures the orchestrator.
type Options struct {
	Workers      int
	MaxQueueSize int
	JobTTL       time.Duration
	Parser       parser.Options
}

// Orchestrator manages the import queue and its workers.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	deliver Deliverer
	pub     Publisher
	ser     *markdown.Serializer
	log     *slog.Logger
	opts    Options

	seenMu sync.Mutex
	seen   map[string]string // session + content hash -> job ID

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the queue. deliver and pub may be nil.
func NewOrchestrator(opts Options, deliver Deliverer, pub Publisher, log *slog.Logger) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.MaxQueueSize <= 0 {
		opts.MaxQueueSize = 100
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = time.Hour
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Orchestrator{
		jobs:    NewJobStore(opts.JobTTL),
		queue:   make(chan *Job, opts.MaxQueueSize),
		deliver: deliver,
		pub:     pub,
		ser:     &markdown.Serializer{Classifier: opts.Parser.Classifier},
		log:     log,
		opts:    opts,
		seen:    make(map[string]string),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for range o.opts.Workers {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o, o.log)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
				}
			}
		}()
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop cancels the workers and waits for them.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
}

// NewJob builds a queued job. session may be empty.
func NewJob(filename, title, session string, data []byte) *Job {
	now := time.Now()
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	job := &Job{
		ID:        id.String(),
		Session:   session,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	job.SetFileData(data)
	return job
}

// Submit queues a job for processing.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("import queue is full (%d)", o.opts.MaxQueueSize)
	}
}

// GetJob returns a job by ID, or nil.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// markSeen records that session received content with hash and reports
// the earlier job ID if it already had.
func (o *Orchestrator) markSeen(session, hash, jobID string) (string, bool) {
	o.seenMu.Lock()
	defer o.seenMu.Unlock()
	key := session + "/" + hash
	if prev, ok := o.seen[key]; ok {
		return prev, true
	}
	o.seen[key] = jobID
	return "", false
}
