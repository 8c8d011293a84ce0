package imports

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/dgallion1/lessonsync/internal/doctree"
	"github.com/dgallion1/lessonsync/internal/parser"
	"github.com/dgallion1/lessonsync/internal/sse"
)

// Worker processes a single import job.
type Worker struct {
	o   *Orchestrator
	log *slog.Logger
}

func NewWorker(o *Orchestrator, log *slog.Logger) *Worker {
	return &Worker{o: o, log: log}
}

// Process parses, serializes and optionally delivers a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "session_id", job.Session, "filename", job.Filename)
	defer w.finished(job)

	// Phase 1: Parse
	job.SetStatus(StatusParsing, "parsing")
	p, err := parser.ForFile(job.Filename, w.o.opts.Parser)
	if err != nil {
		log.Error("unsupported format", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	tree, err := p.Parse(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Error("parse failed", "error", err)
		job.AddError(fmt.Sprintf("parse: %s", err))
		job.SetStatus(StatusFailed, "parsing")
		return
	}
	if job.Title != "" {
		tree.Title = job.Title
	}
	if ctx.Err() != nil {
		job.AddError(ctx.Err().Error())
		job.SetStatus(StatusFailed, "parsing")
		return
	}

	// Phase 2: Serialize
	job.SetStatus(StatusSerializing, "serializing")
	md := w.o.ser.Serialize(tree)
	blocks, headings := countBlocks(tree)
	job.SetResult(md, blocks, headings)
	log.Info("converted document", "blocks", blocks, "headings", headings, "bytes", len(md))

	if md == "" {
		job.AddError("no content")
		job.SetStatus(StatusFailed, "serializing")
		return
	}
	if job.Session == "" || w.o.deliver == nil {
		job.SetStatus(StatusCompleted, "done")
		return
	}

	// Phase 3: Deliver
	if prev, dup := w.o.markSeen(job.Session, job.ContentHash, job.ID); dup {
		log.Info("duplicate import, skipping delivery", "previous_job_id", prev)
		job.SetStatus(StatusDupSkipped, "dedup")
		return
	}
	job.SetStatus(StatusDelivering, "delivering")
	d, err := w.o.deliver.Deliver(job.Session, md)
	if err != nil {
		log.Error("delivery failed", "error", err)
		job.AddError(fmt.Sprintf("deliver: %s", err))
		job.SetStatus(StatusFailed, "delivering")
		return
	}
	job.SetDecision(d.String())
	log.Info("delivered import", "decision", d)
	job.SetStatus(StatusCompleted, "done")
}

func (w *Worker) finished(job *Job) {
	if w.o.pub == nil {
		return
	}
	snap := job.Snapshot()
	w.o.pub.Publish(sse.Event{
		Type:    sse.TypeImportFinished,
		Session: job.Session,
		Data: map[string]any{
			"job_id":   snap.ID,
			"status":   snap.Status,
			"decision": snap.Decision,
		},
	})
}

// countBlocks returns the number of top-level blocks and headings.
func countBlocks(t *doctree.Tree) (blocks, headings int) {
	for _, id := range t.Blocks() {
		blocks++
		if t.At(id).Kind == doctree.KindHeading {
			headings++
		}
	}
	return blocks, headings
}
