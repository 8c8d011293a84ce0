// Package watch converts lesson documents in a directory tree to markdown
// as they change on disk. Each file is a mounted surface that is never
// focused, so every change on disk replaces its content.
package watch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/dgallion1/lessonsync/internal/contentsync"
	"github.com/dgallion1/lessonsync/internal/heading"
	"github.com/dgallion1/lessonsync/internal/markdown"
	"github.com/dgallion1/lessonsync/internal/parser"
	"github.com/dgallion1/lessonsync/internal/surface"
)

// EventCallback is called after a file is processed. rel is relative to
// the watched root.
type EventCallback func(rel string, d contentsync.Decision, err error)

// Options configures a Watcher.
type Options struct {
	Root   string
	OutDir string
	Parser parser.Options
	// Debounce delays processing after the last write to a file.
	Debounce time.Duration
	Logger   *slog.Logger
	OnEvent  EventCallback
}

// Watcher keeps one surface per source file.
type Watcher struct {
	opts Options
	ser  *markdown.Serializer
	log  *slog.Logger

	mu       sync.Mutex
	surfaces map[string]*surface.Surface
}

// New validates the directories and returns a watcher.
func New(opts Options) (*Watcher, error) {
	if opts.Root == "" || opts.OutDir == "" {
		return nil, errors.New("watch: root and output directory are required")
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	out, err := filepath.Abs(opts.OutDir)
	if err != nil {
		return nil, fmt.Errorf("watch: %w", err)
	}
	if root == out {
		return nil, errors.New("watch: output directory must differ from root")
	}
	opts.Root, opts.OutDir = root, out
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Parser.Classifier == nil {
		opts.Parser.Classifier = heading.Parse("")
	}
	return &Watcher{
		opts:     opts,
		ser:      &markdown.Serializer{Classifier: opts.Parser.Classifier},
		log:      opts.Logger.With("root", root),
		surfaces: make(map[string]*surface.Surface),
	}, nil
}

// Scan processes every supported file under the root once.
func (w *Watcher) Scan() error {
	return filepath.WalkDir(w.opts.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if w.inOutDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if parser.IsSupportedExtension(path) {
			w.process(path)
		}
		return nil
	})
}

// Run scans the root and then processes changes until ctx is done. All
// surfaces are unmounted on return.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()
	defer w.Close()

	if err := w.addDirsRecursive(fw, w.opts.Root); err != nil {
		return err
	}
	if err := w.Scan(); err != nil {
		return err
	}
	w.log.Info("watcher: started", "out", w.opts.OutDir)

	ready := make(chan string)
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()
	schedule := func(path string) {
		if t, ok := timers[path]; ok {
			t.Reset(w.opts.Debounce)
			return
		}
		timers[path] = time.AfterFunc(w.opts.Debounce, func() {
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher: stopped")
			return nil

		case path := <-ready:
			delete(timers, path)
			w.process(path)

		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.inOutDir(ev.Name) {
				continue
			}
			if ev.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(ev.Name); statErr == nil && info.IsDir() {
					if addErr := w.addDirsRecursive(fw, ev.Name); addErr != nil {
						w.log.Warn("watcher: add new dir failed", "path", ev.Name, "error", addErr)
					}
					continue
				}
			}
			if !parser.IsSupportedExtension(ev.Name) {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Create|fsnotify.Write) != 0:
				schedule(ev.Name)
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				if t, ok := timers[ev.Name]; ok {
					t.Stop()
					delete(timers, ev.Name)
				}
				w.remove(ev.Name)
			}

		case watchErr, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Error("watcher: error", "error", watchErr)
		}
	}
}

// Close unmounts every surface.
func (w *Watcher) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for rel, s := range w.surfaces {
		s.Unmount()
		delete(w.surfaces, rel)
	}
}

// Len returns the number of mounted surfaces.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.surfaces)
}

// OutputPath returns where the markdown for a source file is written.
func (w *Watcher) OutputPath(rel string) string {
	return filepath.Join(w.opts.OutDir, strings.TrimSuffix(rel, filepath.Ext(rel))+".md")
}

func (w *Watcher) process(path string) {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return
	}
	log := w.log.With("path", rel)

	d, err := w.convert(path, rel)
	if err != nil {
		log.Warn("watcher: convert failed", "error", err)
	} else {
		log.Debug("watcher: processed", "decision", d)
	}
	if w.opts.OnEvent != nil {
		w.opts.OnEvent(rel, d, err)
	}
}

func (w *Watcher) convert(path, rel string) (contentsync.Decision, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return contentsync.Skip, fmt.Errorf("read: %w", err)
	}
	p, err := parser.ForFile(path, w.opts.Parser)
	if err != nil {
		return contentsync.Skip, err
	}
	tree, err := p.Parse(bytes.NewReader(data), filepath.Base(path))
	if err != nil {
		return contentsync.Skip, fmt.Errorf("parse: %w", err)
	}

	s, err := w.surface(rel)
	if err != nil {
		return contentsync.Skip, err
	}
	d, err := s.SetContent(contentsync.Value(w.ser.Serialize(tree)))
	if err != nil || d != contentsync.Replace {
		return d, err
	}

	md, err := s.Markdown()
	if err != nil {
		return d, err
	}
	out := w.OutputPath(rel)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return d, fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(out, []byte(md+"\n"), 0o644); err != nil {
		return d, fmt.Errorf("write output: %w", err)
	}
	return d, nil
}

func (w *Watcher) surface(rel string) (*surface.Surface, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if s, ok := w.surfaces[rel]; ok {
		return s, nil
	}
	s, err := surface.Mount(surface.Options{
		Identity:   rel,
		Classifier: w.opts.Parser.Classifier,
		Logger:     w.log,
	}, contentsync.Unset())
	if err != nil {
		return nil, err
	}
	w.surfaces[rel] = s
	return s, nil
}

func (w *Watcher) remove(path string) {
	rel, err := filepath.Rel(w.opts.Root, path)
	if err != nil {
		return
	}
	w.mu.Lock()
	if s, ok := w.surfaces[rel]; ok {
		s.Unmount()
		delete(w.surfaces, rel)
	}
	w.mu.Unlock()

	if err := os.Remove(w.OutputPath(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.log.Warn("watcher: remove output failed", "path", rel, "error", err)
	}
	if w.opts.OnEvent != nil {
		w.opts.OnEvent(rel, contentsync.Skip, nil)
	}
}

func (w *Watcher) inOutDir(path string) bool {
	return path == w.opts.OutDir || strings.HasPrefix(path, w.opts.OutDir+string(filepath.Separator))
}

// addDirsRecursive adds root and all its subdirectories to the watcher.
func (w *Watcher) addDirsRecursive(fw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if w.inOutDir(path) {
			return filepath.SkipDir
		}
		return fw.Add(path)
	})
}
