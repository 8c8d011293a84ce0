package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/lessonsync/internal/api"
	"github.com/dgallion1/lessonsync/internal/imports"
	"github.com/dgallion1/lessonsync/internal/parser"
	"github.com/dgallion1/lessonsync/internal/session"
	"github.com/dgallion1/lessonsync/internal/sse"
	"github.com/dgallion1/lessonsync/internal/upload"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "port", Usage: "Listen port (overrides PORT)"},
		},
		Action: serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if p := cmd.String("port"); p != "" {
		cfg.Port = p
	}
	log := newLogger(os.Stdout, cfg)
	if cfg.APIKey == "" {
		log.Warn("LESSONSYNC_API_KEY is empty, authentication disabled")
	}
	cls := classifier(cfg)

	broker := sse.NewBroker(0)
	defer broker.Close()

	sessions := session.NewRegistry(session.Options{
		TTL:           cfg.SessionTTL,
		SweepInterval: cfg.SessionSweepInterval,
		HistoryDepth:  cfg.HistoryDepth,
		Classifier:    cls,
	}, broker, log)

	orch := imports.NewOrchestrator(imports.Options{
		Workers:      cfg.ImportWorkers,
		MaxQueueSize: cfg.MaxQueueSize,
		JobTTL:       cfg.JobTTL,
		Parser:       parser.Options{Classifier: cls, PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
	}, sessions, broker, log)

	var uploads *upload.Client
	if cfg.Upload.Configured() {
		uploads = upload.NewClient(upload.Config{
			BaseURL:   cfg.Upload.BaseURL,
			CloudName: cfg.Upload.CloudName,
			Preset:    cfg.Upload.Preset,
			Folder:    cfg.Upload.Folder,
		}, log)
		defer uploads.Close()
	}

	srv := api.NewServer(api.Deps{
		Sessions:   sessions,
		Imports:    orch,
		Uploads:    uploads,
		Events:     broker,
		Classifier: cls,
	}, log, cfg)

	httpServer := &http.Server{
		Addr:        ":" + cfg.Port,
		Handler:     srv,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No write timeout: the events stream is long-lived.
	}

	g, gCtx := errgroup.WithContext(ctx)

	orch.Start(gCtx)
	defer orch.Stop()

	g.Go(func() error {
		return sessions.Run(gCtx)
	})

	g.Go(func() error {
		log.Info("starting lessonsync", "port", cfg.Port, "language", cls.Language().String())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("http shutdown error", "error", err)
		}
		return nil
	})

	return g.Wait()
}
