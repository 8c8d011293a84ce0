package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/dgallion1/lessonsync/internal/markdown"
	"github.com/dgallion1/lessonsync/internal/mcpserver"
	"github.com/dgallion1/lessonsync/internal/parser"
	"github.com/dgallion1/lessonsync/internal/watch"
)

func convertCommand() *cli.Command {
	return &cli.Command{
		Name:      "convert",
		Usage:     "Convert a document to markdown",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "html", Usage: "Write HTML instead of markdown"},
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output file (default stdout)"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := cmd.Args().First()
			if path == "" {
				return errors.New("convert: file argument is required")
			}
			cls := classifier(cfg)
			p, err := parser.ForFile(path, parser.Options{Classifier: cls, PDFFallbackPdftotext: cfg.PDFFallbackPdftotext})
			if err != nil {
				return err
			}
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			tree, err := p.Parse(f, filepath.Base(path))
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}

			ser := &markdown.Serializer{Classifier: cls}
			out := ser.Serialize(tree)
			if cmd.Bool("html") {
				out = ser.HTML(tree)
			}
			if dst := cmd.String("out"); dst != "" {
				return os.WriteFile(dst, []byte(out+"\n"), 0o644)
			}
			_, err = fmt.Fprintln(os.Stdout, out)
			return err
		},
	}
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "Print the inferred heading level of each paragraph in an HTML file",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path := cmd.Args().First()
			if path == "" {
				return errors.New("classify: file argument is required")
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			results, err := classifier(cfg).ScanString(string(data))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		},
	}
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Convert documents under a directory to markdown as they change",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "Output directory", Required: true},
			&cli.BoolFlag{Name: "once", Usage: "Convert existing files and exit"},
			&cli.DurationFlag{Name: "debounce", Usage: "Delay after the last write before converting"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			root := cmd.Args().First()
			if root == "" {
				return errors.New("watch: directory argument is required")
			}
			log := newLogger(os.Stderr, cfg)
			w, err := watch.New(watch.Options{
				Root:     root,
				OutDir:   cmd.String("out"),
				Parser:   parser.Options{Classifier: classifier(cfg), PDFFallbackPdftotext: cfg.PDFFallbackPdftotext},
				Debounce: cmd.Duration("debounce"),
				Logger:   log,
			})
			if err != nil {
				return err
			}
			if cmd.Bool("once") {
				defer w.Close()
				return w.Scan()
			}
			return w.Run(ctx)
		},
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Serve the MCP tools over stdio",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return mcpserver.New(classifier(cfg), version).ServeStdio()
		},
	}
}
