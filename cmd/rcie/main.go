// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the rcie CLI: it walks a workspace's source
// files, extracts symbols, macro-expands, resolves calls, and populates a
// Memgraph property graph (spec.md §1, §6).
//
// Usage:
//
//	rcie run <path>...             Extract and load the given source files
//	rcie run <path>... --dry-run   Extract and print a summary, skip the graph
//	rcie run <path>... --json      Emit the run summary as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/rcie/pkg/config"
	"github.com/kraklabs/rcie/pkg/graph"
	"github.com/kraklabs/rcie/pkg/pipeline"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to rcie.yaml configuration file")
		jsonOutput  = flag.Bool("json", false, "Output the run summary as JSON")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		dryRun      = flag.Bool("dry-run", false, "Extract and resolve but skip loading into Memgraph")
		crateName   = flag.String("crate", "workspace", "Crate name to attribute single-crate input to")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `rcie - symbol extraction and graph population

Usage:
  rcie run [options] <path>...    Parse the given files/directories and load the graph
  rcie --version                  Show version and exit

Options:
`)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("rcie version %s (commit %s, built %s)\n", version, commit, date)
		os.Exit(0)
	}
	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}
	color.NoColor = *noColor || !isatty.IsTerminal(os.Stdout.Fd())

	args := flag.Args()
	if len(args) < 2 || args[0] != "run" {
		flag.Usage()
		os.Exit(1)
	}
	paths := args[1:]

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rcie: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	if *dryRun {
		cfg.Memgraph.CleanStart = false
	}

	files, err := discoverFiles(paths, *crateName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rcie: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var loader *graph.Client
	if !*dryRun {
		loader, err = graph.Connect(ctx, cfg.Memgraph, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "rcie: connect to memgraph: %v\n", err)
			os.Exit(1)
		}
		defer loader.Close(ctx)
	}

	p := pipeline.New(cfg, logger, loader)

	var bar *progressbar.ProgressBar
	if !*jsonOutput {
		bar = progressbar.NewOptions64(int64(len(files)),
			progressbar.OptionSetDescription("parsing"),
			progressbar.OptionShowCount(),
		)
		p.SetProgressCallback(func(current, total int64, phase string) {
			bar.Describe(phase)
			_ = bar.Set64(current)
		})
	}

	summary, err := p.Run(ctx, pipeline.Input{Files: files})
	if err != nil {
		fmt.Fprintf(os.Stderr, "rcie: %v\n", err)
		os.Exit(1)
	}

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(summary)
		return
	}
	printSummary(summary)
}

func discoverFiles(paths []string, crateName string) ([]pipeline.SourceFile, error) {
	var files []pipeline.SourceFile
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", root, err)
		}
		if !info.IsDir() {
			files = append(files, pipeline.SourceFile{CrateName: crateName, Path: root})
			continue
		}
		err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if d.Name() == "target" || d.Name() == ".git" {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasSuffix(path, ".rs") {
				files = append(files, pipeline.SourceFile{CrateName: crateName, Path: path})
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func printSummary(s *pipeline.RunSummary) {
	bold := color.New(color.Bold)
	bold.Println("rcie run summary")
	fmt.Printf("  files processed:     %d (errors: %d)\n", s.FilesProcessed, s.ParseErrors)
	fmt.Printf("  functions:           %d\n", s.FunctionsExtracted)
	fmt.Printf("  types:               %d\n", s.TypesExtracted)
	fmt.Printf("  actors:              %d\n", s.ActorsExtracted)
	fmt.Printf("  macro expansions:    %d\n", s.MacroExpansions)
	fmt.Printf("  calls:               %d (cross-crate: %d, synthetic: %d, unresolved: %d)\n",
		s.CallsExtracted, s.CrossCrateCalls, s.SyntheticCalls, s.UnresolvedCalls)
	if s.NodesCreated > 0 || s.EdgesCreated > 0 {
		fmt.Printf("  graph nodes/edges:   %d / %d\n", s.NodesCreated, s.EdgesCreated)
	}
	fmt.Printf("  parse/resolve/load:  %s / %s / %s\n", s.ParseDuration, s.ResolveDuration, s.LoadDuration)
	fmt.Printf("  total:               %s\n", s.TotalDuration)
}
