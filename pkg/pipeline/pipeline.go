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

// Package pipeline orchestrates the full extraction-to-graph run described
// in spec.md §2: parse, walk, macro-expand, merge, resolve, load. Shaped on
// the teacher's LocalPipeline (pkg/ingestion/local_pipeline.go), including
// its parallel-file-parsing and progress-callback conventions.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kraklabs/rcie/pkg/config"
	"github.com/kraklabs/rcie/pkg/graph"
	"github.com/kraklabs/rcie/pkg/macroengine"
	"github.com/kraklabs/rcie/pkg/merge"
	"github.com/kraklabs/rcie/pkg/resolver"
	"github.com/kraklabs/rcie/pkg/rustmodel"
	"github.com/kraklabs/rcie/pkg/rustparse"
)

// SourceFile is a single file to parse, scoped to the crate that owns it.
// Workspace discovery (which crates exist and which files belong to them)
// is an external collaborator's job per spec.md §1 Non-goals; the pipeline
// only consumes the resulting flat list.
type SourceFile struct {
	CrateName string
	Path      string
}

// ProgressCallback mirrors the teacher's pkg/ingestion/local_pipeline.go
// ProgressCallback: (current, total, phase).
type ProgressCallback func(current, total int64, phase string)

// Input is everything workspace discovery hands the pipeline.
type Input struct {
	Crates []rustmodel.Crate
	Files  []SourceFile
}

// RunSummary reports the outcome of one pipeline run (SPEC_FULL.md §3.1),
// on the model of the teacher's IngestionResult.
type RunSummary struct {
	FilesProcessed     int
	ParseErrors        int
	FunctionsExtracted int
	TypesExtracted     int
	ActorsExtracted    int
	ActorSpawns        int
	MacroExpansions    int
	CallsExtracted     int
	CrossCrateCalls    int
	SyntheticCalls     int
	UnresolvedCalls    int
	NodesCreated       int
	EdgesCreated       int
	NodesFailed        int
	EdgesFailed        int
	ParseDuration      time.Duration
	ResolveDuration    time.Duration
	LoadDuration       time.Duration
	TotalDuration      time.Duration
}

// Pipeline wires the extraction stages to an optional graph sink. Loader
// is nil in analyze-only/dry-run modes (spec.md §6 "--dry-run").
type Pipeline struct {
	cfg        config.Config
	logger     *slog.Logger
	loader     *graph.Client
	macroEng   *macroengine.Engine
	onProgress ProgressCallback
}

// New builds a Pipeline. loader may be nil to skip the graph-population
// stage entirely.
func New(cfg config.Config, logger *slog.Logger, loader *graph.Client) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{cfg: cfg, logger: logger, loader: loader, macroEng: macroengine.New()}
}

// SetProgressCallback installs an optional progress reporter for the
// parsing phase.
func (p *Pipeline) SetProgressCallback(cb ProgressCallback) {
	p.onProgress = cb
}

func (p *Pipeline) reportProgress(current, total int64, phase string) {
	if p.onProgress != nil {
		p.onProgress(current, total, phase)
	}
}

// Run executes parse -> macro-expand -> merge -> resolve -> load, per
// spec.md §2's pipeline ordering.
func (p *Pipeline) Run(ctx context.Context, input Input) (*RunSummary, error) {
	start := time.Now()
	summary := &RunSummary{}

	sort.Slice(input.Files, func(i, j int) bool { return input.Files[i].Path < input.Files[j].Path })

	parseStart := time.Now()
	workers := p.cfg.Performance.MaxThreads
	if workers <= 0 {
		workers = 4
	}
	batches := p.parseFilesParallel(ctx, input.Files, workers, summary)
	summary.ParseDuration = time.Since(parseStart)

	merged := merge.Merge(batches)
	summary.FunctionsExtracted = len(merged.Functions)
	summary.TypesExtracted = len(merged.Types)
	summary.ActorsExtracted = len(merged.Actors)
	summary.ActorSpawns = len(merged.ActorSpawns)
	summary.MacroExpansions = len(merged.MacroExpansions)

	resolveStart := time.Now()
	res := resolver.New()
	res.BuildIndex(merged)
	merged.Calls = res.ResolveCalls(merged.Calls)
	merged.Calls = append(merged.Calls, resolver.SyntheticTraitMethodCalls(merged)...)
	summary.ResolveDuration = time.Since(resolveStart)

	summary.CallsExtracted = len(merged.Calls)
	for _, call := range merged.Calls {
		if call.IsSynthetic {
			summary.SyntheticCalls++
		}
		if call.CrossCrate {
			summary.CrossCrateCalls++
		}
		if !call.IsSynthetic && call.QualifiedCallee == "" {
			summary.UnresolvedCalls++
		}
	}

	if p.loader != nil {
		loadStart := time.Now()
		if p.cfg.Memgraph.CleanStart {
			if err := p.loader.Clear(ctx); err != nil {
				p.logger.Warn("pipeline.clear.failed", "err", err)
			}
		}
		p.loader.Bootstrap(ctx)

		guard := p.loader.EnterAnalyticalMode(ctx)
		p.loader.LoadSet(ctx, merged)
		guard.Exit(ctx)

		p.loader.MaybeFreeMemory(ctx)
		summary.LoadDuration = time.Since(loadStart)

		loadStats := p.loader.Stats()
		summary.NodesCreated = loadStats.NodesCreated
		summary.EdgesCreated = loadStats.EdgesCreated
		summary.NodesFailed = loadStats.NodesFailed
		summary.EdgesFailed = loadStats.EdgesFailed
	}

	summary.TotalDuration = time.Since(start)
	return summary, nil
}

type parseJobResult struct {
	index int
	batch *rustmodel.SymbolBatch
	err   error
}

// parseFilesParallel mirrors the teacher's LocalPipeline.parseFilesParallel
// shape exactly: a bounded worker pool reading from a jobs channel, writing
// to a buffered results channel, closed once a WaitGroup drains. Below 10
// files it runs sequentially, since pool setup overhead dominates at that
// scale.
func (p *Pipeline) parseFilesParallel(ctx context.Context, files []SourceFile, numWorkers int, summary *RunSummary) []*rustmodel.SymbolBatch {
	if len(files) == 0 {
		return nil
	}
	if len(files) < 10 || numWorkers <= 1 {
		return p.parseFilesSequential(ctx, files, summary)
	}

	pool := rustparse.NewPool()
	jobs := make(chan int, len(files))
	results := make(chan parseJobResult, len(files))

	var progressCount int64
	total := int64(len(files))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				batch, err := p.parseOne(ctx, pool, files[i])
				results <- parseJobResult{index: i, batch: batch, err: err}
				current := atomic.AddInt64(&progressCount, 1)
				p.reportProgress(current, total, "parsing")
			}
		}()
	}

	for i := range files {
		jobs <- i
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	batches := make([]*rustmodel.SymbolBatch, 0, len(files))
	for r := range results {
		if r.err != nil {
			summary.ParseErrors++
			p.logger.Warn("pipeline.parse_file.error", "path", files[r.index].Path, "err", r.err)
			continue
		}
		summary.FilesProcessed++
		batches = append(batches, r.batch)
	}
	return batches
}

func (p *Pipeline) parseFilesSequential(ctx context.Context, files []SourceFile, summary *RunSummary) []*rustmodel.SymbolBatch {
	pool := rustparse.NewPool()
	batches := make([]*rustmodel.SymbolBatch, 0, len(files))
	for i, f := range files {
		batch, err := p.parseOne(ctx, pool, f)
		if err != nil {
			summary.ParseErrors++
			p.logger.Warn("pipeline.parse_file.error", "path", f.Path, "err", err)
			continue
		}
		summary.FilesProcessed++
		batches = append(batches, batch)
		p.reportProgress(int64(i+1), int64(len(files)), "parsing")
	}
	return batches
}

// parseOne runs the AST walker, then the macro engine over the same file's
// raw source (spec.md §2 steps 2 and 3 are deliberately separate passes;
// see pkg/macroengine's package doc).
func (p *Pipeline) parseOne(ctx context.Context, pool *rustparse.Pool, f SourceFile) (*rustmodel.SymbolBatch, error) {
	source, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	batch, err := pool.ParseFile(ctx, f.Path, f.CrateName, source)
	if err != nil {
		return nil, err
	}
	p.macroEng.Process(batch, f.CrateName, source)
	return batch, nil
}
