/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package postprocess implements the postprocessor chain:
// GeoFilter, TagFilter, LatencySort, Deduplicate, run sequentially, in
// parallel, or conditionally, with per-chain error strategies.
package postprocess

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// MergeStrategy declares how a processor's parallel-mode output is merged
// with its peers.
type MergeStrategy string

const (
	// MergeIntersect keeps only servers every parallel processor's output
	// agreed to keep — the natural rule for filters.
	MergeIntersect MergeStrategy = "intersect"
	// MergeUnion concatenates outputs and deduplicates by server identity —
	// the natural rule for enrichers that only add, never remove.
	MergeUnion MergeStrategy = "union"
)

// ErrorStrategy controls how a chain reacts to a processor failure.
type ErrorStrategy string

const (
	ErrorContinue  ErrorStrategy = "continue"
	ErrorFailFast  ErrorStrategy = "fail_fast"
	ErrorRetry     ErrorStrategy = "retry"
)

// Mode selects how a chain's processors are invoked relative to each other.
type Mode string

const (
	ModeSequential  Mode = "sequential"
	ModeParallel    Mode = "parallel"
	ModeConditional Mode = "conditional"
)

// Precondition gates a conditional-mode processor.
type Precondition struct {
	MinServerCount   int
	RequiredMetaKeys []string
}

// Processor is one postprocessor-chain stage.
type Processor interface {
	Name() string
	Merge() MergeStrategy
	Precondition() Precondition
	Process(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error)
}

// StageStats records one processor's contribution to a chain run.
type StageStats struct {
	Name        string
	InputCount  int
	OutputCount int
	Duration    time.Duration
	Failed      bool
	Skipped     bool
}

// ChainResult is the metadata a chain run returns alongside the final
// server list.
type ChainResult struct {
	Servers           []*server.ParsedServer
	ProcessorsRun     []string
	ProcessorsFailed  []string
	ProcessorsSkipped []string
	Duration          time.Duration
	PerProcessor      []StageStats
}

// Chain runs a configured set of Processors under one Mode/ErrorStrategy.
type Chain struct {
	Mode            Mode
	ErrorStrategy   ErrorStrategy
	MaxRetries      int
	ParallelWorkers int64
	processors      []Processor
}

// NewChain builds a Chain. ParallelWorkers defaults to 4.
func NewChain(mode Mode, errStrategy ErrorStrategy, processors ...Processor) *Chain {
	return &Chain{Mode: mode, ErrorStrategy: errStrategy, ParallelWorkers: 4, processors: processors}
}

// Run executes the chain against servers.
func (c *Chain) Run(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) (ChainResult, error) {
	start := time.Now()
	var result ChainResult

	switch c.Mode {
	case ModeParallel:
		result = c.runParallel(ctx, servers, pc)
	case ModeConditional:
		result = c.runConditional(ctx, servers, pc)
	default:
		result = c.runSequential(ctx, servers, pc)
	}
	result.Duration = time.Since(start)

	if len(result.ProcessorsFailed) > 0 && c.ErrorStrategy == ErrorFailFast {
		return result, fmt.Errorf("postprocess: chain failed at %v", result.ProcessorsFailed)
	}
	return result, nil
}

func (c *Chain) runSequential(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ChainResult {
	result := ChainResult{Servers: servers}
	for _, p := range c.processors {
		in := result.Servers
		out, stats, err := c.runOne(ctx, p, in, pc)
		result.PerProcessor = append(result.PerProcessor, stats)
		if err != nil {
			result.ProcessorsFailed = append(result.ProcessorsFailed, p.Name())
			if c.ErrorStrategy == ErrorFailFast {
				result.Servers = in
				return result
			}
			result.Servers = in // continue/retry: keep pre-stage input
			continue
		}
		result.ProcessorsRun = append(result.ProcessorsRun, p.Name())
		result.Servers = out
	}
	return result
}

func (c *Chain) runConditional(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ChainResult {
	result := ChainResult{Servers: servers}
	for _, p := range c.processors {
		pre := p.Precondition()
		if len(result.Servers) < pre.MinServerCount {
			result.ProcessorsSkipped = append(result.ProcessorsSkipped, p.Name())
			result.PerProcessor = append(result.PerProcessor, StageStats{Name: p.Name(), Skipped: true, InputCount: len(result.Servers)})
			continue
		}
		missing := false
		for _, key := range pre.RequiredMetaKeys {
			if _, ok := pc.Meta(key); !ok {
				missing = true
				break
			}
		}
		if missing {
			result.ProcessorsSkipped = append(result.ProcessorsSkipped, p.Name())
			result.PerProcessor = append(result.PerProcessor, StageStats{Name: p.Name(), Skipped: true, InputCount: len(result.Servers)})
			continue
		}

		out, stats, err := c.runOne(ctx, p, result.Servers, pc)
		result.PerProcessor = append(result.PerProcessor, stats)
		if err != nil {
			result.ProcessorsFailed = append(result.ProcessorsFailed, p.Name())
			if c.ErrorStrategy == ErrorFailFast {
				return result
			}
			continue
		}
		result.ProcessorsRun = append(result.ProcessorsRun, p.Name())
		result.Servers = out
	}
	return result
}

// runParallel invokes every processor against the same input and merges
// outputs deterministically by declaration order.
func (c *Chain) runParallel(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ChainResult {
	result := ChainResult{Servers: servers}
	n := int64(len(c.processors))
	workers := c.ParallelWorkers
	if workers <= 0 {
		workers = 4
	}
	if workers > n && n > 0 {
		workers = n
	}
	sem := semaphore.NewWeighted(workers)

	type outcome struct {
		idx   int
		out   []*server.ParsedServer
		stats StageStats
		err   error
	}
	outcomes := make([]outcome, len(c.processors))
	done := make(chan struct{}, len(c.processors))

	for i, p := range c.processors {
		i, p := i, p
		go func() {
			defer func() { done <- struct{}{} }()
			_ = sem.Acquire(ctx, 1)
			defer sem.Release(1)
			out, stats, err := c.runOne(ctx, p, servers, pc)
			outcomes[i] = outcome{idx: i, out: out, stats: stats, err: err}
		}()
	}
	for range c.processors {
		<-done
	}

	merged := servers
	first := true
	for _, o := range outcomes {
		result.PerProcessor = append(result.PerProcessor, o.stats)
		if o.err != nil {
			result.ProcessorsFailed = append(result.ProcessorsFailed, c.processors[o.idx].Name())
			continue
		}
		result.ProcessorsRun = append(result.ProcessorsRun, c.processors[o.idx].Name())
		switch c.processors[o.idx].Merge() {
		case MergeUnion:
			merged = unionByIdentity(merged, o.out, first)
		default:
			merged = intersectByIdentity(merged, o.out, first)
		}
		first = false
	}
	result.Servers = merged
	return result
}

func (c *Chain) runOne(ctx context.Context, p Processor, in []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, StageStats, error) {
	start := time.Now()
	stats := StageStats{Name: p.Name(), InputCount: len(in)}

	retries := 0
	if c.ErrorStrategy == ErrorRetry && c.MaxRetries > 0 {
		retries = c.MaxRetries
	}

	var out []*server.ParsedServer
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		out, err = p.Process(ctx, in, pc)
		if err == nil {
			break
		}
	}

	stats.Duration = time.Since(start)
	if err != nil {
		stats.Failed = true
		return nil, stats, err
	}
	stats.OutputCount = len(out)
	return out, stats, nil
}

func unionByIdentity(base, addition []*server.ParsedServer, baseIsSeed bool) []*server.ParsedServer {
	seen := make(map[string]bool)
	var out []*server.ParsedServer
	src := base
	if !baseIsSeed {
		src = base
	}
	for _, s := range src {
		id := s.Identity()
		if !seen[id] {
			seen[id] = true
			out = append(out, s)
		}
	}
	for _, s := range addition {
		id := s.Identity()
		if !seen[id] {
			seen[id] = true
			out = append(out, s)
		}
	}
	return out
}

func intersectByIdentity(base, other []*server.ParsedServer, baseIsSeed bool) []*server.ParsedServer {
	if baseIsSeed {
		return other
	}
	present := make(map[string]bool, len(other))
	for _, s := range other {
		present[s.Identity()] = true
	}
	var out []*server.ParsedServer
	for _, s := range base {
		if present[s.Identity()] {
			out = append(out, s)
		}
	}
	return out
}
