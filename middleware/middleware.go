/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package middleware implements the mid-pipeline server-list transforms
//: logging, enrichment, tag-normalize, outbound-filter, and
// route-config.
package middleware

import (
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// Middleware transforms a server list and may annotate the run's metadata.
// Implementations MUST NOT retain per-invocation state across calls.
type Middleware interface {
	Name() string
	Enabled() bool
	Process(servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error)
}

// Chain runs a sequence of Middleware in declaration order.
type Chain struct {
	stages []Middleware
}

// NewChain builds a Chain from stages in the order they should run.
func NewChain(stages ...Middleware) *Chain {
	return &Chain{stages: stages}
}

// Run applies every enabled stage in order, short-circuiting on the first
// error (a middleware failure is a plugin-kind PipelineError at the
// manager's boundary, not something this Chain itself classifies).
func (c *Chain) Run(servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	for _, m := range c.stages {
		if !m.Enabled() {
			continue
		}
		next, err := m.Process(servers, pc)
		if err != nil {
			return servers, err
		}
		servers = next
	}
	return servers, nil
}

// StageNames returns the names of the chain's stages in order, used for
// logging and diagnostics.
func (c *Chain) StageNames() []string {
	names := make([]string, len(c.stages))
	for i, m := range c.stages {
		names[i] = m.Name()
	}
	return names
}
