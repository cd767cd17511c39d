/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package parse implements the Parser collaborators: pure
// functions of bytes that produce []*server.ParsedServer, plus the
// probability-based format detector the manager uses to pick one.
package parse

import (
	"time"

	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/server"
)

// newErr builds a PipelineError stamped with the current time, sparing
// every parser from repeating the time.Now() boilerplate.
func newErr(stage string, severity perr.Severity, message string) perr.PipelineError {
	return perr.New(perr.KindParse, stage, severity, message, nil, time.Now())
}

// Parser is a pure function of raw bytes. Implementations MUST NOT perform
// I/O.
type Parser interface {
	// Name identifies this parser in registry.Names(registry.KindParser).
	Name() string
	// Detect returns a 0..1 confidence that body is this parser's format,
	// based only on a short prefix scan.
	Detect(body []byte) float64
	// Parse produces the server list plus any per-record errors, which are
	// collected rather than aborting the whole parse.
	Parse(body []byte) ([]*server.ParsedServer, []perr.PipelineError)
}

// Registered, in detection-preference order: base64 -> json ->
// yaml(clash)/singbox -> uri-list.
var detectionOrder = []string{"base64", "json", "yaml-clash", "singbox-native", "uri-list"}

// DetectionOrder returns the fixed detection-preference order.
func DetectionOrder() []string {
	out := make([]string, len(detectionOrder))
	copy(out, detectionOrder)
	return out
}

// Select picks the best-matching parser for body among candidates, using
// DetectionOrder to break ties deterministically. An empty candidates list
// or an all-zero-confidence scan returns nil.
func Select(candidates []Parser, body []byte) Parser {
	rank := make(map[string]int, len(detectionOrder))
	for i, name := range detectionOrder {
		rank[name] = i
	}

	var best Parser
	bestScore := -1.0
	bestRank := len(detectionOrder) + 1
	for _, p := range candidates {
		score := p.Detect(body)
		if score <= 0 {
			continue
		}
		r, ok := rank[p.Name()]
		if !ok {
			r = len(detectionOrder)
		}
		if score > bestScore || (score == bestScore && r < bestRank) {
			best = p
			bestScore = score
			bestRank = r
		}
	}
	return best
}
