/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package postprocess

import (
	"context"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// PriorityLookup resolves a server to the priority of the subscription
// source it came from, so Deduplicate can keep the highest-priority copy
// of a duplicated (protocol, address, port) key.
type PriorityLookup func(s *server.ParsedServer) int

// Deduplicate removes servers with identical (protocol, address, port),
// keeping the one from the highest-priority source. A nil PriorityLookup
// keeps the first-seen occurrence.
type Deduplicate struct {
	Priority PriorityLookup
}

// NewDeduplicate builds a Deduplicate processor.
func NewDeduplicate(priority PriorityLookup) *Deduplicate {
	return &Deduplicate{Priority: priority}
}

func (d *Deduplicate) Name() string               { return "deduplicate" }
func (d *Deduplicate) Merge() MergeStrategy       { return MergeUnion }
func (d *Deduplicate) Precondition() Precondition { return Precondition{} }

func (d *Deduplicate) Process(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	best := make(map[string]*server.ParsedServer, len(servers))
	order := make([]string, 0, len(servers))

	for _, s := range servers {
		id := s.Identity()
		prev, ok := best[id]
		if !ok {
			best[id] = s
			order = append(order, id)
			continue
		}
		if d.Priority != nil && d.Priority(s) > d.Priority(prev) {
			best[id] = s
		}
	}

	out := make([]*server.ParsedServer, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out, nil
}
