/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package selector picks one or many servers from a post-policy server
// list given an index, a name/tag match, or an automatic policy-driven
// criterion.
package selector

import (
	"errors"
	"sort"
	"strconv"
	"strings"

	"github.com/sboxmgr/core/server"
)

// ErrNoMatch is returned when a Selector's criterion matches nothing.
var ErrNoMatch = errors.New("selector: no server matched selection criteria")

// ErrIndexOutOfRange is returned by IndexSelector when Index falls outside
// the candidate list.
var ErrIndexOutOfRange = errors.New("selector: index out of range")

// Selector narrows a server list down to the subset that should survive
// into export.
type Selector interface {
	Name() string
	Select(servers []*server.ParsedServer) ([]*server.ParsedServer, error)
}

// IndexSelector keeps a single server by its position in the incoming
// slice (stable order as produced by the pipeline up to this point).
type IndexSelector struct {
	Index int
}

// NewIndexSelector builds an IndexSelector for a zero-based position.
func NewIndexSelector(index int) *IndexSelector {
	return &IndexSelector{Index: index}
}

func (s *IndexSelector) Name() string { return "index" }

func (s *IndexSelector) Select(servers []*server.ParsedServer) ([]*server.ParsedServer, error) {
	if s.Index < 0 || s.Index >= len(servers) {
		return nil, ErrIndexOutOfRange
	}
	return []*server.ParsedServer{servers[s.Index]}, nil
}

// TagSelector keeps every server whose Tag exactly matches one of Tags.
type TagSelector struct {
	Tags          []string
	CaseSensitive bool
}

// NewTagSelector builds a TagSelector.
func NewTagSelector(tags []string, caseSensitive bool) *TagSelector {
	return &TagSelector{Tags: tags, CaseSensitive: caseSensitive}
}

func (s *TagSelector) Name() string { return "tag" }

func (s *TagSelector) normalize(v string) string {
	if s.CaseSensitive {
		return v
	}
	return strings.ToLower(v)
}

func (s *TagSelector) Select(servers []*server.ParsedServer) ([]*server.ParsedServer, error) {
	want := make(map[string]bool, len(s.Tags))
	for _, t := range s.Tags {
		want[s.normalize(t)] = true
	}
	var out []*server.ParsedServer
	for _, srv := range servers {
		if want[s.normalize(srv.Tag)] {
			out = append(out, srv)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	return out, nil
}

// NameSelector keeps every server whose meta.name exactly matches one of
// Names; unlike TagSelector this matches the pre-normalization display
// name, so it still works before the tag-normalize middleware has run.
type NameSelector struct {
	Names         []string
	CaseSensitive bool
}

// NewNameSelector builds a NameSelector.
func NewNameSelector(names []string, caseSensitive bool) *NameSelector {
	return &NameSelector{Names: names, CaseSensitive: caseSensitive}
}

func (s *NameSelector) Name() string { return "name" }

func (s *NameSelector) normalize(v string) string {
	if s.CaseSensitive {
		return v
	}
	return strings.ToLower(v)
}

func (s *NameSelector) Select(servers []*server.ParsedServer) ([]*server.ParsedServer, error) {
	want := make(map[string]bool, len(s.Names))
	for _, n := range s.Names {
		want[s.normalize(n)] = true
	}
	var out []*server.ParsedServer
	for _, srv := range servers {
		if want[s.normalize(srv.MetaString("name"))] {
			out = append(out, srv)
		}
	}
	if len(out) == 0 {
		return nil, ErrNoMatch
	}
	return out, nil
}

// Criterion ranks a server for AutomaticSelector; higher is better.
type Criterion func(s *server.ParsedServer) float64

// AutomaticSelector keeps the top N servers by Criterion, breaking ties by
// stable input order.
type AutomaticSelector struct {
	Criterion Criterion
	Limit     int
}

// NewAutomaticSelector builds an AutomaticSelector. limit <= 0 keeps every
// candidate, just reordered by score.
func NewAutomaticSelector(criterion Criterion, limit int) *AutomaticSelector {
	return &AutomaticSelector{Criterion: criterion, Limit: limit}
}

func (s *AutomaticSelector) Name() string { return "automatic" }

func (s *AutomaticSelector) Select(servers []*server.ParsedServer) ([]*server.ParsedServer, error) {
	ranked := make([]*server.ParsedServer, len(servers))
	copy(ranked, servers)
	sort.SliceStable(ranked, func(i, j int) bool {
		return s.Criterion(ranked[i]) > s.Criterion(ranked[j])
	})
	if s.Limit > 0 && s.Limit < len(ranked) {
		ranked = ranked[:s.Limit]
	}
	if len(ranked) == 0 {
		return nil, ErrNoMatch
	}
	return ranked, nil
}

// LowestLatencyCriterion ranks servers by ascending meta.latency_ms,
// matching the ordering postprocess.LatencySort already establishes; it is
// expressed as a Criterion (higher-is-better) by negating the latency.
func LowestLatencyCriterion(s *server.ParsedServer) float64 {
	raw := s.MetaString("latency_ms")
	if raw == "" {
		return 0
	}
	ms, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return -ms
}
