/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package postprocess

import (
	"context"
	"sort"
	"strconv"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// MeasurementMethod declares how meta.latency_ms was (or would be)
// populated.
type MeasurementMethod string

const (
	MeasurementCached MeasurementMethod = "cached"
	MeasurementActive MeasurementMethod = "active"
)

// LatencySort orders servers by meta.latency_ms ascending, optionally
// removing or flagging servers over MaxLatencyMs.
type LatencySort struct {
	MaxLatencyMs     int
	FallbackLatency  int
	RemoveHighLatency bool
	Method           MeasurementMethod
}

// NewLatencySort builds a LatencySort. Active measurement is never
// performed by this processor itself; Method is purely declarative metadata describing how
// an upstream enrichment stage populated meta.latency_ms.
func NewLatencySort(maxLatencyMs, fallbackLatency int, removeHighLatency bool) *LatencySort {
	return &LatencySort{
		MaxLatencyMs:      maxLatencyMs,
		FallbackLatency:   fallbackLatency,
		RemoveHighLatency: removeHighLatency,
		Method:            MeasurementCached,
	}
}

func (l *LatencySort) Name() string               { return "latency-sort" }
func (l *LatencySort) Merge() MergeStrategy       { return MergeIntersect }
func (l *LatencySort) Precondition() Precondition { return Precondition{} }

func (l *LatencySort) latency(s *server.ParsedServer) int {
	raw := s.MetaString("latency_ms")
	if raw == "" {
		return l.FallbackLatency
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return l.FallbackLatency
	}
	return v
}

func (l *LatencySort) Process(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	out := make([]*server.ParsedServer, len(servers))
	copy(out, servers)

	sort.SliceStable(out, func(i, j int) bool {
		return l.latency(out[i]) < l.latency(out[j])
	})

	if l.MaxLatencyMs <= 0 {
		return out, nil
	}

	var filtered []*server.ParsedServer
	for _, s := range out {
		if l.latency(s) > l.MaxLatencyMs {
			s.SetMetaString("high_latency", "true")
			if l.RemoveHighLatency {
				continue
			}
		}
		filtered = append(filtered, s)
	}
	return filtered, nil
}
