/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package middleware

import (
	"context"
	"net"
	"time"

	"github.com/sboxmgr/core/log"
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// DefaultEnrichmentDeadline bounds the whole enrichment pass.
const DefaultEnrichmentDeadline = 1 * time.Second

// GeoLookup resolves an address to a country/region/city triple. The
// built-in resolver is a no-op placeholder; profiles wire in a real
// MaxMind/nradix-backed implementation via postprocess.GeoFilter's database
// when geo accuracy matters for filtering, keeping this middleware cheap
// and purely annotative.
type GeoLookup func(ctx context.Context, address string) (country, region, city string, err error)

// EnrichmentMiddleware annotates servers with meta.geo.* best-effort,
// bounded by Deadline.
type EnrichmentMiddleware struct {
	Deadline time.Duration
	Lookup   GeoLookup
	lg       *log.KVLogger
	enabled  bool
}

// NewEnrichmentMiddleware builds an EnrichmentMiddleware. A nil lookup
// disables geo annotation but keeps the stage a documented no-op rather
// than removing it from the chain.
func NewEnrichmentMiddleware(lookup GeoLookup, lg *log.KVLogger) *EnrichmentMiddleware {
	return &EnrichmentMiddleware{Deadline: DefaultEnrichmentDeadline, Lookup: lookup, lg: lg, enabled: true}
}

func (m *EnrichmentMiddleware) Name() string      { return "enrichment" }
func (m *EnrichmentMiddleware) Enabled() bool     { return m.enabled }
func (m *EnrichmentMiddleware) SetEnabled(e bool) { m.enabled = e }

func (m *EnrichmentMiddleware) Process(servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	if m.Lookup == nil {
		return servers, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.Deadline)
	defer cancel()

	for _, s := range servers {
		if ctx.Err() != nil {
			if m.lg != nil {
				m.lg.Warn("enrichment deadline exceeded, returning partial results", log.KVTrace(pc.TraceID))
			}
			break
		}
		host := s.Address
		if ip := net.ParseIP(host); ip == nil && host == "" {
			continue
		}
		country, region, city, err := m.Lookup(ctx, host)
		if err != nil {
			continue
		}
		if country != "" {
			s.SetMetaString("geo.country", country)
		}
		if region != "" {
			s.SetMetaString("geo.region", region)
		}
		if city != "" {
			s.SetMetaString("geo.city", city)
		}
	}
	return servers, nil
}
