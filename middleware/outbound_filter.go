/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package middleware

import (
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// OutboundFilterMiddleware drops servers whose protocol is in the
// configured exclusion set.
type OutboundFilterMiddleware struct {
	Exclude map[server.Protocol]bool
	enabled bool
}

// NewOutboundFilterMiddleware builds an OutboundFilterMiddleware excluding
// the given protocols.
func NewOutboundFilterMiddleware(exclude []server.Protocol) *OutboundFilterMiddleware {
	m := map[server.Protocol]bool{}
	for _, p := range exclude {
		m[p] = true
	}
	return &OutboundFilterMiddleware{Exclude: m, enabled: true}
}

func (m *OutboundFilterMiddleware) Name() string      { return "outbound-filter" }
func (m *OutboundFilterMiddleware) Enabled() bool     { return m.enabled }
func (m *OutboundFilterMiddleware) SetEnabled(e bool) { m.enabled = e }

func (m *OutboundFilterMiddleware) Process(servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	if len(m.Exclude) == 0 {
		return servers, nil
	}
	out := make([]*server.ParsedServer, 0, len(servers))
	for _, s := range servers {
		if m.Exclude[s.Protocol] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
