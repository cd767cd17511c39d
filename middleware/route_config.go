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

// RouteConfigMetaKey is the context.metadata key the exporter's routing
// stage reads back.
const RouteConfigMetaKey = "routing.final"

// RouteConfigMiddleware stashes the profile's final-route choice into the
// run's metadata for the routing/export stages to pick up later, without
// threading the FullProfile itself through the server-list chain.
type RouteConfigMiddleware struct {
	FinalRoute string
	enabled    bool
}

// NewRouteConfigMiddleware builds a RouteConfigMiddleware.
func NewRouteConfigMiddleware(finalRoute string) *RouteConfigMiddleware {
	return &RouteConfigMiddleware{FinalRoute: finalRoute, enabled: true}
}

func (m *RouteConfigMiddleware) Name() string      { return "route-config" }
func (m *RouteConfigMiddleware) Enabled() bool     { return m.enabled }
func (m *RouteConfigMiddleware) SetEnabled(e bool) { m.enabled = e }

func (m *RouteConfigMiddleware) Process(servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	if m.FinalRoute != "" {
		_ = pc.SetMeta(RouteConfigMetaKey, m.FinalRoute)
	}
	return servers, nil
}
