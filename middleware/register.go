/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package middleware

import (
	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/log"
	"github.com/sboxmgr/core/registry"
	"github.com/sboxmgr/core/server"
)

// Factory builds a Middleware from a plugin config's settings map plus the
// shared collaborators (event bus, logger) every middleware may need.
type Factory func(settings map[string]interface{}, bus *eventbus.Bus, lg *log.KVLogger) (Middleware, error)

func init() {
	registry.Global().Register(registry.KindMiddleware, "logging", Factory(func(settings map[string]interface{}, bus *eventbus.Bus, lg *log.KVLogger) (Middleware, error) {
		return NewLoggingMiddleware(bus, lg), nil
	}))
	registry.Global().Register(registry.KindMiddleware, "enrichment", Factory(func(settings map[string]interface{}, bus *eventbus.Bus, lg *log.KVLogger) (Middleware, error) {
		return NewEnrichmentMiddleware(nil, lg), nil
	}))
	registry.Global().Register(registry.KindMiddleware, "tag-normalize", Factory(func(settings map[string]interface{}, bus *eventbus.Bus, lg *log.KVLogger) (Middleware, error) {
		return NewTagNormalizeMiddleware(), nil
	}))
	registry.Global().Register(registry.KindMiddleware, "outbound-filter", Factory(func(settings map[string]interface{}, bus *eventbus.Bus, lg *log.KVLogger) (Middleware, error) {
		var exclude []server.Protocol
		if raw, ok := settings["exclude_outbounds"].([]interface{}); ok {
			for _, v := range raw {
				if s, ok := v.(string); ok {
					exclude = append(exclude, server.Protocol(s))
				}
			}
		}
		return NewOutboundFilterMiddleware(exclude), nil
	}))
	registry.Global().Register(registry.KindMiddleware, "route-config", Factory(func(settings map[string]interface{}, bus *eventbus.Bus, lg *log.KVLogger) (Middleware, error) {
		final, _ := settings["final"].(string)
		return NewRouteConfigMiddleware(final), nil
	}))
}

// DefaultOrdering is the built-in middleware ordering used in practice.
var DefaultOrdering = []string{"logging", "enrichment", "tag-normalize", "outbound-filter", "route-config"}
