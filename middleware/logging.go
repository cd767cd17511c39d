/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package middleware

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/log"
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// LoggingMiddleware emits a single "debug.info" event per pass carrying the
// server count; it does not emit separate start and finish events. At
// DebugLevel >= 2 it additionally attaches a per-server detail hash, never
// a raw secret.
type LoggingMiddleware struct {
	bus     *eventbus.Bus
	lg      *log.KVLogger
	enabled bool
}

// NewLoggingMiddleware builds a LoggingMiddleware. bus/lg may be nil.
func NewLoggingMiddleware(bus *eventbus.Bus, lg *log.KVLogger) *LoggingMiddleware {
	return &LoggingMiddleware{bus: bus, lg: lg, enabled: true}
}

func (m *LoggingMiddleware) Name() string   { return "logging" }
func (m *LoggingMiddleware) Enabled() bool  { return m.enabled }
func (m *LoggingMiddleware) SetEnabled(e bool) { m.enabled = e }

func (m *LoggingMiddleware) Process(servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	if m.lg != nil {
		m.lg.Info("middleware.logging", log.KVTrace(pc.TraceID), log.KV("count", len(servers)))
	}
	if m.bus != nil {
		data := map[string]interface{}{"count": len(servers)}
		if pc.DebugLevel >= 2 {
			hashes := make([]string, 0, len(servers))
			for _, s := range servers {
				sum := sha256.Sum256([]byte(s.Identity()))
				hashes = append(hashes, hex.EncodeToString(sum[:8]))
			}
			data["detail_hashes"] = hashes
		}
		m.bus.Emit(eventbus.Event{
			Type:     "debug.info",
			Source:   "middleware.logging",
			Priority: eventbus.PriorityDebug,
			TraceID:  pc.TraceID,
			Data:     data,
		})
	}
	return servers, nil
}
