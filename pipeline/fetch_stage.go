/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pipeline

import (
	"context"
	"time"

	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/parse"
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/server"
)

// oneSourceResult is what fetchAndParseOne produces for a single
// subscription: its parsed servers, any accumulated PipelineErrors
// (fatal or not), and whether one of them was fatal.
type oneSourceResult struct {
	servers []*server.ParsedServer
	errs    []perr.PipelineError
	fatal   bool
}

// fetchAndParse runs steps 2-7 of a pipeline invocation across every
// enabled subscription of prof, in priority order: fetch (with the
// manager's cache), raw-validate, format-detect, and parse. It returns the
// merged server list and whether a fatal condition occurred (only possible
// in strict mode).
func (m *Manager) fetchAndParse(ctx context.Context, prof *profile.FullProfile, collab Collaborators, pc *pctx.Context, reporter *perr.Reporter, opts RunOptions) ([]*server.ParsedServer, bool) {
	var all []*server.ParsedServer

	for _, src := range prof.EnabledSubscriptions() {
		res := m.fetchAndParseOne(ctx, src, collab, pc, opts)
		for _, e := range res.errs {
			reporter.Add(e)
		}
		if res.fatal && pc.Mode == pctx.Strict {
			return nil, true
		}
		for _, s := range res.servers {
			s.SetMetaString("subscription_id", src.ID)
			all = append(all, s)
		}
	}
	return all, false
}

func (m *Manager) fetchAndParseOne(ctx context.Context, src server.Source, collab Collaborators, pc *pctx.Context, opts RunOptions) oneSourceResult {
	fetcher, ok := collab.Fetchers[src.Type]
	if !ok {
		e := perr.New(perr.KindFetch, "fetch", perr.Fatal, "no fetcher registered for type "+src.Type, map[string]string{"source": src.ID}, time.Now())
		return oneSourceResult{errs: []perr.PipelineError{e}, fatal: true}
	}

	key := cacheKey{
		fetcherID:   src.Type,
		url:         src.Location,
		headersHash: opts.HeadersHash,
		forceReload: opts.ForceReload,
	}
	body, hit := m.Cache.Get(key)
	if !hit {
		res, err := fetcher.Fetch(ctx, pc, src.Location)
		if err != nil {
			e := perr.New(perr.KindFetch, "fetch", perr.Fatal, err.Error(), map[string]string{"source": src.ID, "location": src.Location}, time.Now())
			m.emit(pc, "error.occurred", eventbus.PriorityHigh, map[string]interface{}{"source": src.ID, "stage": "fetch"})
			return oneSourceResult{errs: []perr.PipelineError{e}, fatal: true}
		}
		body = res.Body
		m.Cache.Put(key, body)
	}

	if err := rawValidate(body); err != nil {
		e := perr.New(perr.KindValidation, "raw-validate", perr.Fatal, err.Error(), map[string]string{"source": src.ID}, time.Now())
		return oneSourceResult{errs: []perr.PipelineError{e}, fatal: true}
	}

	hash := BodyHash(body)
	if servers, ok := m.memoizedParse(src.ID, hash); ok {
		return oneSourceResult{servers: servers}
	}

	p := parse.Select(collab.Parsers, body)
	if p == nil {
		e := perr.New(perr.KindParse, "detect", perr.Fatal, "no registered parser matched this subscription body", map[string]string{"source": src.ID}, time.Now())
		return oneSourceResult{errs: []perr.PipelineError{e}, fatal: true}
	}

	servers, parseErrs := p.Parse(body)
	fatal := false
	for _, pe := range parseErrs {
		if pe.Severity == perr.Fatal {
			fatal = true
		}
	}
	if !fatal {
		m.rememberParse(src.ID, hash, servers)
	}
	return oneSourceResult{servers: servers, errs: parseErrs, fatal: fatal}
}

// memoizedParse returns the previously parsed server list for sourceID if
// its last-seen body hash is unchanged, letting a Run skip format-detect
// and parse for subscriptions whose upstream content hasn't moved.
func (m *Manager) memoizedParse(sourceID, hash string) ([]*server.ParsedServer, bool) {
	m.parseMemoMtx.Lock()
	defer m.parseMemoMtx.Unlock()
	entry, ok := m.parseMemo[sourceID]
	if !ok || entry.hash != hash {
		return nil, false
	}
	return entry.servers, true
}

func (m *Manager) rememberParse(sourceID, hash string, servers []*server.ParsedServer) {
	m.parseMemoMtx.Lock()
	defer m.parseMemoMtx.Unlock()
	m.parseMemo[sourceID] = parseMemoEntry{hash: hash, servers: servers}
}
