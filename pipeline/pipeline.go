/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package pipeline implements SubscriptionManager, the top-level
// orchestrator binding a profile, its resolved collaborators, and a
// PipelineContext into one run.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/h2non/filetype"

	"github.com/sboxmgr/core/agent"
	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/export"
	"github.com/sboxmgr/core/fetch"
	"github.com/sboxmgr/core/log"
	"github.com/sboxmgr/core/middleware"
	"github.com/sboxmgr/core/parse"
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/policy"
	"github.com/sboxmgr/core/postprocess"
	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/routing"
	"github.com/sboxmgr/core/selector"
	"github.com/sboxmgr/core/server"
)

// Collaborators bundles every plugin a pipeline run needs, already resolved
// from the profile's declared names via the registry.
type Collaborators struct {
	Fetchers       map[string]fetch.Fetcher // keyed by SubscriptionSource.Type
	Parsers        []parse.Parser
	Middleware     *middleware.Chain
	Postprocessors *postprocess.Chain
	Policies       *policy.Registry
	Selector       selector.Selector
	Routing        *routing.Plugin
	Exporter       export.Exporter
}

// PipelineResult is the orchestrator's terminal output.
type PipelineResult struct {
	Artifact       export.Document
	Context        *pctx.Context
	Errors         []perr.PipelineError
	Success        bool
	PartialSuccess bool
}

// Manager is SubscriptionManager: it owns the process-wide collaborators
// that persist across runs (event bus, agent bridge, exclusions, cache)
// and drives one pipeline invocation at a time.
type Manager struct {
	Bus        *eventbus.Bus
	Agent      *agent.Bridge
	Exclusions *profile.ExclusionList
	Cache      *Cache
	Logger     *log.KVLogger

	parseMemoMtx sync.Mutex
	parseMemo    map[string]parseMemoEntry
}

// parseMemoEntry is the last successfully parsed result for one
// subscription, kept for the lifetime of the Manager so a later Run against
// an unchanged body can skip format-detect and parse entirely.
type parseMemoEntry struct {
	hash    string
	servers []*server.ParsedServer
}

// NewManager builds a Manager. agentBridge and exclusions may be nil; a nil
// exclusions list means nothing is ever excluded.
func NewManager(bus *eventbus.Bus, agentBridge *agent.Bridge, exclusions *profile.ExclusionList, lg *log.KVLogger) *Manager {
	return &Manager{Bus: bus, Agent: agentBridge, Exclusions: exclusions, Cache: NewCache(), Logger: lg, parseMemo: make(map[string]parseMemoEntry)}
}

func (m *Manager) emit(pc *pctx.Context, typ string, priority eventbus.Priority, data map[string]interface{}) {
	if m.Bus == nil {
		return
	}
	ev := eventbus.Event{Type: typ, Source: "pipeline.manager", Priority: priority, TraceID: pc.TraceID, Data: data}
	m.Bus.Emit(ev)
	if m.Agent != nil {
		ctx, cancel := context.WithTimeout(context.Background(), agent.DefaultTimeout)
		defer cancel()
		m.Agent.PublishEvent(ctx, ev)
	}
}

// rawValidate rejects obviously corrupt bodies before format detection is
// attempted: empty bodies, and bodies whose magic bytes identify them as an
// image, archive, audio, or video file rather than text. A base64-wrapped
// subscription still passes here since filetype's signature checks run
// against the raw, not decoded, bytes.
func rawValidate(body []byte) error {
	if len(body) == 0 {
		return fmt.Errorf("empty body")
	}
	if looksBinary(body) {
		return fmt.Errorf("body looks like a binary file, not a subscription document")
	}
	if !utf8.Valid(body) {
		return fmt.Errorf("body is not valid UTF-8")
	}
	return nil
}

func looksBinary(body []byte) bool {
	return filetype.IsImage(body) ||
		filetype.IsArchive(body) ||
		filetype.IsAudio(body) ||
		filetype.IsVideo(body) ||
		filetype.IsFont(body)
}

// Run executes one full pipeline invocation for prof using collab.
func (m *Manager) Run(ctx context.Context, prof *profile.FullProfile, collab Collaborators, mode pctx.Mode, debugLevel int, opts RunOptions) PipelineResult {
	pc := pctx.New(opts.SourceURL, mode, debugLevel, prof.Name)
	if opts.TraceID != "" {
		pc.WithTraceID(opts.TraceID)
	}
	ctx = pctx.WithAmbient(ctx, pc)
	reporter := perr.NewReporter(perr.MaxEntries)

	m.emit(pc, "subscription.fetch.started", eventbus.PriorityInfo, nil)

	servers, fatal := m.fetchAndParse(ctx, prof, collab, pc, reporter, opts)
	if fatal {
		m.emit(pc, "subscription.failed", eventbus.PriorityCritical, nil)
		return m.finish(pc, reporter, nil, false)
	}

	servers, err := collab.Middleware.Run(servers, pc)
	if err != nil {
		reporter.Add(perr.New(perr.KindPlugin, "middleware", perr.Recoverable, err.Error(), nil, time.Now()))
		if mode == pctx.Strict {
			m.emit(pc, "subscription.failed", eventbus.PriorityCritical, nil)
			return m.finish(pc, reporter, nil, false)
		}
	}

	if collab.Postprocessors != nil {
		ppResult, err := collab.Postprocessors.Run(ctx, servers, pc)
		servers = ppResult.Servers
		if err != nil {
			reporter.Add(perr.New(perr.KindPlugin, "postprocess", perr.Recoverable, err.Error(), nil, time.Now()))
			if mode == pctx.Strict {
				m.emit(pc, "subscription.failed", eventbus.PriorityCritical, nil)
				return m.finish(pc, reporter, nil, false)
			}
		}
	}

	servers = m.applyExclusions(servers)

	if collab.Selector != nil {
		selected, err := collab.Selector.Select(servers)
		if err != nil {
			reporter.Add(perr.New(perr.KindPlugin, "selector", perr.Recoverable, err.Error(), nil, time.Now()))
		} else {
			servers = selected
		}
	}

	servers = m.evaluatePolicies(servers, prof, collab, pc, reporter)
	if len(servers) == 0 {
		// An empty post-policy server list is fatal in strict mode and
		// yields success=false with no partial credit in tolerant mode.
		severity := perr.Recoverable
		if mode == pctx.Strict {
			severity = perr.Fatal
		}
		reporter.Add(perr.New(perr.KindPolicy, "policy", severity, "no servers survived policy evaluation", nil, time.Now()))
		m.emit(pc, "subscription.failed", eventbus.PriorityCritical, nil)
		return m.finish(pc, reporter, nil, false)
	}

	rs, err := collab.Routing.Build(servers, prof.RoutingCfg)
	if err != nil {
		reporter.Add(perr.New(perr.KindInternal, "routing", perr.Fatal, err.Error(), nil, time.Now()))
		m.emit(pc, "subscription.failed", eventbus.PriorityCritical, nil)
		return m.finish(pc, reporter, nil, false)
	}

	cp := profile.DeriveClientProfile(prof)
	doc, warnings, err := collab.Exporter.Export(servers, rs, cp, pc)
	if err != nil {
		reporter.Add(perr.New(perr.KindExport, "export", perr.Fatal, err.Error(), nil, time.Now()))
		m.emit(pc, "subscription.failed", eventbus.PriorityCritical, nil)
		return m.finish(pc, reporter, nil, false)
	}
	for _, w := range warnings {
		reporter.Add(perr.New(perr.KindExport, "export", perr.Warning, w, nil, time.Now()))
	}

	m.emit(pc, "subscription.processed", eventbus.PriorityInfo, map[string]interface{}{"server_count": len(servers)})
	return m.finish(pc, reporter, &doc, false)
}

// RunOptions carries per-invocation overrides that don't belong on
// FullProfile itself (an injected trace ID, the active source URL for
// logging/cache-key purposes).
type RunOptions struct {
	TraceID     string
	SourceURL   string
	ForceReload bool
	HeadersHash string
}

func (m *Manager) finish(pc *pctx.Context, reporter *perr.Reporter, doc *export.Document, partial bool) PipelineResult {
	res := PipelineResult{Context: pc, Errors: reporter.All()}
	if doc != nil {
		res.Artifact = *doc
	}
	res.Success = doc != nil && !reporter.HasFatal()
	res.PartialSuccess = partial || (res.Success && !reporter.Empty())
	return res
}

func (m *Manager) applyExclusions(servers []*server.ParsedServer) []*server.ParsedServer {
	if m.Exclusions == nil {
		return servers
	}
	out := make([]*server.ParsedServer, 0, len(servers))
	for _, s := range servers {
		if !m.Exclusions.Contains(s.IdentityHash()) {
			out = append(out, s)
		}
	}
	return out
}

func (m *Manager) evaluatePolicies(servers []*server.ParsedServer, prof *profile.FullProfile, collab Collaborators, pc *pctx.Context, reporter *perr.Reporter) []*server.ParsedServer {
	if collab.Policies == nil {
		return servers
	}
	out := make([]*server.ParsedServer, 0, len(servers))
	for _, s := range servers {
		results := collab.Policies.EvaluateAll(policy.Context{Server: s, Profile: prof.Name})
		keep := true
		for _, r := range results {
			switch r.Decision {
			case policy.Deny:
				keep = false
				reporter.Add(perr.New(perr.KindPolicy, "policy."+r.Policy, perr.Recoverable, r.Reason, nil, time.Now()))
				m.emit(pc, "error.occurred", eventbus.PriorityHigh, map[string]interface{}{"policy": r.Policy, "reason": r.Reason, "severity": "deny"})
			case policy.Warn:
				s.SetMetaString("policy_warning_"+r.Policy, r.Reason)
			case policy.Skip:
				keep = false
			}
		}
		if keep {
			out = append(out, s)
		}
	}
	return out
}
