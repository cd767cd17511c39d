/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pipeline

import (
	"fmt"

	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/export"
	"github.com/sboxmgr/core/fetch"
	"github.com/sboxmgr/core/log"
	"github.com/sboxmgr/core/middleware"
	"github.com/sboxmgr/core/parse"
	"github.com/sboxmgr/core/policy"
	"github.com/sboxmgr/core/postprocess"
	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/registry"
	"github.com/sboxmgr/core/routing"
	"github.com/sboxmgr/core/selector"
)

// Resolve builds the Collaborators a Run needs from a FullProfile's
// declared plugin names, looking each one up in reg.
func Resolve(prof *profile.FullProfile, reg *registry.Registry, bus *eventbus.Bus, lg *log.KVLogger) (Collaborators, error) {
	var c Collaborators

	c.Fetchers = make(map[string]fetch.Fetcher)
	for _, src := range prof.Subscriptions {
		if _, ok := c.Fetchers[src.Type]; ok {
			continue
		}
		f, err := lookupFetcher(reg, src.Type)
		if err != nil {
			return c, fmt.Errorf("pipeline: resolving fetcher %q for source %q: %w", src.Type, src.ID, err)
		}
		c.Fetchers[src.Type] = f
	}

	c.Parsers = parse.All()

	stages := make([]middleware.Middleware, 0, len(prof.Middleware))
	for _, pc := range prof.Middleware {
		if !pc.Enabled {
			continue
		}
		m, err := lookupMiddleware(reg, pc.Name, pc.Settings, bus, lg)
		if err != nil {
			return c, fmt.Errorf("pipeline: resolving middleware %q: %w", pc.Name, err)
		}
		stages = append(stages, m)
	}
	c.Middleware = middleware.NewChain(stages...)

	procs := make([]postprocess.Processor, 0, len(prof.Postprocessors))
	for _, pc := range prof.Postprocessors {
		if !pc.Enabled {
			continue
		}
		p, err := lookupPostprocessor(reg, pc.Name, pc.Settings)
		if err != nil {
			return c, fmt.Errorf("pipeline: resolving postprocessor %q: %w", pc.Name, err)
		}
		procs = append(procs, p)
	}
	c.Postprocessors = postprocess.NewChain(postprocess.ModeSequential, postprocess.ErrorContinue, procs...)

	c.Policies = policy.NewRegistry()
	for _, pc := range prof.Policies {
		p, err := lookupPolicy(reg, pc.Name, pc.Settings)
		if err != nil {
			return c, fmt.Errorf("pipeline: resolving policy %q: %w", pc.Name, err)
		}
		c.Policies.Register(p)
		if !pc.Enabled {
			c.Policies.Disable(p.Name())
		}
	}

	sel, err := resolveSelector(reg, prof.Selector)
	if err != nil {
		return c, err
	}
	c.Selector = sel

	rp, err := lookupRouting(reg, "default", nil)
	if err != nil {
		return c, fmt.Errorf("pipeline: resolving routing plugin: %w", err)
	}
	c.Routing = rp

	expName := prof.ExportCfg.Format
	if expName == "" {
		expName = "singbox-modern"
	}
	exp, err := lookupExporter(reg, expName)
	if err != nil {
		return c, fmt.Errorf("pipeline: resolving exporter %q: %w", expName, err)
	}
	c.Exporter = exp

	return c, nil
}

func lookupFetcher(reg *registry.Registry, name string) (fetch.Fetcher, error) {
	raw, err := reg.Lookup(registry.KindFetcher, name)
	if err != nil {
		return nil, err
	}
	return raw.(fetch.Factory)(nil)
}

func lookupMiddleware(reg *registry.Registry, name string, settings map[string]interface{}, bus *eventbus.Bus, lg *log.KVLogger) (middleware.Middleware, error) {
	raw, err := reg.Lookup(registry.KindMiddleware, name)
	if err != nil {
		return nil, err
	}
	return raw.(middleware.Factory)(settings, bus, lg)
}

func lookupPostprocessor(reg *registry.Registry, name string, settings map[string]interface{}) (postprocess.Processor, error) {
	raw, err := reg.Lookup(registry.KindPostprocessor, name)
	if err != nil {
		return nil, err
	}
	return raw.(postprocess.Factory)(settings)
}

func lookupPolicy(reg *registry.Registry, name string, settings map[string]interface{}) (policy.Policy, error) {
	raw, err := reg.Lookup(registry.KindPolicy, name)
	if err != nil {
		return nil, err
	}
	return raw.(policy.Factory)(settings)
}

func lookupRouting(reg *registry.Registry, name string, settings map[string]interface{}) (*routing.Plugin, error) {
	raw, err := reg.Lookup(registry.KindRouting, name)
	if err != nil {
		return nil, err
	}
	return raw.(routing.Factory)(settings)
}

func lookupExporter(reg *registry.Registry, name string) (export.Exporter, error) {
	raw, err := reg.Lookup(registry.KindExporter, name)
	if err != nil {
		return nil, err
	}
	return raw.(export.Factory)(nil)
}

// resolveSelector builds a Selector from a profile's Selection config. An
// empty Mode (or "automatic") selects AutomaticSelector, ranked by lowest
// latency.
func resolveSelector(reg *registry.Registry, sel profile.Selection) (selector.Selector, error) {
	switch sel.Mode {
	case "index":
		raw, err := reg.Lookup(registry.KindSelector, "selector.index")
		if err != nil {
			return nil, err
		}
		return raw.(selector.Factory)(map[string]interface{}{"index": sel.Index})
	case "tag":
		raw, err := reg.Lookup(registry.KindSelector, "selector.tag")
		if err != nil {
			return nil, err
		}
		return raw.(selector.Factory)(map[string]interface{}{"tags": toInterfaceSlice(sel.Tags)})
	case "name":
		raw, err := reg.Lookup(registry.KindSelector, "selector.name")
		if err != nil {
			return nil, err
		}
		return raw.(selector.Factory)(map[string]interface{}{"names": toInterfaceSlice(sel.Names)})
	default:
		raw, err := reg.Lookup(registry.KindSelector, "selector.automatic")
		if err != nil {
			return nil, err
		}
		return raw.(selector.Factory)(map[string]interface{}{"limit": sel.Limit})
	}
}

func toInterfaceSlice(in []string) []interface{} {
	out := make([]interface{}, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
