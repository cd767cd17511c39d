/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package routing implements RoutingPlugin, which derives a target-engine
// routing rule set and its virtual outbounds from the surviving server
// list, the profile's routing section, and the active exclusions (spec
// overview: "RoutingPlugin: produces a routing rule set from servers, user
// routes, exclusions, mode").
package routing

import (
	"fmt"
	"sort"

	"github.com/miekg/dns"

	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/server"
)

// RuleAction is the route-engine directive a Rule carries.
type RuleAction string

const (
	ActionOutbound RuleAction = "outbound"
	ActionDNSHijack RuleAction = "dns-hijack"
	ActionBlock     RuleAction = "block"
)

// Rule is one routing-table entry: match a domain/tag, perform an action.
type Rule struct {
	Domain string     `json:"domain,omitempty"`
	Tag    string     `json:"tag,omitempty"`
	Action RuleAction `json:"action"`
	Target string     `json:"target"`
}

// VirtualOutbound is a non-proxy outbound the routing table can reference
// (direct/block/dns/urltest selector groups), distinct from real servers.
type VirtualOutbound struct {
	Tag      string   `json:"tag"`
	Protocol server.Protocol `json:"protocol"`
	Members  []string `json:"members,omitempty"` // urltest group membership
}

// RuleSet is RoutingPlugin's output: the ordered rule list plus the
// virtual outbounds those rules (or Final) may reference.
type RuleSet struct {
	Rules            []Rule
	VirtualOutbounds []VirtualOutbound
	Final            string
}

// ErrInvalidDomain is returned when a custom route's domain key fails
// RFC1035 validation.
type ErrInvalidDomain struct {
	Domain string
	Err    error
}

func (e *ErrInvalidDomain) Error() string {
	return fmt.Sprintf("routing: invalid domain %q: %v", e.Domain, e.Err)
}

func (e *ErrInvalidDomain) Unwrap() error { return e.Err }

// validateDomain checks that domain is a syntactically valid DNS name
// using miekg/dns's zone/record name parsing.
func validateDomain(domain string) error {
	if domain == "*" {
		return nil
	}
	if _, ok := dns.IsDomainName(domain); !ok {
		return fmt.Errorf("not a well-formed domain name")
	}
	return nil
}

// Plugin builds a RuleSet from the profile's Routing section.
type Plugin struct {
	ExcludedIdentities map[string]bool
}

// NewPlugin builds a RoutingPlugin. excluded is the set of server
// IdentityHash values the active ExclusionList has dropped, carried here
// so routing can skip emitting by-source rules for excluded servers.
func NewPlugin(excluded map[string]bool) *Plugin {
	if excluded == nil {
		excluded = map[string]bool{}
	}
	return &Plugin{ExcludedIdentities: excluded}
}

// Build derives a RuleSet for servers under cfg.
func (p *Plugin) Build(servers []*server.ParsedServer, cfg profile.Routing) (RuleSet, error) {
	rs := RuleSet{Final: cfg.Final}
	if rs.Final == "" {
		rs.Final = "auto"
	}

	domains := make([]string, 0, len(cfg.CustomRoutes))
	for domain := range cfg.CustomRoutes {
		domains = append(domains, domain)
	}
	sort.Strings(domains)
	for _, domain := range domains {
		target := cfg.CustomRoutes[domain]
		if err := validateDomain(domain); err != nil {
			return RuleSet{}, &ErrInvalidDomain{Domain: domain, Err: err}
		}
		rs.Rules = append(rs.Rules, Rule{Domain: domain, Action: ActionOutbound, Target: target})
	}

	if cfg.BySource {
		bySource := make(map[string][]string)
		var sourceOrder []string
		for _, s := range servers {
			if p.ExcludedIdentities[s.IdentityHash()] {
				continue
			}
			src := s.MetaString("source_id")
			if src == "" {
				continue
			}
			if _, ok := bySource[src]; !ok {
				sourceOrder = append(sourceOrder, src)
			}
			bySource[src] = append(bySource[src], s.Tag)
		}
		for _, src := range sourceOrder {
			groupTag := "auto-" + src
			rs.VirtualOutbounds = append(rs.VirtualOutbounds, VirtualOutbound{
				Tag:      groupTag,
				Protocol: server.URLTest,
				Members:  bySource[src],
			})
			rs.Rules = append(rs.Rules, Rule{Tag: src, Action: ActionOutbound, Target: groupTag})
		}
	}

	if cfg.DefaultRoute != "" {
		rs.Rules = append(rs.Rules, Rule{Domain: "*", Action: ActionOutbound, Target: cfg.DefaultRoute})
	}

	rs.VirtualOutbounds = append(rs.VirtualOutbounds,
		VirtualOutbound{Tag: "direct", Protocol: server.Direct},
		VirtualOutbound{Tag: "block", Protocol: server.Block},
		VirtualOutbound{Tag: "dns-out", Protocol: server.DNS},
	)

	return rs, nil
}
