/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package export

import (
	json "github.com/goccy/go-json"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/routing"
	"github.com/sboxmgr/core/server"
)

// sbInbound is one sing-box inbounds[] entry.
type sbInbound struct {
	Type string `json:"type"`
	Tag  string `json:"tag"`
}

// sbOutbound is one sing-box outbounds[] entry. Field order is fixed so
// json.Marshal output is deterministic across runs.
type sbOutbound struct {
	Type       string   `json:"type"`
	Tag        string   `json:"tag"`
	Server     string   `json:"server,omitempty"`
	ServerPort int      `json:"server_port,omitempty"`
	Outbounds  []string `json:"outbounds,omitempty"`
}

// sbRuleModern is a sing-box 1.9+ style route rule using the unified
// "action" field for DNS hijacking.
type sbRuleModern struct {
	Domain  string `json:"domain,omitempty"`
	Tag     string `json:"tag,omitempty"`
	Action  string `json:"action,omitempty"`
	Outbound string `json:"outbound,omitempty"`
}

// sbRuleLegacy expresses a DNS hijack as a plain outbound reference to
// "dns-out" instead of the modern action field.
type sbRuleLegacy struct {
	Domain   string `json:"domain,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Outbound string `json:"outbound,omitempty"`
}

type sbRoute struct {
	Rules []sbRuleModern `json:"rules"`
	Final string         `json:"final"`
}

type sbDocument struct {
	Inbounds  []sbInbound  `json:"inbounds"`
	Outbounds []sbOutbound `json:"outbounds"`
	Route     sbRoute      `json:"route"`
}

func serverOutbound(s *server.ParsedServer) sbOutbound {
	return sbOutbound{Type: string(s.Protocol), Tag: s.Tag, Server: s.Address, ServerPort: s.Port}
}

func virtualOutbound(v routing.VirtualOutbound) sbOutbound {
	return sbOutbound{Type: string(v.Protocol), Tag: v.Tag, Outbounds: v.Members}
}

func inboundsFor(cp profile.ClientProfile) []sbInbound {
	out := make([]sbInbound, 0, len(cp.Inbounds))
	for _, t := range cp.Inbounds {
		out = append(out, sbInbound{Type: t, Tag: t + "-in"})
	}
	return out
}

// excludeSet builds a lookup of outbound types excluded from export,
// carried via ClientProfile.ExcludedOutbound.
func excludeSet(cp profile.ClientProfile) map[string]bool {
	out := make(map[string]bool, len(cp.ExcludedOutbound))
	for _, t := range cp.ExcludedOutbound {
		out[t] = true
	}
	return out
}

func filterGroupMembers(members []string, excludedTags map[string]bool) []string {
	if len(excludedTags) == 0 {
		return members
	}
	out := make([]string, 0, len(members))
	for _, m := range members {
		if !excludedTags[m] {
			out = append(out, m)
		}
	}
	return out
}

// SingboxModern emits the sing-box 1.9+ document shape: no block/dns
// outbounds, rule actions for DNS hijacks.
type SingboxModern struct{}

// NewSingboxModern builds a SingboxModern exporter.
func NewSingboxModern() *SingboxModern { return &SingboxModern{} }

func (e *SingboxModern) Name() string { return "singbox-modern" }

func (e *SingboxModern) Export(servers []*server.ParsedServer, rs routing.RuleSet, cp profile.ClientProfile, pc *pctx.Context) (Document, []string, error) {
	excluded := excludeSet(cp)
	excludedTags := make(map[string]bool)
	for _, s := range servers {
		if excluded[string(s.Protocol)] {
			excludedTags[s.Tag] = true
		}
	}

	doc := sbDocument{Inbounds: inboundsFor(cp)}

	for _, s := range servers {
		if excluded[string(s.Protocol)] {
			continue
		}
		doc.Outbounds = append(doc.Outbounds, serverOutbound(s))
	}
	for _, v := range rs.VirtualOutbounds {
		if v.Protocol == server.Block || v.Protocol == server.DNS {
			continue
		}
		vo := virtualOutbound(v)
		vo.Outbounds = filterGroupMembers(vo.Outbounds, excludedTags)
		doc.Outbounds = append(doc.Outbounds, vo)
	}

	rules := make([]sbRuleModern, 0, len(rs.Rules))
	for _, r := range rs.Rules {
		rule := sbRuleModern{Domain: r.Domain, Tag: r.Tag}
		if r.Action == routing.ActionDNSHijack {
			rule.Action = "hijack-dns"
		} else {
			rule.Outbound = r.Target
		}
		rules = append(rules, rule)
	}
	doc.Route = sbRoute{Rules: rules, Final: resolveFinal(rs.Final, rs.VirtualOutbounds, servers)}

	b, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return Document{}, nil, err
	}
	return Document{Format: e.Name(), Bytes: b}, nil, nil
}

// resolveFinal applies the `routing.final` override: "auto" maps to
// a urltest group tag if one exists, else falls back to "direct".
func resolveFinal(final string, virtuals []routing.VirtualOutbound, servers []*server.ParsedServer) string {
	if final != "auto" {
		return final
	}
	for _, v := range virtuals {
		if v.Protocol == server.URLTest {
			return v.Tag
		}
	}
	return "direct"
}

// SingboxLegacy emits the pre-1.9 sing-box document shape: retains
// explicit block/dns outbounds and expresses DNS hijacks as an outbound
// reference to "dns-out".
type SingboxLegacy struct{}

// NewSingboxLegacy builds a SingboxLegacy exporter.
func NewSingboxLegacy() *SingboxLegacy { return &SingboxLegacy{} }

func (e *SingboxLegacy) Name() string { return "singbox-legacy" }

func (e *SingboxLegacy) Export(servers []*server.ParsedServer, rs routing.RuleSet, cp profile.ClientProfile, pc *pctx.Context) (Document, []string, error) {
	excluded := excludeSet(cp)
	excludedTags := make(map[string]bool)
	for _, s := range servers {
		if excluded[string(s.Protocol)] {
			excludedTags[s.Tag] = true
		}
	}

	doc := struct {
		Inbounds  []sbInbound    `json:"inbounds"`
		Outbounds []sbOutbound   `json:"outbounds"`
		Route     struct {
			Rules []sbRuleLegacy `json:"rules"`
			Final string         `json:"final"`
		} `json:"route"`
	}{Inbounds: inboundsFor(cp)}

	for _, s := range servers {
		if excluded[string(s.Protocol)] {
			continue
		}
		doc.Outbounds = append(doc.Outbounds, serverOutbound(s))
	}
	for _, v := range rs.VirtualOutbounds {
		vo := virtualOutbound(v)
		vo.Outbounds = filterGroupMembers(vo.Outbounds, excludedTags)
		doc.Outbounds = append(doc.Outbounds, vo)
	}

	for _, r := range rs.Rules {
		rule := sbRuleLegacy{Domain: r.Domain, Tag: r.Tag, Outbound: r.Target}
		if r.Action == routing.ActionDNSHijack {
			rule.Outbound = "dns-out"
		}
		doc.Route.Rules = append(doc.Route.Rules, rule)
	}
	doc.Route.Final = resolveFinal(rs.Final, rs.VirtualOutbounds, servers)

	b, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return Document{}, nil, err
	}
	return Document{Format: e.Name(), Bytes: b}, nil, nil
}
