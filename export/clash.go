/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package export

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/routing"
	"github.com/sboxmgr/core/server"
)

// clashSupportedProtocols lists the protocols Clash-family clients can
// represent natively; anything else warns and is skipped.
var clashSupportedProtocols = map[server.Protocol]bool{
	server.VLESS:       true,
	server.VMess:       true,
	server.Trojan:      true,
	server.Shadowsocks: true,
	server.Hysteria2:   true,
}

type clashProxy struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	UUID     string `yaml:"uuid,omitempty"`
	Password string `yaml:"password,omitempty"`
	Cipher   string `yaml:"cipher,omitempty"`
}

type clashProxyGroup struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Proxies []string `yaml:"proxies"`
}

type clashRule string

type clashDocument struct {
	Proxies      []clashProxy      `yaml:"proxies"`
	ProxyGroups  []clashProxyGroup `yaml:"proxy-groups"`
	Rules        []clashRule       `yaml:"rules"`
}

func proxyFor(s *server.ParsedServer) clashProxy {
	p := clashProxy{Name: s.Tag, Type: string(s.Protocol), Server: s.Address, Port: s.Port}
	switch s.Protocol {
	case server.VLESS, server.VMess:
		p.UUID = s.MetaString("uuid")
	case server.Trojan:
		p.Password = s.MetaString("password")
	case server.Shadowsocks:
		p.Password = s.MetaString("password")
		p.Cipher = s.MetaString("method")
	case server.Hysteria2:
		p.Password = s.MetaString("password")
	}
	return p
}

// Clash emits a Clash/Clash.Meta YAML document: proxy-per-server plus
// proxy-groups, with best-effort protocol adaptation.
type Clash struct{}

// NewClash builds a Clash exporter.
func NewClash() *Clash { return &Clash{} }

func (e *Clash) Name() string { return "clash" }

func (e *Clash) Export(servers []*server.ParsedServer, rs routing.RuleSet, cp profile.ClientProfile, pc *pctx.Context) (Document, []string, error) {
	var warnings []string
	var doc clashDocument
	var allTags []string

	for _, s := range servers {
		if !clashSupportedProtocols[s.Protocol] {
			warnings = append(warnings, fmt.Sprintf("clash: skipping unsupported protocol %q for tag %q", s.Protocol, s.Tag))
			continue
		}
		doc.Proxies = append(doc.Proxies, proxyFor(s))
		allTags = append(allTags, s.Tag)
	}

	final := rs.Final
	if final == "" || final == "auto" {
		final = "auto"
		doc.ProxyGroups = append(doc.ProxyGroups, clashProxyGroup{Name: "auto", Type: "url-test", Proxies: allTags})
	}
	doc.ProxyGroups = append(doc.ProxyGroups, clashProxyGroup{Name: "PROXY", Type: "select", Proxies: append([]string{final}, allTags...)})

	for _, v := range rs.VirtualOutbounds {
		if v.Protocol != server.URLTest || len(v.Members) == 0 {
			continue
		}
		doc.ProxyGroups = append(doc.ProxyGroups, clashProxyGroup{Name: v.Tag, Type: "url-test", Proxies: v.Members})
	}

	for _, r := range rs.Rules {
		switch {
		case r.Domain != "" && r.Domain != "*":
			doc.Rules = append(doc.Rules, clashRule(fmt.Sprintf("DOMAIN-SUFFIX,%s,%s", r.Domain, r.Target)))
		case r.Domain == "*":
			doc.Rules = append(doc.Rules, clashRule(fmt.Sprintf("MATCH,%s", r.Target)))
		}
	}

	b, err := yaml.Marshal(&doc)
	if err != nil {
		return Document{}, nil, err
	}
	return Document{Format: e.Name(), Bytes: b}, warnings, nil
}
