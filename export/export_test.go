/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/routing"
	"github.com/sboxmgr/core/server"
)

func sampleServers() []*server.ParsedServer {
	a := server.New(server.VLESS, "a.example", 443)
	a.Tag = "fast-nl"
	a.SetMetaString("uuid", "11111111-1111-1111-1111-111111111111")
	b := server.New(server.WireGuard, "b.example", 51820)
	b.Tag = "wg-de"
	return []*server.ParsedServer{a, b}
}

func sampleRuleSet() routing.RuleSet {
	return routing.RuleSet{
		Final: "auto",
		Rules: []routing.Rule{{Domain: "*", Action: routing.ActionOutbound, Target: "auto"}},
		VirtualOutbounds: []routing.VirtualOutbound{
			{Tag: "auto", Protocol: server.URLTest, Members: []string{"fast-nl"}},
			{Tag: "direct", Protocol: server.Direct},
			{Tag: "block", Protocol: server.Block},
			{Tag: "dns-out", Protocol: server.DNS},
		},
	}
}

func TestSingboxModernOmitsBlockAndDNS(t *testing.T) {
	e := NewSingboxModern()
	doc, _, err := e.Export(sampleServers(), sampleRuleSet(), profile.ClientProfile{Inbounds: []string{"tun"}}, nil)
	require.NoError(t, err)
	body := string(doc.Bytes)
	assert.NotContains(t, body, `"type": "block"`)
	assert.NotContains(t, body, `"type": "dns"`)
	assert.Contains(t, body, "auto")
}

func TestSingboxLegacyRetainsBlockAndDNS(t *testing.T) {
	e := NewSingboxLegacy()
	doc, _, err := e.Export(sampleServers(), sampleRuleSet(), profile.ClientProfile{Inbounds: []string{"tun"}}, nil)
	require.NoError(t, err)
	body := string(doc.Bytes)
	assert.Contains(t, body, `"tag": "block"`)
	assert.Contains(t, body, `"tag": "dns-out"`)
}

func TestSingboxExportIsDeterministic(t *testing.T) {
	e := NewSingboxModern()
	cp := profile.ClientProfile{Inbounds: []string{"tun"}}
	doc1, _, err := e.Export(sampleServers(), sampleRuleSet(), cp, nil)
	require.NoError(t, err)
	doc2, _, err := e.Export(sampleServers(), sampleRuleSet(), cp, nil)
	require.NoError(t, err)
	assert.Equal(t, doc1.Bytes, doc2.Bytes)
}

func TestClashWarnsAndSkipsUnsupportedProtocol(t *testing.T) {
	e := NewClash()
	doc, warnings, err := e.Export(sampleServers(), sampleRuleSet(), profile.ClientProfile{}, nil)
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.NotContains(t, string(doc.Bytes), "wg-de")
	assert.Contains(t, string(doc.Bytes), "fast-nl")
}

func TestResolveSingboxVariantDefaultsToModernOnError(t *testing.T) {
	assert.Equal(t, "singbox-modern", ResolveSingboxVariant(nil))
	assert.Equal(t, "singbox-modern", ResolveSingboxVariant(erroringDetector{}))
	assert.Equal(t, "singbox-legacy", ResolveSingboxVariant(legacyDetector{}))
}

type erroringDetector struct{}

func (erroringDetector) DetectSingboxMajor() (int, error) { return 0, assertErrDetect }

type legacyDetector struct{}

func (legacyDetector) DetectSingboxMajor() (int, error) { return 0, nil }

var assertErrDetect = &detectError{}

type detectError struct{}

func (*detectError) Error() string { return "detection failed" }
