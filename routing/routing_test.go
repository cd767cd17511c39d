/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/server"
)

func TestBuildRejectsInvalidDomain(t *testing.T) {
	p := NewPlugin(nil)
	cfg := profile.Routing{CustomRoutes: map[string]string{"not a domain!!": "direct"}}
	_, err := p.Build(nil, cfg)
	var invalid *ErrInvalidDomain
	assert.ErrorAs(t, err, &invalid)
}

func TestBuildEmitsDefaultRouteAndVirtualOutbounds(t *testing.T) {
	p := NewPlugin(nil)
	cfg := profile.Routing{DefaultRoute: "auto", Final: "auto"}
	rs, err := p.Build(nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, "auto", rs.Final)

	var sawDirect bool
	for _, vo := range rs.VirtualOutbounds {
		if vo.Tag == "direct" {
			sawDirect = true
		}
	}
	assert.True(t, sawDirect)

	var sawWildcard bool
	for _, r := range rs.Rules {
		if r.Domain == "*" && r.Target == "auto" {
			sawWildcard = true
		}
	}
	assert.True(t, sawWildcard)
}

func TestBuildBySourceGroupsExcludeExcludedServers(t *testing.T) {
	a := server.New(server.VLESS, "a", 443)
	a.Tag = "a-tag"
	a.SetMetaString("source_id", "src1")
	b := server.New(server.VLESS, "b", 443)
	b.Tag = "b-tag"
	b.SetMetaString("source_id", "src1")

	excluded := map[string]bool{b.IdentityHash(): true}
	p := NewPlugin(excluded)
	cfg := profile.Routing{BySource: true}
	rs, err := p.Build([]*server.ParsedServer{a, b}, cfg)
	require.NoError(t, err)

	var group *VirtualOutbound
	for i := range rs.VirtualOutbounds {
		if rs.VirtualOutbounds[i].Tag == "auto-src1" {
			group = &rs.VirtualOutbounds[i]
		}
	}
	require.NotNil(t, group)
	assert.Equal(t, []string{"a-tag"}, group.Members)
}
