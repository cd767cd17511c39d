/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package middleware

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

func TestTagNormalizeAssignsAndDedupes(t *testing.T) {
	a := server.New(server.VLESS, "h1", 443)
	a.SetMetaString("name", "🇳🇱 NL-1")
	b := server.New(server.Trojan, "h2", 443)
	b.SetMetaString("name", "🇳🇱 NL-1")

	m := NewTagNormalizeMiddleware()
	pc := pctx.New("", pctx.Strict, 0, "")
	out, err := m.Process([]*server.ParsedServer{a, b}, pc)
	require.NoError(t, err)
	assert.Equal(t, "🇳🇱 NL-1", out[0].Tag)
	assert.Equal(t, "🇳🇱 NL-1#2", out[1].Tag)
}

func TestTagNormalizeIsIdempotent(t *testing.T) {
	a := server.New(server.VLESS, "h1", 443)
	a.SetMetaString("name", "Fast")
	m := NewTagNormalizeMiddleware()
	pc := pctx.New("", pctx.Strict, 0, "")

	out1, _ := m.Process([]*server.ParsedServer{a}, pc)
	firstTag := out1[0].Tag
	out2, _ := m.Process(out1, pc)
	assert.Equal(t, firstTag, out2[0].Tag)
}

func TestOutboundFilterDropsExcluded(t *testing.T) {
	a := server.New(server.HTTP, "h", 80)
	b := server.New(server.VLESS, "h2", 443)
	m := NewOutboundFilterMiddleware([]server.Protocol{server.HTTP})
	pc := pctx.New("", pctx.Strict, 0, "")
	out, err := m.Process([]*server.ParsedServer{a, b}, pc)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, server.VLESS, out[0].Protocol)
}

func TestChainRunsInOrder(t *testing.T) {
	a := server.New(server.VLESS, "h", 443)
	chain := NewChain(
		NewOutboundFilterMiddleware(nil),
		NewTagNormalizeMiddleware(),
	)
	pc := pctx.New("", pctx.Strict, 0, "")
	out, err := chain.Run([]*server.ParsedServer{a}, pc)
	require.NoError(t, err)
	assert.NotEmpty(t, out[0].Tag)
	assert.Equal(t, []string{"outbound-filter", "tag-normalize"}, chain.StageNames())
}
