/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package postprocess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

func mkServer(proto server.Protocol, addr string, port int, country string) *server.ParsedServer {
	s := server.New(proto, addr, port)
	if country != "" {
		s.SetMetaString("country", country)
	}
	return s
}

func TestGeoFilterIncludeExclude(t *testing.T) {
	servers := []*server.ParsedServer{
		mkServer(server.VLESS, "h1", 443, "NL"),
		mkServer(server.VLESS, "h2", 443, "CN"),
		mkServer(server.VLESS, "h3", 443, ""),
	}
	f := NewGeoFilter([]string{"nl"}, nil, FallbackDenyAll)
	out, err := f.Process(context.Background(), servers, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "h1", out[0].Address)
}

func TestTagFilterWhitelistBlacklist(t *testing.T) {
	a := server.New(server.VLESS, "h1", 443)
	a.Tag = "fast-nl"
	b := server.New(server.VLESS, "h2", 443)
	b.Tag = "slow-de"

	f, err := NewTagFilter([]string{"fast*"}, nil, false)
	require.NoError(t, err)
	out, err := f.Process(context.Background(), []*server.ParsedServer{a, b}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "fast-nl", out[0].Tag)
}

func TestDeduplicateKeepsHighestPriority(t *testing.T) {
	a := server.New(server.VLESS, "h", 443)
	a.SetMetaString("source_priority", "1")
	b := server.New(server.VLESS, "h", 443)
	b.SetMetaString("source_priority", "5")

	priority := func(s *server.ParsedServer) int {
		switch s.MetaString("source_priority") {
		case "5":
			return 5
		default:
			return 1
		}
	}
	d := NewDeduplicate(priority)
	out, err := d.Process(context.Background(), []*server.ParsedServer{a, b}, nil)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "5", out[0].MetaString("source_priority"))
}

func TestLatencySortOrdersAscending(t *testing.T) {
	a := server.New(server.VLESS, "slow", 443)
	a.SetMetaString("latency_ms", "300")
	b := server.New(server.VLESS, "fast", 443)
	b.SetMetaString("latency_ms", "50")

	l := NewLatencySort(0, 9999, false)
	out, err := l.Process(context.Background(), []*server.ParsedServer{a, b}, nil)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "fast", out[0].Address)
}

func TestChainSequentialStopsOnFailFast(t *testing.T) {
	servers := []*server.ParsedServer{server.New(server.VLESS, "h", 443)}
	failing := failingProcessor{}
	chain := NewChain(ModeSequential, ErrorFailFast, failing)
	pc := pctx.New("", pctx.Strict, 0, "")
	_, err := chain.Run(context.Background(), servers, pc)
	assert.Error(t, err)
}

type failingProcessor struct{}

func (failingProcessor) Name() string               { return "failing" }
func (failingProcessor) Merge() MergeStrategy       { return MergeIntersect }
func (failingProcessor) Precondition() Precondition { return Precondition{} }
func (failingProcessor) Process(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	return nil, assertErr
}

var assertErr = &chainTestError{}

type chainTestError struct{}

func (*chainTestError) Error() string { return "forced failure" }
