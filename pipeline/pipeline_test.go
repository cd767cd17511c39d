/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/export"
	"github.com/sboxmgr/core/fetch"
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

type stubFetcher struct {
	body []byte
	err  error
}

func (f *stubFetcher) Name() string { return "fake" }
func (f *stubFetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (fetch.Result, error) {
	return fetch.Result{Body: f.body}, f.err
}

type stubParser struct {
	servers []*server.ParsedServer
	errs    []perr.PipelineError
	score   float64
	calls   int
}

func (p *stubParser) Name() string               { return "fake-parser" }
func (p *stubParser) Detect(body []byte) float64 { return p.score }
func (p *stubParser) Parse(body []byte) ([]*server.ParsedServer, []perr.PipelineError) {
	p.calls++
	return p.servers, p.errs
}

func sampleServer() *server.ParsedServer {
	s := server.New(server.VLESS, "1.2.3.4", 443)
	s.Tag = "srv-1"
	s.SetMetaString("encryption", "tls")
	s.SetMetaString("uuid", "11111111-1111-1111-1111-111111111111")
	return s
}

func testProfile() *profile.FullProfile {
	return &profile.FullProfile{
		Name: "test",
		Subscriptions: []server.Source{
			{ID: "sub-1", Location: "http://example.invalid/sub", Type: "fake", Enabled: true, Priority: 1},
		},
		ExportCfg: profile.Export{Format: "singbox-modern"},
	}
}

func baseCollaborators(fetcher fetch.Fetcher, parser parse.Parser, policies *policy.Registry) Collaborators {
	return Collaborators{
		Fetchers:       map[string]fetch.Fetcher{"fake": fetcher},
		Parsers:        []parse.Parser{parser},
		Middleware:     middleware.NewChain(),
		Postprocessors: postprocess.NewChain(postprocess.ModeSequential, postprocess.ErrorContinue),
		Policies:       policies,
		Selector:       selector.NewAutomaticSelector(selector.LowestLatencyCriterion, 0),
		Routing:        routing.NewPlugin(nil),
		Exporter:       export.NewSingboxModern(),
	}
}

func TestRunProducesExportArtifactOnHappyPath(t *testing.T) {
	fetcher := &stubFetcher{body: []byte("irrelevant-raw-body")}
	parser := &stubParser{servers: []*server.ParsedServer{sampleServer()}, score: 1}
	collab := baseCollaborators(fetcher, parser, policy.NewRegistry())

	mgr := NewManager(eventbus.New(nil), nil, nil, nil)
	res := mgr.Run(context.Background(), testProfile(), collab, pctx.Strict, 0, RunOptions{SourceURL: "http://example.invalid/sub"})

	require.True(t, res.Success)
	assert.NotEmpty(t, res.Artifact.Bytes)
	assert.Equal(t, "singbox-modern", res.Artifact.Format)
}

func TestRunFatalOnEmptyPolicyResultInStrictMode(t *testing.T) {
	fetcher := &stubFetcher{body: []byte("irrelevant-raw-body")}
	parser := &stubParser{servers: []*server.ParsedServer{sampleServer()}, score: 1}

	policies := policy.NewRegistry()
	policies.Register(policy.NewProtocolPolicy(policy.ModeBlacklist, map[server.Protocol]bool{server.VLESS: true}))
	collab := baseCollaborators(fetcher, parser, policies)

	mgr := NewManager(eventbus.New(nil), nil, nil, nil)
	res := mgr.Run(context.Background(), testProfile(), collab, pctx.Strict, 0, RunOptions{})

	assert.False(t, res.Success)
	assert.False(t, res.PartialSuccess)
}

func TestRunToleratesEmptyPolicyResultWithoutPartialCredit(t *testing.T) {
	fetcher := &stubFetcher{body: []byte("irrelevant-raw-body")}
	parser := &stubParser{servers: []*server.ParsedServer{sampleServer()}, score: 1}

	policies := policy.NewRegistry()
	policies.Register(policy.NewProtocolPolicy(policy.ModeBlacklist, map[server.Protocol]bool{server.VLESS: true}))
	collab := baseCollaborators(fetcher, parser, policies)

	mgr := NewManager(eventbus.New(nil), nil, nil, nil)
	res := mgr.Run(context.Background(), testProfile(), collab, pctx.Tolerant, 0, RunOptions{})

	// Tolerant mode still reports failure here: a completely empty
	// post-policy server list never earns partial credit.
	assert.False(t, res.Success)
	assert.False(t, res.PartialSuccess)
}

func TestRunFailsClosedOnFetchError(t *testing.T) {
	fetcher := &stubFetcher{err: errors.New("boom")}
	parser := &stubParser{score: 1}
	collab := baseCollaborators(fetcher, parser, policy.NewRegistry())

	mgr := NewManager(eventbus.New(nil), nil, nil, nil)
	res := mgr.Run(context.Background(), testProfile(), collab, pctx.Strict, 0, RunOptions{})

	assert.False(t, res.Success)
	require.NotEmpty(t, res.Errors)
	assert.Equal(t, perr.KindFetch, res.Errors[0].Kind)
}

func TestRunHonorsCacheAcrossInvocations(t *testing.T) {
	fetcher := &stubFetcher{body: []byte("cached-body")}
	parser := &stubParser{servers: []*server.ParsedServer{sampleServer()}, score: 1}
	collab := baseCollaborators(fetcher, parser, policy.NewRegistry())

	mgr := NewManager(eventbus.New(nil), nil, nil, nil)
	first := mgr.Run(context.Background(), testProfile(), collab, pctx.Strict, 0, RunOptions{})
	require.True(t, first.Success)

	// A second run with the fetcher now failing should still succeed: the
	// prior successful body is served from the manager's cache.
	fetcher.err = errors.New("would fail if the cache were bypassed")
	second := mgr.Run(context.Background(), testProfile(), collab, pctx.Strict, 0, RunOptions{})
	assert.True(t, second.Success)
}

func TestRunSkipsReparsingAnUnchangedBody(t *testing.T) {
	fetcher := &stubFetcher{body: []byte("unchanged-body")}
	parser := &stubParser{servers: []*server.ParsedServer{sampleServer()}, score: 1}
	collab := baseCollaborators(fetcher, parser, policy.NewRegistry())

	mgr := NewManager(eventbus.New(nil), nil, nil, nil)
	first := mgr.Run(context.Background(), testProfile(), collab, pctx.Strict, 0, RunOptions{ForceReload: true})
	require.True(t, first.Success)
	assert.Equal(t, 1, parser.calls)

	// A second run, forcing the fetch past the body cache, still skips
	// Parse entirely: the subscription's content hash is unchanged from
	// the manager's last-seen record.
	second := mgr.Run(context.Background(), testProfile(), collab, pctx.Strict, 0, RunOptions{ForceReload: true})
	require.True(t, second.Success)
	assert.Equal(t, 1, parser.calls)
}
