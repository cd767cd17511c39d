/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package postprocess

import (
	"context"
	"strings"

	"github.com/gobwas/glob"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// TagFilter whitelists/blacklists servers by tag token glob patterns.
// Token source is the union of tag, meta.tags, and tag split on "-", "_",
// whitespace.
type TagFilter struct {
	Whitelist     []glob.Glob
	Blacklist     []glob.Glob
	CaseSensitive bool
}

// NewTagFilter compiles whitelist/blacklist glob patterns.
func NewTagFilter(whitelist, blacklist []string, caseSensitive bool) (*TagFilter, error) {
	f := &TagFilter{CaseSensitive: caseSensitive}
	for _, p := range whitelist {
		g, err := glob.Compile(normalizeCase(p, caseSensitive))
		if err != nil {
			return nil, err
		}
		f.Whitelist = append(f.Whitelist, g)
	}
	for _, p := range blacklist {
		g, err := glob.Compile(normalizeCase(p, caseSensitive))
		if err != nil {
			return nil, err
		}
		f.Blacklist = append(f.Blacklist, g)
	}
	return f, nil
}

func normalizeCase(s string, caseSensitive bool) string {
	if caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

func (f *TagFilter) Name() string               { return "tag-filter" }
func (f *TagFilter) Merge() MergeStrategy       { return MergeIntersect }
func (f *TagFilter) Precondition() Precondition { return Precondition{} }

func (f *TagFilter) tokens(s *server.ParsedServer) []string {
	var tokens []string
	if s.Tag != "" {
		tokens = append(tokens, s.Tag)
		tokens = append(tokens, splitTagTokens(s.Tag)...)
	}
	if tagsMeta := s.MetaString("tags"); tagsMeta != "" {
		for _, t := range strings.Split(tagsMeta, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tokens = append(tokens, t)
			}
		}
	}
	if !f.CaseSensitive {
		for i, t := range tokens {
			tokens[i] = strings.ToLower(t)
		}
	}
	return tokens
}

func splitTagTokens(tag string) []string {
	return strings.FieldsFunc(tag, func(r rune) bool {
		return r == '-' || r == '_' || r == ' '
	})
}

func (f *TagFilter) matchesAny(globs []glob.Glob, tokens []string) bool {
	for _, g := range globs {
		for _, t := range tokens {
			if g.Match(t) {
				return true
			}
		}
	}
	return false
}

func (f *TagFilter) Process(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	var out []*server.ParsedServer
	for _, s := range servers {
		tokens := f.tokens(s)
		if len(f.Blacklist) > 0 && f.matchesAny(f.Blacklist, tokens) {
			continue
		}
		if len(f.Whitelist) > 0 && !f.matchesAny(f.Whitelist, tokens) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
