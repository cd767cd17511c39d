/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package postprocess

import (
	"context"
	"net"
	"strings"

	"github.com/asergeyev/nradix"
	"golang.org/x/net/publicsuffix"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
)

// FallbackMode controls GeoFilter's behavior for servers with no
// discoverable country.
type FallbackMode string

const (
	FallbackAllowAll FallbackMode = "allow_all"
	FallbackDenyAll  FallbackMode = "deny_all"
)

// GeoFilter includes/excludes servers by two-letter country code.
type GeoFilter struct {
	Include      map[string]bool
	Exclude      map[string]bool
	Fallback     FallbackMode
	// CountryDB, if set, resolves an IP literal to a country code via a
	// radix-tree CIDR lookup, grounding ASN/country resolution the way the
	// rest of the pack's network tooling does (asergeyev/nradix).
	CountryDB *nradix.Tree
}

// NewGeoFilter builds a GeoFilter. include/exclude are 2-letter country
// codes; an empty include set means "no restriction by inclusion".
func NewGeoFilter(include, exclude []string, fallback FallbackMode) *GeoFilter {
	g := &GeoFilter{Include: toUpperSet(include), Exclude: toUpperSet(exclude), Fallback: fallback}
	return g
}

func toUpperSet(in []string) map[string]bool {
	out := make(map[string]bool, len(in))
	for _, s := range in {
		out[strings.ToUpper(s)] = true
	}
	return out
}

func (g *GeoFilter) Name() string                { return "geo-filter" }
func (g *GeoFilter) Merge() MergeStrategy        { return MergeIntersect }
func (g *GeoFilter) Precondition() Precondition  { return Precondition{} }

// country resolves a server's country using extraction order:
// meta.country -> meta.geo.country -> CountryDB lookup of an IP-literal
// address (when CountryDB is set) -> tag-prefix token -> TLD of domain.
func (g *GeoFilter) country(s *server.ParsedServer) string {
	if c := s.MetaString("country"); c != "" {
		return strings.ToUpper(c)
	}
	if c := s.MetaString("geo.country"); c != "" {
		return strings.ToUpper(c)
	}
	if g.CountryDB != nil {
		if ip := net.ParseIP(s.Address); ip != nil {
			if v, err := g.CountryDB.FindCIDR(s.Address + "/32"); err == nil && v != nil {
				if cc, ok := v.(string); ok && cc != "" {
					return strings.ToUpper(cc)
				}
			}
		}
	}
	if tag := s.Tag; tag != "" {
		token := strings.SplitN(tag, "-", 2)[0]
		token = strings.SplitN(token, " ", 2)[0]
		if len(token) == 2 {
			return strings.ToUpper(token)
		}
	}
	if tld, _ := publicsuffix.PublicSuffix(s.Address); tld != "" && len(tld) == 2 {
		return strings.ToUpper(tld)
	}
	return ""
}

func (g *GeoFilter) Process(ctx context.Context, servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	var out []*server.ParsedServer
	for _, s := range servers {
		cc := g.country(s)
		if cc == "" {
			if g.Fallback == FallbackAllowAll {
				out = append(out, s)
			}
			continue
		}
		if g.Exclude[cc] {
			continue
		}
		if len(g.Include) > 0 && !g.Include[cc] {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
