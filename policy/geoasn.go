/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"fmt"
	"net"
	"strings"

	"github.com/asergeyev/nradix"
)

// GeoASNPolicy is warn-only by default: it flags servers whose resolved country or ASN appears on
// WarnCountries/WarnASNs but never denies on its own.
type GeoASNPolicy struct {
	WarnCountries map[string]bool
	asnTree       *nradix.Tree
	asnLabels     map[string]string
}

// NewGeoASNPolicy builds a GeoASNPolicy. asnCIDRs maps a CIDR block to an
// ASN label (e.g. "203.0.113.0/24" -> "AS64500"); warnASNs names the ASN
// labels that should produce a warning.
func NewGeoASNPolicy(warnCountries []string, asnCIDRs map[string]string, warnASNs []string) (*GeoASNPolicy, error) {
	tree := nradix.NewTree(0)
	labels := make(map[string]string, len(asnCIDRs))
	warnSet := toSet(warnASNs)
	for cidr, asn := range asnCIDRs {
		if !warnSet[strings.ToUpper(asn)] {
			continue
		}
		if err := tree.AddCIDR(cidr, asn); err != nil {
			return nil, fmt.Errorf("policy: geo/asn: invalid CIDR %q: %w", cidr, err)
		}
		labels[cidr] = asn
	}
	return &GeoASNPolicy{WarnCountries: toSet(warnCountries), asnTree: tree, asnLabels: labels}, nil
}

func (p *GeoASNPolicy) Name() string  { return "geo-asn" }
func (p *GeoASNPolicy) Group() string { return "geo" }

func (p *GeoASNPolicy) asnFor(address string) (string, bool) {
	if p.asnTree == nil || net.ParseIP(address) == nil {
		return "", false
	}
	v, err := p.asnTree.FindCIDR(address + "/32")
	if err != nil || v == nil {
		return "", false
	}
	asn, ok := v.(string)
	return asn, ok
}

func (p *GeoASNPolicy) Evaluate(ctx Context) Result {
	if ctx.Server == nil {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "missing server in context", Severity: SeverityCritical}
	}
	country := strings.ToUpper(ctx.Server.MetaString("country"))
	if country != "" && p.WarnCountries[country] {
		return Result{Policy: p.Name(), Decision: Warn, Reason: fmt.Sprintf("country %s flagged for review", country), Severity: SeverityWarning}
	}
	if asn, ok := p.asnFor(ctx.Server.Address); ok {
		return Result{Policy: p.Name(), Decision: Warn, Reason: fmt.Sprintf("ASN %s flagged for review", asn), Severity: SeverityWarning}
	}
	return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
}
