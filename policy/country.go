/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"fmt"
	"strings"
)

// CountryPolicy denies servers on an explicit deny-list and, if an
// allow-list is configured, denies anything not on it.
type CountryPolicy struct {
	Allow map[string]bool
	Deny  map[string]bool
}

// NewCountryPolicy builds a CountryPolicy from upper-cased ISO country
// codes; either list may be nil/empty to disable that side.
func NewCountryPolicy(allow, deny []string) *CountryPolicy {
	return &CountryPolicy{Allow: toSet(allow), Deny: toSet(deny)}
}

func toSet(in []string) map[string]bool {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]bool, len(in))
	for _, c := range in {
		out[strings.ToUpper(c)] = true
	}
	return out
}

func (p *CountryPolicy) Name() string  { return "country" }
func (p *CountryPolicy) Group() string { return "geo" }

func (p *CountryPolicy) Evaluate(ctx Context) Result {
	if ctx.Server == nil {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "missing server in context", Severity: SeverityCritical}
	}
	country := strings.ToUpper(ctx.Server.MetaString("country"))
	if country == "" {
		return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
	}
	if p.Deny[country] {
		return Result{Policy: p.Name(), Decision: Deny, Reason: fmt.Sprintf("country %s on deny list", country), Severity: SeverityCritical}
	}
	if len(p.Allow) > 0 && !p.Allow[country] {
		return Result{Policy: p.Name(), Decision: Deny, Reason: fmt.Sprintf("country %s not on allow list", country), Severity: SeverityCritical}
	}
	return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
}
