/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	duoapi "github.com/duosecurity/duo_api_golang"
	"github.com/duosecurity/duo_api_golang/authapi"
)

// Capability is one user-scoped permission a profile can require, modeled
// as a capability-set access-control primitive.
type Capability string

// PermissionPolicy requires ctx.User to hold every Capability in Required.
// When DuoClient is set, it additionally requires a live Duo push
// approval for the user before granting access — used to gate sensitive
// profiles (e.g. ones that enable the agent bridge) behind a second
// factor (spec-adjacent: "optional Permission policy backing: require Duo
// push approval").
type PermissionPolicy struct {
	Grants    map[string]map[Capability]bool
	Required  []Capability
	DuoClient *duoapi.DuoApi
}

// NewPermissionPolicy builds a PermissionPolicy. grants maps a user name
// to the set of capabilities it holds.
func NewPermissionPolicy(grants map[string]map[Capability]bool, required []Capability) *PermissionPolicy {
	return &PermissionPolicy{Grants: grants, Required: required}
}

// WithDuo attaches a Duo Auth API client; duoPushApprove must succeed before
// Evaluate grants access regardless of capability grants.
func (p *PermissionPolicy) WithDuo(client *duoapi.DuoApi) *PermissionPolicy {
	p.DuoClient = client
	return p
}

func (p *PermissionPolicy) Name() string  { return "permission" }
func (p *PermissionPolicy) Group() string { return "permission" }

func (p *PermissionPolicy) hasAll(user string) bool {
	granted := p.Grants[user]
	for _, c := range p.Required {
		if !granted[c] {
			return false
		}
	}
	return true
}

// duoPushApprove issues a synchronous Duo "auth" push factor check against
// the configured DuoClient using the duoapi.SignedCall request flow.
func (p *PermissionPolicy) duoPushApprove(user string) (bool, error) {
	authClient := authapi.NewAuthApi(*p.DuoClient)
	resp, err := authClient.Auth("push", authapi.AuthUsername(user), authapi.AuthDevice("auto"))
	if err != nil {
		return false, err
	}
	return resp.StatResult.Stat == "OK" && resp.Response.Result == "allow", nil
}

func (p *PermissionPolicy) Evaluate(ctx Context) Result {
	if ctx.User == "" {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "no user in context", Severity: SeverityCritical}
	}
	if !p.hasAll(ctx.User) {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "missing required capability", Severity: SeverityCritical}
	}
	if p.DuoClient != nil {
		ok, err := p.duoPushApprove(ctx.User)
		if err != nil {
			return Result{Policy: p.Name(), Decision: Deny, Reason: "duo push check failed: " + err.Error(), Severity: SeverityCritical}
		}
		if !ok {
			return Result{Policy: p.Name(), Decision: Deny, Reason: "duo push not approved", Severity: SeverityCritical}
		}
	}
	return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
}
