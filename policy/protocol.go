/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"fmt"

	"github.com/sboxmgr/core/server"
)

// Mode selects whitelist or blacklist semantics for ProtocolPolicy.
type Mode string

const (
	ModeWhitelist Mode = "whitelist"
	ModeBlacklist Mode = "blacklist"
)

var defaultAllowedProtocols = map[server.Protocol]bool{
	server.VLESS:       true,
	server.Trojan:      true,
	server.Shadowsocks: true,
	server.Hysteria2:   true,
	server.TUIC:        true,
}

// ProtocolPolicy allows or denies servers by Protocol.
type ProtocolPolicy struct {
	Mode  Mode
	Set   map[server.Protocol]bool
}

// NewProtocolPolicy builds a ProtocolPolicy. A nil set falls back to the
// spec default allow-set in whitelist mode.
func NewProtocolPolicy(mode Mode, set map[server.Protocol]bool) *ProtocolPolicy {
	if set == nil && mode != ModeBlacklist {
		set = defaultAllowedProtocols
	}
	return &ProtocolPolicy{Mode: mode, Set: set}
}

func (p *ProtocolPolicy) Name() string  { return "protocol" }
func (p *ProtocolPolicy) Group() string { return "protocol" }

func (p *ProtocolPolicy) Evaluate(ctx Context) Result {
	if ctx.Server == nil {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "missing server in context", Severity: SeverityCritical}
	}
	inSet := p.Set[ctx.Server.Protocol]
	allowed := inSet
	if p.Mode == ModeBlacklist {
		allowed = !inSet
	}
	if allowed {
		return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
	}
	return Result{
		Policy:   p.Name(),
		Decision: Deny,
		Reason:   fmt.Sprintf("protocol %q disallowed by %s policy", ctx.Server.Protocol, p.Mode),
		Severity: SeverityCritical,
	}
}
