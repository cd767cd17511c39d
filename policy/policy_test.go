/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/server"
)

func TestProtocolPolicyDeniesUnlisted(t *testing.T) {
	p := NewProtocolPolicy(ModeWhitelist, nil)
	s := server.New(server.HTTP, "h", 80)
	res := p.Evaluate(Context{Server: s})
	assert.Equal(t, Deny, res.Decision)
}

func TestEncryptionPolicyDeniesWeakAllowsUnknown(t *testing.T) {
	p := NewEncryptionPolicy()
	weak := server.New(server.VLESS, "h", 443)
	weak.SetMetaString("encryption", "none")
	assert.Equal(t, Deny, p.Evaluate(Context{Server: weak}).Decision)

	unknown := server.New(server.VLESS, "h", 443)
	unknown.SetMetaString("encryption", "some-future-cipher")
	assert.Equal(t, Allow, p.Evaluate(Context{Server: unknown}).Decision)
}

func TestAuthenticationPolicyWarnsShortCredential(t *testing.T) {
	p := NewAuthenticationPolicy()
	s := server.New(server.Shadowsocks, "h", 443)
	s.SetMetaString("password", "abc")
	res := p.Evaluate(Context{Server: s})
	assert.Equal(t, Warn, res.Decision)
}

func TestAuthenticationPolicyDeniesMissingCredential(t *testing.T) {
	p := NewAuthenticationPolicy()
	s := server.New(server.Shadowsocks, "h", 443)
	res := p.Evaluate(Context{Server: s})
	assert.Equal(t, Deny, res.Decision)
}

func TestCountryPolicyDenyList(t *testing.T) {
	p := NewCountryPolicy(nil, []string{"CN"})
	s := server.New(server.VLESS, "h", 443)
	s.SetMetaString("country", "cn")
	assert.Equal(t, Deny, p.Evaluate(Context{Server: s}).Decision)
}

func TestGeoASNPolicyWarnsOnly(t *testing.T) {
	p, err := NewGeoASNPolicy([]string{"CN"}, nil, nil)
	require.NoError(t, err)
	s := server.New(server.VLESS, "h", 443)
	s.SetMetaString("country", "CN")
	res := p.Evaluate(Context{Server: s})
	assert.Equal(t, Warn, res.Decision)
}

func TestIntegrityPolicyAllowsNoDeclaredHash(t *testing.T) {
	p := NewIntegrityPolicy()
	s := server.New(server.VLESS, "h", 443)
	assert.Equal(t, Allow, p.Evaluate(Context{Server: s}).Decision)
}

func TestIntegrityPolicyDeniesMismatch(t *testing.T) {
	p := NewIntegrityPolicy()
	s := server.New(server.VLESS, "h", 443)
	s.SetMetaString("content_hash", "not-the-real-hash")
	assert.Equal(t, Deny, p.Evaluate(Context{Server: s}).Decision)
}

func TestPermissionPolicyRequiresCapability(t *testing.T) {
	p := NewPermissionPolicy(map[string]map[Capability]bool{
		"alice": {"export": true},
	}, []Capability{"export"})
	assert.Equal(t, Allow, p.Evaluate(Context{User: "alice"}).Decision)
	assert.Equal(t, Deny, p.Evaluate(Context{User: "bob"}).Decision)
}

func TestLimitPolicySkipsOverCap(t *testing.T) {
	p := NewLimitPolicy(1)
	s := server.New(server.VLESS, "h", 443)
	assert.Equal(t, Allow, p.Evaluate(Context{Server: s}).Decision)
	assert.Equal(t, Skip, p.Evaluate(Context{Server: s}).Decision)
	p.Reset()
	assert.Equal(t, Allow, p.Evaluate(Context{Server: s}).Decision)
}

func TestRegistryFailsClosedOnPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(panickyPolicy{})
	results := r.EvaluateAll(Context{Server: server.New(server.VLESS, "h", 443)})
	require.Len(t, results, 1)
	assert.Equal(t, Deny, results[0].Decision)
}

type panickyPolicy struct{}

func (panickyPolicy) Name() string  { return "panicky" }
func (panickyPolicy) Group() string { return "test" }
func (panickyPolicy) Evaluate(ctx Context) Result {
	panic("boom")
}

func TestRegistryEvaluateAllSkipsDisabled(t *testing.T) {
	r := NewRegistry()
	r.Register(NewProtocolPolicy(ModeWhitelist, nil))
	r.Disable("protocol")
	results := r.EvaluateAll(Context{Server: server.New(server.VLESS, "h", 443)})
	assert.Empty(t, results)
}
