/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import "fmt"

var (
	defaultStrongEncryption = map[string]bool{
		"tls": true, "reality": true, "xtls": true,
		"aes-256-gcm": true, "chacha20-poly1305": true,
	}
	defaultWeakEncryption = map[string]bool{
		"none": true, "plain": true, "aes-128": true, "rc4": true,
	}
)

// EncryptionPolicy denies known-weak encryption, allows known-strong
// encryption, and allows unknown values for forward compatibility
//.
type EncryptionPolicy struct {
	Strong map[string]bool
	Weak   map[string]bool
}

// NewEncryptionPolicy builds an EncryptionPolicy using the default
// strong/weak cipher sets.
func NewEncryptionPolicy() *EncryptionPolicy {
	return &EncryptionPolicy{Strong: defaultStrongEncryption, Weak: defaultWeakEncryption}
}

func (p *EncryptionPolicy) Name() string  { return "encryption" }
func (p *EncryptionPolicy) Group() string { return "encryption" }

func (p *EncryptionPolicy) Evaluate(ctx Context) Result {
	if ctx.Server == nil {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "missing server in context", Severity: SeverityCritical}
	}
	enc := ctx.Server.MetaString("encryption")
	if enc == "" {
		enc = ctx.Server.MetaString("security")
	}
	if p.Weak[enc] {
		return Result{
			Policy:   p.Name(),
			Decision: Deny,
			Reason:   fmt.Sprintf("weak encryption %q", enc),
			Severity: SeverityCritical,
		}
	}
	if p.Strong[enc] {
		return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
	}
	return Result{Policy: p.Name(), Decision: Allow, Reason: "unknown encryption, allowed by forward-compat default", Severity: SeverityInfo}
}
