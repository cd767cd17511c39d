/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"crypto/sha256"
	"encoding/hex"
)

// IntegrityPolicy denies a server whose declared content hash
// (meta.content_hash) doesn't match the hash of its identity string, the
// same SHA-256 construction server.IdentityHash uses.
type IntegrityPolicy struct{}

// NewIntegrityPolicy builds an IntegrityPolicy.
func NewIntegrityPolicy() *IntegrityPolicy { return &IntegrityPolicy{} }

func (p *IntegrityPolicy) Name() string  { return "integrity" }
func (p *IntegrityPolicy) Group() string { return "integrity" }

func (p *IntegrityPolicy) Evaluate(ctx Context) Result {
	if ctx.Server == nil {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "missing server in context", Severity: SeverityCritical}
	}
	declared := ctx.Server.MetaString("content_hash")
	if declared == "" {
		return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
	}
	sum := sha256.Sum256([]byte(ctx.Server.Identity()))
	actual := hex.EncodeToString(sum[:])
	if declared != actual {
		return Result{Policy: p.Name(), Decision: Deny, Reason: "content hash mismatch", Severity: SeverityCritical}
	}
	return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
}
