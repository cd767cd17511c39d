/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"fmt"
	"sync"
)

// LimitPolicy caps the number of servers a profile can carry. Because Evaluate runs once per server, LimitPolicy tracks how
// many servers it has already allowed for the current evaluate_all pass
// and starts returning Skip (with a warn annotation) once MaxServers is
// reached; the caller is responsible for calling Reset() between passes.
type LimitPolicy struct {
	MaxServers int

	mtx   sync.Mutex
	count int
}

// NewLimitPolicy builds a LimitPolicy with the given per-profile cap.
// maxServers <= 0 disables the limit.
func NewLimitPolicy(maxServers int) *LimitPolicy {
	return &LimitPolicy{MaxServers: maxServers}
}

func (p *LimitPolicy) Name() string  { return "limit" }
func (p *LimitPolicy) Group() string { return "limit" }

// Reset clears the running count; call once per evaluate_all pass.
func (p *LimitPolicy) Reset() {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.count = 0
}

func (p *LimitPolicy) Evaluate(ctx Context) Result {
	if p.MaxServers <= 0 {
		return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
	}
	p.mtx.Lock()
	defer p.mtx.Unlock()
	p.count++
	if p.count > p.MaxServers {
		return Result{
			Policy:   p.Name(),
			Decision: Skip,
			Reason:   fmt.Sprintf("profile server count exceeds limit %d", p.MaxServers),
			Severity: SeverityWarning,
		}
	}
	return Result{Policy: p.Name(), Decision: Allow, Severity: SeverityInfo}
}
