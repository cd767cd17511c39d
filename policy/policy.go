/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package policy implements the declarative policy engine:
// pure evaluators producing allow/warn/deny/skip decisions, and a registry
// with fail-closed error semantics built on a capability-set access-control
// model.
package policy

import (
	"sort"
	"sync"

	"github.com/sboxmgr/core/server"
)

// Decision is the tagged-union outcome a Policy returns.
type Decision string

const (
	Allow Decision = "allow"
	Warn  Decision = "warn"
	Deny  Decision = "deny"
	Skip  Decision = "skip"
)

// Severity classifies a Result. Registry.List filters by enabled state
// only; it does not filter by group or severity.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Context is the evaluation context passed to a Policy's Evaluate method.
type Context struct {
	Server  *server.ParsedServer
	Profile string
	User    string
	Meta    map[string]string
}

// Result is one Policy's verdict.
type Result struct {
	Policy   string
	Decision Decision
	Reason   string
	Severity Severity
	Metadata map[string]string
}

// Policy is a pure function evaluating one server against a Context.
// Implementations MUST fail-closed: an internal error is reported as Deny,
// never silently ignored.
type Policy interface {
	Name() string
	Group() string
	Evaluate(ctx Context) Result
}

// safeEvaluate wraps p.Evaluate in a panic recovery that converts a panic
// into a fail-closed Deny, defaulting to denial on any unexpected state.
func safeEvaluate(p Policy, ctx Context) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Policy: p.Name(), Decision: Deny, Reason: "policy panicked", Severity: SeverityCritical}
		}
	}()
	return p.Evaluate(ctx)
}

type registered struct {
	policy  Policy
	enabled bool
}

// Registry holds enabled/disabled Policies and runs them against a Context.
type Registry struct {
	mtx   sync.RWMutex
	order []string
	byName map[string]*registered
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*registered)}
}

// Register adds p, enabled by default.
func (r *Registry) Register(p Policy) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if _, exists := r.byName[p.Name()]; !exists {
		r.order = append(r.order, p.Name())
	}
	r.byName[p.Name()] = &registered{policy: p, enabled: true}
}

// Enable/Disable toggle a registered policy by name; unknown names are a
// no-op (policies are additive, never implicitly created by toggling).
func (r *Registry) Enable(name string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if e, ok := r.byName[name]; ok {
		e.enabled = true
	}
}

func (r *Registry) Disable(name string) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	if e, ok := r.byName[name]; ok {
		e.enabled = false
	}
}

// List returns the names of registered policies matching the enabled
// filter, sorted by name. Pass nil to list all.
func (r *Registry) List(enabledOnly *bool) []string {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	var out []string
	for _, name := range r.order {
		e := r.byName[name]
		if enabledOnly != nil && e.enabled != *enabledOnly {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// EvaluateAll runs every enabled policy against ctx, in registration order.
func (r *Registry) EvaluateAll(ctx Context) []Result {
	r.mtx.RLock()
	snapshot := make([]Policy, 0, len(r.order))
	for _, name := range r.order {
		e := r.byName[name]
		if e.enabled {
			snapshot = append(snapshot, e.policy)
		}
	}
	r.mtx.RUnlock()

	results := make([]Result, 0, len(snapshot))
	for _, p := range snapshot {
		results = append(results, safeEvaluate(p, ctx))
	}
	return results
}
