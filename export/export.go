/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package export implements the Exporter contract: export(servers, routing,
// client_profile, context) -> target_document, and its three
// implementations.
package export

import (
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/routing"
	"github.com/sboxmgr/core/server"
)

// Document is the serialized bytes an Exporter produces, plus the format
// tag it was produced under.
type Document struct {
	Format string
	Bytes  []byte
}

// Exporter transforms a selected server set and routing rule set into a
// target-engine-specific document. Implementations MUST be deterministic:
// identical inputs produce byte-identical output modulo explicit timestamp
// fields.
type Exporter interface {
	Name() string
	Export(servers []*server.ParsedServer, rs routing.RuleSet, cp profile.ClientProfile, pc *pctx.Context) (Document, []string, error)
}

// VersionDetector optionally reports the target sing-box runtime's major
// version so the caller can pick singbox-modern vs singbox-legacy
// automatically. It is an injected collaborator; when absent or erroring,
// callers default to modern.
type VersionDetector interface {
	DetectSingboxMajor() (int, error)
}

// ResolveSingboxVariant picks "singbox-modern" or "singbox-legacy" using an
// optional VersionDetector, defaulting to modern when d is nil or errors.
func ResolveSingboxVariant(d VersionDetector) string {
	if d == nil {
		return "singbox-modern"
	}
	major, err := d.DetectSingboxMajor()
	if err != nil {
		return "singbox-modern"
	}
	if major < 1 {
		return "singbox-legacy"
	}
	return "singbox-modern"
}
