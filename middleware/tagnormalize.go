/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package middleware

import (
	"fmt"

	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/server"
	"github.com/sboxmgr/core/tagnorm"
)

// TagNormalizeMiddleware assigns the final, unique, canonical tag to every
// server using this candidate order: meta.name, meta.tag, pre-existing tag,
// "<protocol>-<address>", "<protocol>-<ordinal>".
type TagNormalizeMiddleware struct {
	enabled bool
}

// NewTagNormalizeMiddleware builds a TagNormalizeMiddleware.
func NewTagNormalizeMiddleware() *TagNormalizeMiddleware {
	return &TagNormalizeMiddleware{enabled: true}
}

func (m *TagNormalizeMiddleware) Name() string      { return "tag-normalize" }
func (m *TagNormalizeMiddleware) Enabled() bool     { return m.enabled }
func (m *TagNormalizeMiddleware) SetEnabled(e bool) { m.enabled = e }

func (m *TagNormalizeMiddleware) Process(servers []*server.ParsedServer, pc *pctx.Context) ([]*server.ParsedServer, error) {
	dedup := tagnorm.NewDeduplicator()
	for i, s := range servers {
		candidate := firstNonEmptyCandidate(s, i)
		s.Tag = dedup.Assign(candidate)
	}
	return servers, nil
}

func firstNonEmptyCandidate(s *server.ParsedServer, ordinal int) string {
	if name := s.MetaString("name"); name != "" {
		return name
	}
	if tag := s.MetaString("tag"); tag != "" {
		return tag
	}
	if s.Tag != "" {
		return s.Tag
	}
	if s.Address != "" {
		return fmt.Sprintf("%s-%s", s.Protocol, s.Address)
	}
	return fmt.Sprintf("%s-%d", s.Protocol, ordinal+1)
}
