/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parse

import (
	"bytes"
	"encoding/base64"
	"regexp"

	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/server"
)

// Base64Parser decodes a base64-encoded body and recursively delegates to
// the best-matching parser for the decoded content.
type Base64Parser struct {
	// Delegates is consulted (in registration order) to pick a parser for
	// the decoded body. Populated by register.go to avoid an import cycle
	// with the individual format parsers.
	Delegates []Parser
}

func (Base64Parser) Name() string { return "base64" }

var base64BodyRe = regexp.MustCompile(`^[A-Za-z0-9+/_=\s-]+$`)

func (Base64Parser) Detect(body []byte) float64 {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) < 8 {
		return 0
	}
	if !base64BodyRe.Match(trimmed) {
		return 0
	}
	if _, err := decodeBase64(trimmed); err != nil {
		return 0
	}
	return 0.5
}

func decodeBase64(body []byte) ([]byte, error) {
	cleaned := bytes.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, body)

	if decoded, err := base64.StdEncoding.DecodeString(string(cleaned)); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.URLEncoding.DecodeString(string(cleaned)); err == nil {
		return decoded, nil
	}
	if decoded, err := base64.RawStdEncoding.DecodeString(string(cleaned)); err == nil {
		return decoded, nil
	}
	return base64.RawURLEncoding.DecodeString(string(cleaned))
}

func (p Base64Parser) Parse(body []byte) ([]*server.ParsedServer, []perr.PipelineError) {
	decoded, err := decodeBase64(bytes.TrimSpace(body))
	if err != nil {
		return nil, []perr.PipelineError{newErr("parse.base64", perr.Fatal, "invalid base64 body: "+err.Error())}
	}

	delegate := Select(p.Delegates, decoded)
	if delegate == nil {
		return nil, []perr.PipelineError{newErr("parse.base64", perr.Fatal, "decoded body matched no known format")}
	}
	return delegate.Parse(decoded)
}
