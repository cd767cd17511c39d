/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package fetch implements the Fetcher collaborators: http(s),
// file, and bearer-token API variants, plus a handful of message/object
// store backends.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/sboxmgr/core/pctx"
)

// MaxBodySize is the default hard cap on a fetched subscription body
//.
const MaxBodySize = 2 * 1024 * 1024

// DefaultUserAgent is sent unless the caller overrides or suppresses it.
const DefaultUserAgent = "ClashMeta/1.0"

// AllowedSchemes is the whitelist enforced before any network or file
// activity.
var AllowedSchemes = map[string]bool{"http": true, "https": true, "file": true}

// ErrOversize is returned when a fetch exceeds its configured body cap.
var ErrOversize = errors.New("fetch: body exceeds configured size cap")

// UnsupportedSchemeError reports a scheme outside AllowedSchemes.
type UnsupportedSchemeError struct {
	Scheme string
}

func (e *UnsupportedSchemeError) Error() string {
	return fmt.Sprintf("unsupported scheme: %s", e.Scheme)
}

// Result is what a Fetcher returns: the raw body plus a flag reporting
// whether it was cut at the size cap, so callers can distinguish a clean
// fetch from a truncated one.
type Result struct {
	Body      []byte
	Truncated bool
}

// Fetcher retrieves raw subscription bytes for one source.
type Fetcher interface {
	// Name identifies this fetcher in registry.Names(registry.KindFetcher).
	Name() string
	// Fetch retrieves the body located at loc under ctx's trace/mode.
	Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error)
}

// Option configures common fetcher behavior; concrete fetchers accept a
// []Option at construction time.
type Option func(*options)

type options struct {
	userAgent    string
	noUserAgent  bool
	maxBodySize  int64
	bearerToken  string
}

func newOptions(opts []Option) options {
	o := options{userAgent: DefaultUserAgent, maxBodySize: MaxBodySize}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithUserAgent overrides the default User-Agent header.
func WithUserAgent(ua string) Option { return func(o *options) { o.userAgent = ua } }

// WithoutUserAgent fully suppresses the User-Agent header.
func WithoutUserAgent() Option { return func(o *options) { o.noUserAgent = true } }

// WithMaxBodySize overrides MaxBodySize.
func WithMaxBodySize(n int64) Option { return func(o *options) { o.maxBodySize = n } }

// WithBearerToken attaches an Authorization: Bearer header. Never logged.
func WithBearerToken(tok string) Option { return func(o *options) { o.bearerToken = tok } }
