/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/sboxmgr/core/pctx"
)

// APITokenFetcher is an HTTP fetcher preconfigured with a bearer token; the
// token is never logged or included in PipelineError context.
type APITokenFetcher struct {
	inner *HTTPFetcher
}

// NewAPITokenFetcher builds an APITokenFetcher. token is attached to every
// request as an Authorization: Bearer header.
func NewAPITokenFetcher(token string, limiter *rate.Limiter, timeout time.Duration, opts ...Option) *APITokenFetcher {
	opts = append(opts, WithBearerToken(token))
	return &APITokenFetcher{inner: NewHTTPFetcher(limiter, timeout, opts...)}
}

func (f *APITokenFetcher) Name() string { return "api-token" }

func (f *APITokenFetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error) {
	return f.inner.Fetch(ctx, pc, loc)
}
