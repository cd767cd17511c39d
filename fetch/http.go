/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fetch

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/klauspost/compress/flate"
	"golang.org/x/time/rate"

	"github.com/sboxmgr/core/pctx"
)

// DefaultHTTPTimeout bounds a single URL fetch.
const DefaultHTTPTimeout = 30 * time.Second

var defaultRetryableStatus = map[int]bool{425: true, 429: true, 502: true, 503: true, 504: true}

// retryClient wraps http.Client with a rate limiter and bounded retries on
// a small set of recoverable status codes.
type retryClient struct {
	rl         *rate.Limiter
	cli        *http.Client
	maxRetries int
	backoff    time.Duration
	retryable  map[int]bool
}

func newRetryClient(timeout time.Duration, rl *rate.Limiter) *retryClient {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return &retryClient{
		rl:         rl,
		cli:        &http.Client{Timeout: timeout},
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		retryable:  defaultRetryableStatus,
	}
}

func (rc *retryClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= rc.maxRetries; attempt++ {
		if rc.rl != nil {
			if err := rc.rl.Wait(ctx); err != nil {
				return nil, err
			}
		}
		resp, err := rc.cli.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			time.Sleep(rc.backoff * time.Duration(attempt+1))
			continue
		}
		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}
		if !rc.retryable[resp.StatusCode] || attempt == rc.maxRetries {
			return resp, nil
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		resp.Body.Close()
		lastErr = fmt.Errorf("non-2xx status %d, retrying", resp.StatusCode)
		time.Sleep(rc.backoff * time.Duration(attempt+1))
	}
	return nil, lastErr
}

// HTTPFetcher retrieves subscription bodies over http(s).
type HTTPFetcher struct {
	opts    options
	client  *retryClient
}

// NewHTTPFetcher builds an HTTPFetcher. A nil limiter disables rate
// limiting.
func NewHTTPFetcher(limiter *rate.Limiter, timeout time.Duration, opts ...Option) *HTTPFetcher {
	return &HTTPFetcher{
		opts:   newOptions(opts),
		client: newRetryClient(timeout, limiter),
	}
}

func (f *HTTPFetcher) Name() string { return "http" }

func (f *HTTPFetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error) {
	u, err := url.Parse(loc)
	if err != nil {
		return Result{}, err
	}
	if !AllowedSchemes[u.Scheme] {
		return Result{}, &UnsupportedSchemeError{Scheme: u.Scheme}
	}

	req, err := http.NewRequest(http.MethodGet, loc, nil)
	if err != nil {
		return Result{}, err
	}
	if !f.opts.noUserAgent {
		req.Header.Set("User-Agent", f.opts.userAgent)
	}
	if f.opts.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+f.opts.bearerToken)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate")

	resp, err := f.client.Do(ctx, req)
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("fetch: non-2xx status %d", resp.StatusCode)
	}

	reader, err := decompress(resp)
	if err != nil {
		return Result{}, err
	}
	defer closeIfCloser(reader)

	limit := f.opts.maxBodySize
	lr := io.LimitReader(reader, limit+1)
	body, err := io.ReadAll(lr)
	if err != nil {
		return Result{}, err
	}
	if int64(len(body)) > limit {
		return Result{Body: body[:limit], Truncated: true}, ErrOversize
	}
	return Result{Body: body}, nil
}

func decompress(resp *http.Response) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(resp.Body)
	case "deflate":
		return flate.NewReader(resp.Body), nil
	default:
		return resp.Body, nil
	}
}

func closeIfCloser(r io.Reader) {
	if c, ok := r.(io.Closer); ok {
		c.Close()
	}
}
