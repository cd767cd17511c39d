/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/pctx"
)

func TestHTTPFetcherOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		w.Write([]byte("vless://uuid@host:443#Tag\n"))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(nil, 0)
	res, err := f.Fetch(context.Background(), pctx.New(srv.URL, pctx.Strict, 0, ""), srv.URL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(res.Body), "vless://"))
}

func TestHTTPFetcherOversize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 128))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(nil, 0, WithMaxBodySize(64))
	_, err := f.Fetch(context.Background(), pctx.New(srv.URL, pctx.Strict, 0, ""), srv.URL)
	assert.ErrorIs(t, err, ErrOversize)
}

func TestUnsupportedScheme(t *testing.T) {
	f := NewHTTPFetcher(nil, 0)
	_, err := f.Fetch(context.Background(), pctx.New("ftp://x", pctx.Strict, 0, ""), "ftp://example.com/x")
	var usErr *UnsupportedSchemeError
	require.ErrorAs(t, err, &usErr)
	assert.Equal(t, "ftp", usErr.Scheme)
}

func TestFileFetcherBaseDirEscape(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sub.txt"), []byte("data"), 0o644))

	f, err := NewFileFetcher(dir)
	require.NoError(t, err)

	_, err = f.Fetch(context.Background(), pctx.New("", pctx.Strict, 0, ""), "../../etc/passwd")
	assert.ErrorIs(t, err, ErrOutsideBase)

	res, err := f.Fetch(context.Background(), pctx.New("", pctx.Strict, 0, ""), "sub.txt")
	require.NoError(t, err)
	assert.Equal(t, "data", string(res.Body))
}
