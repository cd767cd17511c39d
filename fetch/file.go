/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/sboxmgr/core/pctx"
)

var (
	// ErrOutsideBase is returned when a requested path escapes BaseDir.
	ErrOutsideBase = errors.New("fetch: path resolves outside configured base directory")
	// ErrSymlinkEscape is returned when a symlink target escapes BaseDir.
	ErrSymlinkEscape = errors.New("fetch: symlink target escapes configured base directory")
)

// FileFetcher reads subscription bodies from the local filesystem, confined
// to BaseDir.
type FileFetcher struct {
	BaseDir string
	opts    options
	// AllowGlobs, if non-empty, additionally restricts accepted relative
	// paths to those matching one of these doublestar patterns.
	AllowGlobs []string
}

// NewFileFetcher builds a FileFetcher rooted at baseDir. baseDir is resolved
// to an absolute, symlink-free path at construction time.
func NewFileFetcher(baseDir string, opts ...Option) (*FileFetcher, error) {
	abs, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, err
	}
	return &FileFetcher{BaseDir: resolved, opts: newOptions(opts)}, nil
}

func (f *FileFetcher) Name() string { return "file" }

func (f *FileFetcher) Fetch(ctx context.Context, pc *pctx.Context, loc string) (Result, error) {
	loc = strings.TrimPrefix(loc, "file://")

	rel := loc
	if filepath.IsAbs(loc) {
		r, err := filepath.Rel(f.BaseDir, loc)
		if err != nil {
			return Result{}, ErrOutsideBase
		}
		rel = r
	}
	if strings.HasPrefix(rel, "..") {
		return Result{}, ErrOutsideBase
	}

	if len(f.AllowGlobs) > 0 {
		matched := false
		for _, g := range f.AllowGlobs {
			if ok, _ := doublestar.Match(g, rel); ok {
				matched = true
				break
			}
		}
		if !matched {
			return Result{}, fmt.Errorf("fetch: %q does not match any allowed pattern", rel)
		}
	}

	candidate := filepath.Join(f.BaseDir, rel)
	resolved, err := filepath.EvalSymlinks(candidate)
	if err != nil {
		return Result{}, err
	}
	if !strings.HasPrefix(resolved, f.BaseDir+string(filepath.Separator)) && resolved != f.BaseDir {
		return Result{}, ErrSymlinkEscape
	}

	fh, err := os.Open(resolved)
	if err != nil {
		return Result{}, err
	}
	defer fh.Close()

	limit := f.opts.maxBodySize
	body, err := io.ReadAll(io.LimitReader(fh, limit+1))
	if err != nil {
		return Result{}, err
	}
	if int64(len(body)) > limit {
		return Result{Body: body[:limit], Truncated: true}, ErrOversize
	}
	return Result{Body: body}, nil
}
