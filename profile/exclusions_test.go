/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusionListAddIsIdempotentAndPersists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exclusions.json")

	el, err := NewExclusionList(path)
	require.NoError(t, err)
	require.NoError(t, el.Add("deadbeef", "test server", "manual"))
	require.NoError(t, el.Add("deadbeef", "test server", "manual"))
	assert.True(t, el.Contains("deadbeef"))

	reloaded, err := NewExclusionList(path)
	require.NoError(t, err)
	assert.True(t, reloaded.Contains("deadbeef"))
	assert.Len(t, reloaded.Snapshot(), 1)
}

func TestExclusionListRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exclusions.json")
	el, err := NewExclusionList(path)
	require.NoError(t, err)
	require.NoError(t, el.Add("abc123", "", ""))
	require.NoError(t, el.Remove("abc123"))
	assert.False(t, el.Contains("abc123"))
}

func TestExclusionListResetsOnCorruption(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exclusions.json")
	require.NoError(t, os.WriteFile(path, []byte("not json{{{"), 0o644))

	el, err := NewExclusionList(path)
	require.NoError(t, err)
	assert.Empty(t, el.Snapshot())

	matches, _ := filepath.Glob(path + ".corrupt.*")
	assert.Len(t, matches, 1)
}
