/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/server"
)

func servers() []*server.ParsedServer {
	a := server.New(server.VLESS, "a", 443)
	a.Tag = "fast-nl"
	a.SetMetaString("name", "Fast NL")
	a.SetMetaString("latency_ms", "20")
	b := server.New(server.VLESS, "b", 443)
	b.Tag = "slow-de"
	b.SetMetaString("name", "Slow DE")
	b.SetMetaString("latency_ms", "400")
	return []*server.ParsedServer{a, b}
}

func TestIndexSelector(t *testing.T) {
	out, err := NewIndexSelector(1).Select(servers())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "b", out[0].Address)
}

func TestIndexSelectorOutOfRange(t *testing.T) {
	_, err := NewIndexSelector(5).Select(servers())
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestTagSelectorCaseInsensitive(t *testing.T) {
	out, err := NewTagSelector([]string{"FAST-NL"}, false).Select(servers())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Address)
}

func TestNameSelectorNoMatch(t *testing.T) {
	_, err := NewNameSelector([]string{"nonexistent"}, true).Select(servers())
	assert.ErrorIs(t, err, ErrNoMatch)
}

func TestAutomaticSelectorOrdersByCriterionAndLimits(t *testing.T) {
	out, err := NewAutomaticSelector(LowestLatencyCriterion, 1).Select(servers())
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "a", out[0].Address)
}
