/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parse

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sboxmgr/core/server"
)

func TestURIListParserVless(t *testing.T) {
	body := []byte("vless://11111111-1111-1111-1111-111111111111@host1:443?sni=x#Fast\ntrojan://pw@host2:443#Slow\n")
	servers, errs := URIListParser{}.Parse(body)
	require.Empty(t, errs)
	require.Len(t, servers, 2)
	assert.Equal(t, server.VLESS, servers[0].Protocol)
	assert.Equal(t, "host1", servers[0].Address)
	assert.Equal(t, 443, servers[0].Port)
	assert.Equal(t, "Fast", servers[0].MetaString("name"))
	assert.Equal(t, server.Trojan, servers[1].Protocol)
	assert.Equal(t, "pw", servers[1].MetaString("password"))
}

func TestURIListParserUnknownScheme(t *testing.T) {
	servers, errs := URIListParser{}.Parse([]byte("ftp://x@y:1#z\n"))
	assert.Empty(t, servers)
	require.Len(t, errs, 1)
}

func TestBase64ParserDelegates(t *testing.T) {
	inner := "vless://uuid@host:443#Tag\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(inner))
	p := Base64Parser{Delegates: []Parser{URIListParser{}}}
	servers, errs := p.Parse([]byte(encoded))
	require.Empty(t, errs)
	require.Len(t, servers, 1)
	assert.Equal(t, "Tag", servers[0].MetaString("name"))
}

func TestJSONParserNestedArray(t *testing.T) {
	body := []byte(`{"proxies":[{"type":"vless","server":"h","port":443,"name":"A"}]}`)
	servers, errs := JSONParser{}.Parse(body)
	require.Empty(t, errs)
	require.Len(t, servers, 1)
	assert.Equal(t, "h", servers[0].Address)
}

func TestYAMLClashParser(t *testing.T) {
	body := []byte("proxies:\n  - name: A\n    type: trojan\n    server: h\n    port: 443\n")
	servers, errs := YAMLClashParser{}.Parse(body)
	require.Empty(t, errs)
	require.Len(t, servers, 1)
	assert.Equal(t, server.Trojan, servers[0].Protocol)
}

func TestSelectDetectionOrder(t *testing.T) {
	candidates := All()
	body := []byte(`{"outbounds":[{"type":"vless","server":"h","server_port":443}]}`)
	picked := Select(candidates, body)
	require.NotNil(t, picked)
	assert.Equal(t, "singbox-native", picked.Name())
}

func TestWireGuardFalsyMetaPreserved(t *testing.T) {
	srv := server.New(server.WireGuard, "h", 51820)
	srv.Meta["mtu"] = server.NumberVal(0)
	srv.Meta["keepalive"] = server.BoolVal(false)

	mtu, hasMTU := srv.Meta["mtu"].Number()
	require.True(t, srv.Meta["mtu"].Present())
	assert.True(t, hasMTU)
	assert.Equal(t, float64(0), mtu)

	ka, hasKA := srv.Meta["keepalive"].Bool()
	require.True(t, srv.Meta["keepalive"].Present())
	assert.True(t, hasKA)
	assert.False(t, ka)
}
