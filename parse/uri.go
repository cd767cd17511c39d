/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parse

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/sboxmgr/core/config"
	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/server"
)

// defaultSchemePort holds the port a proxy link's scheme implies when the
// link omits one, so a subscription that drops the ":443" everyone uses
// anyway still resolves to a usable server.
var defaultSchemePort = map[string]uint16{
	"ss":        8388,
	"vless":     443,
	"trojan":    443,
	"hysteria2": 443,
	"hy2":       443,
	"tuic":      443,
}

// URIListParser understands one proxy link per line.
type URIListParser struct{}

func (URIListParser) Name() string { return "uri-list" }

var uriSchemes = map[string]server.Protocol{
	"ss":         server.Shadowsocks,
	"vmess":      server.VMess,
	"vless":      server.VLESS,
	"trojan":     server.Trojan,
	"hysteria2":  server.Hysteria2,
	"hy2":        server.Hysteria2,
	"tuic":       server.TUIC,
}

func (URIListParser) Detect(body []byte) float64 {
	lines := firstNonEmptyLines(body, 5)
	if len(lines) == 0 {
		return 0
	}
	hits := 0
	for _, l := range lines {
		for scheme := range uriSchemes {
			if strings.HasPrefix(l, scheme+"://") {
				hits++
				break
			}
		}
	}
	return float64(hits) / float64(len(lines))
}

func firstNonEmptyLines(body []byte, n int) []string {
	sc := bufio.NewScanner(bytes.NewReader(body))
	var out []string
	for sc.Scan() && len(out) < n {
		l := strings.TrimSpace(sc.Text())
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func (p URIListParser) Parse(body []byte) ([]*server.ParsedServer, []perr.PipelineError) {
	var out []*server.ParsedServer
	var errs []perr.PipelineError

	sc := bufio.NewScanner(bytes.NewReader(body))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		srv, err := parseOneURI(line)
		if err != nil {
			errs = append(errs, newErr("parse.uri-list", perr.Recoverable, fmt.Sprintf("line %d: %v", lineNo, err)))
			continue
		}
		out = append(out, srv)
	}
	return out, errs
}

func parseOneURI(line string) (*server.ParsedServer, error) {
	idx := strings.Index(line, "://")
	if idx < 0 {
		return nil, fmt.Errorf("not a URI")
	}
	scheme := strings.ToLower(line[:idx])
	proto, ok := uriSchemes[scheme]
	if !ok {
		return nil, fmt.Errorf("unrecognized scheme %q", scheme)
	}

	if scheme == "vmess" {
		return parseVMess(line)
	}

	u, err := url.Parse(line)
	if err != nil {
		return nil, err
	}

	host := u.Hostname()
	portStr := u.Port()
	if portStr == "" {
		if defPort, ok := defaultSchemePort[scheme]; ok {
			if _, withPort, err := net.SplitHostPort(config.AppendDefaultPort(host, defPort)); err == nil {
				portStr = withPort
			}
		}
	}
	port := 0
	if portStr != "" {
		port, _ = strconv.Atoi(portStr)
	}

	name := ""
	if u.Fragment != "" {
		if decoded, err := url.QueryUnescape(u.Fragment); err == nil {
			name = decoded
		} else {
			name = u.Fragment
		}
	}

	srv := server.New(proto, host, port)
	if name != "" {
		srv.SetMetaString("name", name)
	}

	switch scheme {
	case "ss":
		applyShadowsocksAuth(srv, u)
	case "vless":
		if u.User != nil {
			srv.SetMetaString("uuid", u.User.Username())
		}
	case "trojan":
		if u.User != nil {
			srv.SetMetaString("password", u.User.Username())
		}
	case "hysteria2", "hy2":
		if u.User != nil {
			srv.SetMetaString("password", u.User.Username())
		}
	case "tuic":
		if u.User != nil {
			srv.SetMetaString("uuid", u.User.Username())
			if pw, set := u.User.Password(); set {
				srv.SetMetaString("password", pw)
			}
		}
	}

	for k, v := range u.Query() {
		if len(v) > 0 {
			srv.SetMetaString(k, v[0])
		}
	}
	return srv, nil
}

func applyShadowsocksAuth(srv *server.ParsedServer, u *url.URL) {
	if u.User == nil {
		return
	}
	userinfo := u.User.String()
	if decoded, err := base64.RawURLEncoding.DecodeString(userinfo); err == nil {
		userinfo = string(decoded)
	} else if decoded, err := base64.StdEncoding.DecodeString(userinfo); err == nil {
		userinfo = string(decoded)
	}
	parts := strings.SplitN(userinfo, ":", 2)
	if len(parts) == 2 {
		srv.SetMetaString("method", parts[0])
		srv.SetMetaString("password", parts[1])
	}
}

func parseVMess(line string) (*server.ParsedServer, error) {
	payload := strings.TrimPrefix(line, "vmess://")
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		decoded, err = base64.RawStdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("invalid vmess base64: %w", err)
		}
	}

	var v vmessDoc
	if err := tolerantJSONUnmarshal(decoded, &v); err != nil {
		return nil, fmt.Errorf("invalid vmess json: %w", err)
	}

	port, _ := strconv.Atoi(fmt.Sprintf("%v", v.Port))
	srv := server.New(server.VMess, v.Add, port)
	if v.PS != "" {
		srv.SetMetaString("name", v.PS)
	}
	srv.SetMetaString("uuid", v.ID)
	srv.SetMetaString("alterId", fmt.Sprintf("%v", v.Aid))
	srv.SetMetaString("network", v.Net)
	srv.SetMetaString("tls", v.TLS)
	return srv, nil
}

type vmessDoc struct {
	PS   string      `json:"ps"`
	Add  string      `json:"add"`
	Port interface{} `json:"port"`
	ID   string      `json:"id"`
	Aid  interface{} `json:"aid"`
	Net  string      `json:"net"`
	TLS  string      `json:"tls"`
}
