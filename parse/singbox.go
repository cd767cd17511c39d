/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parse

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/server"
)

// SingboxNativeParser extracts the "outbounds" array of a sing-box native
// JSON configuration.
type SingboxNativeParser struct{}

func (SingboxNativeParser) Name() string { return "singbox-native" }

func (SingboxNativeParser) Detect(body []byte) float64 {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return 0
	}
	if bytes.Contains(trimmed, []byte(`"outbounds"`)) {
		return 0.65
	}
	return 0
}

type singboxDoc struct {
	Outbounds []map[string]interface{} `json:"outbounds"`
}

func (p SingboxNativeParser) Parse(body []byte) ([]*server.ParsedServer, []perr.PipelineError) {
	var doc singboxDoc
	if err := tolerantJSONUnmarshal(body, &doc); err != nil {
		return nil, []perr.PipelineError{newErr("parse.singbox-native", perr.Fatal, err.Error())}
	}

	var out []*server.ParsedServer
	var errs []perr.PipelineError
	for i, rec := range doc.Outbounds {
		proto, _ := rec["type"].(string)
		if server.Protocol(proto).IsVirtual() || proto == "selector" {
			continue
		}
		srv, err := singboxRecordToServer(rec)
		if err != nil {
			errs = append(errs, newErr("parse.singbox-native", perr.Recoverable, fmt.Sprintf("outbound %d: %v", i, err)))
			continue
		}
		out = append(out, srv)
	}
	return out, errs
}

func singboxRecordToServer(m map[string]interface{}) (*server.ParsedServer, error) {
	proto, _ := m["type"].(string)
	if proto == "" {
		return nil, fmt.Errorf("missing type field")
	}
	address, _ := m["server"].(string)

	port := 0
	if p, ok := m["server_port"].(float64); ok {
		port = int(p)
	}

	srv := server.New(server.Protocol(strings.ToLower(proto)), address, port)
	for k, v := range m {
		switch k {
		case "type", "server", "server_port", "tag":
			continue
		}
		switch val := v.(type) {
		case string:
			srv.SetMetaString(k, val)
		case float64:
			srv.Meta[k] = server.NumberVal(val)
		case bool:
			srv.Meta[k] = server.BoolVal(val)
		}
	}
	if tag, _ := m["tag"].(string); tag != "" {
		srv.SetMetaString("tag", tag)
	}
	return srv, nil
}
