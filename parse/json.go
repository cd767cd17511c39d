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
	"strconv"
	"strings"

	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/server"
)

// JSONParser extracts proxy entries from a generic JSON document, either a
// top-level array or a nested "proxies"/"servers"/"outbounds" array.
type JSONParser struct{}

func (JSONParser) Name() string { return "json" }

func (JSONParser) Detect(body []byte) float64 {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return 0
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return 0.6
	}
	return 0
}

func (p JSONParser) Parse(body []byte) ([]*server.ParsedServer, []perr.PipelineError) {
	var raw interface{}
	if err := tolerantJSONUnmarshal(body, &raw); err != nil {
		return nil, []perr.PipelineError{newErr("parse.json", perr.Fatal, err.Error())}
	}

	records := extractRecords(raw)
	var out []*server.ParsedServer
	var errs []perr.PipelineError
	for i, rec := range records {
		m, ok := rec.(map[string]interface{})
		if !ok {
			errs = append(errs, newErr("parse.json", perr.Recoverable, fmt.Sprintf("record %d is not an object", i)))
			continue
		}
		srv, err := recordToServer(m)
		if err != nil {
			errs = append(errs, newErr("parse.json", perr.Recoverable, fmt.Sprintf("record %d: %v", i, err)))
			continue
		}
		out = append(out, srv)
	}
	return out, errs
}

func extractRecords(raw interface{}) []interface{} {
	switch v := raw.(type) {
	case []interface{}:
		return v
	case map[string]interface{}:
		for _, key := range []string{"proxies", "servers", "outbounds"} {
			if arr, ok := v[key].([]interface{}); ok {
				return arr
			}
		}
	}
	return nil
}

func recordToServer(m map[string]interface{}) (*server.ParsedServer, error) {
	protoRaw, _ := m["type"].(string)
	if protoRaw == "" {
		protoRaw, _ = m["protocol"].(string)
	}
	if protoRaw == "" {
		return nil, fmt.Errorf("missing type/protocol field")
	}
	address, _ := m["server"].(string)
	if address == "" {
		address, _ = m["address"].(string)
	}

	port := 0
	switch p := m["port"].(type) {
	case float64:
		port = int(p)
	case string:
		port, _ = strconv.Atoi(p)
	}

	srv := server.New(server.Protocol(strings.ToLower(protoRaw)), address, port)
	for k, v := range m {
		switch k {
		case "type", "protocol", "server", "address", "port":
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
	if name, _ := m["name"].(string); name != "" {
		srv.SetMetaString("name", name)
	}
	return srv, nil
}
