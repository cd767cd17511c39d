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

	"gopkg.in/yaml.v3"

	"github.com/sboxmgr/core/perr"
	"github.com/sboxmgr/core/server"
)

// YAMLClashParser extracts the "proxies:" list from a Clash-style YAML
// document.
type YAMLClashParser struct{}

func (YAMLClashParser) Name() string { return "yaml-clash" }

func (YAMLClashParser) Detect(body []byte) float64 {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return 0
	}
	if bytes.HasPrefix(trimmed, []byte("{")) || bytes.HasPrefix(trimmed, []byte("[")) {
		return 0
	}
	if bytes.Contains(trimmed, []byte("proxies:")) {
		return 0.7
	}
	return 0
}

type clashDoc struct {
	Proxies []map[string]interface{} `yaml:"proxies"`
}

func (p YAMLClashParser) Parse(body []byte) ([]*server.ParsedServer, []perr.PipelineError) {
	var doc clashDoc
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, []perr.PipelineError{newErr("parse.yaml-clash", perr.Fatal, err.Error())}
	}

	var out []*server.ParsedServer
	var errs []perr.PipelineError
	for i, rec := range doc.Proxies {
		srv, err := clashRecordToServer(rec)
		if err != nil {
			errs = append(errs, newErr("parse.yaml-clash", perr.Recoverable, fmt.Sprintf("proxy %d: %v", i, err)))
			continue
		}
		out = append(out, srv)
	}
	return out, errs
}

func clashRecordToServer(m map[string]interface{}) (*server.ParsedServer, error) {
	proto, _ := m["type"].(string)
	if proto == "" {
		return nil, fmt.Errorf("missing type field")
	}
	address, _ := m["server"].(string)

	port := 0
	switch p := m["port"].(type) {
	case int:
		port = p
	case float64:
		port = int(p)
	case string:
		port, _ = strconv.Atoi(p)
	}

	srv := server.New(server.Protocol(strings.ToLower(proto)), address, port)
	for k, v := range m {
		switch k {
		case "type", "server", "port":
			continue
		}
		switch val := v.(type) {
		case string:
			srv.SetMetaString(k, val)
		case int:
			srv.Meta[k] = server.NumberVal(float64(val))
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
