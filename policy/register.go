/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package policy

import (
	"github.com/sboxmgr/core/registry"
	"github.com/sboxmgr/core/server"
)

// Factory builds a Policy from a plugin config's settings map.
type Factory func(settings map[string]interface{}) (Policy, error)

func init() {
	registry.Global().Register(registry.KindPolicy, "protocol", Factory(func(settings map[string]interface{}) (Policy, error) {
		mode := ModeWhitelist
		if v, _ := settings["mode"].(string); v == string(ModeBlacklist) {
			mode = ModeBlacklist
		}
		return NewProtocolPolicy(mode, protocolSet(settings["protocols"])), nil
	}))
	registry.Global().Register(registry.KindPolicy, "encryption", Factory(func(settings map[string]interface{}) (Policy, error) {
		return NewEncryptionPolicy(), nil
	}))
	registry.Global().Register(registry.KindPolicy, "authentication", Factory(func(settings map[string]interface{}) (Policy, error) {
		p := NewAuthenticationPolicy()
		if v, ok := settings["min_credential_length"].(float64); ok {
			p.MinCredentialLength = int(v)
		}
		if v, ok := settings["required"].(bool); ok {
			p.Required = v
		}
		return p, nil
	}))
	registry.Global().Register(registry.KindPolicy, "country", Factory(func(settings map[string]interface{}) (Policy, error) {
		return NewCountryPolicy(stringList(settings["allow"]), stringList(settings["deny"])), nil
	}))
	registry.Global().Register(registry.KindPolicy, "geo-asn", Factory(func(settings map[string]interface{}) (Policy, error) {
		return NewGeoASNPolicy(stringList(settings["warn_countries"]), nil, stringList(settings["warn_asns"]))
	}))
	registry.Global().Register(registry.KindPolicy, "integrity", Factory(func(settings map[string]interface{}) (Policy, error) {
		return NewIntegrityPolicy(), nil
	}))
	registry.Global().Register(registry.KindPolicy, "permission", Factory(func(settings map[string]interface{}) (Policy, error) {
		return NewPermissionPolicy(nil, nil), nil
	}))
	registry.Global().Register(registry.KindPolicy, "limit", Factory(func(settings map[string]interface{}) (Policy, error) {
		max := 0
		if v, ok := settings["max_servers"].(float64); ok {
			max = int(v)
		}
		return NewLimitPolicy(max), nil
	}))
}

func protocolSet(v interface{}) map[server.Protocol]bool {
	list := stringList(v)
	if len(list) == 0 {
		return nil
	}
	out := make(map[server.Protocol]bool, len(list))
	for _, s := range list {
		out[server.Protocol(s)] = true
	}
	return out
}

func stringList(v interface{}) []string {
	raw, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if s, ok := r.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
