/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package postprocess

import (
	"github.com/sboxmgr/core/registry"
)

// Factory builds a Processor from a plugin config's settings map.
type Factory func(settings map[string]interface{}) (Processor, error)

func init() {
	registry.Global().Register(registry.KindPostprocessor, "geo-filter", Factory(func(settings map[string]interface{}) (Processor, error) {
		include := stringSlice(settings["include"])
		exclude := stringSlice(settings["exclude"])
		fallback := FallbackAllowAll
		if v, _ := settings["fallback_mode"].(string); v == string(FallbackDenyAll) {
			fallback = FallbackDenyAll
		}
		return NewGeoFilter(include, exclude, fallback), nil
	}))
	registry.Global().Register(registry.KindPostprocessor, "tag-filter", Factory(func(settings map[string]interface{}) (Processor, error) {
		whitelist := stringSlice(settings["whitelist"])
		blacklist := stringSlice(settings["blacklist"])
		caseSensitive, _ := settings["case_sensitive"].(bool)
		return NewTagFilter(whitelist, blacklist, caseSensitive)
	}))
	registry.Global().Register(registry.KindPostprocessor, "latency-sort", Factory(func(settings map[string]interface{}) (Processor, error) {
		maxLatency := intSetting(settings, "max_latency_ms", 0)
		fallback := intSetting(settings, "fallback_latency", 9999)
		remove, _ := settings["remove_high_latency"].(bool)
		return NewLatencySort(maxLatency, fallback, remove), nil
	}))
	registry.Global().Register(registry.KindPostprocessor, "deduplicate", Factory(func(settings map[string]interface{}) (Processor, error) {
		return NewDeduplicate(nil), nil
	}))
}

func stringSlice(v interface{}) []string {
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

func intSetting(settings map[string]interface{}, key string, def int) int {
	switch v := settings[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}
