/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package selector

import (
	"github.com/sboxmgr/core/registry"
)

// Factory builds a Selector from a plugin config's settings map.
type Factory func(settings map[string]interface{}) (Selector, error)

func init() {
	registry.Global().Register(registry.KindSelector, "selector.index", Factory(func(settings map[string]interface{}) (Selector, error) {
		idx := intVal(settings["index"])
		return NewIndexSelector(idx), nil
	}))
	registry.Global().Register(registry.KindSelector, "selector.tag", Factory(func(settings map[string]interface{}) (Selector, error) {
		cs, _ := settings["case_sensitive"].(bool)
		return NewTagSelector(stringList(settings["tags"]), cs), nil
	}))
	registry.Global().Register(registry.KindSelector, "selector.name", Factory(func(settings map[string]interface{}) (Selector, error) {
		cs, _ := settings["case_sensitive"].(bool)
		return NewNameSelector(stringList(settings["names"]), cs), nil
	}))
	registry.Global().Register(registry.KindSelector, "selector.automatic", Factory(func(settings map[string]interface{}) (Selector, error) {
		limit := intVal(settings["limit"])
		return NewAutomaticSelector(LowestLatencyCriterion, limit), nil
	}))
}

func intVal(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
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
