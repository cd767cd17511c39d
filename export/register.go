/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package export

import (
	"github.com/sboxmgr/core/registry"
)

// Factory builds an Exporter from a plugin config's settings map.
type Factory func(settings map[string]interface{}) (Exporter, error)

func init() {
	registry.Global().Register(registry.KindExporter, "singbox-modern", Factory(func(settings map[string]interface{}) (Exporter, error) {
		return NewSingboxModern(), nil
	}))
	registry.Global().Register(registry.KindExporter, "singbox-legacy", Factory(func(settings map[string]interface{}) (Exporter, error) {
		return NewSingboxLegacy(), nil
	}))
	registry.Global().Register(registry.KindExporter, "clash", Factory(func(settings map[string]interface{}) (Exporter, error) {
		return NewClash(), nil
	}))
}
