/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package routing

import (
	"github.com/sboxmgr/core/registry"
)

// Factory builds a RoutingPlugin from a plugin config's settings map.
type Factory func(settings map[string]interface{}) (*Plugin, error)

func init() {
	registry.Global().Register(registry.KindRouting, "default", Factory(func(settings map[string]interface{}) (*Plugin, error) {
		return NewPlugin(nil), nil
	}))
}
