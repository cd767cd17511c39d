/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package fetch

import (
	"golang.org/x/time/rate"

	"github.com/sboxmgr/core/registry"
)

// Factory builds a Fetcher given the raw settings map from a profile's
// plugin configuration entry.
type Factory func(settings map[string]interface{}) (Fetcher, error)

func init() {
	registry.Global().Register(registry.KindFetcher, "http", Factory(func(settings map[string]interface{}) (Fetcher, error) {
		return NewHTTPFetcher(rate.NewLimiter(rate.Limit(10), 10), DefaultHTTPTimeout), nil
	}))
	registry.Global().Register(registry.KindFetcher, "file", Factory(func(settings map[string]interface{}) (Fetcher, error) {
		base, _ := settings["base_dir"].(string)
		if base == "" {
			base = "."
		}
		return NewFileFetcher(base)
	}))
	registry.Global().Register(registry.KindFetcher, "api-token", Factory(func(settings map[string]interface{}) (Fetcher, error) {
		tok, _ := settings["token"].(string)
		return NewAPITokenFetcher(tok, rate.NewLimiter(rate.Limit(10), 10), DefaultHTTPTimeout), nil
	}))
}
