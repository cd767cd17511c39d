/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parse

import (
	"github.com/sboxmgr/core/registry"
)

// Factory builds a Parser. Most parsers are stateless and ignore settings;
// base64 uses it to wire its recursive delegate list.
type Factory func(settings map[string]interface{}) (Parser, error)

func init() {
	uriList := URIListParser{}
	jsonP := JSONParser{}
	yamlClash := YAMLClashParser{}
	singbox := SingboxNativeParser{}
	base64P := Base64Parser{Delegates: []Parser{jsonP, yamlClash, singbox, uriList}}

	registry.Global().Register(registry.KindParser, "base64", Factory(func(map[string]interface{}) (Parser, error) { return base64P, nil }))
	registry.Global().Register(registry.KindParser, "uri-list", Factory(func(map[string]interface{}) (Parser, error) { return uriList, nil }))
	registry.Global().Register(registry.KindParser, "json", Factory(func(map[string]interface{}) (Parser, error) { return jsonP, nil }))
	registry.Global().Register(registry.KindParser, "yaml-clash", Factory(func(map[string]interface{}) (Parser, error) { return yamlClash, nil }))
	registry.Global().Register(registry.KindParser, "singbox-native", Factory(func(map[string]interface{}) (Parser, error) { return singbox, nil }))
}

// All returns the five built-in parsers in detection order, ready for
// Select.
func All() []Parser {
	return []Parser{
		Base64Parser{Delegates: []Parser{JSONParser{}, YAMLClashParser{}, SingboxNativeParser{}, URIListParser{}}},
		JSONParser{},
		YAMLClashParser{},
		SingboxNativeParser{},
		URIListParser{},
	}
}
