/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package parse

import (
	"regexp"

	json "github.com/goccy/go-json"
)

var (
	lineCommentRe  = regexp.MustCompile(`//[^\n]*`)
	blockCommentRe = regexp.MustCompile(`(?s)/\*.*?\*/`)
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	commentKeyRe   = regexp.MustCompile(`"_comment"\s*:\s*"(?:[^"\\]|\\.)*"\s*,?`)
)

// tolerantJSONUnmarshal decodes body into v after stripping the informal
// JSON extensions some subscription publishers emit: // and /* */
// comments, trailing commas, and "_comment" keys.
func tolerantJSONUnmarshal(body []byte, v interface{}) error {
	cleaned := sanitizeJSON(body)
	return json.Unmarshal(cleaned, v)
}

func sanitizeJSON(body []byte) []byte {
	s := string(body)
	s = blockCommentRe.ReplaceAllString(s, "")
	s = lineCommentRe.ReplaceAllString(s, "")
	s = commentKeyRe.ReplaceAllString(s, "")
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	return []byte(s)
}
