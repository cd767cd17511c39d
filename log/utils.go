/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"fmt"

	"github.com/crewjam/rfc5424"
)

// KV builds a structured-data parameter from an arbitrary value.
func KV(name string, value interface{}) (r rfc5424.SDParam) {
	r.Name = name
	switch v := value.(type) {
	case string:
		r.Value = v
	default:
		r.Value = fmt.Sprintf("%v", value)
	}
	return
}

// KVErr is shorthand for KV("error", err).
func KVErr(err error) rfc5424.SDParam {
	return KV("error", err)
}

// KVTrace is shorthand for KV("trace_id", id); every event and log record
// emitted during a pipeline run carries the invocation's trace ID.
func KVTrace(id string) rfc5424.SDParam {
	return KV("trace_id", id)
}

// KVStage is shorthand for KV("stage", stage).
func KVStage(stage string) rfc5424.SDParam {
	return KV("stage", stage)
}
