/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"github.com/crewjam/rfc5424"
)

// KVLogger wraps a Logger with a set of structured-data parameters that
// are attached to every record it writes. main.go builds one per daemon
// run with no fixed parameters; callers that log per-run records pass the
// trace ID on each record with KVTrace.
type KVLogger struct {
	*Logger
	sds []rfc5424.SDParam
}

// NewLoggerWithKV wraps l, attaching sds to every record written through
// the returned KVLogger.
func NewLoggerWithKV(l *Logger, sds ...rfc5424.SDParam) *KVLogger {
	return &KVLogger{
		Logger: l,
		sds:    sds,
	}
}

func (kvl *KVLogger) Debug(msg string, sds ...rfc5424.SDParam) error {
	return kvl.outputStructured(callDepth+1, DEBUG, msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Info(msg string, sds ...rfc5424.SDParam) error {
	return kvl.outputStructured(callDepth+1, INFO, msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Warn(msg string, sds ...rfc5424.SDParam) error {
	return kvl.outputStructured(callDepth+1, WARN, msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Error(msg string, sds ...rfc5424.SDParam) error {
	return kvl.outputStructured(callDepth+1, ERROR, msg, append(kvl.sds, sds...)...)
}

func (kvl *KVLogger) Critical(msg string, sds ...rfc5424.SDParam) error {
	return kvl.outputStructured(callDepth+1, CRITICAL, msg, append(kvl.sds, sds...)...)
}

// AddKV attaches additional structured-data parameters to every record
// this KVLogger writes from here on.
func (kvl *KVLogger) AddKV(sds ...rfc5424.SDParam) {
	kvl.sds = append(kvl.sds, sds...)
}
