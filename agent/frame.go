/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package agent implements the framed-JSON Unix-socket client used to
// exchange events, commands, and heartbeats with a sibling supervisor
// process. The wire codec is deliberately a tiny
// length+version header around a JSON body rather than a full RPC
// framework.
package agent

import (
	"encoding/binary"
	"errors"
	"io"

	json "github.com/goccy/go-json"
)

// ProtocolVersion is the only frame version this client speaks.
const ProtocolVersion uint32 = 1

// MaxPayloadLen caps a single frame's JSON payload, guarding against a
// corrupt or malicious length prefix requesting an unbounded allocation.
const MaxPayloadLen uint32 = 16 * 1024 * 1024

var (
	ErrPayloadTooLarge   = errors.New("agent: frame payload exceeds maximum length")
	ErrUnsupportedVersion = errors.New("agent: unsupported frame protocol version")
	ErrPartialFrame      = errors.New("agent: partial frame discarded")
)

// Frame is the length-prefixed envelope on the agent socket:
// uint32 big-endian length || uint32 big-endian version || payload.
type Frame struct {
	Version uint32
	Payload []byte
}

// WriteFrame serializes payload as a Frame and writes it to w.
func WriteFrame(w io.Writer, payload []byte) error {
	if uint32(len(payload)) > MaxPayloadLen {
		return ErrPayloadTooLarge
	}
	var hdr [8]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.BigEndian.PutUint32(hdr[4:8], ProtocolVersion)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// ReadFrame reads one Frame from r. A partial frame (fewer bytes available
// than the declared length, or a read that returns io.ErrUnexpectedEOF) is
// reported as ErrPartialFrame and discarded; the caller should drop the
// connection rather than retry mid-stream.
func ReadFrame(r io.Reader) (Frame, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return Frame{}, ErrPartialFrame
		}
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(hdr[0:4])
	version := binary.BigEndian.Uint32(hdr[4:8])
	if length > MaxPayloadLen {
		return Frame{}, ErrPayloadTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			return Frame{}, ErrPartialFrame
		}
		return Frame{}, err
	}
	return Frame{Version: version, Payload: payload}, nil
}

// EnvelopeType discriminates the four shapes a Frame payload may carry.
type EnvelopeType string

const (
	TypeEvent     EnvelopeType = "event"
	TypeCommand   EnvelopeType = "command"
	TypeResponse  EnvelopeType = "response"
	TypeHeartbeat EnvelopeType = "heartbeat"
)

// Envelope is the JSON document carried inside a Frame's payload.
type Envelope struct {
	ID        string          `json:"id"`
	Type      EnvelopeType    `json:"type"`
	Timestamp string          `json:"timestamp"` // ISO-8601 UTC
	Event     *EventBody      `json:"event,omitempty"`
	Command   *CommandBody    `json:"command,omitempty"`
	Response  *ResponseBody   `json:"response,omitempty"`
	Heartbeat *HeartbeatBody  `json:"heartbeat,omitempty"`
}

// EventBody mirrors the subset of eventbus.Event relayed to the agent.
type EventBody struct {
	EventType string                 `json:"event_type"`
	Source    string                 `json:"source"`
	Priority  string                 `json:"priority"`
	Data      map[string]interface{} `json:"data,omitempty"`
}

// Command names the fixed set of requests the client may send.
type Command string

const (
	CmdPing     Command = "ping"
	CmdValidate Command = "validate"
	CmdInstall  Command = "install"
	CmdCheck    Command = "check"
)

// CommandBody is the payload of a Command envelope.
type CommandBody struct {
	Command Command                `json:"command"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ResponseStatus is the outcome reported by a Response envelope.
type ResponseStatus string

const (
	StatusSuccess ResponseStatus = "success"
	StatusError   ResponseStatus = "error"
)

// ResponseBody is the payload of a Response envelope.
type ResponseBody struct {
	Status    ResponseStatus         `json:"status"`
	RequestID string                 `json:"request_id"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Errors    []string               `json:"errors,omitempty"`
}

// HeartbeatBody is the payload of a Heartbeat envelope.
type HeartbeatBody struct {
	AgentID string `json:"agent_id"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

// EncodeEnvelope marshals env as the payload of a Frame.
func EncodeEnvelope(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// DecodeEnvelope unmarshals a Frame payload. Unknown fields are ignored,
// which is encoding/json's and goccy/go-json's default behavior for struct
// decode.
func DecodeEnvelope(payload []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
