/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package server defines ParsedServer, the canonical in-memory server
// record threaded through the subscription pipeline.
package server

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// Protocol is a lowercase canonical protocol token.
type Protocol string

const (
	VLESS       Protocol = "vless"
	VMess       Protocol = "vmess"
	Trojan      Protocol = "trojan"
	Shadowsocks Protocol = "shadowsocks"
	Hysteria2   Protocol = "hysteria2"
	TUIC        Protocol = "tuic"
	WireGuard   Protocol = "wireguard"
	HTTP        Protocol = "http"
	SOCKS       Protocol = "socks"
	Direct      Protocol = "direct"
	Block       Protocol = "block"
	DNS         Protocol = "dns"
	URLTest     Protocol = "urltest"
)

// virtualProtocols are outbound types with no real remote endpoint; for
// these ParsedServer.Port == 0 is valid.
var virtualProtocols = map[Protocol]bool{
	Direct:  true,
	Block:   true,
	DNS:     true,
	URLTest: true,
}

// IsVirtual reports whether p denotes a virtual outbound with no network
// endpoint of its own.
func (p Protocol) IsVirtual() bool {
	return virtualProtocols[p]
}

var (
	ErrEmptyAddress = errors.New("server: address must not be empty for a non-virtual protocol")
	ErrPortRange    = errors.New("server: port must be in [1,65535] for a non-virtual protocol")
)

// MetaValue is one entry of ParsedServer.Meta. It preserves falsy numeric
// and boolean values explicitly (spec: "falsy numeric fields ... MUST be
// preserved, not dropped") by distinguishing "absent" from "present but
// zero/false".
type MetaValue struct {
	set   bool
	s     string
	hasS  bool
	n     float64
	hasN  bool
	b     bool
	hasB  bool
}

// StringVal wraps a string meta value.
func StringVal(s string) MetaValue { return MetaValue{set: true, s: s, hasS: true} }

// NumberVal wraps a numeric meta value (int or float alike).
func NumberVal(n float64) MetaValue { return MetaValue{set: true, n: n, hasN: true} }

// BoolVal wraps a boolean meta value.
func BoolVal(b bool) MetaValue { return MetaValue{set: true, b: b, hasB: true} }

// Present reports whether the value was ever explicitly set (as opposed to
// a zero MetaValue from a missing map key).
func (m MetaValue) Present() bool { return m.set }

// String returns the string form of the value for interfaces (parsers,
// exporters) that accept either representation.
func (m MetaValue) String() string {
	switch {
	case m.hasS:
		return m.s
	case m.hasN:
		return fmt.Sprintf("%v", m.n)
	case m.hasB:
		if m.b {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

// Number returns the numeric form and whether one was set.
func (m MetaValue) Number() (float64, bool) { return m.n, m.hasN }

// Bool returns the boolean form and whether one was set.
func (m MetaValue) Bool() (bool, bool) { return m.b, m.hasB }

// ParsedServer is the canonical in-memory server record.
type ParsedServer struct {
	Protocol Protocol
	Address  string
	Port     int
	Tag      string
	Meta     map[string]MetaValue
}

// New constructs a ParsedServer with an initialized Meta map.
func New(proto Protocol, address string, port int) *ParsedServer {
	return &ParsedServer{
		Protocol: proto,
		Address:  address,
		Port:     port,
		Meta:     make(map[string]MetaValue),
	}
}

// Validate enforces the ParsedServer's structural invariants.
func (s *ParsedServer) Validate() error {
	if s.Protocol.IsVirtual() {
		return nil
	}
	if s.Address == "" {
		return ErrEmptyAddress
	}
	if s.Port < 1 || s.Port > 65535 {
		return ErrPortRange
	}
	return nil
}

// MetaString is a convenience accessor returning "" when the key is absent
// or not a string.
func (s *ParsedServer) MetaString(key string) string {
	if s.Meta == nil {
		return ""
	}
	return s.Meta[key].String()
}

// SetMetaString sets a string meta field, initializing Meta if needed.
func (s *ParsedServer) SetMetaString(key, value string) {
	if s.Meta == nil {
		s.Meta = make(map[string]MetaValue)
	}
	s.Meta[key] = StringVal(value)
}

// Identity returns the stable server identifier used for exclusion hashing
// and deduplication: "protocol|address|port".
func (s *ParsedServer) Identity() string {
	return fmt.Sprintf("%s|%s|%d", s.Protocol, s.Address, s.Port)
}

// IdentityHash returns SHA-256(Identity()) hex-encoded, as stored in
// ExclusionList entries.
func (s *ParsedServer) IdentityHash() string {
	sum := sha256.Sum256([]byte(s.Identity()))
	return hex.EncodeToString(sum[:])
}

// Clone returns a deep copy of s, used by middleware/postprocessors that
// must not mutate the caller's slice in place.
func (s *ParsedServer) Clone() *ParsedServer {
	c := *s
	c.Meta = make(map[string]MetaValue, len(s.Meta))
	for k, v := range s.Meta {
		c.Meta[k] = v
	}
	return &c
}

// CloneList deep-copies a slice of ParsedServer pointers.
func CloneList(in []*ParsedServer) []*ParsedServer {
	out := make([]*ParsedServer, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}

// Source identifies one entry of FullProfile.Subscriptions.
type Source struct {
	ID          string
	Location    string // URL or filesystem path
	Type        string // fetcher registry name
	Enabled     bool
	Priority    int
	Tags        []string
	Description string
}
