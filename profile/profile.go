/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package profile implements FullProfile, ClientProfile, ExclusionList, and
// their on-disk representations.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/sboxmgr/core/server"
)

// Filters holds the tag inclusion/exclusion configuration of a profile.
type Filters struct {
	ExcludeTags []string `yaml:"exclude_tags" json:"exclude_tags"`
	OnlyTags    []string `yaml:"only_tags" json:"only_tags"`
	Exclusions  []string `yaml:"exclusions" json:"exclusions"`
}

// Routing holds the declarative routing configuration of a profile.
type Routing struct {
	BySource     bool              `yaml:"by_source" json:"by_source"`
	DefaultRoute string            `yaml:"default_route" json:"default_route"`
	CustomRoutes map[string]string `yaml:"custom_routes" json:"custom_routes"`
	Final        string            `yaml:"final" json:"final"`
}

// Selection holds the selector configuration of a profile: at most one of
// Index/Tags/Names should be set; an unset Mode defaults to "automatic".
type Selection struct {
	Mode  string   `yaml:"mode" json:"mode"` // index | tag | name | automatic
	Index int      `yaml:"index" json:"index"`
	Tags  []string `yaml:"tags" json:"tags"`
	Names []string `yaml:"names" json:"names"`
	Limit int      `yaml:"limit" json:"limit"`
}

// Export holds the export-stage configuration of a profile.
type Export struct {
	Format          string   `yaml:"format" json:"format"` // singbox-modern | singbox-legacy | clash
	OutboundProfile string   `yaml:"outbound_profile" json:"outbound_profile"`
	InboundProfile  string   `yaml:"inbound_profile" json:"inbound_profile"`
	OutputFile      string   `yaml:"output_file" json:"output_file"`
	ExcludeOutbounds []string `yaml:"exclude_outbounds" json:"exclude_outbounds"`
}

// PluginConfig is one entry of Middleware[] or Postprocessors[]: a name plus
// a free-form, plugin-specific settings map.
type PluginConfig struct {
	Name     string                 `yaml:"name" json:"name"`
	Enabled  bool                   `yaml:"enabled" json:"enabled"`
	Settings map[string]interface{} `yaml:"settings" json:"settings"`
}

// AgentConfig configures the AgentBridge.
type AgentConfig struct {
	Enabled     bool   `yaml:"enabled" json:"enabled"`
	SocketPath  string `yaml:"socket_path" json:"socket_path"`
	TimeoutSecs int    `yaml:"timeout_seconds" json:"timeout_seconds"`
}

// UIConfig is opaque passthrough configuration for the out-of-scope TUI
// collaborator; the core neither interprets nor validates its contents
// beyond carrying it through FullProfile.
type UIConfig map[string]interface{}

// Metadata is FullProfile.Metadata.
type Metadata struct {
	SboxmgrVersion       string            `yaml:"sboxmgr_version" json:"sboxmgr_version"`
	ProfileSchemaVersion string            `yaml:"profile_schema_version" json:"profile_schema_version"`
	Timestamp            string            `yaml:"timestamp" json:"timestamp"`
	CacheHashes          map[string]string `yaml:"cache_hashes" json:"cache_hashes"`
}

// FullProfile is the declarative configuration entity driving one pipeline
// invocation.
type FullProfile struct {
	Name            string           `yaml:"name" json:"name"`
	Subscriptions   []server.Source  `yaml:"subscriptions" json:"subscriptions"`
	Filters         Filters          `yaml:"filters" json:"filters"`
	Selector        Selection        `yaml:"selector" json:"selector"`
	RoutingCfg      Routing          `yaml:"routing" json:"routing"`
	ExportCfg       Export           `yaml:"export" json:"export"`
	Middleware      []PluginConfig   `yaml:"middleware" json:"middleware"`
	Postprocessors  []PluginConfig   `yaml:"postprocessors" json:"postprocessors"`
	Policies        []PluginConfig   `yaml:"policies" json:"policies"`
	Agent           AgentConfig      `yaml:"agent" json:"agent"`
	UI              UIConfig         `yaml:"ui" json:"ui"`
	MetadataCfg     Metadata         `yaml:"metadata" json:"metadata"`
}

var (
	ErrNoName         = errors.New("profile: name must not be empty")
	ErrUnknownFormat  = errors.New("profile: unrecognized file extension")
	ErrEmptySourceID  = errors.New("profile: subscription source must have a non-empty id")
)

// Validate enforces the handful of structural invariants FullProfile must
// satisfy before it drives a pipeline run.
func (p *FullProfile) Validate() error {
	if p.Name == "" {
		return ErrNoName
	}
	seen := make(map[string]bool, len(p.Subscriptions))
	for _, s := range p.Subscriptions {
		if s.ID == "" {
			return ErrEmptySourceID
		}
		if seen[s.ID] {
			return fmt.Errorf("profile: duplicate subscription id %q", s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}

// EnabledSubscriptions returns the profile's subscriptions sorted by
// priority ascending, excluding disabled ones.
func (p *FullProfile) EnabledSubscriptions() []server.Source {
	out := make([]server.Source, 0, len(p.Subscriptions))
	for _, s := range p.Subscriptions {
		if s.Enabled {
			out = append(out, s)
		}
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Priority < out[j-1].Priority; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// Load reads a FullProfile from path, dispatching on file extension.
func Load(path string) (*FullProfile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(b, filepath.Ext(path))
}

// LoadBytes decodes a FullProfile from raw bytes given an explicit format
// hint ("yaml", "yml", or "json").
func LoadBytes(b []byte, format string) (*FullProfile, error) {
	return decode(b, "."+strings.TrimPrefix(format, "."))
}

func decode(b []byte, ext string) (*FullProfile, error) {
	var p FullProfile
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &p); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, err
		}
	default:
		return nil, ErrUnknownFormat
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// ClientProfile is the target-engine-facing derivation produced alongside
// or embedded in the export artifact.
type ClientProfile struct {
	Inbounds         []string `json:"inbounds"`
	FinalRoute       string   `json:"final_route"`
	ExcludedOutbound []string `json:"excluded_outbound_types"`
	DNSMode          string   `json:"dns_mode"`
}

// DeriveClientProfile builds a ClientProfile from the export section of a
// FullProfile.
func DeriveClientProfile(p *FullProfile) ClientProfile {
	inbounds := []string{"tun"}
	if p.ExportCfg.InboundProfile != "" {
		inbounds = strings.Split(p.ExportCfg.InboundProfile, ",")
	}
	final := p.RoutingCfg.Final
	if final == "" {
		final = "auto"
	}
	return ClientProfile{
		Inbounds:         inbounds,
		FinalRoute:       final,
		ExcludedOutbound: p.ExportCfg.ExcludeOutbounds,
		DNSMode:          "hijack",
	}
}
