/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package config loads sboxmgrd's process/daemon configuration: the
// ambient knob file governing the agent socket, on-disk fetch cache, and
// default timeouts. It is deliberately distinct from profile.FullProfile,
// which is the user-facing subscription document.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/inhies/go-bytesize"
)

const (
	defaultLogLevel    = `ERROR`
	defaultAgentSocket = `/var/run/sboxmgrd/agent.sock`
	defaultMaxCache    = `64MB`
	minThrottle        = (1024 * 1024) / 8
)

const (
	envAgentSocket = `SBOXMGR_AGENT_SOCKET`
	envLogLevel    = `SBOXMGR_LOG_LEVEL`
	envProfilePath = `SBOXMGR_PROFILE_PATH`
	envCacheDir    = `SBOXMGR_CACHE_DIR`
)

var (
	ErrInvalidLogLevel        = errors.New("invalid log level")
	ErrInvalidConnectionTimeout = errors.New("invalid agent timeout")
	ErrInvalidCacheSize       = errors.New("invalid cache size")
	ErrMissingProfilePath     = errors.New("default profile path missing")
)

// DaemonConfig is sboxmgrd's own process configuration, loaded with
// LoadConfigFile: gcfg INI-style, with a maxConfigSize guard ahead of
// parsing.
type DaemonConfig struct {
	Agent_Socket     string
	Agent_Timeout    string
	Log_Level        string
	Log_File         string
	Profile_Path     string
	Cache_Dir        string // empty disables the on-disk fetch cache
	Max_Cache_Size   string // human-readable size, e.g. "64MB"
	Max_Fetch_Size   string // per-subscription fetch cap, e.g. "8MB"
	Global_Rate_Limit string // e.g. "10mbit"; empty means unlimited
}

func (dc *DaemonConfig) loadDefaults() error {
	if err := LoadEnvVar(&dc.Agent_Socket, envAgentSocket, defaultAgentSocket); err != nil {
		return err
	}
	if err := LoadEnvVar(&dc.Log_Level, envLogLevel, defaultLogLevel); err != nil {
		return err
	}
	if err := LoadEnvVar(&dc.Profile_Path, envProfilePath, ``); err != nil {
		return err
	}
	if err := LoadEnvVar(&dc.Cache_Dir, envCacheDir, ``); err != nil {
		return err
	}
	if dc.Max_Cache_Size == `` {
		dc.Max_Cache_Size = defaultMaxCache
	}
	return nil
}

// Verify loads environment overrides, normalizes fields, and validates the
// whole config, creating the log and cache directories if they don't yet
// exist.
func (dc *DaemonConfig) Verify() error {
	if err := dc.loadDefaults(); err != nil {
		return err
	}

	dc.Log_Level = strings.ToUpper(strings.TrimSpace(dc.Log_Level))
	if err := dc.checkLogLevel(); err != nil {
		return err
	}

	if _, err := dc.AgentTimeout(); err != nil {
		return ErrInvalidConnectionTimeout
	}

	if dc.Log_File != `` {
		if err := ensureDir(filepath.Dir(dc.Log_File)); err != nil {
			return err
		}
	}
	if dc.Cache_Dir != `` {
		if err := ensureDir(dc.Cache_Dir); err != nil {
			return err
		}
	}

	if _, err := dc.MaxCacheBytes(); err != nil {
		return ErrInvalidCacheSize
	}
	if dc.Max_Fetch_Size != `` {
		if _, err := bytesize.Parse(dc.Max_Fetch_Size); err != nil {
			return ErrInvalidCacheSize
		}
	}
	if _, err := dc.RateLimit(); err != nil {
		return err
	}
	return nil
}

func ensureDir(dir string) error {
	fi, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return os.MkdirAll(dir, 0700)
		}
		return err
	} else if !fi.IsDir() {
		return errors.New(dir + " is not a directory")
	}
	return nil
}

// AgentTimeout returns the configured agent dial/RPC timeout, defaulting
// to agent.DefaultTimeout's value (30s) when unset.
func (dc *DaemonConfig) AgentTimeout() (time.Duration, error) {
	s := strings.TrimSpace(dc.Agent_Timeout)
	if s == `` {
		return 30 * time.Second, nil
	}
	return time.ParseDuration(s)
}

// EnableDiskCache reports whether fetched subscription bodies should also
// be persisted to Cache_Dir, surviving process restarts in addition to the
// in-memory pipeline.Cache.
func (dc *DaemonConfig) EnableDiskCache() bool {
	return dc.Cache_Dir != ``
}

// MaxCacheBytes returns the configured disk cache size cap in bytes.
func (dc *DaemonConfig) MaxCacheBytes() (uint64, error) {
	if dc.Max_Cache_Size == `` {
		return 0, nil
	}
	bs, err := bytesize.Parse(dc.Max_Cache_Size)
	if err != nil {
		return 0, err
	}
	return uint64(bs), nil
}

// MaxFetchBytes returns the per-subscription fetch size cap in bytes, or 0
// for no cap.
func (dc *DaemonConfig) MaxFetchBytes() (uint64, error) {
	if dc.Max_Fetch_Size == `` {
		return 0, nil
	}
	bs, err := bytesize.Parse(dc.Max_Fetch_Size)
	if err != nil {
		return 0, err
	}
	return uint64(bs), nil
}

// RateLimit returns the configured global fetch rate limit in bytes per
// second, or 0 for unlimited.
func (dc *DaemonConfig) RateLimit() (bps int64, err error) {
	if dc.Global_Rate_Limit == `` {
		return
	}
	rateBits, err := ParseRate(dc.Global_Rate_Limit)
	if err != nil {
		return 0, err
	}
	bps = rateBits / 8
	if bps < minThrottle {
		err = errors.New("rate limit cannot be set below 1mbit")
	}
	return
}

func (dc *DaemonConfig) LogLevel() string {
	return dc.Log_Level
}

func (dc *DaemonConfig) checkLogLevel() error {
	if len(dc.Log_Level) == 0 {
		dc.Log_Level = defaultLogLevel
		return nil
	}
	switch dc.Log_Level {
	case `OFF`, `DEBUG`, `INFO`, `WARN`, `ERROR`:
		return nil
	}
	return ErrInvalidLogLevel
}
