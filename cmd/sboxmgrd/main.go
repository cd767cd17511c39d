/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Command sboxmgrd runs one subscription pipeline invocation: it loads the
// daemon config and a FullProfile, resolves collaborators from the plugin
// registry, and writes the exported artifact. It is thin wiring, not a
// CLI framework: it takes only the config and profile paths plus the
// -force-reload and -strict switches.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sboxmgr/core/agent"
	"github.com/sboxmgr/core/config"
	"github.com/sboxmgr/core/eventbus"
	"github.com/sboxmgr/core/log"
	"github.com/sboxmgr/core/pctx"
	"github.com/sboxmgr/core/pipeline"
	"github.com/sboxmgr/core/profile"
	"github.com/sboxmgr/core/registry"

	_ "github.com/sboxmgr/core/export"
	_ "github.com/sboxmgr/core/fetch"
	_ "github.com/sboxmgr/core/middleware"
	_ "github.com/sboxmgr/core/parse"
	_ "github.com/sboxmgr/core/policy"
	_ "github.com/sboxmgr/core/postprocess"
	_ "github.com/sboxmgr/core/routing"
	_ "github.com/sboxmgr/core/selector"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "sboxmgrd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		daemonConfigPath = flag.String("config", "/etc/sboxmgr/sboxmgrd.conf", "path to the daemon config file")
		profilePath      = flag.String("profile", "", "path to the FullProfile to run (overrides the daemon config's Profile_Path)")
		forceReload      = flag.Bool("force-reload", false, "bypass the fetch cache for this run")
		strict           = flag.Bool("strict", false, "abort on the first fatal pipeline error instead of degrading gracefully")
	)
	flag.Parse()

	var cfgFile struct {
		Global config.DaemonConfig
	}
	if err := config.LoadConfigFile(&cfgFile, *daemonConfigPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading daemon config: %w", err)
	}
	dc := cfgFile.Global
	if err := dc.Verify(); err != nil {
		return fmt.Errorf("invalid daemon config: %w", err)
	}

	path := *profilePath
	if path == "" {
		path = dc.Profile_Path
	}
	if path == "" {
		return fmt.Errorf("no profile path given: pass -profile or set Profile_Path in %s", *daemonConfigPath)
	}
	profBytes, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading profile %s: %w", path, err)
	}
	prof, err := profile.Load(path)
	if err != nil {
		return fmt.Errorf("loading profile %s: %w", path, err)
	}

	lg, err := newLogger(dc)
	if err != nil {
		return fmt.Errorf("opening logger: %w", err)
	}
	defer lg.Close()

	bus := eventbus.New(lg)
	agentTimeout, _ := dc.AgentTimeout()
	var bridge *agent.Bridge
	if prof.Agent.Enabled {
		bridge = agent.New(prof.Agent.SocketPath, agentTimeout, lg, bus)
		defer bridge.Close()
	}

	exclusions, err := profile.NewExclusionList(exclusionsPath(path))
	if err != nil {
		return fmt.Errorf("loading exclusion list: %w", err)
	}

	switchLock := profile.NewSwitchLock(path)
	journal := profile.NewActivationJournal(filepath.Dir(path), 1<<20)

	collab, err := pipeline.Resolve(prof, registry.Global(), bus, lg)
	if err != nil {
		return fmt.Errorf("resolving collaborators: %w", err)
	}

	mgr := pipeline.NewManager(bus, bridge, exclusions, lg)
	mode := pctx.Tolerant
	if *strict {
		mode = pctx.Strict
	}

	var res pipeline.PipelineResult
	runErr := switchLock.WithLock(profBytes, func() error {
		res = mgr.Run(context.Background(), prof, collab, mode, debugLevel(dc), pipeline.RunOptions{
			ForceReload: *forceReload,
		})
		if !res.Success {
			return fmt.Errorf("pipeline run did not succeed (%d errors)", len(res.Errors))
		}
		return nil
	})
	for _, e := range res.Errors {
		lg.Warn(e.Message, log.KV("kind", string(e.Kind)), log.KV("stage", e.Stage), log.KV("severity", string(e.Severity)))
	}
	if runErr != nil {
		return runErr
	}

	if err := journal.Append(profile.JournalEntry{
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		ProfileName: prof.Name,
		ProfileHash: pipeline.BodyHash(res.Artifact.Bytes),
	}); err != nil {
		lg.Warn("failed to append activation journal entry", log.KV("error", err.Error()))
	}

	out := prof.ExportCfg.OutputFile
	if out == "" {
		_, err := os.Stdout.Write(res.Artifact.Bytes)
		return err
	}
	return os.WriteFile(out, res.Artifact.Bytes, 0644)
}

func newLogger(dc config.DaemonConfig) (*log.KVLogger, error) {
	var base *log.Logger
	var err error
	if dc.Log_File == "" {
		base = log.NewDiscardLogger()
	} else {
		base, err = log.NewFile(dc.Log_File)
		if err != nil {
			return nil, err
		}
	}
	if err := base.SetLevelString(dc.LogLevel()); err != nil {
		return nil, err
	}
	return log.NewLoggerWithKV(base), nil
}

func exclusionsPath(profilePath string) string {
	return filepath.Join(filepath.Dir(profilePath), "exclusions.json")
}

func debugLevel(dc config.DaemonConfig) int {
	if dc.LogLevel() == "DEBUG" {
		return 1
	}
	return 0
}
