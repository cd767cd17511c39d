/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package log

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testFile = `test.log`

var tempdir string

func TestMain(m *testing.M) {
	var err error
	if tempdir, err = ioutil.TempDir(os.TempDir(), ``); err != nil {
		os.Exit(-1)
	}
	r := m.Run()
	os.RemoveAll(tempdir)
	os.Exit(r)
}

func newLogger() (*Logger, error) {
	p := filepath.Join(tempdir, testFile)
	fout, err := os.Create(p)
	if err != nil {
		return nil, err
	}
	return New(fout), nil
}

func appendLogger() (*Logger, error) {
	return NewFile(filepath.Join(tempdir, testFile))
}

func TestNew(t *testing.T) {
	lgr, err := newLogger()
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Critical("test", KV("n", 99)); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestAppend(t *testing.T) {
	lgr, err := appendLogger()
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Error("test", KV("n", 99)); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestLevelFiltering(t *testing.T) {
	p := filepath.Join(t.TempDir(), `level.log`)
	lgr, err := NewFile(p)
	if err != nil {
		t.Fatal(err)
	}
	if err = lgr.Warn("warn line"); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Info("info line"); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Debug("debug line"); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Error("tester", KV("id", 99)); err != nil {
		t.Fatal(err)
	}
	if err = lgr.SetLevel(OFF); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Critical("critical while off"); err != nil {
		t.Fatal(err)
	}
	if err = lgr.Close(); err != nil {
		t.Fatal(err)
	}
	bts, err := ioutil.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	s := string(bts)
	if !strings.Contains(s, "warn line") {
		t.Fatal("missing warn line: ", s)
	}
	if !strings.Contains(s, "info line") {
		t.Fatal("missing info line: ", s)
	}
	if strings.Contains(s, "debug line") {
		t.Fatal("debug line should have been filtered by INFO level: ", s)
	}
	if !strings.Contains(s, "tester") || !strings.Contains(s, `id="99"`) {
		t.Fatal("missing structured value: ", s)
	}
	if strings.Contains(s, "critical while off") {
		t.Fatal("record written while level was OFF: ", s)
	}
}

func TestSetLevelString(t *testing.T) {
	lgr := NewDiscardLogger()
	if err := lgr.SetLevelString("warn"); err != nil {
		t.Fatal(err)
	}
	if lgr.lvl != WARN {
		t.Fatalf("expected WARN, got %v", lgr.lvl)
	}
	if err := lgr.SetLevelString("bogus"); err == nil {
		t.Fatal("expected error for invalid level string")
	}
}

func TestNewDiscardLogger(t *testing.T) {
	lgr := NewDiscardLogger()
	if err := lgr.Info("discarded"); err != nil {
		t.Fatal(err)
	}
	if err := lgr.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestKVLogger(t *testing.T) {
	p := filepath.Join(t.TempDir(), `kv.log`)
	base, err := NewFile(p)
	if err != nil {
		t.Fatal(err)
	}
	kvl := NewLoggerWithKV(base, KVTrace("trace-123"))
	kvl.AddKV(KVStage("fetch"))
	if err = kvl.Warn("fetch slow", KVErr(nil)); err != nil {
		t.Fatal(err)
	}
	if err = kvl.Close(); err != nil {
		t.Fatal(err)
	}
	bts, err := ioutil.ReadFile(p)
	if err != nil {
		t.Fatal(err)
	}
	s := string(bts)
	if !strings.Contains(s, `trace_id="trace-123"`) {
		t.Fatal("missing trace_id KV: ", s)
	}
	if !strings.Contains(s, `stage="fetch"`) {
		t.Fatal("missing stage KV: ", s)
	}
}

func TestTrimLength(t *testing.T) {
	if got := trimLength(10, "twelve bytes"); got != "twelve byt" {
		t.Fatal("trimLength", got)
	}
}

func TestTrimPathLength(t *testing.T) {
	if got := trimPathLength(32, "pipeline/fetch_stage.go:355"); got != "pipeline/fetch_stage.go:355" {
		t.Fatal("trimPathLength", got)
	}
	if got := trimPathLength(10, "pipeline/fetch_stage.go:355"); got != "fetch_stag" {
		t.Fatal("trimPathLength", got)
	}
}

func TestLevelFromStringInvalid(t *testing.T) {
	if _, err := LevelFromString("NOTALEVEL"); err != ErrInvalidLevel {
		t.Fatalf("expected ErrInvalidLevel, got %v", err)
	}
}
