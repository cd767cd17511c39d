/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package profile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dchest/safefile"
	"github.com/gofrs/flock"
	json "github.com/goccy/go-json"
)

// ExclusionEntry is one stored exclusion: a hashed server identity plus
// human-readable hints.
type ExclusionEntry struct {
	IDSha256 string `json:"id_sha256"`
	Name     string `json:"name,omitempty"`
	Reason   string `json:"reason,omitempty"`
	AddedAt  string `json:"added_at,omitempty"`
}

type exclusionDocument struct {
	Entries []ExclusionEntry `json:"entries"`
}

// ExclusionList tracks server identity hashes ineligible for selection,
// persisted to exclusions.json with atomic rename via dchest/safefile and
// an OS-level write lock for the "concurrent writers
// are guarded by an OS-level lock" requirement.
type ExclusionList struct {
	path string
	perm os.FileMode

	mtx     sync.Mutex
	entries map[string]ExclusionEntry
	order   []string
}

// NewExclusionList loads path if it exists, or starts empty. A corrupt
// file is renamed to "<name>.corrupt.<timestamp>" and an empty list is
// initialized in its place.
func NewExclusionList(path string) (*ExclusionList, error) {
	e := &ExclusionList{path: path, perm: 0o644, entries: make(map[string]ExclusionEntry)}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return e, nil
		}
		return nil, err
	}
	var doc exclusionDocument
	if err := json.Unmarshal(b, &doc); err != nil {
		corruptPath := fmt.Sprintf("%s.corrupt.%d", path, time.Now().Unix())
		_ = os.Rename(path, corruptPath)
		return e, nil
	}
	for _, ent := range doc.Entries {
		e.entries[ent.IDSha256] = ent
		e.order = append(e.order, ent.IDSha256)
	}
	return e, nil
}

func (e *ExclusionList) lockPath() string {
	return e.path + ".lock"
}

// Add inserts hash (idempotently: re-adding an existing hash is a no-op)
// and persists the list.
func (e *ExclusionList) Add(hash, name, reason string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if _, exists := e.entries[hash]; exists {
		return nil
	}
	ent := ExclusionEntry{IDSha256: hash, Name: name, Reason: reason, AddedAt: time.Now().UTC().Format(time.RFC3339)}
	e.entries[hash] = ent
	e.order = append(e.order, hash)
	return e.persistLocked()
}

// Remove deletes hash from the list, persisting the change. Removing a
// hash that isn't present is a no-op.
func (e *ExclusionList) Remove(hash string) error {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	if _, exists := e.entries[hash]; !exists {
		return nil
	}
	delete(e.entries, hash)
	for i, h := range e.order {
		if h == hash {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return e.persistLocked()
}

// Contains reports whether hash is currently excluded.
func (e *ExclusionList) Contains(hash string) bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	_, ok := e.entries[hash]
	return ok
}

// Snapshot returns the set of excluded identity hashes, suitable for
// routing.NewPlugin's excluded-identities input.
func (e *ExclusionList) Snapshot() map[string]bool {
	e.mtx.Lock()
	defer e.mtx.Unlock()
	out := make(map[string]bool, len(e.entries))
	for h := range e.entries {
		out[h] = true
	}
	return out
}

// persistLocked writes the current entries to disk via a cross-process
// flock plus an atomic temp-file-then-rename (safefile.Create). Caller
// must hold e.mtx.
func (e *ExclusionList) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return err
	}
	fl := flock.New(e.lockPath())
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("profile: failed to acquire exclusions lock: %w", err)
	}
	defer fl.Unlock()

	doc := exclusionDocument{Entries: make([]ExclusionEntry, 0, len(e.order))}
	for _, h := range e.order {
		doc.Entries = append(doc.Entries, e.entries[h])
	}
	b, err := json.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return err
	}
	fout, err := safefile.Create(e.path, e.perm)
	if err != nil {
		return err
	}
	if _, err := fout.Write(b); err != nil {
		fout.File.Close()
		os.Remove(fout.Name())
		return err
	}
	if err := fout.Commit(); err != nil {
		os.Remove(fout.Name())
		return err
	}
	return nil
}
