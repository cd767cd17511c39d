/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package profile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// SwitchLock serializes profile activations (switching which FullProfile a
// daemon is currently running) across processes. It is a separate lock
// file from ExclusionList's own, since a profile switch and an exclusion
// edit are independent operations that shouldn't block each other. Its
// backing file's content is the hex SHA-256 of the last successfully
// applied profile, so a reader can tell which profile is currently active
// without re-running a pipeline invocation.
type SwitchLock struct {
	path string
	fl   *flock.Flock
}

// NewSwitchLock builds a SwitchLock rooted next to profilePath, at
// "<dir>/profile.lock".
func NewSwitchLock(profilePath string) *SwitchLock {
	path := filepath.Join(filepath.Dir(profilePath), "profile.lock")
	return &SwitchLock{path: path, fl: flock.New(path)}
}

// WithLock runs fn while holding the exclusive lock, refusing to block
// forever: callers that need a wait should retry around WithLock rather
// than have one invocation hang indefinitely. On success, it records
// sha256(appliedProfile) as the lock file's content.
func (s *SwitchLock) WithLock(appliedProfile []byte, fn func() error) error {
	locked, err := s.fl.TryLock()
	if err != nil {
		return fmt.Errorf("profile: failed to acquire switch lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("profile: another process is currently switching profiles")
	}
	defer s.fl.Unlock()

	if err := fn(); err != nil {
		return err
	}
	sum := sha256.Sum256(appliedProfile)
	return os.WriteFile(s.path, []byte(hex.EncodeToString(sum[:])), 0o644)
}

// LastApplied returns the hex SHA-256 recorded by the most recent
// successful WithLock call, or "" if none has run yet.
func (s *SwitchLock) LastApplied() (string, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}
