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
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/renameio"
	"github.com/gosimple/slug"
)

// JournalEntry is one recorded profile activation.
type JournalEntry struct {
	Timestamp   string `json:"timestamp"`
	ProfileName string `json:"profile_name"`
	ProfileHash string `json:"profile_hash"`
}

// ActivationJournal is an append-only JSON-lines record of profile
// switches, rotated once its active segment crosses MaxSegmentBytes. Each
// write and each rotation uses renameio's atomic temp-file-then-rename, a
// distinct write idiom from the safefile-backed ExclusionList writer.
type ActivationJournal struct {
	Dir             string
	MaxSegmentBytes int64
}

// NewActivationJournal builds an ActivationJournal rooted at dir.
func NewActivationJournal(dir string, maxSegmentBytes int64) *ActivationJournal {
	return &ActivationJournal{Dir: dir, MaxSegmentBytes: maxSegmentBytes}
}

func (j *ActivationJournal) segmentPath() string {
	return filepath.Join(j.Dir, "activation.jsonl")
}

// Append writes entry as one more line of the active segment, rotating
// first if the segment has grown past MaxSegmentBytes.
func (j *ActivationJournal) Append(entry JournalEntry) error {
	if err := os.MkdirAll(j.Dir, 0o755); err != nil {
		return err
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	path := j.segmentPath()
	existing, _ := os.ReadFile(path)
	if j.MaxSegmentBytes > 0 && int64(len(existing)) >= j.MaxSegmentBytes {
		if err := j.rotate(existing); err != nil {
			return err
		}
		existing = nil
	}

	existing = append(existing, line...)
	existing = append(existing, '\n')
	return renameio.WriteFile(path, existing, 0o644)
}

// rotate moves the current segment's bytes into a filesystem-safe, slugged
// backup filename (not the canonical server tag algorithm; just a safe
// name for a timestamp) and clears the active segment.
func (j *ActivationJournal) rotate(existing []byte) error {
	name := fmt.Sprintf("activation-%s.jsonl", slug.Make(time.Now().UTC().Format(time.RFC3339)))
	if err := renameio.WriteFile(filepath.Join(j.Dir, name), existing, 0o644); err != nil {
		return err
	}
	return renameio.WriteFile(j.segmentPath(), nil, 0o644)
}
