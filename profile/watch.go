/*************************************************************************
 * Copyright 2026 sboxmgr contributors. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package profile

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sboxmgr/core/eventbus"
)

// debounceWindow coalesces bursts of writes (editors that write-then-rename,
// or several quick saves) into a single config.updated event.
const debounceWindow = 200 * time.Millisecond

// Watcher emits a "config.updated" event whenever the active profile file
// or its exclusions.json sibling changes on disk. It never reloads
// anything itself; callers decide whether and when to re-run the
// pipeline in response.
type Watcher struct {
	w   *fsnotify.Watcher
	bus *eventbus.Bus
}

// NewWatcher starts watching profilePath and exclusionsPath for writes,
// creates, and renames.
func NewWatcher(profilePath, exclusionsPath string, bus *eventbus.Bus) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, p := range []string{profilePath, exclusionsPath} {
		if err := w.Add(p); err != nil {
			w.Close()
			return nil, err
		}
	}
	return &Watcher{w: w, bus: bus}, nil
}

// Run blocks, dispatching debounced config.updated events until ctx is
// canceled or the underlying watcher closes.
func (wt *Watcher) Run(ctx context.Context) {
	defer wt.w.Close()

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	var pending string

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-wt.w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			pending = ev.Name
			timer.Reset(debounceWindow)
		case <-timer.C:
			if pending == "" {
				continue
			}
			wt.bus.Emit(eventbus.Event{
				Type:     "config.updated",
				Source:   "profile.watcher",
				Priority: eventbus.PriorityInfo,
				Data:     map[string]interface{}{"path": pending},
			})
			pending = ""
		case _, ok := <-wt.w.Errors:
			if !ok {
				return
			}
		}
	}
}

// Close stops the watcher without waiting for Run's goroutine to notice.
func (wt *Watcher) Close() error {
	return wt.w.Close()
}
