/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import "time"

// DefaultDebounce coalesces bursts of store change events.
const DefaultDebounce = 400 * time.Millisecond

// Debouncer collapses a burst of triggers into one firing after a quiet
// window. It is owned by a single goroutine.
type Debouncer struct {
	clock Clock
	wait  time.Duration
	c     <-chan time.Time
}

// NewDebouncer creates a debouncer with the given quiet window.
func NewDebouncer(clock Clock, wait time.Duration) *Debouncer {
	return &Debouncer{clock: clock, wait: wait}
}

// Trigger restarts the quiet window.
func (d *Debouncer) Trigger() {
	d.c = d.clock.After(d.wait)
}

// C fires once the window passes without another Trigger. It is nil while idle,
// so selecting on it blocks.
func (d *Debouncer) C() <-chan time.Time {
	return d.c
}

// Done marks the pending firing as consumed.
func (d *Debouncer) Done() {
	d.c = nil
}
