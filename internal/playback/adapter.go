/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package playback

import (
	"context"

	"github.com/friendsincode/hearth_radio/internal/schedule"
)

// Adapter drives one kind of audio output. Only the orchestrator calls it.
type Adapter interface {
	// Ready is closed once the adapter can accept commands.
	Ready() <-chan struct{}
	// Start begins playing choice at volume (0-100).
	Start(ctx context.Context, choice schedule.PlaybackChoice, volume int) error
	// Switch replaces the playing source without restarting the output.
	Switch(ctx context.Context, choice schedule.PlaybackChoice) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	SetVolume(ctx context.Context, volume int) error
}

// ReadyNow is a Ready channel for adapters that never need a handshake.
func ReadyNow() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

func isReady(a Adapter) bool {
	select {
	case <-a.Ready():
		return true
	default:
		return false
	}
}
