/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"net/http"
	"time"

	"github.com/friendsincode/hearth_radio/internal/schedule"
)

type nowPlayingResponse struct {
	NowPlaying     *schedule.PlaybackChoice `json:"now_playing"`
	Paused         bool                     `json:"paused"`
	Volume         int                      `json:"volume"`
	FollowSchedule bool                     `json:"follow_schedule"`
	At             time.Time                `json:"at"`
	Player         any                      `json:"player,omitempty"`
}

// handleNowPlaying resolves what should be playing now. A missing library or
// default is not an error: now_playing is simply null.
func (a *API) handleNowPlaying(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings, err := a.store.Settings(ctx)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	blocks, err := a.store.ListBlocks(ctx)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	lib, err := a.store.Library(ctx)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	now := a.now()
	resp := nowPlayingResponse{
		NowPlaying:     schedule.ResolveCurrent(blocks, lib, settings, now),
		Paused:         settings.IsPaused,
		Volume:         settings.Volume,
		FollowSchedule: settings.FollowSchedule,
		At:             now,
	}
	if a.player != nil {
		resp.Player = a.player.State()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleNext(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	settings, err := a.store.Settings(ctx)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	blocks, err := a.store.ListBlocks(ctx)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	lib, err := a.store.Library(ctx)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	next := schedule.ResolveNext(blocks, lib, settings.DefaultStation, a.now())
	writeJSON(w, http.StatusOK, map[string]any{"next": next})
}
