/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/friendsincode/hearth_radio/internal/auth"
	"github.com/friendsincode/hearth_radio/internal/models"
)

// writableKeys may be set through PUT /settings/{key}. The PIN and the Spotify
// keys have dedicated flows.
var writableKeys = map[string]bool{
	models.KeyDefaultStation:        true,
	models.KeyDefaultType:           true,
	models.KeyVolume:                true,
	models.KeyIsPaused:              true,
	models.KeyFollowSchedule:        true,
	models.KeyManualStationOverride: true,
}

type settingRequest struct {
	Value any `json:"value"`
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// handlePublicSettings returns the snapshot. The PIN and tokens never serialize.
func (a *API) handlePublicSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := a.store.Settings(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleSettingsGet(w http.ResponseWriter, r *http.Request) {
	a.handlePublicSettings(w, r)
}

func (a *API) handleSettingPut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if !writableKeys[key] {
		writeError(w, http.StatusBadRequest, "unknown_setting")
		return
	}

	var req settingRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := models.ValidateSetting(key, req.Value); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_value")
		return
	}
	if err := a.store.SetSetting(r.Context(), key, req.Value); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	settings, err := a.store.Settings(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (a *API) handleUnlock(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	token, expires, err := a.gate.Unlock(r.Context(), clientKey(r), req.PIN)
	if err != nil {
		var lockout *auth.LockoutError
		var attempt *auth.AttemptError
		switch {
		case errors.As(err, &lockout):
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(math.Ceil(lockout.RetryAfter.Seconds()))))
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error":               "locked_out",
				"retry_after_seconds": int(math.Ceil(lockout.RetryAfter.Seconds())),
			})
		case errors.As(err, &attempt):
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error":              "invalid_pin",
				"attempts_remaining": attempt.Remaining,
			})
		default:
			a.writeServiceError(w, r, err)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      token,
		"expires_at": expires,
	})
}

// handleSession tells the editor whether its stored token is still accepted.
func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	expires, ok := auth.SessionExpiry(r.Context())
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"unlocked": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"unlocked": true, "expires_at": expires})
}

func (a *API) handlePINChange(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.gate.SetPIN(r.Context(), req.PIN); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
