/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/friendsincode/hearth_radio/internal/models"
	"github.com/friendsincode/hearth_radio/internal/schedule"
)

// blockView is a block as the editor sees it. Orphaned blocks reference a
// source that is no longer in the library and never play.
type blockView struct {
	models.ScheduleBlock
	Orphaned bool `json:"orphaned"`
}

type slotRequest struct {
	Day  *int `json:"day_of_week"`
	Hour *int `json:"hour"`
}

func (s slotRequest) valid() bool {
	return s.Day != nil && s.Hour != nil
}

type assignRequest struct {
	slotRequest
	models.SourceRef
}

type assignRunRequest struct {
	Day        *int   `json:"day_of_week"`
	StartHour  *int   `json:"start_hour"`
	PlaylistID string `json:"playlist_id"`
}

type resizeRequest struct {
	Day      *int `json:"day_of_week"`
	RunStart *int `json:"run_start"`
	OldEnd   *int `json:"old_end"`
	NewEnd   *int `json:"new_end"`
	models.SourceRef
}

func (a *API) handleBlocksList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
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

	views := make([]blockView, 0, len(blocks))
	for _, b := range blocks {
		views = append(views, blockView{ScheduleBlock: b, Orphaned: !lib.Has(b.Source())})
	}
	writeJSON(w, http.StatusOK, map[string]any{"blocks": views})
}

// resolveRef checks that ref exists and fills in the display name.
func (a *API) resolveRef(r *http.Request, ref models.SourceRef) (models.SourceRef, bool, error) {
	t, err := models.ParseSourceType(string(ref.Type))
	if err != nil || ref.Ref == "" {
		return ref, false, nil
	}
	ref.Type = t

	lib, err := a.store.Library(r.Context())
	if err != nil {
		return ref, false, err
	}
	switch t {
	case models.SourceStation:
		st, ok := lib.Station(ref.Ref)
		if !ok {
			return ref, false, nil
		}
		ref.Name = st.Name
	case models.SourceSpotify:
		pl, ok := lib.ExternalByURI(ref.Ref)
		if !ok {
			return ref, false, nil
		}
		ref.Name = pl.Name
	}
	return ref, true, nil
}

func (a *API) handleAssign(w http.ResponseWriter, r *http.Request) {
	var req assignRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}
	ref, ok, err := a.resolveRef(r, req.SourceRef)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	if !ok {
		writeError(w, http.StatusBadRequest, "unknown_source")
		return
	}

	if err := a.mutator.Assign(r.Context(), *req.Day, *req.Hour, ref); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleAssignRun(w http.ResponseWriter, r *http.Request) {
	var req assignRunRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Day == nil || req.StartHour == nil {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}

	lib, err := a.store.Library(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	playlist, ok := lib.Playlist(req.PlaylistID)
	if !ok {
		writeError(w, http.StatusNotFound, "playlist_not_found")
		return
	}

	sources := make([]models.SourceRef, 0, len(playlist.StationIDs))
	for _, id := range playlist.StationIDs {
		st, ok := lib.Station(id)
		if !ok {
			continue
		}
		sources = append(sources, models.SourceRef{Type: models.SourceStation, Ref: st.ID, Name: st.Name})
	}
	if len(sources) == 0 {
		writeError(w, http.StatusBadRequest, "empty_playlist")
		return
	}

	n, err := a.mutator.AssignRun(r.Context(), *req.Day, *req.StartHour, sources)
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assigned": n})
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.valid() {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}
	if err := a.mutator.Clear(r.Context(), *req.Day, *req.Hour); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleResize(w http.ResponseWriter, r *http.Request) {
	var req resizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Day == nil || req.RunStart == nil || req.OldEnd == nil || req.NewEnd == nil {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}

	ref := req.SourceRef
	if *req.NewEnd > *req.OldEnd {
		var ok bool
		var err error
		ref, ok, err = a.resolveRef(r, req.SourceRef)
		if err != nil {
			a.writeServiceError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown_source")
			return
		}
	}

	if err := a.mutator.Resize(r.Context(), *req.Day, *req.RunStart, *req.OldEnd, *req.NewEnd, ref); err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleRunBounds(w http.ResponseWriter, r *http.Request) {
	day, errDay := strconv.Atoi(r.URL.Query().Get("day"))
	hour, errHour := strconv.Atoi(r.URL.Query().Get("hour"))
	if errDay != nil || errHour != nil {
		writeError(w, http.StatusBadRequest, "invalid_slot")
		return
	}
	if _, _, err := schedule.NormalizeSlot(day, hour); err != nil {
		a.writeServiceError(w, r, err)
		return
	}

	blocks, err := a.store.ListBlocks(r.Context())
	if err != nil {
		a.writeServiceError(w, r, err)
		return
	}
	run, ok := schedule.RunBounds(blocks, day, hour)
	if !ok {
		writeError(w, http.StatusNotFound, "empty_slot")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (a *API) handleScheduleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
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

	result := schedule.ExportICal(blocks, lib, a.loc, a.now())
	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}
