package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hollis-lab/spectra-core/internal/bridge"
	"github.com/hollis-lab/spectra-core/internal/spectro"
)

// unitDetail is the response for GET /units/{id}.
type unitDetail struct {
	bridge.UnitDescription
	Parameters []spectro.Param `json:"parameters"`
}

// handleListUnits returns descriptions of all attached units, sorted by ID.
func (s *Server) handleListUnits(w http.ResponseWriter, _ *http.Request) {
	ids := s.units.UnitIDs()
	sort.Strings(ids)

	out := make([]bridge.UnitDescription, 0, len(ids))
	for _, id := range ids {
		if desc, ok := s.units.Describe(id); ok {
			out = append(out, desc)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"units": out})
}

// handleGetUnit returns one unit's topology and cached parameter state.
func (s *Server) handleGetUnit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	desc, ok := s.units.Describe(id)
	if !ok {
		writeNotFound(w, "unit not found: "+id)
		return
	}
	params, _ := s.units.Snapshot(id)

	writeJSON(w, http.StatusOK, unitDetail{
		UnitDescription: desc,
		Parameters:      params,
	})
}

// handleUnitReport returns a plain-text diagnostic report for one unit.
func (s *Server) handleUnitReport(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if !s.units.WriteReport(id, w) {
		// Header already sent as text/plain; report absence in body.
		w.WriteHeader(http.StatusNotFound)
		//nolint:errcheck // Best-effort write to response
		w.Write([]byte("unit not found: " + id + "\n"))
	}
}

// handleUnitHistory returns recent parameter changes for one unit.
func (s *Server) handleUnitHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.history == nil {
		writeNotFound(w, "history is not enabled")
		return
	}
	if _, ok := s.units.Describe(id); !ok {
		writeNotFound(w, "unit not found: "+id)
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}

	entries, err := s.history.Parameters(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("querying parameter history", "unit", id, "error", err)
		writeInternalError(w, "querying history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

// handleUnitCommands returns recent command records for one unit.
func (s *Server) handleUnitCommands(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.history == nil {
		writeNotFound(w, "history is not enabled")
		return
	}
	if _, ok := s.units.Describe(id); !ok {
		writeNotFound(w, "unit not found: "+id)
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, "limit must be a non-negative integer")
		return
	}

	entries, err := s.history.Commands(r.Context(), id, limit)
	if err != nil {
		s.logger.Error("querying command log", "unit", id, "error", err)
		writeInternalError(w, "querying history failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"commands": entries})
}

// parseLimit parses the limit query parameter. Empty means 0 (store default).
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, strconv.ErrSyntax
	}
	return limit, nil
}
