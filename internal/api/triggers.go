package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cuebridge/internal/trigger"
)

// handleListTriggers returns trigger documentation in dispatch order.
// Optional filters: ?module_type=, ?tag= (case-insensitive prefix).
func (s *Server) handleListTriggers(w http.ResponseWriter, r *http.Request) {
	moduleType := r.URL.Query().Get("module_type")
	tagPrefix := strings.ToLower(r.URL.Query().Get("tag"))

	docs := make([]trigger.Doc, 0)
	for _, d := range s.triggers.List() {
		if moduleType != "" && d.ModuleType != moduleType {
			continue
		}
		if tagPrefix != "" && !strings.HasPrefix(strings.ToLower(d.Tag), tagPrefix) {
			continue
		}
		docs = append(docs, d)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"triggers": docs,
		"count":    len(docs),
	})
}

func (s *Server) handleGetTrigger(w http.ResponseWriter, r *http.Request) {
	d, err := s.triggers.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "trigger not found")
		return
	}
	writeJSON(w, http.StatusOK, d.Doc())
}

// handleSetTriggerEnabled toggles one trigger. The flag is persisted by the
// registry's state store.
func (s *Server) handleSetTriggerEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.triggers.SetEnabled(r.Context(), id, enabled); err != nil {
			if errors.Is(err, trigger.ErrNotFound) {
				writeNotFound(w, "trigger not found")
				return
			}
			s.logger.Error("toggling trigger failed", "id", id, "error", err)
			writeInternalError(w, "failed to update trigger")
			return
		}

		d, err := s.triggers.Get(id)
		if err != nil {
			writeNotFound(w, "trigger not found")
			return
		}
		doc := d.Doc()
		s.Hub().Broadcast(ChannelTriggerUpdate, doc)
		writeJSON(w, http.StatusOK, doc)
	}
}
