package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cuebridge/internal/module"
)

func (s *Server) handleListModules(w http.ResponseWriter, _ *http.Request) {
	instances := s.modules.Instances()
	if instances == nil {
		instances = []module.Info{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"modules": instances,
		"count":   len(instances),
	})
}

func (s *Server) handleGetModule(w http.ResponseWriter, r *http.Request) {
	info, err := s.modules.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeNotFound(w, "module instance not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleSetModuleEnabled toggles a module instance. A disabled instance keeps
// its triggers registered but none of them fire.
func (s *Server) handleSetModuleEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := s.modules.SetEnabled(r.Context(), id, enabled); err != nil {
			if errors.Is(err, module.ErrNotFound) {
				writeNotFound(w, "module instance not found")
				return
			}
			s.logger.Error("toggling module failed", "id", id, "error", err)
			writeInternalError(w, "failed to update module")
			return
		}

		info, err := s.modules.Get(id)
		if err != nil {
			writeNotFound(w, "module instance not found")
			return
		}
		s.Hub().Broadcast(ChannelModuleUpdate, info)
		writeJSON(w, http.StatusOK, info)
	}
}
