package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/cuebridge/internal/trigger"
)

// Hub channels written by the API.
const (
	ChannelAllow         = "dispatch.allow"
	ChannelTriggerUpdate = "trigger.update"
	ChannelModuleUpdate  = "module.update"
	// ChannelModuleStatus carries the periodic module status sample.
	ChannelModuleStatus = "module.status"
)

// sourceAPI is the host source reported for API-injected events.
const sourceAPI = "api"

// slideUpdateSignal matches the signal the host listener raises after a
// slide annotation.
const slideUpdateSignal = "slideupdate"

type allowRequest struct {
	Allow *bool `json:"allow"`
}

// AnnotationRequest is the body of POST /annotations.
type AnnotationRequest struct {
	Text   string         `json:"text"`
	Source string         `json:"source,omitempty"`
	Slide  *trigger.Slide `json:"slide,omitempty"`
}

// SignalRequest is the optional body of POST /signals/{name}.
type SignalRequest struct {
	Source string         `json:"source,omitempty"`
	Slide  *trigger.Slide `json:"slide,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

func (s *Server) handleGetAllow(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"allow": s.engine.Allowed()})
}

func (s *Server) handleSetAllow(w http.ResponseWriter, r *http.Request) {
	var req allowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Allow == nil {
		writeBadRequest(w, `body must be {"allow": true|false}`)
		return
	}

	s.engine.SetAllow(*req.Allow)
	s.logger.Info("trigger dispatch switched", "allow", *req.Allow)

	resp := map[string]bool{"allow": *req.Allow}
	s.Hub().Broadcast(ChannelAllow, resp)
	writeJSON(w, http.StatusOK, resp)
}

// handleProcessAnnotation parses and dispatches text as if a host had sent
// it. A slide in the body also raises ~slideupdate~ in the same pass.
func (s *Server) handleProcessAnnotation(w http.ResponseWriter, r *http.Request) {
	var req AnnotationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	host := trigger.HostContext{Source: sourceOr(req.Source)}
	if req.Slide != nil {
		host.Slide = *req.Slide
	}

	var signals []string
	if req.Slide != nil {
		signals = append(signals, slideUpdateSignal)
	}
	res := s.engine.Process(r.Context(), req.Text, host, signals...)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSignal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" || strings.ContainsAny(name, "~[] ") {
		writeBadRequest(w, "invalid signal name")
		return
	}

	var req SignalRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeBadRequest(w, "invalid JSON body")
			return
		}
	}

	host := trigger.HostContext{Source: sourceOr(req.Source), Data: req.Data}
	if req.Slide != nil {
		host.Slide = *req.Slide
	}

	matched := s.engine.Signal(r.Context(), name, host)
	writeJSON(w, http.StatusOK, map[string]any{
		"signal":  name,
		"matched": matched,
	})
}

func sourceOr(source string) string {
	if source = strings.TrimSpace(source); source != "" {
		return source
	}
	return sourceAPI
}
