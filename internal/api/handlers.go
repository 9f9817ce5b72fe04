package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/studyplan/internal/processor"
	"github.com/MikeSquared-Agency/studyplan/internal/prompt"
	"github.com/MikeSquared-Agency/studyplan/internal/store"
)

const (
	maxMessageLength = 8000
	maxSessionID     = 128
	maxSettingLength = 200
)

type chatRequest struct {
	Message   string           `json:"message"`
	SessionID string           `json:"session_id,omitempty"`
	Settings  *prompt.Settings `json:"settings,omitempty"`
}

func (req chatRequest) Validate() error {
	return validation.ValidateStruct(&req,
		validation.Field(&req.Message, validation.Required, validation.Length(1, maxMessageLength)),
		validation.Field(&req.SessionID, validation.Length(0, maxSessionID)),
	)
}

type settingsRules prompt.Settings

func validateSettings(s prompt.Settings) error {
	r := settingsRules(s)
	return validation.ValidateStruct(&r,
		validation.Field(&r.Duration, validation.Length(0, maxSettingLength)),
		validation.Field(&r.CurrentLevel, validation.Length(0, maxSettingLength)),
		validation.Field(&r.StudyField, validation.Length(0, maxSettingLength)),
	)
}

type chatResponse struct {
	processor.Turn
	SessionID string `json:"session_id"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	settings := s.opts.Settings
	if req.Settings != nil {
		if err := validateSettings(*req.Settings); err != nil {
			respondError(w, r, http.StatusBadRequest, "settings: "+err.Error())
			return
		}
		settings = *req.Settings
	}

	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	entry := s.sessions.get(req.SessionID)
	entry.mu.Lock()
	turn := s.proc.HandleMessage(r.Context(), entry.sess, req.Message, settings)
	entry.mu.Unlock()

	if turn.Diagrams == nil {
		turn.Diagrams = []string{}
	}
	respondJSON(w, http.StatusOK, chatResponse{Turn: turn, SessionID: req.SessionID})
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	entry, ok := s.sessions.lookup(sessionID)
	if !ok {
		respondError(w, r, http.StatusNotFound, "unknown session "+sessionID)
		return
	}
	entry.mu.Lock()
	err := s.proc.Reset(r.Context(), entry.sess)
	entry.mu.Unlock()

	if err != nil {
		s.logger.Error("reset session failed", "session_id", sessionID, "error", err)
		respondError(w, r, http.StatusInternalServerError, "reset failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "reset", "session_id": sessionID})
}

func (s *Server) listRoadmaps(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.sessions.lookup(chi.URLParam(r, "sessionID"))
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{"roadmaps": []store.Roadmap{}, "count": 0})
		return
	}
	entry.mu.Lock()
	rms, err := s.proc.Roadmaps(r.Context(), entry.sess)
	entry.mu.Unlock()

	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"roadmaps": rms, "count": len(rms)})
}

func (s *Server) roadmapProgress(w http.ResponseWriter, r *http.Request) {
	roadmapID := chi.URLParam(r, "roadmapID")
	p, err := s.proc.Progress(r.Context(), roadmapID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"roadmap_id":          roadmapID,
		"total_items":         p.TotalItems,
		"completed_items":     p.CompletedItems,
		"progress_percentage": p.ProgressPercentage,
		"remaining_items":     p.Remaining(),
		"complete":            p.Done(),
		"items":               p.Items,
	})
}

type updateItemRequest struct {
	Completed *bool `json:"completed"`
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := validation.Validate(req.Completed, validation.NotNil); err != nil {
		respondError(w, r, http.StatusBadRequest, "completed: "+err.Error())
		return
	}

	itemID := chi.URLParam(r, "itemID")
	if err := s.proc.ToggleItem(r.Context(), itemID, *req.Completed); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "completed": *req.Completed})
}

func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, processor.ErrPersistenceDisabled), errors.Is(err, store.ErrUnavailable):
		respondError(w, r, http.StatusServiceUnavailable, err.Error())
	default:
		s.logger.Error("store request failed", "path", r.URL.Path, "error", err)
		respondError(w, r, http.StatusInternalServerError, "internal error")
	}
}
