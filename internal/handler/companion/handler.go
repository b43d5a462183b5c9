package companion

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/calmloop/calmloop/backend/internal/middleware"
	"github.com/calmloop/calmloop/backend/internal/model/checkin"
	sessionmodel "github.com/calmloop/calmloop/backend/internal/model/session"
	sessionsvc "github.com/calmloop/calmloop/backend/internal/service/session"
	"github.com/calmloop/calmloop/backend/internal/service/voice"
	"github.com/calmloop/calmloop/backend/pkg/utils"
)

// Handler exposes the session orchestrator over HTTP. All routes assume
// an authenticated context; the auth middleware supplies the user id.
type Handler struct {
	registry *sessionsvc.Registry
	checkins checkin.Store
}

// New creates the companion session handler.
func New(registry *sessionsvc.Registry, checkins checkin.Store) *Handler {
	return &Handler{registry: registry, checkins: checkins}
}

// RegisterRoutes mounts the companion session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/companion", func(r chi.Router) {
		r.Post("/session", h.handleStartSession)
		r.Delete("/session", h.handleEndSession)
		r.Get("/state", h.handleState)
		r.Post("/relay", h.handleRelay)
		r.Post("/transcripts", h.handlePushTranscript)
		r.Post("/audio", h.handleAudioLevels)
		r.Post("/guardrails", h.handleGuardrails)
		r.Post("/checkins/refresh", h.handleRefreshCheckIns)
		r.Post("/toolcalls/{callID}", h.handleResolveToolCall)
		r.Post("/controls", h.handleControls)
		r.Get("/stream", h.handleStream)
		r.Get("/events", h.handleEvents)
	})
}

func (h *Handler) store(r *http.Request) *sessionsvc.Store {
	return h.registry.ForUser(middleware.UserID(r.Context()))
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var opts voice.StartOptions
	if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store := h.store(r)
	if err := store.StartSession(r.Context(), opts); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, voice.ErrUpstream) {
			status = http.StatusBadGateway
		}
		utils.RespondError(w, status, err.Error())
		return
	}

	// Seed the check-in cache when the bootstrap context did not carry one.
	if snap := store.Snapshot(); len(snap.RecentCheckIns) == 0 && h.checkins != nil {
		if recent := h.checkins.Recent(middleware.UserID(r.Context()), 10); len(recent) > 0 {
			store.SetRecentCheckIns(recent)
		}
	}

	utils.RespondJSON(w, http.StatusCreated, store.Snapshot())
}

func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	store := h.store(r)
	if err := store.EndSession(r.Context()); err != nil {
		utils.RespondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, store.Snapshot())
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store(r).Snapshot())
}

func (h *Handler) handleRelay(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Event json.RawMessage `json:"event"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || len(payload.Event) == 0 {
		utils.RespondError(w, http.StatusBadRequest, "event is required")
		return
	}

	receipt, err := h.store(r).RelayEvent(r.Context(), payload.Event)
	if err != nil {
		switch {
		case errors.Is(err, sessionsvc.ErrNoActiveSession):
			utils.RespondError(w, http.StatusConflict, "no active session")
		case errors.Is(err, voice.ErrUpstream):
			utils.RespondError(w, http.StatusBadGateway, err.Error())
		default:
			utils.RespondError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	utils.RespondJSON(w, http.StatusOK, receipt)
}

func (h *Handler) handlePushTranscript(w http.ResponseWriter, r *http.Request) {
	var item sessionmodel.TranscriptItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if item.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, "content is required")
		return
	}
	switch item.Speaker {
	case sessionmodel.SpeakerUser, sessionmodel.SpeakerCompanion, sessionmodel.SpeakerSystem:
	default:
		utils.RespondError(w, http.StatusBadRequest, "speaker must be user, companion or system")
		return
	}

	stored := h.store(r).PushTranscript(item)
	utils.RespondJSON(w, http.StatusAccepted, stored)
}

func (h *Handler) handleAudioLevels(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Energy *float64 `json:"energy"`
		Noise  *float64 `json:"noise"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload.Energy == nil {
		utils.RespondError(w, http.StatusBadRequest, "energy is required")
		return
	}

	store := h.store(r)
	noise := store.Snapshot().BackgroundNoise
	if payload.Noise != nil {
		noise = *payload.Noise
	}
	store.UpdateAudioLevels(*payload.Energy, noise)
	utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "recorded"})
}

func (h *Handler) handleGuardrails(w http.ResponseWriter, r *http.Request) {
	var flags sessionmodel.GuardrailFlags
	if err := json.NewDecoder(r.Body).Decode(&flags); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	h.store(r).UpdateGuardrails(flags)
	utils.RespondJSON(w, http.StatusAccepted, h.store(r).Snapshot().Guardrails)
}

func (h *Handler) handleRefreshCheckIns(w http.ResponseWriter, r *http.Request) {
	if h.checkins == nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "check-in source unavailable")
		return
	}
	recent := h.checkins.Recent(middleware.UserID(r.Context()), 10)
	h.store(r).SetRecentCheckIns(recent)
	utils.RespondJSON(w, http.StatusOK, recent)
}

func (h *Handler) handleResolveToolCall(w http.ResponseWriter, r *http.Request) {
	callID := chi.URLParam(r, "callID")
	var payload struct {
		Approved bool `json:"approved"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.store(r).ResolveToolCall(callID, payload.Approved) {
		utils.RespondError(w, http.StatusNotFound, "tool call not found or already resolved")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

func (h *Handler) handleControls(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Captions              *bool   `json:"captions"`
		AgentTyping           *bool   `json:"agentTyping"`
		InterruptionRequested *bool   `json:"interruptionRequested"`
		Microphone            *bool   `json:"microphone"`
		ConnectionState       *string `json:"connectionState"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store := h.store(r)
	if payload.Captions != nil {
		store.SetCaptions(*payload.Captions)
	}
	if payload.AgentTyping != nil {
		store.SetAgentTyping(*payload.AgentTyping)
	}
	if payload.InterruptionRequested != nil {
		store.SetInterruptionRequested(*payload.InterruptionRequested)
	}
	if payload.Microphone != nil {
		store.SetMicrophone(*payload.Microphone)
	}
	if payload.ConnectionState != nil {
		switch state := sessionmodel.ConnectionState(*payload.ConnectionState); state {
		case sessionmodel.Disconnected, sessionmodel.Connecting, sessionmodel.Connected, sessionmodel.Reconnecting:
			store.SetConnectionState(state)
		default:
			utils.RespondError(w, http.StatusBadRequest, "unknown connection state")
			return
		}
	}
	utils.RespondJSON(w, http.StatusOK, store.Snapshot())
}
