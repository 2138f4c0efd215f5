package session_api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/sessions"
	"ms-demo-booking/internal/utils"
)

type Handler struct {
	SessionService *sessions.SessionService
	Logger         *logger.Logger
}

func NewHandler(sessionService *sessions.SessionService, log *logger.Logger) *Handler {
	return &Handler{SessionService: sessionService, Logger: log}
}

func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/api/sessions", h.ListPublicSessions)
}

// RegisterAdminRoutes mounts session management; the caller applies auth.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", h.ListSessions)
		r.Post("/", h.CreateSession)
		r.Get("/{sessionId}", h.GetSession)
		r.Patch("/{sessionId}", h.UpdateSession)
		r.Delete("/{sessionId}", h.DeleteSession)
	})
	r.Get("/users", h.ListUsers)
}

func (h *Handler) ListPublicSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.SessionService.ListPublicSessions(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to fetch demo sessions", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Demo sessions", list)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.SessionService.ListSessions(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to fetch demo sessions", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Demo sessions", list)
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessions.CreateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid request data", err)
		return
	}
	session, err := h.SessionService.CreateSession(r.Context(), req)
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to create demo session", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Demo session created successfully", session)
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.SessionService.GetSession(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "Session not available", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Demo session", session)
}

func (h *Handler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	var req sessions.UpdateRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid request data", err)
		return
	}
	session, err := h.SessionService.UpdateSession(r.Context(), chi.URLParam(r, "sessionId"), req)
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to update demo session", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Demo session updated successfully", session)
}

func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.SessionService.DeleteSession(r.Context(), chi.URLParam(r, "sessionId")); err != nil {
		utils.WriteError(w, h.Logger, "Cannot delete session", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Demo session deleted successfully", nil)
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.SessionService.ListAttendees(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to fetch users", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Users", users)
}
