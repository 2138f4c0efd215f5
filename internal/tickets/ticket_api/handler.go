package ticket_api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/models"
	tickets "ms-demo-booking/internal/tickets/service"
	"ms-demo-booking/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Logger        *logger.Logger
}

func NewHandler(ticketService *tickets.TicketService, log *logger.Logger) *Handler {
	return &Handler{TicketService: ticketService, Logger: log}
}

// RegisterPublicRoutes mounts the unauthenticated booking endpoints.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/api/tickets", h.BookTicket)
	r.Get("/api/tickets/count", h.GetTotalTicketsCount)
	r.Get("/api/tickets/{ticketId}/qr.png", h.TicketQRCode)
}

// RegisterAdminRoutes mounts ticket management; the caller applies auth.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Route("/tickets", func(r chi.Router) {
		r.Get("/", h.ListTickets)
		r.Post("/", h.CreateTicket)
		r.Get("/{ticketId}", h.ViewTicket)
		r.Patch("/{ticketId}", h.UpdateStatus)
		r.Delete("/{ticketId}", h.DeleteTicket)
	})
	r.Post("/scan", h.Scan)
	r.Get("/sessions/{sessionId}/stats", h.SessionStats)
}

type bookingRequest struct {
	SessionID string `json:"sessionId" validate:"required,uuid"`
	Email     string `json:"email" validate:"required,email"`
	Name      string `json:"name" validate:"required,min=2"`
}

type adminTicketRequest struct {
	SessionID   string  `json:"sessionId" validate:"required,uuid"`
	Email       string  `json:"email" validate:"required,email"`
	Name        string  `json:"name" validate:"required,min=2"`
	PhoneNumber *string `json:"phoneNumber,omitempty" validate:"omitempty,min=10"`
}

type statusRequest struct {
	Status models.TicketStatus `json:"status" validate:"required,oneof=CREATED ATTENDED NOT_ATTENDED CANCELLED SUBSCRIBED"`
}

type scanRequest struct {
	Payload string              `json:"payload" validate:"required"`
	Status  models.TicketStatus `json:"status,omitempty" validate:"omitempty,oneof=CREATED ATTENDED NOT_ATTENDED CANCELLED SUBSCRIBED"`
}

// TicketCountResponse is the response format for the GetTotalTicketsCount endpoint
type TicketCountResponse struct {
	TotalCount int `json:"total_count"`
}

// BookTicket handles a public booking
func (h *Handler) BookTicket(w http.ResponseWriter, r *http.Request) {
	var req bookingRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid booking request", err)
		return
	}
	if err := utils.Validate(req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid booking request", err)
		return
	}

	result, err := h.TicketService.IssueTicket(r.Context(), tickets.IssueRequest{
		SessionID: req.SessionID,
		Email:     req.Email,
		Name:      req.Name,
	})
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to book ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Ticket booked", result)
}

// CreateTicket handles an admin booking, which may also record a phone number
func (h *Handler) CreateTicket(w http.ResponseWriter, r *http.Request) {
	var req adminTicketRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid ticket request", err)
		return
	}
	if err := utils.Validate(req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid ticket request", err)
		return
	}

	result, err := h.TicketService.IssueTicket(r.Context(), tickets.IssueRequest{
		SessionID: req.SessionID,
		Email:     req.Email,
		Name:      req.Name,
		Phone:     req.PhoneNumber,
	})
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to create ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Ticket created", result)
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	filter := ledger.TicketFilter{
		Status:    models.TicketStatus(r.URL.Query().Get("status")),
		SessionID: r.URL.Query().Get("sessionId"),
	}
	list, err := h.TicketService.ListTickets(r.Context(), filter)
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to list tickets", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, strconv.Itoa(len(list))+" tickets", list)
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "Ticket not available", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket found", ticket)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid status update", err)
		return
	}
	if err := utils.Validate(req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid status update", err)
		return
	}

	ticket, err := h.TicketService.SetStatus(r.Context(), chi.URLParam(r, "ticketId"), req.Status)
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to update ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket status updated", ticket)
}

func (h *Handler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	result, err := h.TicketService.DeleteTicket(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to delete ticket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket deleted successfully", result)
}

// Scan resolves a scanned QR payload or typed ticket id, optionally moving
// the ticket to a new status in the same request.
func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid scan", err)
		return
	}
	if err := utils.Validate(req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid scan", err)
		return
	}

	ticket, err := h.TicketService.LookupScan(r.Context(), req.Payload)
	if err != nil {
		utils.WriteError(w, h.Logger, "Scan not recognized", err)
		return
	}
	if req.Status != "" && req.Status != ticket.Status {
		ticket, err = h.TicketService.SetStatus(r.Context(), ticket.ID, req.Status)
		if err != nil {
			utils.WriteError(w, h.Logger, "Failed to update ticket", err)
			return
		}
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket found", ticket)
}

// GetTotalTicketsCount handles the request to get the total ticket count
func (h *Handler) GetTotalTicketsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.TicketService.CountTickets(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, "Error retrieving ticket count", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, TicketCountResponse{TotalCount: count})
}

func (h *Handler) TicketQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := h.TicketService.TicketQRCode(r.Context(), chi.URLParam(r, "ticketId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "QR code not available", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age="+strconv.Itoa(int(time.Hour.Seconds())))
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

func (h *Handler) SessionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.TicketService.SessionStats(r.Context(), chi.URLParam(r, "sessionId"))
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to load session stats", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Session stats", stats)
}
