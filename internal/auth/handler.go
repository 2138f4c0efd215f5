package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-demo-booking/internal/ledger"
	"ms-demo-booking/internal/logger"
	"ms-demo-booking/internal/utils"
)

type Handler struct {
	Store        *AdminStore
	Guard        *Guard
	CookieSecure bool
	Logger       *logger.Logger
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,min=2"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

// RegisterPublicRoutes mounts login, logout and check-auth under r.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/logout", h.Logout)
	r.Get("/check-auth", h.CheckAuth)
}

// RegisterAdminRoutes mounts admin account management; r must already be guarded.
func (h *Handler) RegisterAdminRoutes(r chi.Router) {
	r.Post("/register", h.Register)
	r.Get("/", h.ListAdmins)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid request", err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := utils.Validate(req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid request", err)
		return
	}

	admin, err := h.Store.FindByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		utils.WriteError(w, h.Logger, "Login failed", err)
		return
	}
	// unknown email and wrong password look the same to the caller
	if admin == nil || !CheckPassword(admin.PasswordHash, req.Password) {
		h.Logger.LogSecurity("LOGIN_FAILED", req.Email)
		utils.WriteFailure(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid email or password")
		return
	}

	token, err := h.Guard.Tokens.Generate(admin.ID, admin.Email)
	if err != nil {
		utils.WriteError(w, h.Logger, "Login failed", err)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     h.Guard.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.Guard.Tokens.TTL().Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	h.Logger.Info("AUTH", fmt.Sprintf("Admin %s logged in", admin.Email))
	utils.WriteSuccess(w, http.StatusOK, "Login successful", nil)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.Guard.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	utils.WriteSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

type checkAuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	ID            string `json:"id"`
	Email         string `json:"email"`
}

// CheckAuth reports whether the request carries a valid session cookie.
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(h.Guard.CookieName)
	if err != nil || cookie.Value == "" {
		utils.WriteFailure(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Not authenticated")
		return
	}
	claims, err := h.Guard.Tokens.Validate(cookie.Value)
	if err != nil {
		utils.WriteFailure(w, http.StatusUnauthorized, utils.CodeUnauthorized, "Invalid token")
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Authenticated", checkAuthResponse{
		Authenticated: true,
		ID:            claims.ID,
		Email:         claims.Email,
	})
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid request data", err)
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	req.Name = strings.TrimSpace(req.Name)
	if err := utils.Validate(req); err != nil {
		utils.WriteError(w, h.Logger, "Invalid request data", err)
		return
	}

	admin, err := h.Store.Create(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to register admin", err)
		return
	}
	h.Logger.Info("AUTH", fmt.Sprintf("Admin %s registered by %s", admin.Email, AdminEmail(r.Context())))
	utils.WriteSuccess(w, http.StatusCreated, "Admin created successfully", admin)
}

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.Store.List(r.Context())
	if err != nil {
		utils.WriteError(w, h.Logger, "Failed to fetch admins", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Admins", admins)
}
