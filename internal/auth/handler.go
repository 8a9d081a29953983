package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/storefront/storefront-api/internal/accounts"
	"github.com/storefront/storefront-api/internal/platform/httpx"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	verifier  TokenVerifier
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, verifier TokenVerifier) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)
	return &Handler{
		logger:    logger,
		service:   service,
		verifier:  verifier,
		validator: validate,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/sign-up", h.handleSignUp)
	r.Post("/sign-in", h.handleSignIn)
	r.Post("/reset-password", h.handleResetPassword)
	r.Post("/virify-code", h.handleVerifyCode)
	r.Post("/verify-code", h.handleVerifyCode)
	r.Post("/change-password", h.handleChangePassword)
}

// MountAccountRoutes registers the bearer-protected account routes. Everything
// addressed by id is admin only.
func (h *Handler) MountAccountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(RequireBearer(h.verifier))
		r.Get("/me", h.handleMe)
		r.Group(func(r chi.Router) {
			r.Use(RequireRole(string(accounts.RoleAdmin)))
			r.Get("/{id}", h.handleShow)
			r.Patch("/{id}", h.handleUpdate)
			r.Delete("/{id}", h.handleDeactivate)
		})
	})
}

func (h *Handler) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.SignUp(r.Context(), req)
	h.respond(w, r, res, err)
}

func (h *Handler) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req SignInRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.SignIn(r.Context(), req.Email, req.Password)
	h.respond(w, r, res, err)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.RequestPasswordReset(r.Context(), req.Email)
	h.respond(w, r, res, err)
}

func (h *Handler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req VerifyCodeRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.VerifyCode(r.Context(), req.Email, req.Code)
	h.respond(w, r, res, err)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.ChangePassword(r.Context(), req.Email, req.Password, req.ResetToken)
	h.respond(w, r, res, err)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	res, err := h.service.Me(r.Context(), claims.ID)
	h.respond(w, r, res, err)
}

func (h *Handler) handleShow(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Me(r.Context(), chi.URLParam(r, "id"))
	if res != nil {
		res.Message = "User found"
	}
	h.respond(w, r, res, err)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req UpdateAccountRequest
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), req)
	h.respond(w, r, res, err)
}

func (h *Handler) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	res, err := h.service.Deactivate(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, res, err)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.RespondError(w, err)
		return false
	}
	return true
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, res *Result, err error) {
	if err == nil {
		httpx.JSON(w, res.Status, res)
		return
	}
	switch {
	case errors.Is(err, ErrConflict):
		httpx.Error(w, http.StatusBadRequest, "User already exist")
	case errors.Is(err, ErrNotFound):
		httpx.Error(w, http.StatusNotFound, "User Not Found")
	case errors.Is(err, ErrInvalidCode):
		httpx.Error(w, http.StatusUnauthorized, "Invalid code")
	case errors.Is(err, ErrUnauthorized):
		httpx.Error(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, ErrTooManyRequests):
		httpx.Error(w, http.StatusTooManyRequests, "A code was sent recently, try again later")
	default:
		h.logger.Error("auth request failed", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}

func jsonFieldName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
