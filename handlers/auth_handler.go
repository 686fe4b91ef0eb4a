package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/teftar/api/auth"
	"github.com/teftar/api/middleware"
	"github.com/teftar/api/supabase"
	"github.com/teftar/api/utils"
	"go.uber.org/zap"
)

// maxBodyBytes caps every JSON request body
const maxBodyBytes = 1 << 20

// AccountService defines the account lifecycle operations exposed over HTTP
type AccountService interface {
	SignUp(ctx context.Context, req auth.SignUpRequest) (*supabase.Session, error)
	SignIn(ctx context.Context, req auth.SignInRequest) (*supabase.Session, error)
	VerifyEmail(ctx context.Context, req auth.VerifyEmailRequest) (*supabase.Session, error)
}

// AuthHandler handles the public account endpoints
type AuthHandler struct {
	service AccountService
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		logger:  logger,
	}
}

// HandleSignUp handles POST /auth/signup
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.SignUp(r.Context(), req)
	h.respond(w, r, "signup", session, err)
}

// HandleSignIn handles POST /auth/signin
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var req auth.SignInRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.SignIn(r.Context(), req)
	h.respond(w, r, "signin", session, err)
}

// HandleVerifyEmail handles POST /auth/verify-email
func (h *AuthHandler) HandleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req auth.VerifyEmailRequest
	if !h.decode(w, r, &req) {
		return
	}

	session, err := h.service.VerifyEmail(r.Context(), req)
	h.respond(w, r, "verify_email", session, err)
}

// decode parses and validates the JSON body, writing a 400 on failure.
func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.logger.Debug("invalid request body",
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context())),
			zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body")
		return false
	}

	if err := utils.ValidateStruct(dst); err != nil {
		HandleValidationError(w, err, h.logger)
		return false
	}
	return true
}

func (h *AuthHandler) respond(w http.ResponseWriter, r *http.Request, operation string, session *supabase.Session, err error) {
	if err != nil {
		HandleServiceError(w, err, h.logger.With(
			zap.String("operation", operation),
			zap.String("request_id", middleware.GetRequestIDFromContext(r.Context()))))
		return
	}

	if err := utils.WriteOK(w, session); err != nil {
		h.logger.Error("failed to write response", zap.Error(err))
	}
}
