package auth

import (
	"context"
	"encoding/json"
	"time"

	"github.com/teftar/api/services"
	"github.com/teftar/api/supabase"
	"go.uber.org/zap"
)

// IdentityProvider is the upstream account system.
type IdentityProvider interface {
	SignUp(ctx context.Context, email, password, redirectURL string) (supabase.AuthResult, error)
	SignIn(ctx context.Context, email, password string) (*supabase.Session, error)
	VerifyOTP(ctx context.Context, tokenHash, verificationType string, email *string) (*supabase.Session, error)
}

// SignUpRequest is the body of POST /auth/signup
type SignUpRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SignInRequest is the body of POST /auth/signin
type SignInRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// VerifyEmailRequest is the body of POST /auth/verify-email
type VerifyEmailRequest struct {
	Token string  `json:"token" validate:"required"`
	Type  string  `json:"type" validate:"required"`
	Email *string `json:"email,omitempty" validate:"omitempty,email"`
}

// UnmarshalJSON also accepts the verification type under "type_" and treats
// an empty email as absent.
func (r *VerifyEmailRequest) UnmarshalJSON(data []byte) error {
	type plain VerifyEmailRequest
	var body struct {
		plain
		LegacyType string `json:"type_"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return err
	}

	*r = VerifyEmailRequest(body.plain)
	if r.Type == "" {
		r.Type = body.LegacyType
	}
	if r.Email != nil && *r.Email == "" {
		r.Email = nil
	}
	return nil
}

// Service brokers account lifecycle operations to the identity provider.
// Every upstream call is bounded by the configured timeout.
type Service struct {
	provider    IdentityProvider
	redirectURL string
	timeout     time.Duration
	logger      *zap.Logger
}

// NewService creates a new account lifecycle service
func NewService(provider IdentityProvider, redirectURL string, timeout time.Duration, logger *zap.Logger) *Service {
	return &Service{
		provider:    provider,
		redirectURL: redirectURL,
		timeout:     timeout,
		logger:      logger,
	}
}

// SignUp registers an account. When the provider requires email
// confirmation the error is of kind ConfirmationPending.
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) (*supabase.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	result, err := s.provider.SignUp(ctx, req.Email, req.Password, s.redirectURL)
	if err != nil {
		return nil, err
	}
	if result.ConfirmationPending || result.Session == nil {
		return nil, services.NewDomainError(services.KindConfirmationPending, "email confirmation required", nil)
	}

	s.logger.Info("account created", zap.String("user_id", result.Session.User.ID))
	return result.Session, nil
}

// SignIn exchanges credentials for a session
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (*supabase.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.provider.SignIn(ctx, req.Email, req.Password)
}

// VerifyEmail confirms an account from a confirmation link
func (s *Service) VerifyEmail(ctx context.Context, req VerifyEmailRequest) (*supabase.Session, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	return s.provider.VerifyOTP(ctx, req.Token, req.Type, req.Email)
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
