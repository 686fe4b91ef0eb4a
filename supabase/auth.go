package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/teftar/api/services"
	"go.uber.org/zap"
)

// User is the account summary returned with a session
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the token pair issued after a successful sign-in or confirmation
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	User         User   `json:"user"`
}

// AuthResult is the outcome of a signup: either a live session or a pending
// email confirmation. Exactly one of the two is set.
type AuthResult struct {
	Session             *Session
	ConfirmationPending bool
}

type signUpOptions struct {
	EmailRedirectTo string `json:"email_redirect_to,omitempty"`
}

type signUpRequest struct {
	Email    string        `json:"email"`
	Password string        `json:"password"`
	Options  signUpOptions `json:"options"`
}

type passwordGrantRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	TokenHash string  `json:"token_hash"`
	Type      string  `json:"type"`
	Email     *string `json:"email,omitempty"`
}

type sessionResponse struct {
	AccessToken  *string       `json:"access_token"`
	RefreshToken *string       `json:"refresh_token"`
	User         *userResponse `json:"user"`
}

type userResponse struct {
	ID    *string `json:"id"`
	Email *string `json:"email"`
}

// SignUp registers a new account. When the provider auto-confirms, the
// returned AuthResult carries a Session; otherwise ConfirmationPending is set.
func (c *Client) SignUp(ctx context.Context, email, password, redirectURL string) (AuthResult, error) {
	c.logger.Debug("signing up", zap.String("email", redactEmail(email)))

	resp, err := c.post(ctx, "signup", "/signup", signUpRequest{
		Email:    email,
		Password: password,
		Options:  signUpOptions{EmailRedirectTo: redirectURL},
	}, nil)
	if err != nil {
		return AuthResult{}, services.Unavailable("signup request failed", err)
	}

	if !resp.IsSuccess() {
		upstream := parseUpstreamError(resp.Body())
		c.logger.Warn("signup rejected",
			zap.String("email", redactEmail(email)),
			zap.Int("status", resp.StatusCode()),
			zap.String("error_code", upstream.ErrorCode))

		msg := upstream.message()
		if msg == "" {
			msg = defaultSignUpFailure
		}
		return AuthResult{}, services.Rejected(msg)
	}

	var body sessionResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return AuthResult{}, services.NewDomainError(services.KindMalformedUpstreamResponse, "failed to decode signup response", err)
	}

	if !hasValue(body.AccessToken) || !hasValue(body.RefreshToken) || body.User == nil {
		c.logger.Info("signup pending email confirmation", zap.String("email", redactEmail(email)))
		return AuthResult{ConfirmationPending: true}, nil
	}

	session, err := body.toSession()
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{Session: session}, nil
}

// SignIn exchanges email and password for a session.
func (c *Client) SignIn(ctx context.Context, email, password string) (*Session, error) {
	c.logger.Debug("signing in", zap.String("email", redactEmail(email)))

	resp, err := c.post(ctx, "signin", "/token", passwordGrantRequest{
		Email:    email,
		Password: password,
	}, map[string]string{"grant_type": "password"})
	if err != nil {
		return nil, services.Unavailable("signin request failed", err)
	}

	if !resp.IsSuccess() {
		upstream := parseUpstreamError(resp.Body())
		c.logger.Warn("signin rejected",
			zap.String("email", redactEmail(email)),
			zap.Int("status", resp.StatusCode()),
			zap.String("error_code", upstream.ErrorCode))

		switch {
		case upstream.ErrorCode == errorCodeEmailNotConfirmed:
			return nil, services.NewDomainError(services.KindEmailNotConfirmed, "email not confirmed", nil)
		case resp.StatusCode() == http.StatusBadRequest || resp.StatusCode() == http.StatusUnauthorized:
			return nil, services.NewDomainError(services.KindInvalidCredentials, "invalid login credentials", nil)
		default:
			return nil, services.Unavailable(fmt.Sprintf("signin failed with status %d", resp.StatusCode()), nil)
		}
	}

	return decodeSession(resp.Body())
}

// VerifyOTP confirms an email with the token hash from the confirmation link.
// email is sent only when non-nil and non-empty.
func (c *Client) VerifyOTP(ctx context.Context, tokenHash, verificationType string, email *string) (*Session, error) {
	c.logger.Info("verifying email", zap.String("type", verificationType))

	req := verifyRequest{
		TokenHash: tokenHash,
		Type:      verificationType,
	}
	if email != nil && *email != "" {
		req.Email = email
	}

	resp, err := c.post(ctx, "verify", "/verify", req, nil)
	if err != nil {
		return nil, services.Unavailable("verify request failed", err)
	}

	if !resp.IsSuccess() {
		upstream := parseUpstreamError(resp.Body())
		c.logger.Warn("email verification rejected",
			zap.Int("status", resp.StatusCode()),
			zap.String("error_code", upstream.ErrorCode))

		if upstream.ErrorCode == errorCodeOTPExpired {
			return nil, services.NewDomainError(services.KindExpiredToken, "confirmation token expired", nil)
		}
		return nil, services.NewDomainError(services.KindInvalidToken, "confirmation token rejected", nil)
	}

	return decodeSession(resp.Body())
}

func decodeSession(raw []byte) (*Session, error) {
	var body sessionResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, services.NewDomainError(services.KindMalformedUpstreamResponse, "failed to decode session response", err)
	}
	return body.toSession()
}

// toSession requires every session field to be present.
func (r sessionResponse) toSession() (*Session, error) {
	switch {
	case !hasValue(r.AccessToken):
		return nil, missingField("access_token")
	case !hasValue(r.RefreshToken):
		return nil, missingField("refresh_token")
	case r.User == nil:
		return nil, missingField("user")
	case !hasValue(r.User.ID):
		return nil, missingField("user id")
	case !hasValue(r.User.Email):
		return nil, missingField("user email")
	}

	return &Session{
		AccessToken:  *r.AccessToken,
		RefreshToken: *r.RefreshToken,
		User: User{
			ID:    *r.User.ID,
			Email: *r.User.Email,
		},
	}, nil
}

func hasValue(s *string) bool {
	return s != nil && *s != ""
}

func missingField(name string) error {
	return services.NewDomainError(services.KindMalformedUpstreamResponse, "missing "+name, nil)
}

// redactEmail keeps the first character of the local part and the domain,
// so logs can be correlated without carrying the address.
func redactEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}
