package middleware

import (
	"net/http"

	"github.com/teftar/api/jwtauth"
	"github.com/teftar/api/services"
	"github.com/teftar/api/utils"
	"go.uber.org/zap"
)

// Per-step messages written to rejected callers. They override the message
// from services.StatusForError; the status still comes from the table.
// Verification sub-reasons are logged, never returned.
const (
	MsgMissingHeader     = "Missing authorization header"
	MsgInvalidHeader     = "Invalid authorization header format"
	MsgInvalidToken      = services.MsgInvalidOrExpiredToken
	OutcomeAuthenticated = "authenticated"
)

// TokenVerifier defines the interface for validating bearer tokens
type TokenVerifier interface {
	VerifyToken(token string) (jwtauth.Identity, error)
}

// OutcomeRecorder counts gate decisions.
type OutcomeRecorder interface {
	RecordGateOutcome(outcome string)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	verifier TokenVerifier
	recorder OutcomeRecorder
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. recorder may be nil.
func NewAuthMiddleware(verifier TokenVerifier, recorder OutcomeRecorder, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		recorder: recorder,
		logger:   logger,
	}
}

// RequireAuth rejects requests without a valid bearer token with 401 and
// otherwise attaches the caller's identity before dispatching.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		header := r.Header.Get("Authorization")
		if header == "" {
			m.reject(w, requestID, services.ErrMissingCredential, MsgMissingHeader)
			return
		}

		token, err := jwtauth.ExtractBearer(header)
		if err != nil {
			m.reject(w, requestID, err, MsgInvalidHeader)
			return
		}

		identity, err := m.verifier.VerifyToken(token)
		if err != nil {
			m.reject(w, requestID, err, MsgInvalidToken)
			return
		}

		m.record(OutcomeAuthenticated)
		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("user_id", identity.UserID.String()))

		next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
	})
}

func (m *AuthMiddleware) reject(w http.ResponseWriter, requestID string, err error, message string) {
	// A verifier outside the taxonomy is treated as a bad signature.
	if !services.IsVerificationError(err) {
		err = services.NewDomainError(services.KindSignatureInvalid, "token rejected", err)
	}
	kind := services.KindOf(err)
	status, _ := services.StatusForError(err)

	m.record(string(kind))
	m.logger.Warn("authentication rejected",
		zap.String("request_id", requestID),
		zap.String("kind", string(kind)),
		zap.Error(err))
	_ = utils.WriteError(w, status, message)
}

func (m *AuthMiddleware) record(outcome string) {
	if m.recorder != nil {
		m.recorder.RecordGateOutcome(outcome)
	}
}
