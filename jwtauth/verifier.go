package jwtauth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/teftar/api/services"
)

const (
	bearerPrefix = "Bearer "

	// DefaultLeeway is the clock skew tolerated on exp and nbf.
	DefaultLeeway = 30 * time.Second
	// MaxLeeway caps configured skew tolerance.
	MaxLeeway = 60 * time.Second
)

// Claims represents the claims carried by an identity provider session token
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
}

// Identity is the verified caller attached to a request.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	ExpiresAt time.Time
}

// Verifier checks bearer tokens against a fixed signing policy. It holds no
// mutable state and is safe for concurrent use.
type Verifier struct {
	policy SigningPolicy
	parser *jwt.Parser
}

type verifierOptions struct {
	leeway time.Duration
	now    func() time.Time
}

// Option configures a Verifier
type Option func(*verifierOptions)

// WithLeeway sets the tolerated clock skew. Values above MaxLeeway are capped.
func WithLeeway(d time.Duration) Option {
	return func(o *verifierOptions) {
		if d < 0 {
			d = 0
		}
		if d > MaxLeeway {
			d = MaxLeeway
		}
		o.leeway = d
	}
}

// WithClock overrides the time source used for exp and nbf checks.
func WithClock(now func() time.Time) Option {
	return func(o *verifierOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// NewVerifier creates a Verifier for the given policy
func NewVerifier(policy SigningPolicy, opts ...Option) (*Verifier, error) {
	if policy == nil {
		return nil, configurationMissing("signing policy is required", nil)
	}

	o := verifierOptions{leeway: DefaultLeeway, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{policy.Method().Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(o.leeway),
		jwt.WithTimeFunc(o.now),
	}
	if aud := policy.Audience(); aud != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(aud))
	}

	return &Verifier{
		policy: policy,
		parser: jwt.NewParser(parserOpts...),
	}, nil
}

// ExtractBearer returns the token part of an Authorization header value.
func ExtractBearer(credential string) (string, error) {
	if credential == "" {
		return "", services.ErrMissingCredential
	}
	token, ok := strings.CutPrefix(credential, bearerPrefix)
	if !ok {
		return "", services.NewDomainError(services.KindMalformedCredential, "missing Bearer prefix", nil)
	}
	if strings.TrimSpace(token) == "" {
		return "", services.NewDomainError(services.KindMalformedCredential, "empty bearer token", nil)
	}
	return token, nil
}

// Verify extracts the bearer token from credential and verifies it.
func (v *Verifier) Verify(credential string) (Identity, error) {
	token, err := ExtractBearer(credential)
	if err != nil {
		return Identity{}, err
	}
	return v.VerifyToken(token)
}

// VerifyToken validates signature, algorithm, expiry and audience, then
// parses the subject as a user ID.
func (v *Verifier) VerifyToken(tokenString string) (Identity, error) {
	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, func(*jwt.Token) (any, error) {
		return v.policy.verificationKey(), nil
	})
	if err != nil {
		return Identity{}, mapJWTError(err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return Identity{}, services.NewDomainError(services.KindClaimInvalid, "token claims rejected", nil)
	}

	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Identity{}, services.NewDomainError(services.KindInvalidSubject, "subject is not a UUID", err)
	}

	identity := Identity{
		UserID: userID,
		Email:  claims.Email,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// mapJWTError classifies parser failures into the verification kinds.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable),
		errors.Is(err, jwt.ErrECDSAVerification):
		return services.NewDomainError(services.KindSignatureInvalid, "signature verification failed", err)
	case errors.Is(err, jwt.ErrTokenExpired),
		errors.Is(err, jwt.ErrTokenNotValidYet),
		errors.Is(err, jwt.ErrTokenInvalidAudience),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing),
		errors.Is(err, jwt.ErrTokenUsedBeforeIssued),
		errors.Is(err, jwt.ErrTokenInvalidClaims):
		return services.NewDomainError(services.KindClaimInvalid, "claim validation failed", err)
	case errors.Is(err, jwt.ErrTokenMalformed):
		return services.NewDomainError(services.KindMalformedCredential, "token is malformed", err)
	default:
		return services.NewDomainError(services.KindSignatureInvalid, "token rejected", err)
	}
}
