package jwtauth

import (
	"crypto/ecdh"
	"crypto/ecdsa"
	"crypto/elliptic"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/teftar/api/services"
)

// AuthenticatedAudience is the aud value the identity provider stamps on
// session tokens issued to signed-in users.
const AuthenticatedAudience = "authenticated"

// p256CoordinateSize is the byte length of a P-256 field element.
const p256CoordinateSize = 32

// SigningPolicy decides how a token signature is checked and which audience,
// if any, the token must carry. It is built once at startup and never changes.
//
// The two implementations give different guarantees: AsymmetricPolicy pins
// ES256 and the "authenticated" audience, SymmetricPolicy pins HS256 and
// enforces no audience.
type SigningPolicy interface {
	// Method is the only signing algorithm accepted under the policy.
	Method() jwt.SigningMethod
	// Audience is the required aud claim, or empty when none is enforced.
	Audience() string

	verificationKey() any
}

// AsymmetricPolicy verifies ES256 tokens against a P-256 public key.
type AsymmetricPolicy struct {
	Key *ecdsa.PublicKey
}

func (p *AsymmetricPolicy) Method() jwt.SigningMethod { return jwt.SigningMethodES256 }
func (p *AsymmetricPolicy) Audience() string          { return AuthenticatedAudience }
func (p *AsymmetricPolicy) verificationKey() any      { return p.Key }

// SymmetricPolicy verifies HS256 tokens against a shared secret.
type SymmetricPolicy struct {
	Secret []byte
}

func (p *SymmetricPolicy) Method() jwt.SigningMethod { return jwt.SigningMethodHS256 }
func (p *SymmetricPolicy) Audience() string          { return "" }
func (p *SymmetricPolicy) verificationKey() any      { return p.Secret }

// JWK is the subset of an EC JSON Web Key needed to rebuild the public key.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	X   string `json:"x"`
	Y   string `json:"y"`
}

// ParsePolicy selects the signing policy from raw configuration. Exactly one
// of jwkJSON and secret must be set.
func ParsePolicy(jwkJSON, secret string) (SigningPolicy, error) {
	jwkJSON = strings.TrimSpace(jwkJSON)

	switch {
	case jwkJSON != "" && secret != "":
		return nil, configurationMissing("both JWK and shared secret configured", nil)
	case jwkJSON != "":
		return NewAsymmetricPolicy(jwkJSON)
	case secret != "":
		return NewSymmetricPolicy(secret)
	default:
		return nil, configurationMissing("no signing key configured", nil)
	}
}

// NewAsymmetricPolicy builds an ES256 policy from a JWK document holding the
// x and y coordinates of a P-256 public key.
func NewAsymmetricPolicy(jwkJSON string) (*AsymmetricPolicy, error) {
	var jwk JWK
	if err := json.Unmarshal([]byte(jwkJSON), &jwk); err != nil {
		return nil, configurationMissing("invalid JWK JSON", err)
	}

	key, err := jwkToECDSAPublicKey(jwk)
	if err != nil {
		return nil, err
	}

	return &AsymmetricPolicy{Key: key}, nil
}

// NewSymmetricPolicy builds an HS256 policy from a shared secret.
func NewSymmetricPolicy(secret string) (*SymmetricPolicy, error) {
	if secret == "" {
		return nil, configurationMissing("empty shared secret", nil)
	}
	return &SymmetricPolicy{Secret: []byte(secret)}, nil
}

// jwkToECDSAPublicKey converts a JWK to an ECDSA public key on P-256
func jwkToECDSAPublicKey(jwk JWK) (*ecdsa.PublicKey, error) {
	if jwk.Kty != "" && jwk.Kty != "EC" {
		return nil, configurationMissing(fmt.Sprintf("unsupported key type %q", jwk.Kty), nil)
	}
	if jwk.Crv != "" && jwk.Crv != "P-256" {
		return nil, configurationMissing(fmt.Sprintf("unsupported curve %q", jwk.Crv), nil)
	}
	if jwk.X == "" || jwk.Y == "" {
		return nil, configurationMissing("JWK missing x or y coordinate", nil)
	}

	xBytes, err := decodeCoordinate(jwk.X)
	if err != nil {
		return nil, configurationMissing("failed to decode x coordinate", err)
	}
	yBytes, err := decodeCoordinate(jwk.Y)
	if err != nil {
		return nil, configurationMissing("failed to decode y coordinate", err)
	}

	// Uncompressed SEC 1 point: 0x04 || X || Y
	point := make([]byte, 1+2*p256CoordinateSize)
	point[0] = 4
	copy(point[1+p256CoordinateSize-len(xBytes):1+p256CoordinateSize], xBytes)
	copy(point[1+2*p256CoordinateSize-len(yBytes):], yBytes)

	if _, err := ecdh.P256().NewPublicKey(point); err != nil {
		return nil, configurationMissing("JWK point is not on P-256", err)
	}

	return &ecdsa.PublicKey{
		Curve: elliptic.P256(),
		X:     new(big.Int).SetBytes(xBytes),
		Y:     new(big.Int).SetBytes(yBytes),
	}, nil
}

func decodeCoordinate(s string) ([]byte, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return nil, err
	}
	if len(b) == 0 || len(b) > p256CoordinateSize {
		return nil, fmt.Errorf("coordinate length %d out of range", len(b))
	}
	return b, nil
}

func configurationMissing(message string, err error) error {
	return services.NewDomainError(services.KindConfigurationMissing, message, err)
}
