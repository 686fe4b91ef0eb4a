package services

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories produced by token
// verification and the identity proxy.
type ErrorKind string

const (
	// Token verification
	KindMissingCredential    ErrorKind = "missing_credential"
	KindMalformedCredential  ErrorKind = "malformed_credential"
	KindSignatureInvalid     ErrorKind = "signature_invalid"
	KindClaimInvalid         ErrorKind = "claim_invalid"
	KindInvalidSubject       ErrorKind = "invalid_subject"
	KindConfigurationMissing ErrorKind = "configuration_missing"

	// Identity proxy
	KindEmailNotConfirmed         ErrorKind = "email_not_confirmed"
	KindInvalidCredentials        ErrorKind = "invalid_credentials"
	KindInvalidToken              ErrorKind = "invalid_token"
	KindExpiredToken              ErrorKind = "expired_token"
	KindConfirmationPending       ErrorKind = "confirmation_pending"
	KindRejected                  ErrorKind = "rejected"
	KindMalformedUpstreamResponse ErrorKind = "malformed_upstream_response"
	KindUnavailable               ErrorKind = "unavailable"
)

// DomainError carries a kind, a message and the underlying cause.
// For KindRejected the message is user-facing and is returned verbatim;
// for every other kind it is diagnostic only.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError of the same kind.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, message string, err error) *DomainError {
	return &DomainError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Sentinels for errors.Is comparisons. Only the kind is compared.
var (
	ErrMissingCredential    = NewDomainError(KindMissingCredential, "missing credential", nil)
	ErrMalformedCredential  = NewDomainError(KindMalformedCredential, "malformed credential", nil)
	ErrSignatureInvalid     = NewDomainError(KindSignatureInvalid, "signature invalid", nil)
	ErrClaimInvalid         = NewDomainError(KindClaimInvalid, "claim invalid", nil)
	ErrInvalidSubject       = NewDomainError(KindInvalidSubject, "invalid subject", nil)
	ErrConfigurationMissing = NewDomainError(KindConfigurationMissing, "configuration missing", nil)

	ErrEmailNotConfirmed         = NewDomainError(KindEmailNotConfirmed, "email not confirmed", nil)
	ErrInvalidCredentials        = NewDomainError(KindInvalidCredentials, "invalid credentials", nil)
	ErrInvalidToken              = NewDomainError(KindInvalidToken, "invalid token", nil)
	ErrExpiredToken              = NewDomainError(KindExpiredToken, "expired token", nil)
	ErrConfirmationPending       = NewDomainError(KindConfirmationPending, "confirmation pending", nil)
	ErrRejected                  = NewDomainError(KindRejected, "rejected", nil)
	ErrMalformedUpstreamResponse = NewDomainError(KindMalformedUpstreamResponse, "malformed upstream response", nil)
	ErrUnavailable               = NewDomainError(KindUnavailable, "identity provider unavailable", nil)
)

// KindOf returns the ErrorKind of a domain error, or empty string if err is
// not a domain error.
func KindOf(err error) ErrorKind {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Kind
	}
	return ""
}

// MessageOf returns the message of a domain error, or empty string.
func MessageOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return ""
}

// IsVerificationError checks if an error came out of token verification
func IsVerificationError(err error) bool {
	switch KindOf(err) {
	case KindMissingCredential, KindMalformedCredential, KindSignatureInvalid,
		KindClaimInvalid, KindInvalidSubject:
		return true
	}
	return false
}

// IsInternalError checks if an error should be hidden from clients
func IsInternalError(err error) bool {
	switch KindOf(err) {
	case KindMalformedUpstreamResponse, KindUnavailable, KindConfigurationMissing:
		return true
	}
	return false
}

// Rejected builds the user-facing rejection returned by the identity provider.
func Rejected(message string) error {
	return NewDomainError(KindRejected, message, nil)
}

// Unavailable wraps a transport or upstream failure.
func Unavailable(detail string, err error) error {
	return NewDomainError(KindUnavailable, detail, err)
}
