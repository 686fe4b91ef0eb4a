package services

import "net/http"

// User-facing messages.
const (
	MsgInvalidOrExpiredToken = "Invalid or expired token"
	MsgServerConfiguration   = "Server configuration error"
	MsgEmailNotConfirmed     = "Please confirm your email address before signing in. Check your inbox for the confirmation link."
	MsgInvalidCredentials    = "Invalid email or password. Please try again."
	MsgInvalidLink           = "The confirmation link is invalid. Please sign up again."
	MsgExpiredLink           = "The confirmation link has expired. Please sign up again to receive a new link."
	MsgConfirmationPending   = "Account created! Please check your email to confirm your account before signing in."
	MsgServiceUnavailable    = "Unable to reach the authentication service. Please try again later."
	MsgInternal              = "An internal error occurred"
)

// errorMapping is the wire representation of an error kind
type errorMapping struct {
	Status  int
	Message string
}

// kindMappings is the single source of truth for kind to status translation.
// A Rejected error carries its own message.
var kindMappings = map[ErrorKind]errorMapping{
	KindMissingCredential:    {http.StatusUnauthorized, MsgInvalidOrExpiredToken},
	KindMalformedCredential:  {http.StatusUnauthorized, MsgInvalidOrExpiredToken},
	KindSignatureInvalid:     {http.StatusUnauthorized, MsgInvalidOrExpiredToken},
	KindClaimInvalid:         {http.StatusUnauthorized, MsgInvalidOrExpiredToken},
	KindInvalidSubject:       {http.StatusUnauthorized, MsgInvalidOrExpiredToken},
	KindConfigurationMissing: {http.StatusInternalServerError, MsgServerConfiguration},

	KindEmailNotConfirmed:         {http.StatusUnauthorized, MsgEmailNotConfirmed},
	KindInvalidCredentials:        {http.StatusUnauthorized, MsgInvalidCredentials},
	KindInvalidToken:              {http.StatusUnauthorized, MsgInvalidLink},
	KindExpiredToken:              {http.StatusUnauthorized, MsgExpiredLink},
	KindConfirmationPending:       {http.StatusAccepted, MsgConfirmationPending},
	KindRejected:                  {http.StatusBadRequest, ""},
	KindMalformedUpstreamResponse: {http.StatusInternalServerError, MsgInternal},
	KindUnavailable:               {http.StatusInternalServerError, MsgServiceUnavailable},
}

// StatusForError returns the HTTP status and client message for err.
// Errors outside the taxonomy map to 500.
func StatusForError(err error) (int, string) {
	kind := KindOf(err)
	mapping, ok := kindMappings[kind]
	if !ok {
		return http.StatusInternalServerError, MsgInternal
	}
	if kind == KindRejected {
		msg := MessageOf(err)
		if msg == "" {
			msg = "Request rejected"
		}
		return mapping.Status, msg
	}
	return mapping.Status, mapping.Message
}
