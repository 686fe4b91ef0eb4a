package supabase

import (
	"encoding/json"
)

const (
	errorCodeEmailNotConfirmed = "email_not_confirmed"
	errorCodeOTPExpired        = "otp_expired"

	defaultSignUpFailure = "Sign up failed"
)

// upstreamError is the error body GoTrue returns. Different endpoints and
// versions fill different fields.
type upstreamError struct {
	ErrorCode        string `json:"error_code"`
	Msg              string `json:"msg"`
	ErrorDescription string `json:"error_description"`
	Message          string `json:"message"`
}

// parseUpstreamError decodes an error body. Undecodable bodies yield the
// zero value.
func parseUpstreamError(body []byte) upstreamError {
	var e upstreamError
	_ = json.Unmarshal(body, &e)
	return e
}

// message picks the first non-empty of msg, error_description and message.
func (e upstreamError) message() string {
	for _, m := range []string{e.Msg, e.ErrorDescription, e.Message} {
		if m != "" {
			return m
		}
	}
	return ""
}
