package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/teftar/api/auth"
	"github.com/teftar/api/services"
	"github.com/teftar/api/supabase"
	"go.uber.org/zap"
)

// MockAccountService is a mock implementation of AccountService
type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) SignUp(ctx context.Context, req auth.SignUpRequest) (*supabase.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supabase.Session), args.Error(1)
}

func (m *MockAccountService) SignIn(ctx context.Context, req auth.SignInRequest) (*supabase.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supabase.Session), args.Error(1)
}

func (m *MockAccountService) VerifyEmail(ctx context.Context, req auth.VerifyEmailRequest) (*supabase.Session, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*supabase.Session), args.Error(1)
}

var session = &supabase.Session{
	AccessToken:  "access-token",
	RefreshToken: "refresh-token",
	User: supabase.User{
		ID:    "7d0e5b0c-7d4e-4a54-9a2b-3a8f1c9e2b11",
		Email: "user@example.com",
	},
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	handler(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body["error"]
}

func TestAuthHandler_HandleSignUp(t *testing.T) {
	logger := zap.NewNop()

	t.Run("returns session", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		req := auth.SignUpRequest{Email: "user@example.com", Password: "hunter22"}
		mockService.On("SignUp", mock.Anything, req).Return(session, nil)

		w := postJSON(t, handler.HandleSignUp, "/auth/signup", req)

		assert.Equal(t, http.StatusOK, w.Code)

		var got map[string]interface{}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, "access-token", got["access_token"])
		assert.Equal(t, "refresh-token", got["refresh_token"])
		user := got["user"].(map[string]interface{})
		assert.Equal(t, "user@example.com", user["email"])
		mockService.AssertExpectations(t)
	})

	t.Run("confirmation pending returns 202", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		mockService.On("SignUp", mock.Anything, mock.Anything).Return(nil, services.ErrConfirmationPending)

		w := postJSON(t, handler.HandleSignUp, "/auth/signup", auth.SignUpRequest{Email: "user@example.com", Password: "hunter22"})

		assert.Equal(t, http.StatusAccepted, w.Code)
		assert.Equal(t, services.MsgConfirmationPending, errorBody(t, w))
	})

	t.Run("upstream rejection returns 400 with its message", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		mockService.On("SignUp", mock.Anything, mock.Anything).Return(nil, services.Rejected("User already registered"))

		w := postJSON(t, handler.HandleSignUp, "/auth/signup", auth.SignUpRequest{Email: "user@example.com", Password: "hunter22"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "User already registered", errorBody(t, w))
	})

	t.Run("invalid email fails validation", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		w := postJSON(t, handler.HandleSignUp, "/auth/signup", auth.SignUpRequest{Email: "nope", Password: "hunter22"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation error: email must be a valid email", errorBody(t, w))
		mockService.AssertNotCalled(t, "SignUp", mock.Anything, mock.Anything)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		w := postJSON(t, handler.HandleSignUp, "/auth/signup", "{not json")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", errorBody(t, w))
	})
}

func TestAuthHandler_HandleSignIn(t *testing.T) {
	logger := zap.NewNop()
	req := auth.SignInRequest{Email: "user@example.com", Password: "hunter22"}

	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{"invalid credentials", services.ErrInvalidCredentials, http.StatusUnauthorized, services.MsgInvalidCredentials},
		{"email not confirmed", services.ErrEmailNotConfirmed, http.StatusUnauthorized, services.MsgEmailNotConfirmed},
		{"malformed upstream", services.ErrMalformedUpstreamResponse, http.StatusInternalServerError, services.MsgInternal},
		{"unavailable", services.Unavailable("status 503", nil), http.StatusInternalServerError, services.MsgServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockAccountService)
			handler := NewAuthHandler(mockService, logger)
			mockService.On("SignIn", mock.Anything, req).Return(nil, tt.err)

			w := postJSON(t, handler.HandleSignIn, "/auth/signin", req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, tt.expectedMessage, errorBody(t, w))
		})
	}

	t.Run("success", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)
		mockService.On("SignIn", mock.Anything, req).Return(session, nil)

		w := postJSON(t, handler.HandleSignIn, "/auth/signin", req)

		assert.Equal(t, http.StatusOK, w.Code)
		var got supabase.Session
		require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
		assert.Equal(t, *session, got)
	})

	t.Run("missing password", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		w := postJSON(t, handler.HandleSignIn, "/auth/signin", map[string]string{"email": "user@example.com"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation error: password is required", errorBody(t, w))
	})
}

func TestAuthHandler_HandleVerifyEmail(t *testing.T) {
	logger := zap.NewNop()

	t.Run("passes type and optional email", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		mockService.On("VerifyEmail", mock.Anything, mock.MatchedBy(func(req auth.VerifyEmailRequest) bool {
			return req.Token == "hash" && req.Type == "signup" && req.Email != nil && *req.Email == "user@example.com"
		})).Return(session, nil)

		w := postJSON(t, handler.HandleVerifyEmail, "/auth/verify-email",
			`{"token":"hash","type":"signup","email":"user@example.com"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("empty email is forwarded as absent", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		mockService.On("VerifyEmail", mock.Anything, mock.MatchedBy(func(req auth.VerifyEmailRequest) bool {
			return req.Token == "t" && req.Type == "signup" && req.Email == nil
		})).Return(session, nil)

		w := postJSON(t, handler.HandleVerifyEmail, "/auth/verify-email",
			`{"token":"t","type":"signup","email":""}`)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("accepts type_ key", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		mockService.On("VerifyEmail", mock.Anything, mock.MatchedBy(func(req auth.VerifyEmailRequest) bool {
			return req.Token == "hash" && req.Type == "email"
		})).Return(session, nil)

		w := postJSON(t, handler.HandleVerifyEmail, "/auth/verify-email", `{"token":"hash","type_":"email"}`)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("invalid non-empty email", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		w := postJSON(t, handler.HandleVerifyEmail, "/auth/verify-email",
			`{"token":"hash","type":"signup","email":"not-an-email"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "VerifyEmail", mock.Anything, mock.Anything)
	})

	t.Run("expired link", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)
		mockService.On("VerifyEmail", mock.Anything, mock.Anything).Return(nil, services.ErrExpiredToken)

		w := postJSON(t, handler.HandleVerifyEmail, "/auth/verify-email", `{"token":"stale","type":"signup"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, services.MsgExpiredLink, errorBody(t, w))
	})

	t.Run("invalid link", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)
		mockService.On("VerifyEmail", mock.Anything, mock.Anything).Return(nil, services.ErrInvalidToken)

		w := postJSON(t, handler.HandleVerifyEmail, "/auth/verify-email", `{"token":"bogus","type":"signup"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, services.MsgInvalidLink, errorBody(t, w))
	})

	t.Run("missing type", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAuthHandler(mockService, logger)

		w := postJSON(t, handler.HandleVerifyEmail, "/auth/verify-email", `{"token":"hash"}`)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Validation error: type is required", errorBody(t, w))
		mockService.AssertNotCalled(t, "VerifyEmail", mock.Anything, mock.Anything)
	})
}
