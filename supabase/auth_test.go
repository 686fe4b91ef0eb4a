package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teftar/api/services"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testAnonKey = "anon-key"

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	APIKey string
	Body   map[string]any
}

// Test helper that stands in for the GoTrue API and records the last request
type fakeGoTrue struct {
	*httptest.Server
	mu   sync.Mutex
	last capturedRequest
	hits int
}

func newFakeGoTrue(t *testing.T, status int, body string) *fakeGoTrue {
	f := &fakeGoTrue{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var decoded map[string]any
		_ = json.Unmarshal(raw, &decoded)

		f.mu.Lock()
		f.hits++
		f.last = capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			APIKey: r.Header.Get("apikey"),
			Body:   decoded,
		}
		f.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.Close)
	return f
}

func (f *fakeGoTrue) lastRequest() capturedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

func (f *fakeGoTrue) hitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits
}

type recordedCall struct {
	operation string
	outcome   string
}

type recordingObserver struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (o *recordingObserver) ObserveUpstreamCall(operation, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, recordedCall{operation: operation, outcome: outcome})
}

func newTestClient(t *testing.T, url string, opts ...ClientOption) *Client {
	client, err := NewClient(Config{
		URL:         url,
		AnonKey:     testAnonKey,
		RedirectURL: "http://localhost:5173/auth/callback",
		Timeout:     2 * time.Second,
	}, zap.NewNop(), opts...)
	require.NoError(t, err)
	return client
}

const fullSession = `{
	"access_token": "access-123",
	"refresh_token": "refresh-456",
	"token_type": "bearer",
	"user": {"id": "7d0e5b0c-7d4e-4a54-9a2b-3a8f1c9e2b11", "email": "user@example.com"}
}`

func TestNewClient(t *testing.T) {
	t.Run("requires URL", func(t *testing.T) {
		_, err := NewClient(Config{AnonKey: testAnonKey}, zap.NewNop())
		assert.Error(t, err)
	})

	t.Run("requires API key", func(t *testing.T) {
		_, err := NewClient(Config{URL: "http://localhost"}, zap.NewNop())
		assert.Error(t, err)
	})
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("full token set yields session", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, fullSession)
		client := newTestClient(t, server.URL+"/")

		result, err := client.SignUp(ctx, "user@example.com", "hunter22", client.RedirectURL())
		require.NoError(t, err)
		require.NotNil(t, result.Session)
		assert.False(t, result.ConfirmationPending)
		assert.Equal(t, "access-123", result.Session.AccessToken)
		assert.Equal(t, "refresh-456", result.Session.RefreshToken)
		assert.Equal(t, "user@example.com", result.Session.User.Email)

		req := server.lastRequest()
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "/auth/v1/signup", req.Path)
		assert.Equal(t, testAnonKey, req.APIKey)
		assert.Equal(t, "user@example.com", req.Body["email"])
		assert.Equal(t, "hunter22", req.Body["password"])
		options := req.Body["options"].(map[string]any)
		assert.Equal(t, "http://localhost:5173/auth/callback", options["email_redirect_to"])
	})

	t.Run("bare 200 yields confirmation pending", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, `{"id": "7d0e5b0c-7d4e-4a54-9a2b-3a8f1c9e2b11", "email": "user@example.com"}`)
		client := newTestClient(t, server.URL)

		result, err := client.SignUp(ctx, "user@example.com", "hunter22", client.RedirectURL())
		require.NoError(t, err)
		assert.True(t, result.ConfirmationPending)
		assert.Nil(t, result.Session)
	})

	t.Run("tokens with incomplete user are malformed", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, `{"access_token": "a", "refresh_token": "r", "user": {"id": "u1"}}`)
		client := newTestClient(t, server.URL)

		_, err := client.SignUp(ctx, "user@example.com", "hunter22", client.RedirectURL())
		assert.ErrorIs(t, err, services.ErrMalformedUpstreamResponse)
	})

	t.Run("non-JSON success body is malformed", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, `<html>ok</html>`)
		client := newTestClient(t, server.URL)

		_, err := client.SignUp(ctx, "user@example.com", "hunter22", client.RedirectURL())
		assert.ErrorIs(t, err, services.ErrMalformedUpstreamResponse)
	})

	rejections := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"msg wins", http.StatusUnprocessableEntity, `{"msg": "User already registered", "error_description": "desc", "message": "m"}`, "User already registered"},
		{"error_description fallback", http.StatusBadRequest, `{"error_description": "Password should be at least 6 characters", "message": "m"}`, "Password should be at least 6 characters"},
		{"message fallback", http.StatusBadRequest, `{"message": "Signups not allowed for this instance"}`, "Signups not allowed for this instance"},
		{"default message", http.StatusBadRequest, `{}`, "Sign up failed"},
		{"unparsable body", http.StatusBadGateway, `upstream exploded`, "Sign up failed"},
	}

	for _, tt := range rejections {
		t.Run("rejected: "+tt.name, func(t *testing.T) {
			server := newFakeGoTrue(t, tt.status, tt.body)
			client := newTestClient(t, server.URL)

			_, err := client.SignUp(ctx, "user@example.com", "hunter22", client.RedirectURL())
			require.Error(t, err)
			assert.Equal(t, services.KindRejected, services.KindOf(err))
			assert.Equal(t, tt.wantMsg, services.MessageOf(err))
		})
	}
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, fullSession)
		client := newTestClient(t, server.URL)

		session, err := client.SignIn(ctx, "user@example.com", "hunter22")
		require.NoError(t, err)
		assert.Equal(t, "access-123", session.AccessToken)
		assert.Equal(t, "7d0e5b0c-7d4e-4a54-9a2b-3a8f1c9e2b11", session.User.ID)

		req := server.lastRequest()
		assert.Equal(t, "/auth/v1/token", req.Path)
		assert.Equal(t, "grant_type=password", req.Query)
		assert.Equal(t, testAnonKey, req.APIKey)
	})

	tests := []struct {
		name     string
		status   int
		body     string
		wantKind services.ErrorKind
	}{
		{"email not confirmed", http.StatusUnauthorized, `{"error_code": "email_not_confirmed", "msg": "Email not confirmed"}`, services.KindEmailNotConfirmed},
		{"email not confirmed on 400", http.StatusBadRequest, `{"error_code": "email_not_confirmed"}`, services.KindEmailNotConfirmed},
		{"401 without code", http.StatusUnauthorized, `{}`, services.KindInvalidCredentials},
		{"400 invalid grant", http.StatusBadRequest, `{"error_code": "invalid_credentials", "msg": "Invalid login credentials"}`, services.KindInvalidCredentials},
		{"server error", http.StatusInternalServerError, `{"msg": "boom"}`, services.KindUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{"msg": "slow down"}`, services.KindUnavailable},
		{"missing refresh token", http.StatusOK, `{"access_token": "a", "user": {"id": "u", "email": "e"}}`, services.KindMalformedUpstreamResponse},
		{"missing user", http.StatusOK, `{"access_token": "a", "refresh_token": "r"}`, services.KindMalformedUpstreamResponse},
		{"non-JSON success", http.StatusOK, `nope`, services.KindMalformedUpstreamResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeGoTrue(t, tt.status, tt.body)
			client := newTestClient(t, server.URL)

			session, err := client.SignIn(ctx, "user@example.com", "hunter22")
			assert.Nil(t, session)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, services.KindOf(err))
		})
	}
}

func TestVerifyOTP(t *testing.T) {
	ctx := context.Background()

	t.Run("success without email", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, fullSession)
		client := newTestClient(t, server.URL)

		session, err := client.VerifyOTP(ctx, "hash-abc", "signup", nil)
		require.NoError(t, err)
		assert.Equal(t, "refresh-456", session.RefreshToken)

		req := server.lastRequest()
		assert.Equal(t, "/auth/v1/verify", req.Path)
		assert.Equal(t, "hash-abc", req.Body["token_hash"])
		assert.Equal(t, "signup", req.Body["type"])
		_, hasEmail := req.Body["email"]
		assert.False(t, hasEmail)
	})

	t.Run("email included when present", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, fullSession)
		client := newTestClient(t, server.URL)
		email := "user@example.com"

		_, err := client.VerifyOTP(ctx, "hash-abc", "email", &email)
		require.NoError(t, err)
		assert.Equal(t, email, server.lastRequest().Body["email"])
	})

	t.Run("empty email omitted", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, fullSession)
		client := newTestClient(t, server.URL)
		empty := ""

		_, err := client.VerifyOTP(ctx, "hash-abc", "email", &empty)
		require.NoError(t, err)
		_, hasEmail := server.lastRequest().Body["email"]
		assert.False(t, hasEmail)
	})

	tests := []struct {
		name     string
		status   int
		body     string
		wantKind services.ErrorKind
	}{
		{"expired link", http.StatusBadRequest, `{"error_code": "otp_expired", "msg": "Token has expired or is invalid"}`, services.KindExpiredToken},
		{"expired link on 403", http.StatusForbidden, `{"error_code": "otp_expired"}`, services.KindExpiredToken},
		{"other code", http.StatusBadRequest, `{"error_code": "bad_otp"}`, services.KindInvalidToken},
		{"no body", http.StatusNotFound, ``, services.KindInvalidToken},
		{"server error", http.StatusInternalServerError, `{"msg": "boom"}`, services.KindInvalidToken},
		{"incomplete session", http.StatusOK, `{"access_token": "a", "refresh_token": "r", "user": {"email": "e"}}`, services.KindMalformedUpstreamResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newFakeGoTrue(t, tt.status, tt.body)
			client := newTestClient(t, server.URL)

			_, err := client.VerifyOTP(ctx, "hash-abc", "signup", nil)
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, services.KindOf(err))
		})
	}
}

func TestTransportFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable upstream is unavailable", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, fullSession)
		url := server.URL
		server.Close()

		client := newTestClient(t, url)

		_, err := client.SignUp(ctx, "user@example.com", "hunter22", "")
		assert.ErrorIs(t, err, services.ErrUnavailable)

		_, err = client.SignIn(ctx, "user@example.com", "hunter22")
		assert.ErrorIs(t, err, services.ErrUnavailable)

		_, err = client.VerifyOTP(ctx, "hash", "signup", nil)
		assert.ErrorIs(t, err, services.ErrUnavailable)
	})

	t.Run("slow upstream times out without retry", func(t *testing.T) {
		var hits int
		var mu sync.Mutex
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			hits++
			mu.Unlock()
			time.Sleep(300 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client, err := NewClient(Config{URL: server.URL, AnonKey: testAnonKey, Timeout: 50 * time.Millisecond}, zap.NewNop())
		require.NoError(t, err)

		_, err = client.SignIn(ctx, "user@example.com", "hunter22")
		assert.ErrorIs(t, err, services.ErrUnavailable)

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 1, hits)
	})

	t.Run("cancelled context is unavailable", func(t *testing.T) {
		server := newFakeGoTrue(t, http.StatusOK, fullSession)
		client := newTestClient(t, server.URL)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := client.SignIn(cancelled, "user@example.com", "hunter22")
		assert.ErrorIs(t, err, services.ErrUnavailable)
		assert.Equal(t, 0, server.hitCount())
	})
}

func TestObserver(t *testing.T) {
	server := newFakeGoTrue(t, http.StatusUnauthorized, `{}`)
	observer := &recordingObserver{}
	client := newTestClient(t, server.URL, WithObserver(observer))

	_, err := client.SignIn(context.Background(), "user@example.com", "wrong")
	require.Error(t, err)

	require.Len(t, observer.calls, 1)
	assert.Equal(t, recordedCall{operation: "signin", outcome: outcomeClientError}, observer.calls[0])
}

func TestRedactEmail(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"user@example.com", "u***@example.com"},
		{"a@b.io", "a***@b.io"},
		{"@example.com", "***"},
		{"not-an-email", "***"},
		{"", "***"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, redactEmail(tt.in))
		})
	}
}

func TestLogsDoNotCarryEmail(t *testing.T) {
	server := newFakeGoTrue(t, http.StatusBadRequest, `{"error_code":"invalid_credentials","msg":"Invalid login credentials"}`)
	core, logs := observer.New(zapcore.DebugLevel)

	client, err := NewClient(Config{URL: server.URL, AnonKey: testAnonKey}, zap.New(core))
	require.NoError(t, err)

	_, err = client.SignIn(context.Background(), "someone@example.com", "pw")
	require.Error(t, err)
	_, _ = client.SignUp(context.Background(), "someone@example.com", "pw", "")

	require.NotEmpty(t, logs.All())
	for _, entry := range logs.All() {
		for _, field := range entry.Context {
			assert.NotContains(t, field.String, "someone@example.com", "entry %q", entry.Message)
		}
		if entry.Message == "signing in" || entry.Message == "signing up" {
			assert.Equal(t, zapcore.DebugLevel, entry.Level)
		}
	}
}
