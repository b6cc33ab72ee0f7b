package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoPrincipal(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := PrincipalFromContext(r.Context())
		require.True(t, ok)
		w.Write([]byte(p.UserID))
	})
}

func validator(ctx context.Context, token string) (Principal, error) {
	if token == "good" {
		return Principal{UserID: "u1", Nickname: "alice"}, nil
	}
	return Principal{}, assert.AnError
}

func TestAuth(t *testing.T) {
	h := NewAuth(validator, echoPrincipal(t))

	tests := []struct {
		header string
		code   int
	}{
		{"", http.StatusForbidden},
		{"Basic Zm9vOmJhcg==", http.StatusForbidden},
		{"Bearer ", http.StatusForbidden},
		{"Bearer bad", http.StatusForbidden},
		{"Bearer good", http.StatusOK},
		{"bearer  good ", http.StatusOK},
	}

	for _, tc := range tests {
		r := httptest.NewRequest(http.MethodGet, "/v1.0/user/devices", nil)
		if tc.header != "" {
			r.Header.Set("Authorization", tc.header)
		}
		w := httptest.NewRecorder()

		h.ServeHTTP(w, r)
		assert.Equal(t, tc.code, w.Code, tc.header)
		if tc.code == http.StatusOK {
			assert.Equal(t, "u1", w.Body.String())
		}
	}
}

func TestCorrelation(t *testing.T) {
	var seen string
	h := NewCorrelation("X-Request-Id", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestID(r.Context())
	}))

	r := httptest.NewRequest(http.MethodPost, "/", nil)
	r.Header.Set("X-Request-Id", "ff36a3cc-ec34-11e6-b1a0-64510650abcf")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, "ff36a3cc-ec34-11e6-b1a0-64510650abcf", seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-Id"))

	for _, bad := range []string{"", "a b c", "<script>"} {
		r = httptest.NewRequest(http.MethodPost, "/", nil)
		if bad != "" {
			r.Header.Set("X-Request-Id", bad)
		}
		w = httptest.NewRecorder()
		h.ServeHTTP(w, r)

		assert.NotEqual(t, bad, seen)
		assert.Len(t, seen, 36, "a uuid replaces %q", bad)
		assert.Equal(t, seen, w.Header().Get("X-Request-Id"))
	}
}

func TestRecoveryAndAuditUser(t *testing.T) {
	h := NewLogging(false, NewRecovery(NewAuth(validator, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler bug")
	}))))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestPrincipalHolder(t *testing.T) {
	holder := &principalHolder{}
	ctx := withPrincipalHolder(context.Background(), holder)

	ctx = WithPrincipal(ctx, Principal{UserID: "u7"})
	assert.Equal(t, "u7", holder.userID())

	p, ok := PrincipalFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u7", p.UserID)

	_, ok = PrincipalFromContext(context.Background())
	assert.False(t, ok)
}

func TestRedactedHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Authorization", "Bearer secret")
	h.Set("X-Request-Id", "abc")

	out := redactedHeaders(h)
	assert.Equal(t, "Bearer [redacted]", out.Get("Authorization"))
	assert.Equal(t, "abc", out.Get("X-Request-Id"))
	assert.Equal(t, "Bearer secret", h.Get("Authorization"), "input untouched")
}

func TestLoggingSetsTxnID(t *testing.T) {
	h := NewLogging(true, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusTeapot, w.Code)
	assert.Len(t, w.Header().Get("X-Txn-ID"), 36)
	assert.Equal(t, "short and stout", w.Body.String())
}

func TestRecoveryAfterWrite(t *testing.T) {
	h := NewRecovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		panic("late failure")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestCorsPreflightSkipsAuth(t *testing.T) {
	called := false
	h := NewCors(CorsOptions([]string{"https://example.org"}), NewAuth(validator, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})))

	r := httptest.NewRequest(http.MethodOptions, "/v1.0/user/devices", nil)
	r.Header.Set("Origin", "https://example.org")
	r.Header.Set("Access-Control-Request-Method", http.MethodGet)
	r.Header.Set("Access-Control-Request-Headers", "Authorization")
	w := httptest.NewRecorder()

	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://example.org", w.Header().Get("Access-Control-Allow-Origin"))
	assert.False(t, called)

	r = httptest.NewRequest(http.MethodGet, "/v1.0/user/devices", nil)
	r.Header.Set("Origin", "https://example.org")
	r.Header.Set("Authorization", "Bearer good")
	w = httptest.NewRecorder()

	h.ServeHTTP(w, r)
	assert.True(t, called)
	assert.Equal(t, "https://example.org", w.Header().Get("Access-Control-Allow-Origin"))
}
