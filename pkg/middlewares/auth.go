package middlewares

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/mux"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

// Principal is the authenticated caller of a request
type Principal struct {
	UserID   string
	Nickname string
}

// TokenValidatorFunc maps a bearer token to its owner.  An error rejects
// the request.
type TokenValidatorFunc func(ctx context.Context, token string) (Principal, error)

type authKey int

const (
	principalKey authKey = iota
	principalHolderKey
)

// PrincipalFromContext returns the caller recorded by the auth middleware
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey).(Principal)
	return p, ok
}

// WithPrincipal returns a context carrying an authenticated caller
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if h, ok := ctx.Value(principalHolderKey).(*principalHolder); ok {
		h.set(p)
	}

	return context.WithValue(ctx, principalKey, p)
}

// principalHolder lets the audit log see a caller that was authenticated
// further down the chain
type principalHolder struct {
	mu sync.Mutex
	p  Principal
}

func withPrincipalHolder(ctx context.Context, h *principalHolder) context.Context {
	return context.WithValue(ctx, principalHolderKey, h)
}

func (h *principalHolder) set(p Principal) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.p = p
}

func (h *principalHolder) userID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.p.UserID
}

type AuthMw struct {
	validate TokenValidatorFunc
	next     http.Handler
}

func NewAuthMw(validate TokenValidatorFunc) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewAuth(validate, next)
	}
}

func NewAuth(validate TokenValidatorFunc, next http.Handler) *AuthMw {
	return &AuthMw{validate: validate, next: next}
}

// ServeHTTP rejects requests without a valid bearer token with 403
func (mw *AuthMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	token, ok := bearerToken(r)
	if !ok {
		logging.Logger(r.Context()).Warn("request without bearer token")
		http.Error(rw, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	p, err := mw.validate(r.Context(), token)
	if err != nil {
		logging.Logger(r.Context()).WithError(err).Warn("rejecting bearer token")
		http.Error(rw, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		return
	}

	mw.next.ServeHTTP(rw, r.WithContext(WithPrincipal(r.Context(), p)))
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(h[7:])
	return token, token != ""
}
