package middlewares

import (
	"context"
	"net/http"
	"regexp"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

var correlationIDRegexp = regexp.MustCompile(`^[\w-]{3,64}$`)

type correlationKey int

const requestIDKey correlationKey = iota

// RequestID returns the correlation ID of the request, or ""
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithRequestID returns a context carrying a correlation ID
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

type CorrelationMw struct {
	headerName string
	next       http.Handler
}

func NewCorrelationMw(headerName string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewCorrelation(headerName, next)
	}
}

func NewCorrelation(headerName string, next http.Handler) *CorrelationMw {
	return &CorrelationMw{headerName: headerName, next: next}
}

// ServeHTTP copies the correlation header from the request to the response
// and the request context.  A fresh ID is made when none or a malformed one
// was supplied.
func (mw *CorrelationMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	id, ok := mw.validateID(r)
	if !ok {
		id = uuid.New().String()
	}

	rw.Header().Set(mw.headerName, id)
	mw.next.ServeHTTP(rw, r.WithContext(WithRequestID(r.Context(), id)))
}

func (mw *CorrelationMw) validateID(r *http.Request) (string, bool) {
	id := r.Header.Get(mw.headerName)
	if id == "" {
		return "", false
	}

	if !correlationIDRegexp.MatchString(id) {
		logging.Logger(r.Context()).Warnf("ignoring malformed %s header", mw.headerName)
		return "", false
	}

	return id, true
}
