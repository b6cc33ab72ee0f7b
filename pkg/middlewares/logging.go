package middlewares

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

// statusRecorder captures the status and size of a response, and the body
// too in request logging mode
type statusRecorder struct {
	http.ResponseWriter

	ctx           context.Context
	status        int
	size          int
	logBody       bool
	loggedHeaders bool
}

func (rw *statusRecorder) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	if rw.logBody && !rw.loggedHeaders {
		logging.Logger(rw.ctx).Debugf("response headers: %+v", rw.Header())
		rw.loggedHeaders = true
	}

	n, err := rw.ResponseWriter.Write(b)
	rw.size += n

	if err == nil && rw.logBody {
		logging.Logger(rw.ctx).Debugf("response %d bytes: %s", n, b[:n])
	}
	return n, err
}

// bodyLogger logs the request body as the handler reads it
type bodyLogger struct {
	io.ReadCloser
	ctx context.Context
}

func (bl bodyLogger) Read(b []byte) (int, error) {
	n, err := bl.ReadCloser.Read(b)
	if n > 0 {
		logging.Logger(bl.ctx).Debugf("request %d bytes: %s", n, b[:n])
	}

	return n, err
}

// redactedHeaders hides the bearer token from request logs
func redactedHeaders(h http.Header) http.Header {
	out := h.Clone()
	if out.Get("Authorization") != "" {
		out.Set("Authorization", "Bearer [redacted]")
	}
	return out
}

type LoggingMw struct {
	logRequests bool
	next        http.Handler
}

func NewLoggingMw(reqLogging bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewLogging(reqLogging, next)
	}
}

func NewLogging(reqLogging bool, next http.Handler) *LoggingMw {
	return &LoggingMw{next: next, logRequests: reqLogging}
}

// ServeHTTP tags the request with a transaction ID and writes one audit
// line per request once the handler is done
func (mw *LoggingMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	txnID := uuid.New().String()
	start := time.Now()

	// before anything writes the body
	rw.Header().Set("X-Txn-ID", txnID)

	// the auth middleware further down records the caller in the holder
	holder := &principalHolder{}
	ctx := withPrincipalHolder(logging.WithTxnID(r.Context(), txnID), holder)
	r = r.WithContext(ctx)

	if mw.logRequests {
		logging.Logger(ctx).Debugf("request headers: %+v", redactedHeaders(r.Header))
		r.Body = bodyLogger{ReadCloser: r.Body, ctx: ctx}
	}

	rec := &statusRecorder{
		ResponseWriter: rw,
		ctx:            ctx,
		status:         http.StatusOK,
		logBody:        mw.logRequests,
	}
	mw.next.ServeHTTP(rec, r)

	logrus.WithFields(auditFields(r, rec, start, txnID, holder.userID())).Info(http.StatusText(rec.status))
}

func auditFields(r *http.Request, rec *statusRecorder, start time.Time, txnID, user string) logrus.Fields {
	return logrus.Fields{
		"entrytype": "audit",
		"status":    rec.status,
		"size":      rec.size,
		"method":    r.Method,
		"path":      r.URL.String(),
		"proto":     r.Proto,
		"host":      r.Host,
		"remote":    r.RemoteAddr,
		"start":     start.Format(time.RFC3339Nano),
		"duration":  time.Since(start),
		"txnid":     txnID,
		"reqid":     RequestID(r.Context()),
		"user":      user,
	}
}
