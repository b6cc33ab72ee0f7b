package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-openapi/runtime/middleware/header"
	"github.com/go-openapi/strfmt"
	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
	"github.com/jake-scott/alice-bridge/pkg/middlewares"
)

// For request validation routines
var formats strfmt.Registry

func init() {
	// Default validators
	formats = strfmt.NewFormats()
}

const maxBodySize = 100 * 1024

type validatable interface {
	Validate(formats strfmt.Registry) error
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != "application/json" {
			return errors.Errorf("expected JSON request, got %s", value)
		}
	}

	// 100kb max body
	reader := http.MaxBytesReader(w, r.Body, maxBodySize)
	dec := json.NewDecoder(reader)

	if err := dec.Decode(dst); err != nil {
		return errors.Wrap(err, "decoding request body")
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must only contain a single JSON object")
	}

	return nil
}

// decodeRequest decodes and validates a request body, answering 400 on
// failure.  It reports whether the handler should carry on.
func decodeRequest(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	ctxLogger := logging.Logger(r.Context())

	if err := decodeJSONBody(w, r, dst); err != nil {
		ctxLogger.WithError(err).Errorf("decoding JSON")
		http.Error(w, "unable to parse JSON", http.StatusBadRequest)
		return false
	}

	if err := dst.Validate(formats); err != nil {
		ctxLogger.WithError(err).Errorf("request validation failure")
		http.Error(w, "input validation failed", http.StatusBadRequest)
		return false
	}

	return true
}

func sendJSONResponse(w http.ResponseWriter, r *http.Request, d interface{}) {
	w.Header().Set("Content-Type", "application/json")

	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json response")
	}
}

// requestID is the protocol's X-Request-Id, echoed in every reply
func requestID(r *http.Request) string {
	if id := middlewares.RequestID(r.Context()); id != "" {
		return id
	}

	return r.Header.Get("X-Request-Id")
}
