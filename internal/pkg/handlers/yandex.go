package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/history"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
	"github.com/jake-scott/alice-bridge/internal/pkg/store"
	"github.com/jake-scott/alice-bridge/internal/pkg/yandex"
	"github.com/jake-scott/alice-bridge/pkg/middlewares"
)

const (
	defaultMaxConcurrent  = 4
	defaultResolveTimeout = 10 * time.Second
)

// DeviceHandler serves the smart home device API for the authenticated user
type DeviceHandler struct {
	store          store.Backend
	drivers        drivers.Source
	history        history.Recorder
	maxConcurrent  int
	resolveTimeout time.Duration
}

func NewDeviceHandler(b store.Backend) DeviceHandler {
	return DeviceHandler{
		store:          b,
		history:        history.Nop{},
		maxConcurrent:  defaultMaxConcurrent,
		resolveTimeout: defaultResolveTimeout,
	}
}

// WithDrivers sets the driver source devices are bound from, the process
// wide registry by default
func (h DeviceHandler) WithDrivers(src drivers.Source) DeviceHandler {
	h.drivers = src
	return h
}

func (h DeviceHandler) WithHistory(r history.Recorder) DeviceHandler {
	if r != nil {
		h.history = r
	}
	return h
}

func (h DeviceHandler) WithMaxConcurrent(n int) DeviceHandler {
	if n > 0 {
		h.maxConcurrent = n
	}
	return h
}

func (h DeviceHandler) WithResolveTimeout(d time.Duration) DeviceHandler {
	if d > 0 {
		h.resolveTimeout = d
	}
	return h
}

func (h *DeviceHandler) principal(w http.ResponseWriter, r *http.Request) (middlewares.Principal, bool) {
	p, ok := middlewares.PrincipalFromContext(r.Context())
	if !ok {
		logging.Logger(r.Context()).Error("no authenticated user on device request")
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}

	return p, ok
}

// HandlePing answers the provider availability check
func (h *DeviceHandler) HandlePing(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.principal(w, r); !ok {
		return
	}

	w.WriteHeader(http.StatusOK)
}

// HandleUnlink is called when the user unlinks their account
func (h *DeviceHandler) HandleUnlink(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	logging.Logger(r.Context()).Infof("[UNLINK] user %s", p.UserID)

	if err := h.store.UnlinkUser(r.Context(), p.UserID); err != nil {
		logging.Logger(r.Context()).WithError(err).Errorf("unlinking user %s", p.UserID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	sendJSONResponse(w, r, yandex.NewUnlinkResponse(requestID(r)))
}

// HandleDevices lists the user's devices.  A device with a configuration
// error fails the whole listing.
func (h *DeviceHandler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logging.Logger(r.Context())

	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	records, err := h.store.LoadDevices(r.Context(), p.UserID)
	if err != nil {
		ctxLogger.WithError(err).Errorf("loading devices of user %s", p.UserID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	devs := make([]*yandex.Device, 0, len(records))
	for _, rec := range records {
		d, err := rec.Builder(h.drivers).
			WithCapabilities(rec.Capabilities...).
			WithProperties(rec.Properties...).
			Build()
		if err != nil {
			ctxLogger.WithError(err).Errorf("building device %s", rec.DeviceID)
			http.Error(w, "device configuration error", http.StatusInternalServerError)
			return
		}
		devs = append(devs, d)
	}

	userID := p.Nickname
	if userID == "" {
		userID = p.UserID
	}

	sendJSONResponse(w, r, yandex.NewDevicesResponse(requestID(r), userID, devs))
}

// HandleQuery reads the current state of the requested devices
func (h *DeviceHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req yandex.QueryPayload
	if !decodeRequest(w, r, &req) {
		return
	}

	index, ok := h.loadIndex(w, r, p)
	if !ok {
		return
	}

	jobs := make([]yandex.Job, 0, len(req.Devices))
	for _, dev := range req.Devices {
		if dev == nil {
			continue
		}

		job := yandex.Job{ID: dev.ID, Extra: userParams(p)}
		if rec, found := index[dev.ID]; found {
			job.Build = h.queryBuilder(rec)
		}
		jobs = append(jobs, job)
	}

	sendJSONResponse(w, r, yandex.NewStateResponse(requestID(r), h.resolve(r.Context(), jobs)))
}

// HandleAction applies the requested capability changes
func (h *DeviceHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req yandex.ActionPayload
	if !decodeRequest(w, r, &req) {
		return
	}

	index, ok := h.loadIndex(w, r, p)
	if !ok {
		return
	}

	jobs := make([]yandex.Job, 0, len(req.Devices))
	for _, dev := range req.Devices {
		if dev == nil {
			continue
		}

		job := yandex.Job{ID: dev.ID, Extra: userParams(p)}
		if rec, found := index[dev.ID]; found {
			job.Build = h.actionBuilder(r.Context(), rec, dev.Capabilities)
		}
		jobs = append(jobs, job)
	}

	sendJSONResponse(w, r, yandex.NewStateResponse(requestID(r), h.resolve(r.Context(), jobs)))
}

func (h *DeviceHandler) loadIndex(w http.ResponseWriter, r *http.Request, p middlewares.Principal) (map[string]store.DeviceRecord, bool) {
	records, err := h.store.LoadDevices(r.Context(), p.UserID)
	if err != nil {
		logging.Logger(r.Context()).WithError(err).Errorf("loading devices of user %s", p.UserID)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return nil, false
	}

	index := make(map[string]store.DeviceRecord, len(records))
	for _, rec := range records {
		index[rec.DeviceID] = rec
	}

	return index, true
}

func (h *DeviceHandler) queryBuilder(rec store.DeviceRecord) func() (*yandex.Device, error) {
	return func() (*yandex.Device, error) {
		caps, props := yandex.QuerySpecs(rec.Capabilities, rec.Properties)

		return rec.Builder(h.drivers).
			WithCapabilities(caps...).
			WithProperties(props...).
			Build()
	}
}

func (h *DeviceHandler) actionBuilder(ctx context.Context, rec store.DeviceRecord, requested []*yandex.CapabilityAction) func() (*yandex.Device, error) {
	return func() (*yandex.Device, error) {
		return rec.Builder(h.drivers).
			WithCapabilities(yandex.ActionSpecs(ctx, rec.Capabilities, requested)...).
			Build()
	}
}

// resolve runs a batch under the resolve timeout and records the outcome
func (h *DeviceHandler) resolve(ctx context.Context, jobs []yandex.Job) []yandex.DeviceState {
	ctx, cancel := context.WithTimeout(ctx, h.resolveTimeout)
	defer cancel()

	outcomes := yandex.ResolveAll(ctx, jobs, h.maxConcurrent)

	states := make([]yandex.DeviceState, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Device != nil {
			h.history.Record(ctx, o.Device)
		}
		states = append(states, o.State())
	}

	return states
}

func userParams(p middlewares.Principal) drivers.Params {
	return drivers.Params{"user_id": p.UserID}
}
