package yandex

import (
	"context"

	"github.com/korovkin/limiter"
	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

var ErrDeviceNotFound = errors.New("device not found")

// Job is one device of a batch.  A nil Build marks a device id the user
// does not own.
type Job struct {
	ID    string
	Build func() (*Device, error)
	Extra drivers.Params
}

// Outcome is the result of one job: a resolved device or the error that
// stopped it
type Outcome struct {
	ID     string
	Device *Device
	Err    error
}

// State converts the outcome to its response entry
func (o Outcome) State() DeviceState {
	switch {
	case errors.Is(o.Err, ErrDeviceNotFound):
		return DeviceNotFound(o.ID)
	case o.Err != nil:
		return DeviceError(o.ID, drivers.ErrorCodeInternal, o.Err.Error())
	case o.Device == nil:
		return DeviceError(o.ID, drivers.ErrorCodeInternal, "no device")
	}

	return o.Device.StateView()
}

// ResolveAll builds and resolves the devices of one request, at most
// maxConcurrent at a time.  Outcomes are returned in job order and a failing
// device never affects its siblings.
func ResolveAll(ctx context.Context, jobs []Job, maxConcurrent int) []Outcome {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}

	out := make([]Outcome, len(jobs))
	limit := limiter.NewConcurrencyLimiter(maxConcurrent)

	for i := range jobs {
		i := i
		limit.Execute(func() {
			out[i] = runJob(ctx, jobs[i])
		})
	}

	limit.Wait()
	return out
}

func runJob(ctx context.Context, job Job) (o Outcome) {
	o.ID = job.ID

	defer func() {
		if r := recover(); r != nil {
			logging.Logger(ctx).Errorf("[BATCH] device %s: panic: %v", job.ID, r)
			o.Device = nil
			o.Err = errors.Errorf("internal failure: %v", r)
		}
	}()

	if job.Build == nil {
		o.Err = errors.Wrapf(ErrDeviceNotFound, "device %s", job.ID)
		return o
	}

	d, err := job.Build()
	if err != nil {
		logging.Logger(ctx).WithError(err).Errorf("[BATCH] building device %s", job.ID)
		o.Err = err
		return o
	}

	if err := d.Resolve(ctx, job.Extra); err != nil {
		logging.Logger(ctx).WithError(err).Errorf("[BATCH] resolving device %s", job.ID)
		o.Err = err
		return o
	}

	o.Device = d
	return o
}
