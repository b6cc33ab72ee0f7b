// Package loopback is a driver without a transport.  Every action succeeds
// and queries return the last requested value.
package loopback

import (
	"context"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

const Name = "loopback"

type Driver struct {
	states drivers.StateStore
}

func New(states drivers.StateStore) *Driver {
	return &Driver{states: states}
}

func (d *Driver) Name() string {
	return Name
}

func (d *Driver) Action(ctx context.Context, req drivers.Request) (drivers.Result, error) {
	if req.IsQuery() {
		v, ok, err := d.states.LoadState(ctx, req.StateKey())
		if err != nil {
			return nil, err
		}
		if !ok {
			return drivers.Failed(req.Instance, drivers.ErrorCodeDeviceUnreachable, "device state unknown"), nil
		}
		return drivers.QueryResult{Param: req.Instance, Value: v}, nil
	}

	logging.Logger(ctx).Debugf("[LOOPBACK] device %s: %s %s => %v", req.DeviceID, req.Action, req.Param, req.Value)

	if err := d.states.SaveState(ctx, req.StateKey(), req.Requested); err != nil {
		return nil, err
	}

	return drivers.Done(req.Instance), nil
}
