package devices

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

var ErrActionNotConfigured = errors.New("action not configured for device")

// CustomData is the driver side description of a device: which driver talks
// to it, the driver's static parameters and the command payloads per action.
// It round-trips through the protocol's custom_data field.
type CustomData struct {
	Driver  string                  `json:"driver" yaml:"driver"`
	Params  drivers.Params          `json:"params,omitempty" yaml:"params,omitempty"`
	Actions map[string]ActionConfig `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Device binds custom data to its driver
type Device struct {
	id     string
	custom CustomData
	driver drivers.Driver
}

// New binds custom data to a driver from src.  An unknown driver is a
// configuration error.
func New(id string, custom CustomData, src drivers.Source) (*Device, error) {
	if src == nil {
		src = drivers.Default()
	}

	d, err := src.Get(custom.Driver)
	if err != nil {
		return nil, errors.Wrapf(err, "binding device %s", id)
	}

	return &Device{
		id:     id,
		custom: custom,
		driver: d,
	}, nil
}

// ID of the device
func (d *Device) ID() string {
	return d.id
}

// Driver bound to the device
func (d *Device) Driver() drivers.Driver {
	return d.driver
}

// CustomData returns the device's driver configuration
func (d *Device) CustomData() CustomData {
	return d.custom
}

// Command prepares the driver request for an action on the device without
// running it.  Query requests bypass the action table.
func (d *Device) Command(action, param string, value interface{}, extra drivers.Params) (drivers.Request, error) {
	params := d.custom.Params.Merge(extra)
	req := drivers.Request{
		UserID:    params.String("user_id"),
		DeviceID:  d.id,
		Action:    action,
		Instance:  param,
		Param:     param,
		Requested: value,
		Params:    params,
	}

	if action == drivers.ActionQuery {
		return req, nil
	}

	cfg, ok := d.custom.Actions[action]
	if !ok {
		return req, errors.Wrapf(ErrActionNotConfigured, "device %s, action %s", d.id, action)
	}

	a, err := NewAction(action, cfg.Data)
	if err != nil {
		return req, errors.Wrapf(err, "device %s", d.id)
	}

	ar := a.Request(param, value)
	req.Param = ar.Param
	req.Value = ar.Value

	return req, nil
}

// Action runs an action on the device through its driver
func (d *Device) Action(ctx context.Context, action, param string, value interface{}, extra drivers.Params) (drivers.Result, error) {
	req, err := d.Command(action, param, value, extra)
	if err != nil {
		return nil, err
	}

	logging.Logger(ctx).Debugf("[DEVICE] %s: action %s for param %s => %v via %s", d.id, action, param, value, d.driver.Name())

	return d.driver.Action(ctx, req)
}
