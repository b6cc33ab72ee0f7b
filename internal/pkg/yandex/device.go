package yandex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/devices"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

var ErrNoDriver = errors.New("device has no driver bound")

// DeviceInfo is the optional manufacturer block of a device
type DeviceInfo struct {
	Manufacturer string `json:"manufacturer,omitempty" yaml:"manufacturer"`
	Model        string `json:"model,omitempty" yaml:"model"`
	HwVersion    string `json:"hw_version,omitempty" yaml:"hw_version"`
	SwVersion    string `json:"sw_version,omitempty" yaml:"sw_version"`
}

// Device is a snapshot built for one request.  Only Resolve changes it, by
// writing outcomes into its facets.
type Device struct {
	id           string
	name         string
	description  string
	room         string
	deviceType   string
	capabilities []*DeviceCapability
	properties   []*DeviceProperty
	deviceInfo   *DeviceInfo
	customData   *devices.CustomData
	binding      *devices.Device
}

func (d *Device) ID() string                         { return d.id }
func (d *Device) Name() string                       { return d.name }
func (d *Device) Type() string                       { return d.deviceType }
func (d *Device) Capabilities() []*DeviceCapability { return d.capabilities }
func (d *Device) Properties() []*DeviceProperty     { return d.properties }

// Resolve satisfies every pending request on the device, capabilities first
// and then properties, each in declaration order.  Every pending facet costs
// exactly one driver call with the device params overlaid by extra.
//
// Driver failures are stored as ERROR action results.  The returned error is
// reserved for configuration faults.
func (d *Device) Resolve(ctx context.Context, extra drivers.Params) error {
	for _, c := range d.capabilities {
		if err := d.resolveFacet(ctx, &c.StatableValue, extra); err != nil {
			return errors.Wrapf(err, "resolving capability %s", c.Name())
		}
	}

	for _, p := range d.properties {
		if err := d.resolveFacet(ctx, &p.StatableValue, extra); err != nil {
			return errors.Wrapf(err, "resolving property %s", p.Name())
		}
	}

	return nil
}

func (d *Device) resolveFacet(ctx context.Context, sv *StatableValue, extra drivers.Params) error {
	pending := sv.Pending()
	if pending == nil {
		return nil
	}

	if d.binding == nil {
		return errors.Wrapf(ErrNoDriver, "device %s", d.id)
	}

	req, err := d.binding.Command(pending.Action, pending.Param, pending.Value, extra)
	if err != nil {
		return err
	}

	logging.Logger(ctx).Debugf("[RESOLVE] device %s: %s %s", d.id, pending.Action, pending.Param)

	sv.SetResult(invoke(ctx, d.binding.Driver(), req))

	return nil
}

// invoke runs one driver call.  Errors, panics and missing results come back
// as ERROR action results.
func invoke(ctx context.Context, drv drivers.Driver, req drivers.Request) (res drivers.Result) {
	if err := ctx.Err(); err != nil {
		return drivers.FromError(req.Instance, err)
	}

	defer func() {
		if r := recover(); r != nil {
			logging.Logger(ctx).Errorf("[RESOLVE] driver %s panicked: %v", drv.Name(), r)
			res = drivers.Failed(req.Instance, drivers.ErrorCodeInternal, fmt.Sprintf("driver failure: %v", r))
		}
	}()

	r, err := drv.Action(ctx, req)
	if err != nil {
		logging.Logger(ctx).WithError(err).Warnf("[RESOLVE] driver %s: device %s", drv.Name(), req.DeviceID)
		return drivers.FromError(req.Instance, err)
	}

	switch v := r.(type) {
	case nil:
	case *drivers.ActionResult:
		if v != nil {
			return *v
		}
	case *drivers.QueryResult:
		if v != nil {
			return *v
		}
	default:
		return r
	}

	return drivers.Failed(req.Instance, drivers.ErrorCodeInternal, "driver returned no result")
}

type deviceJSON struct {
	ID           string              `json:"id"`
	Name         string              `json:"name,omitempty"`
	Type         string              `json:"type,omitempty"`
	Description  string              `json:"description,omitempty"`
	Room         string              `json:"room,omitempty"`
	Capabilities []*DeviceCapability `json:"capabilities,omitempty"`
	Properties   []*DeviceProperty   `json:"properties,omitempty"`
	DeviceInfo   *DeviceInfo         `json:"device_info,omitempty"`
	CustomData   *devices.CustomData `json:"custom_data,omitempty"`
}

// MarshalJSON emits the full device description used by the device list
func (d *Device) MarshalJSON() ([]byte, error) {
	return json.Marshal(deviceJSON{
		ID:           d.id,
		Name:         d.name,
		Type:         FullType(d.deviceType),
		Description:  d.description,
		Room:         d.room,
		Capabilities: d.capabilities,
		Properties:   d.properties,
		DeviceInfo:   d.deviceInfo,
		CustomData:   d.customData,
	})
}

// DeviceState is the reduced device entry of query and action responses
type DeviceState struct {
	ID           string              `json:"id"`
	Capabilities []*DeviceCapability `json:"capabilities,omitempty"`
	Properties   []*DeviceProperty   `json:"properties,omitempty"`
	ErrorCode    string              `json:"error_code,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
}

// StateView returns the device's entry for a query or action response
func (d *Device) StateView() DeviceState {
	return DeviceState{
		ID:           d.id,
		Capabilities: d.capabilities,
		Properties:   d.properties,
	}
}
