package yandex

import (
	"bytes"
	"encoding/json"
	"strconv"

	"github.com/go-openapi/errors"
	"github.com/go-openapi/strfmt"
	"github.com/go-openapi/swag"
	"github.com/go-openapi/validate"

	"github.com/jake-scott/alice-bridge/internal/pkg/devices"
)

// QueryPayload is the body of a device state query
type QueryPayload struct {
	Devices []*QueryDevice `json:"devices"`
}

// QueryDevice names one device to query
type QueryDevice struct {
	ID         string              `json:"id"`
	CustomData *devices.CustomData `json:"custom_data,omitempty"`
}

// ActionPayload is the body of a device action request
type ActionPayload struct {
	Devices []*ActionDevice `json:"devices"`
}

// UnmarshalJSON accepts the devices either at the top level or wrapped in
// the protocol's payload envelope
func (m *ActionPayload) UnmarshalJSON(b []byte) error {
	var raw struct {
		Devices []*ActionDevice `json:"devices"`
		Payload *struct {
			Devices []*ActionDevice `json:"devices"`
		} `json:"payload"`
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	m.Devices = raw.Devices
	if m.Devices == nil && raw.Payload != nil {
		m.Devices = raw.Payload.Devices
	}

	return nil
}

// ActionDevice carries the capability changes for one device
type ActionDevice struct {
	ID           string              `json:"id"`
	CustomData   *devices.CustomData `json:"custom_data,omitempty"`
	Capabilities []*CapabilityAction `json:"capabilities"`
}

// CapabilityAction is one requested capability change
type CapabilityAction struct {
	Type  string      `json:"type"`
	State ActionState `json:"state"`
}

// ActionState is the requested instance value
type ActionState struct {
	Instance string      `json:"instance"`
	Value    interface{} `json:"value"`
	Relative bool        `json:"relative,omitempty"`
}

// Validate validates this query payload
func (m *QueryPayload) Validate(formats strfmt.Registry) error {
	var res []error

	if err := m.validateDevices(formats); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func (m *QueryPayload) validateDevices(formats strfmt.Registry) error {
	if err := validate.Required("devices", "body", m.Devices); err != nil {
		return err
	}

	for i := 0; i < len(m.Devices); i++ {
		if swag.IsZero(m.Devices[i]) {
			continue
		}

		if err := m.Devices[i].Validate(formats); err != nil {
			if ve, ok := err.(*errors.Validation); ok {
				return ve.ValidateName("devices" + "." + strconv.Itoa(i))
			}
			return err
		}
	}

	return nil
}

// Validate validates this query device
func (m *QueryDevice) Validate(formats strfmt.Registry) error {
	if err := validate.RequiredString("id", "body", m.ID); err != nil {
		return err
	}

	return nil
}

// Validate validates this action payload
func (m *ActionPayload) Validate(formats strfmt.Registry) error {
	var res []error

	if err := m.validateDevices(formats); err != nil {
		res = append(res, err)
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

func (m *ActionPayload) validateDevices(formats strfmt.Registry) error {
	if err := validate.Required("devices", "body", m.Devices); err != nil {
		return err
	}

	for i := 0; i < len(m.Devices); i++ {
		if swag.IsZero(m.Devices[i]) {
			continue
		}

		if err := m.Devices[i].Validate(formats); err != nil {
			if ve, ok := err.(*errors.Validation); ok {
				return ve.ValidateName("devices" + "." + strconv.Itoa(i))
			}
			return err
		}
	}

	return nil
}

// Validate validates this action device
func (m *ActionDevice) Validate(formats strfmt.Registry) error {
	var res []error

	if err := validate.RequiredString("id", "body", m.ID); err != nil {
		res = append(res, err)
	}

	for i := 0; i < len(m.Capabilities); i++ {
		if swag.IsZero(m.Capabilities[i]) {
			continue
		}

		if err := m.Capabilities[i].Validate(formats); err != nil {
			if ve, ok := err.(*errors.Validation); ok {
				res = append(res, ve.ValidateName("capabilities"+"."+strconv.Itoa(i)))
			} else {
				res = append(res, err)
			}
		}
	}

	if len(res) > 0 {
		return errors.CompositeValidationError(res...)
	}
	return nil
}

// Validate validates this capability action
func (m *CapabilityAction) Validate(formats strfmt.Registry) error {
	if err := validate.RequiredString("type", "body", m.Type); err != nil {
		return err
	}

	if err := validate.RequiredString("state"+"."+"instance", "body", m.State.Instance); err != nil {
		return err
	}

	return nil
}
