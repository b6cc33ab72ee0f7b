package yandex

import (
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
)

// Response is the envelope of every device reply
type Response struct {
	RequestID string           `json:"request_id"`
	Payload   *ResponsePayload `json:"payload,omitempty"`
}

type ResponsePayload struct {
	UserID  string      `json:"user_id,omitempty"`
	Devices interface{} `json:"devices"`
}

// NewDevicesResponse lists the user's devices with their descriptors
func NewDevicesResponse(requestID string, userID string, devs []*Device) Response {
	if devs == nil {
		devs = []*Device{}
	}

	return Response{
		RequestID: requestID,
		Payload: &ResponsePayload{
			UserID:  userID,
			Devices: devs,
		},
	}
}

// NewStateResponse answers a query or an action
func NewStateResponse(requestID string, states []DeviceState) Response {
	if states == nil {
		states = []DeviceState{}
	}

	return Response{
		RequestID: requestID,
		Payload: &ResponsePayload{
			Devices: states,
		},
	}
}

// NewUnlinkResponse acknowledges an account unlink
func NewUnlinkResponse(requestID string) Response {
	return Response{RequestID: requestID}
}

// DeviceNotFound is the entry for a device id the user does not own
func DeviceNotFound(id string) DeviceState {
	return DeviceError(id, drivers.ErrorCodeDeviceNotFound, "Device not found")
}

// DeviceError is a device entry carrying only an error
func DeviceError(id string, code string, message string) DeviceState {
	return DeviceState{
		ID:           id,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}
