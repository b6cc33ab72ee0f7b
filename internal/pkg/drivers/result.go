package drivers

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Action result status values
const (
	StatusDone  = "DONE"
	StatusError = "ERROR"
)

// Protocol error codes used in ERROR results
const (
	ErrorCodeDeviceUnreachable = "DEVICE_UNREACHABLE"
	ErrorCodeDeviceBusy        = "DEVICE_BUSY"
	ErrorCodeDeviceNotFound    = "DEVICE_NOT_FOUND"
	ErrorCodeInternal          = "INTERNAL_ERROR"
	ErrorCodeInvalidAction     = "INVALID_ACTION"
	ErrorCodeInvalidValue      = "INVALID_VALUE"
)

// Result is the outcome of a driver call: either an ActionResult or a
// QueryResult.  The set of variants is closed.
type Result interface {
	ResultParam() string
	isResult()
}

// ActionResult is the outcome of a state change
type ActionResult struct {
	Param        string
	Status       string
	ErrorCode    string
	ErrorMessage string
}

func (r ActionResult) ResultParam() string { return r.Param }
func (ActionResult) isResult()             {}

// IsDone is true for a successful action
func (r ActionResult) IsDone() bool {
	return r.Status == StatusDone
}

func (r ActionResult) String() string {
	if r.ErrorCode != "" {
		return fmt.Sprintf("(ActionResult) Param: %s Status: %s Error: %s (%s)", r.Param, r.Status, r.ErrorCode, r.ErrorMessage)
	}
	return fmt.Sprintf("(ActionResult) Param: %s Status: %s", r.Param, r.Status)
}

// QueryResult is the outcome of a state read
type QueryResult struct {
	Param string
	Value interface{}
}

func (r QueryResult) ResultParam() string { return r.Param }
func (QueryResult) isResult()             {}

// Done makes a successful action result
func Done(param string) ActionResult {
	return ActionResult{Param: param, Status: StatusDone}
}

// Failed makes an ERROR action result
func Failed(param, code, message string) ActionResult {
	return ActionResult{
		Param:        param,
		Status:       StatusError,
		ErrorCode:    code,
		ErrorMessage: message,
	}
}

// FromError converts a driver error into an ERROR action result.  Deadline
// and cancellation errors are reported as an unreachable device.
func FromError(param string, err error) ActionResult {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Failed(param, ErrorCodeDeviceUnreachable, err.Error())
	}

	return Failed(param, ErrorCodeInternal, err.Error())
}
