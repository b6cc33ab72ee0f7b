package devices

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrActionNotFound    = errors.New("action not found")
	ErrInvalidActionData = errors.New("invalid action data")
)

// ActionRequest is the driver facing form of an action: the parameter to set
// and the raw command payload that sets it
type ActionRequest struct {
	Param string
	Value interface{}
}

// Action converts a protocol intent into an ActionRequest
type Action interface {
	Name() string
	Request(param string, value interface{}) ActionRequest
}

type actionFactory func(data Payloads) (Action, error)

var actionFactories = map[string]actionFactory{}

func registerAction(name string, f actionFactory) {
	if _, ok := actionFactories[name]; ok {
		panic(fmt.Sprintf("action %s registered twice", name))
	}
	actionFactories[name] = f
}

func init() {
	registerAction(ActionOnOff, newOnOff)
	registerAction(ActionRange, newRange)
}

// Action names
const (
	ActionOnOff = "on_off"
	ActionRange = "range"
)

// NewAction returns the named action configured with its command payloads
func NewAction(name string, data Payloads) (Action, error) {
	f, ok := actionFactories[name]
	if !ok {
		return nil, errors.Wrapf(ErrActionNotFound, "looking up action %q", name)
	}

	return f(data)
}

/*
 * on_off
 *
 * data holds either a single command (toggle semantics) or an on command and
 * an off command
 */

type OnOff struct {
	data Payloads
}

func newOnOff(data Payloads) (Action, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidActionData, "on_off needs at least one command")
	}
	if len(data) > 2 {
		data = data[:2]
	}

	return &OnOff{data: data}, nil
}

func (a *OnOff) Name() string {
	return ActionOnOff
}

// Request picks the off command for a false-ish value when the device has
// separate on and off commands.  The returned Param is always "on_off", the
// param argument is not used.
func (a *OnOff) Request(param string, value interface{}) ActionRequest {
	cmd := a.data[0]
	if len(a.data) == 2 && !truthy(value) {
		cmd = a.data[1]
	}

	return ActionRequest{
		Param: a.Name(),
		Value: cmd,
	}
}

/*
 * range
 *
 * data is [set_cmd, ...]; only the absolute set command is supported
 */

type Range struct {
	data Payloads
}

func newRange(data Payloads) (Action, error) {
	if len(data) == 0 {
		return nil, errors.Wrap(ErrInvalidActionData, "range needs a set command")
	}

	return &Range{data: data}, nil
}

func (a *Range) Name() string {
	return ActionRange
}

func (a *Range) Request(param string, value interface{}) ActionRequest {
	return a.RequestRelative(param, value, false)
}

// RequestRelative accepts the relative flag of the protocol.  Relative and
// up/down commands are not implemented; the set command is always used.
func (a *Range) RequestRelative(param string, value interface{}, relative bool) ActionRequest {
	return ActionRequest{
		Param: param,
		Value: a.data[0],
	}
}

// truthy follows the protocol's loose boolean values: nil, false, zero
// numbers and empty strings are false
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case int:
		return t != 0
	case int64:
		return t != 0
	case uint64:
		return t != 0
	case float32:
		return t != 0
	case float64:
		return t != 0
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	}

	return true
}
