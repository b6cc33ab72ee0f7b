package drivers

import (
	"context"
)

// Params are the static per-device driver parameters, merged with any
// per-request extras before a call.
type Params map[string]interface{}

// Merge returns a new set of parameters containing p overlaid with extra.
// Neither input is modified.
func (p Params) Merge(extra Params) Params {
	out := make(Params, len(p)+len(extra))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}

	return out
}

// String returns a string parameter, or "" when missing or of another type
func (p Params) String(key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}

	return ""
}

// Sub returns a nested parameter map, eg. the "params" block of an rfsend device
func (p Params) Sub(key string) Params {
	switch v := p[key].(type) {
	case Params:
		return v
	case map[string]interface{}:
		return Params(v)
	}

	return nil
}

// Request is the action handed to a driver.
//
// Action, Param and Value are the driver level command: the action name
// (on_off, range, query), the parameter the action produced, and the raw
// command payload.  Instance and Requested carry the protocol instance and
// value that led to the command so that stateful drivers can answer later
// queries.  UserID is the owner of the device.
type Request struct {
	UserID    string
	DeviceID  string
	Action    string
	Instance  string
	Param     string
	Value     interface{}
	Requested interface{}
	Params    Params
}

// StateKey is where stateful drivers remember the request's instance
func (r Request) StateKey() StateKey {
	return StateKey{UserID: r.UserID, DeviceID: r.DeviceID, Instance: r.Instance}
}

// IsQuery is true for read requests
func (r Request) IsQuery() bool {
	return r.Action == ActionQuery
}

// Driver executes device level actions over some transport
type Driver interface {
	Name() string

	// Action performs the request.  Transport failures may be returned either
	// as an ERROR ActionResult or as an error; callers treat both the same.
	Action(ctx context.Context, req Request) (Result, error)
}

// ActionQuery is the pseudo action used for state reads
const ActionQuery = "query"
