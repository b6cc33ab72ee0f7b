package yandex

import (
	"encoding/json"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
)

// Request is a pending resolution attached to a facet: the driver action,
// the protocol instance and, for actions, the requested value
type Request struct {
	Action string
	Param  string
	Value  interface{}
}

// NewActionRequest tags a capability for a state change
func NewActionRequest(capability, instance string, value interface{}) *Request {
	return &Request{
		Action: NormalizeCapabilityName(capability),
		Param:  instance,
		Value:  value,
	}
}

// NewQueryRequest tags a facet for a state read
func NewQueryRequest(instance string) *Request {
	return &Request{
		Action: drivers.ActionQuery,
		Param:  instance,
	}
}

// IsQuery is true for state reads
func (r Request) IsQuery() bool {
	return r.Action == drivers.ActionQuery
}

// ActionResultState is the protocol form of an action outcome
type ActionResultState struct {
	Status       string `json:"status"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// State is the protocol form of a resolved facet
type State struct {
	Instance     string             `json:"instance"`
	Value        interface{}        `json:"value,omitempty"`
	ActionResult *ActionResultState `json:"action_result,omitempty"`
}

// StatableValue carries the resolution lifecycle of one capability or
// property: unresolved, pending (a request is attached) and resolved (a value
// or an action result is recorded)
type StatableValue struct {
	instance     string
	value        interface{}
	hasValue     bool
	actionResult *ActionResultState
	pending      *Request
}

// Pending returns the request awaiting resolution, if any
func (s *StatableValue) Pending() *Request {
	return s.pending
}

// Resolved is true once a value or an action result is recorded
func (s *StatableValue) Resolved() bool {
	return s.hasValue || s.actionResult != nil
}

// Value returns the resolved query value
func (s *StatableValue) Value() (interface{}, bool) {
	return s.value, s.hasValue
}

// ActionResult returns the resolved action outcome
func (s *StatableValue) ActionResult() *ActionResultState {
	return s.actionResult
}

// State is nil until the facet has an instance
func (s *StatableValue) State() *State {
	if s.instance == "" {
		return nil
	}

	st := &State{Instance: s.instance}
	if s.hasValue {
		st.Value = s.value
	}
	if s.actionResult != nil {
		ar := *s.actionResult
		st.ActionResult = &ar
	}

	return st
}

// SetResult records a driver outcome and clears the pending request.  The
// instance is taken from the result, or from the request when the driver
// left it empty.
func (s *StatableValue) SetResult(result drivers.Result) {
	switch r := result.(type) {
	case nil:
		return
	case *drivers.ActionResult:
		if r == nil {
			return
		}
	case *drivers.QueryResult:
		if r == nil {
			return
		}
	}

	param := result.ResultParam()
	if param == "" && s.pending != nil {
		param = s.pending.Param
	}
	s.instance = param

	switch r := result.(type) {
	case drivers.ActionResult:
		s.setAction(r)
	case *drivers.ActionResult:
		s.setAction(*r)
	case drivers.QueryResult:
		s.setValue(r.Value)
	case *drivers.QueryResult:
		s.setValue(r.Value)
	}

	s.pending = nil
}

func (s *StatableValue) setAction(r drivers.ActionResult) {
	s.value, s.hasValue = nil, false
	s.actionResult = &ActionResultState{
		Status:       r.Status,
		ErrorCode:    r.ErrorCode,
		ErrorMessage: r.ErrorMessage,
	}
}

func (s *StatableValue) setValue(v interface{}) {
	s.actionResult = nil
	s.value, s.hasValue = v, true
}

/*
 *  Device facets: a capability or property bound to its resolution state
 */

// DeviceCapability is a capability instance on one device
type DeviceCapability struct {
	StatableValue
	capability Capability
}

func newDeviceCapability(c Capability, req *Request) *DeviceCapability {
	return &DeviceCapability{
		StatableValue: StatableValue{pending: req},
		capability:    c,
	}
}

func (c *DeviceCapability) Name() string {
	return c.capability.Name()
}

func (c *DeviceCapability) Capability() Capability {
	return c.capability
}

// Validate reports whether the capability is legal for the device type
func (c *DeviceCapability) Validate(deviceType string) bool {
	return CapabilityAllowed(deviceType, c.capability.Name())
}

type facetState struct {
	Type  string `json:"type"`
	State *State `json:"state"`
}

type capabilityDescriptor struct {
	Type        string                 `json:"type"`
	Retrievable *bool                  `json:"retrievable,omitempty"`
	Reportable  *bool                  `json:"reportable,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

// MarshalJSON emits the resolved state, or the descriptor when unresolved
func (c *DeviceCapability) MarshalJSON() ([]byte, error) {
	typ := CapabilityPrefix + c.capability.Name()

	if st := c.State(); st != nil {
		return json.Marshal(facetState{Type: typ, State: st})
	}

	d := capabilityDescriptor{
		Type:       typ,
		Parameters: c.capability.Parameters(),
	}
	if !c.capability.Retrievable() {
		f := false
		d.Retrievable = &f
	}
	if c.capability.Reportable() {
		t := true
		d.Reportable = &t
	}
	if d.Parameters == nil {
		d.Parameters = map[string]interface{}{}
	}

	return json.Marshal(d)
}

// DeviceProperty is a property instance on one device
type DeviceProperty struct {
	StatableValue
	property Property
}

func newDeviceProperty(p Property, req *Request) *DeviceProperty {
	return &DeviceProperty{
		StatableValue: StatableValue{pending: req},
		property:      p,
	}
}

func (p *DeviceProperty) Name() string {
	return p.property.Name()
}

func (p *DeviceProperty) Property() Property {
	return p.property
}

// Validate reports whether the property is legal for the device type
func (p *DeviceProperty) Validate(deviceType string) bool {
	return PropertyAllowed(deviceType, p.property.Name())
}

type propertyDescriptor struct {
	Type        string                 `json:"type"`
	Retrievable bool                   `json:"retrievable"`
	Reportable  bool                   `json:"reportable"`
	Parameters  map[string]interface{} `json:"parameters"`
}

func (p *DeviceProperty) MarshalJSON() ([]byte, error) {
	typ := PropertyPrefix + string(p.property.Type())

	if st := p.State(); st != nil {
		return json.Marshal(facetState{Type: typ, State: st})
	}

	return json.Marshal(propertyDescriptor{
		Type:        typ,
		Retrievable: p.property.Retrievable(),
		Reportable:  p.property.Reportable(),
		Parameters:  p.property.Parameters(),
	})
}
