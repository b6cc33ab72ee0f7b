package yandex

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/devices"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

var (
	ErrUnknownDeviceType    = errors.New("unknown device type")
	ErrCapabilityNotAllowed = errors.New("capability not allowed for device type")
	ErrPropertyNotAllowed   = errors.New("property not allowed for device type")
)

// DeviceBuilder accumulates the parts of a device.  Every With method
// returns a new builder and leaves the receiver unchanged, so a partly
// configured builder can be shared as a template.
type DeviceBuilder struct {
	id           string
	deviceType   string
	name         string
	room         string
	description  string
	customData   *devices.CustomData
	capabilities Facets
	properties   Facets
	deviceInfo   *DeviceInfo
	drivers      drivers.Source
}

func NewDeviceBuilder(id string, deviceType string) DeviceBuilder {
	return DeviceBuilder{
		id:         id,
		deviceType: NormalizeType(deviceType),
	}
}

func (b DeviceBuilder) WithName(name string) DeviceBuilder {
	b.name = name
	return b
}

func (b DeviceBuilder) WithRoom(room string) DeviceBuilder {
	b.room = room
	return b
}

func (b DeviceBuilder) WithDescription(description string) DeviceBuilder {
	b.description = description
	return b
}

func (b DeviceBuilder) WithCustomData(cd devices.CustomData) DeviceBuilder {
	b.customData = &cd
	return b
}

func (b DeviceBuilder) WithCapabilities(specs ...FacetSpec) DeviceBuilder {
	b.capabilities = appendFacets(b.capabilities, specs)
	return b
}

func (b DeviceBuilder) WithProperties(specs ...FacetSpec) DeviceBuilder {
	b.properties = appendFacets(b.properties, specs)
	return b
}

func (b DeviceBuilder) WithDeviceInfo(info *DeviceInfo) DeviceBuilder {
	if info != nil {
		i := *info
		b.deviceInfo = &i
	}
	return b
}

// WithDrivers sets the source the device's driver is bound from.  The
// process wide registry is used when unset.
func (b DeviceBuilder) WithDrivers(src drivers.Source) DeviceBuilder {
	b.drivers = src
	return b
}

func appendFacets(have Facets, add []FacetSpec) Facets {
	out := make(Facets, 0, len(have)+len(add))
	out = append(out, have...)
	return append(out, add...)
}

// Build validates the accumulated parts and returns the device.  Unknown or
// disallowed facets and unknown drivers are configuration errors.
func (b DeviceBuilder) Build() (*Device, error) {
	if b.id == "" {
		return nil, errors.New("device id is required")
	}
	if !KnownType(b.deviceType) {
		return nil, errors.Wrapf(ErrUnknownDeviceType, "device %s: %q", b.id, b.deviceType)
	}

	d := &Device{
		id:          b.id,
		name:        b.name,
		description: b.description,
		room:        b.room,
		deviceType:  b.deviceType,
		deviceInfo:  b.deviceInfo,
	}

	seen := newNameSet()
	for _, spec := range b.capabilities {
		c, err := NewCapability(spec.Name, spec.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "device %s", b.id)
		}
		if seen.has(c.Name()) {
			return nil, errors.Wrapf(ErrInvalidParams, "device %s: capability %s listed twice", b.id, c.Name())
		}
		seen[c.Name()] = struct{}{}

		dc := newDeviceCapability(c, spec.Request)
		if !dc.Validate(b.deviceType) {
			return nil, errors.Wrapf(ErrCapabilityNotAllowed, "device %s: %s on %s", b.id, c.Name(), b.deviceType)
		}
		d.capabilities = append(d.capabilities, dc)
	}

	seen = newNameSet()
	for _, spec := range b.properties {
		p, err := NewProperty(spec.Name, spec.Params)
		if err != nil {
			return nil, errors.Wrapf(err, "device %s", b.id)
		}
		if seen.has(p.Name()) {
			return nil, errors.Wrapf(ErrInvalidParams, "device %s: property %s listed twice", b.id, p.Name())
		}
		seen[p.Name()] = struct{}{}

		dp := newDeviceProperty(p, spec.Request)
		if !dp.Validate(b.deviceType) {
			return nil, errors.Wrapf(ErrPropertyNotAllowed, "device %s: %s on %s", b.id, p.Name(), b.deviceType)
		}
		d.properties = append(d.properties, dp)
	}

	if b.customData != nil {
		cd := *b.customData
		binding, err := devices.New(b.id, cd, b.drivers)
		if err != nil {
			return nil, err
		}
		d.customData = &cd
		d.binding = binding
	}

	return d, nil
}

// ActionSpecs selects the configured capabilities named by an action
// request and tags each with its action.  Requested capabilities that the
// device is not configured with are skipped.
func ActionSpecs(ctx context.Context, configured Facets, requested []*CapabilityAction) Facets {
	var out Facets

	for _, r := range requested {
		if r == nil {
			continue
		}

		name := NormalizeCapabilityName(r.Type)
		spec, ok := findFacet(configured, name)
		if !ok {
			logging.Logger(ctx).Warnf("[BUILD] ignoring action on unconfigured capability %s", r.Type)
			continue
		}

		spec.Request = NewActionRequest(name, r.State.Instance, r.State.Value)
		out = append(out, spec)
	}

	return out
}

// QuerySpecs tags every configured capability and property with a query
// for its own state instance
func QuerySpecs(capabilities, properties Facets) (Facets, Facets) {
	caps := make(Facets, 0, len(capabilities))
	for _, spec := range capabilities {
		if c, err := NewCapability(spec.Name, spec.Params); err == nil {
			spec.Request = NewQueryRequest(c.Instance())
		}
		caps = append(caps, spec)
	}

	props := make(Facets, 0, len(properties))
	for _, spec := range properties {
		if p, err := NewProperty(spec.Name, spec.Params); err == nil {
			spec.Request = NewQueryRequest(p.Name())
		}
		props = append(props, spec)
	}

	return caps, props
}

func findFacet(facets Facets, name string) (FacetSpec, bool) {
	for _, f := range facets {
		if NormalizeCapabilityName(f.Name) == name {
			return f, true
		}
	}

	return FacetSpec{}, false
}
