package yandex

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownCapability = errors.New("unknown capability")

/*
 *   Capability names.  The protocol uses the full form on the wire, the short
 *   form is accepted everywhere a name is configured.
 */

const CapabilityPrefix = "devices.capabilities."

const (
	CapabilityOnOff        = "on_off"
	CapabilityColorSetting = "color_setting"
	CapabilityRange        = "range"
	CapabilityMode         = "mode"
	CapabilityToggle       = "toggle"
)

// NormalizeCapabilityName strips the protocol prefix from a capability name
func NormalizeCapabilityName(name string) string {
	return strings.TrimPrefix(name, CapabilityPrefix)
}

// Capability is a controllable facet of a device, immutable once built from
// its configured parameters
type Capability interface {
	Name() string
	Retrievable() bool
	Reportable() bool

	// Instance is the state instance the capability reports under
	Instance() string

	// Parameters is the protocol's parameters object for the descriptor
	Parameters() map[string]interface{}
}

type capabilityFactory func(base capabilityBase, params FacetParams) (Capability, error)

var capabilityFactories = map[string]capabilityFactory{}

func registerCapability(name string, f capabilityFactory) {
	if _, ok := capabilityFactories[name]; ok {
		panic(fmt.Sprintf("capability %s registered twice", name))
	}
	capabilityFactories[name] = f
}

func init() {
	registerCapability(CapabilityOnOff, newOnOffCapability)
	registerCapability(CapabilityColorSetting, newColorSettingCapability)
	registerCapability(CapabilityRange, newRangeCapability)
	registerCapability(CapabilityMode, newModeCapability)
	registerCapability(CapabilityToggle, newToggleCapability)
}

// NewCapability builds the named capability from its configured parameters.
// retrievable defaults to true and reportable to false.
func NewCapability(name string, params FacetParams) (Capability, error) {
	name = NormalizeCapabilityName(name)

	f, ok := capabilityFactories[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownCapability, "looking up %q", name)
	}

	base := capabilityBase{name: name}

	var err error
	if base.retrievable, err = params.boolean("retrievable", true); err != nil {
		return nil, errors.Wrapf(err, "capability %s", name)
	}
	if base.reportable, err = params.boolean("reportable", false); err != nil {
		return nil, errors.Wrapf(err, "capability %s", name)
	}

	c, err := f(base, params)
	if err != nil {
		return nil, errors.Wrapf(err, "capability %s", name)
	}

	return c, nil
}

type capabilityBase struct {
	name        string
	retrievable bool
	reportable  bool
}

func (c capabilityBase) Name() string      { return c.name }
func (c capabilityBase) Retrievable() bool { return c.retrievable }
func (c capabilityBase) Reportable() bool  { return c.reportable }

/*
 * on_off
 */

type OnOffCapability struct {
	capabilityBase
	split bool
}

func newOnOffCapability(base capabilityBase, params FacetParams) (Capability, error) {
	split, err := params.boolean("split", false)
	if err != nil {
		return nil, err
	}

	return OnOffCapability{capabilityBase: base, split: split}, nil
}

// Split is true when the device has distinct on and off commands
func (c OnOffCapability) Split() bool {
	return c.split
}

func (c OnOffCapability) Instance() string {
	return "on"
}

func (c OnOffCapability) Parameters() map[string]interface{} {
	return map[string]interface{}{"split": c.split}
}

/*
 * color_setting
 */

type ColorSettingCapability struct {
	capabilityBase
	colorModel   string
	temperatureK *Bounds
}

// Bounds is an inclusive numeric range
type Bounds struct {
	Min       float64
	Max       float64
	Precision float64
}

func parseBounds(p FacetParams, withPrecision bool) (*Bounds, error) {
	if p == nil {
		return nil, nil
	}

	b := Bounds{}
	var err error
	var ok bool

	if b.Min, ok, err = p.number("min"); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Wrap(ErrInvalidParams, "min is required")
	}
	if b.Max, ok, err = p.number("max"); err != nil {
		return nil, err
	} else if !ok {
		return nil, errors.Wrap(ErrInvalidParams, "max is required")
	}
	if b.Min > b.Max {
		return nil, errors.Wrapf(ErrInvalidParams, "min %v above max %v", b.Min, b.Max)
	}

	if withPrecision {
		if b.Precision, ok, err = p.number("precision"); err != nil {
			return nil, err
		} else if !ok {
			b.Precision = 1
		}
	}

	return &b, nil
}

func newColorSettingCapability(base capabilityBase, params FacetParams) (Capability, error) {
	model, err := params.str("color_model", "")
	if err != nil {
		return nil, err
	}
	if model != "" && model != "rgb" && model != "hsv" {
		return nil, errors.Wrapf(ErrInvalidParams, "unsupported color_model %q", model)
	}

	tk, err := params.sub("temperature_k")
	if err != nil {
		return nil, err
	}
	bounds, err := parseBounds(tk, false)
	if err != nil {
		return nil, errors.Wrap(err, "temperature_k")
	}

	return ColorSettingCapability{capabilityBase: base, colorModel: model, temperatureK: bounds}, nil
}

func (c ColorSettingCapability) Instance() string {
	if c.colorModel != "" {
		return c.colorModel
	}

	return "temperature_k"
}

func (c ColorSettingCapability) Parameters() map[string]interface{} {
	p := map[string]interface{}{}
	if c.colorModel != "" {
		p["color_model"] = c.colorModel
	}
	if c.temperatureK != nil {
		p["temperature_k"] = map[string]interface{}{
			"min": c.temperatureK.Min,
			"max": c.temperatureK.Max,
		}
	}

	return p
}

/*
 * range
 */

type RangeCapability struct {
	capabilityBase
	instance     string
	unit         string
	randomAccess bool
	bounds       *Bounds
}

func newRangeCapability(base capabilityBase, params FacetParams) (Capability, error) {
	c := RangeCapability{capabilityBase: base}

	var err error
	if c.instance, err = params.str("instance", "brightness"); err != nil {
		return nil, err
	}
	if c.unit, err = params.str("unit", ""); err != nil {
		return nil, err
	}
	if c.randomAccess, err = params.boolean("random_access", true); err != nil {
		return nil, err
	}

	r, err := params.sub("range")
	if err != nil {
		return nil, err
	}
	if c.bounds, err = parseBounds(r, true); err != nil {
		return nil, errors.Wrap(err, "range")
	}

	return c, nil
}

func (c RangeCapability) Instance() string {
	return c.instance
}

func (c RangeCapability) Parameters() map[string]interface{} {
	p := map[string]interface{}{
		"instance":      c.instance,
		"random_access": c.randomAccess,
	}
	if c.unit != "" {
		p["unit"] = c.unit
	}
	if c.bounds != nil {
		p["range"] = map[string]interface{}{
			"min":       c.bounds.Min,
			"max":       c.bounds.Max,
			"precision": c.bounds.Precision,
		}
	}

	return p
}

/*
 * mode
 */

type ModeCapability struct {
	capabilityBase
	instance string
	modes    []string
}

func newModeCapability(base capabilityBase, params FacetParams) (Capability, error) {
	c := ModeCapability{capabilityBase: base}

	var err error
	if c.instance, err = params.str("instance", "program"); err != nil {
		return nil, err
	}
	if c.modes, err = params.strings("modes"); err != nil {
		return nil, err
	}
	if len(c.modes) == 0 {
		return nil, errors.Wrap(ErrInvalidParams, "modes must list at least one mode")
	}

	return c, nil
}

func (c ModeCapability) Instance() string {
	return c.instance
}

func (c ModeCapability) Parameters() map[string]interface{} {
	modes := make([]map[string]string, 0, len(c.modes))
	for _, m := range c.modes {
		modes = append(modes, map[string]string{"value": m})
	}

	return map[string]interface{}{
		"instance": c.instance,
		"modes":    modes,
	}
}

/*
 * toggle
 */

type ToggleCapability struct {
	capabilityBase
	instance string
}

func newToggleCapability(base capabilityBase, params FacetParams) (Capability, error) {
	instance, err := params.str("instance", "backlight")
	if err != nil {
		return nil, err
	}

	return ToggleCapability{capabilityBase: base, instance: instance}, nil
}

func (c ToggleCapability) Instance() string {
	return c.instance
}

func (c ToggleCapability) Parameters() map[string]interface{} {
	return map[string]interface{}{"instance": c.instance}
}
