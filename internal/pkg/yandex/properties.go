package yandex

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnknownProperty = errors.New("unknown property")

const PropertyPrefix = "devices.properties."

// PropertyType is the protocol's value type of a property
type PropertyType string

const (
	PropertyFloat PropertyType = "float"
	PropertyEvent PropertyType = "event"
)

// Property names
const (
	PropertyAmperage     = "amperage"
	PropertyPower        = "power"
	PropertyVoltage      = "voltage"
	PropertyTemperature  = "temperature"
	PropertyHumidity     = "humidity"
	PropertyBatteryLevel = "battery_level"
	PropertyOpen         = "open"
	PropertyMotion       = "motion"
)

type propertyDef struct {
	ptype  PropertyType
	units  string
	events []string
}

var propertyDefs = map[string]propertyDef{}

func registerProperty(name string, def propertyDef) {
	if _, ok := propertyDefs[name]; ok {
		panic(fmt.Sprintf("property %s registered twice", name))
	}
	propertyDefs[name] = def
}

func init() {
	registerProperty(PropertyAmperage, propertyDef{ptype: PropertyFloat, units: "amper"})
	registerProperty(PropertyPower, propertyDef{ptype: PropertyFloat, units: "watt"})
	registerProperty(PropertyVoltage, propertyDef{ptype: PropertyFloat, units: "volt"})
	registerProperty(PropertyTemperature, propertyDef{ptype: PropertyFloat, units: "celsius"})
	registerProperty(PropertyHumidity, propertyDef{ptype: PropertyFloat, units: "percent"})
	registerProperty(PropertyBatteryLevel, propertyDef{ptype: PropertyFloat, units: "percent"})
	registerProperty(PropertyOpen, propertyDef{ptype: PropertyEvent, events: []string{"opened", "closed"}})
	registerProperty(PropertyMotion, propertyDef{ptype: PropertyEvent, events: []string{"detected", "not_detected"}})
}

// Property is an observable facet of a device
type Property struct {
	name        string
	ptype       PropertyType
	units       string
	events      []string
	retrievable bool
	reportable  bool
}

// NewProperty looks up the named property and applies the retrievable and
// reportable flags from params
func NewProperty(name string, params FacetParams) (Property, error) {
	name = strings.TrimPrefix(name, PropertyPrefix)

	def, ok := propertyDefs[name]
	if !ok {
		return Property{}, errors.Wrapf(ErrUnknownProperty, "looking up %q", name)
	}

	p := Property{
		name:   name,
		ptype:  def.ptype,
		units:  def.units,
		events: def.events,
	}

	var err error
	if p.retrievable, err = params.boolean("retrievable", true); err != nil {
		return Property{}, errors.Wrapf(err, "property %s", name)
	}
	if p.reportable, err = params.boolean("reportable", false); err != nil {
		return Property{}, errors.Wrapf(err, "property %s", name)
	}

	return p, nil
}

func (p Property) Name() string       { return p.name }
func (p Property) Type() PropertyType { return p.ptype }
func (p Property) Units() string      { return p.units }
func (p Property) Retrievable() bool  { return p.retrievable }
func (p Property) Reportable() bool   { return p.reportable }

// Parameters is the protocol's parameters object: the unit for float
// properties and the event values for event properties
func (p Property) Parameters() map[string]interface{} {
	params := map[string]interface{}{"instance": p.name}

	switch p.ptype {
	case PropertyEvent:
		events := make([]map[string]string, 0, len(p.events))
		for _, e := range p.events {
			events = append(events, map[string]string{"value": e})
		}
		params["events"] = events
	default:
		params["unit"] = p.units
	}

	return params
}
