package yandex

import (
	"strings"
)

const TypePrefix = "devices.types."

// Device types
const (
	TypeLight      = "light"
	TypeSocket     = "socket"
	TypeSwitch     = "switch"
	TypeSensor     = "sensor"
	TypeThermostat = "thermostat"
	TypeOpenable   = "openable"
	TypeOther      = "other"
)

// NormalizeType strips the protocol prefix from a device type
func NormalizeType(t string) string {
	return strings.TrimPrefix(t, TypePrefix)
}

// FullType returns the wire form of a device type
func FullType(t string) string {
	if t == "" {
		return ""
	}

	return TypePrefix + NormalizeType(t)
}

type nameSet map[string]struct{}

func newNameSet(names ...string) nameSet {
	s := make(nameSet, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}

	return s
}

func (s nameSet) has(name string) bool {
	_, ok := s[name]
	return ok
}

// Capabilities each device type may expose
var capabilitiesByType = map[string]nameSet{
	TypeLight:      newNameSet(CapabilityOnOff, CapabilityColorSetting, CapabilityRange, CapabilityToggle),
	TypeSocket:     newNameSet(CapabilityOnOff, CapabilityToggle),
	TypeSwitch:     newNameSet(CapabilityOnOff, CapabilityToggle),
	TypeSensor:     newNameSet(),
	TypeThermostat: newNameSet(CapabilityOnOff, CapabilityRange, CapabilityMode, CapabilityToggle),
	TypeOpenable:   newNameSet(CapabilityOnOff, CapabilityRange),
	TypeOther:      newNameSet(CapabilityOnOff, CapabilityColorSetting, CapabilityRange, CapabilityMode, CapabilityToggle),
}

// Properties each device type may expose.  A nil set leaves the type
// unconstrained.
var propertiesByType = map[string]nameSet{
	TypeLight:  nil,
	TypeSocket: newNameSet(PropertyAmperage, PropertyPower, PropertyVoltage),
	TypeSwitch: newNameSet(PropertyAmperage, PropertyPower, PropertyVoltage),
	TypeSensor: newNameSet(
		PropertyAmperage, PropertyPower, PropertyVoltage, PropertyTemperature,
		PropertyHumidity, PropertyBatteryLevel, PropertyOpen, PropertyMotion,
	),
	TypeThermostat: newNameSet(PropertyTemperature, PropertyHumidity),
	TypeOpenable:   nil,
	TypeOther:      nil,
}

// KnownType is true for the device types in the allow tables
func KnownType(deviceType string) bool {
	_, ok := capabilitiesByType[NormalizeType(deviceType)]
	return ok
}

// CapabilityAllowed reports whether a device type may expose the capability.
// Unknown device types admit nothing.
func CapabilityAllowed(deviceType, capability string) bool {
	allowed, ok := capabilitiesByType[NormalizeType(deviceType)]
	if !ok {
		return false
	}

	return allowed.has(NormalizeCapabilityName(capability))
}

// PropertyAllowed reports whether a device type may expose the property.
// Unknown device types admit nothing.
func PropertyAllowed(deviceType, property string) bool {
	allowed, ok := propertiesByType[NormalizeType(deviceType)]
	if !ok {
		return false
	}
	if allowed == nil {
		return true
	}

	return allowed.has(strings.TrimPrefix(property, PropertyPrefix))
}
