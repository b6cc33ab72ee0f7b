package yandex_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/alice-bridge/internal/pkg/devices"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/yandex"
)

func capabilityNames(d *yandex.Device) []string {
	var names []string
	for _, c := range d.Capabilities() {
		names = append(names, c.Name())
	}
	return names
}

func TestBuilderIsImmutable(t *testing.T) {
	_, src := newMock(t)

	base := lampBuilder(src).WithCapabilities(yandex.FacetSpec{Name: "on_off"})
	withRange := base.WithCapabilities(yandex.FacetSpec{Name: "range"})
	withColor := base.WithCapabilities(yandex.FacetSpec{Name: "color_setting"})
	renamed := base.WithName("Other")

	d, err := base.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"on_off"}, capabilityNames(d))
	assert.Equal(t, "Lamp", d.Name())

	d, err = withRange.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"on_off", "range"}, capabilityNames(d))

	d, err = withColor.Build()
	require.NoError(t, err)
	assert.Equal(t, []string{"on_off", "color_setting"}, capabilityNames(d))

	d, err = renamed.Build()
	require.NoError(t, err)
	assert.Equal(t, "Other", d.Name())
}

func TestBuildErrors(t *testing.T) {
	_, src := newMock(t)

	tests := []struct {
		name    string
		builder yandex.DeviceBuilder
		err     error
	}{
		{
			name:    "unknown type",
			builder: yandex.NewDeviceBuilder("x", "devices.types.kettle"),
			err:     yandex.ErrUnknownDeviceType,
		},
		{
			name:    "unknown capability",
			builder: lampBuilder(src).WithCapabilities(yandex.FacetSpec{Name: "video_stream"}),
			err:     yandex.ErrUnknownCapability,
		},
		{
			name:    "capability not allowed",
			builder: lampBuilder(src).WithCapabilities(yandex.FacetSpec{Name: "mode", Params: yandex.FacetParams{"modes": []interface{}{"eco"}}}),
			err:     yandex.ErrCapabilityNotAllowed,
		},
		{
			name:    "property not allowed",
			builder: yandex.NewDeviceBuilder("plug", yandex.TypeSocket).WithProperties(yandex.FacetSpec{Name: "humidity"}),
			err:     yandex.ErrPropertyNotAllowed,
		},
		{
			name:    "unknown property",
			builder: yandex.NewDeviceBuilder("s", yandex.TypeSensor).WithProperties(yandex.FacetSpec{Name: "co2_level"}),
			err:     yandex.ErrUnknownProperty,
		},
		{
			name: "capability listed twice",
			builder: lampBuilder(src).WithCapabilities(
				yandex.FacetSpec{Name: "on_off"},
				yandex.FacetSpec{Name: "devices.capabilities.on_off"},
			),
			err: yandex.ErrInvalidParams,
		},
		{
			name: "property listed twice",
			builder: yandex.NewDeviceBuilder("s", yandex.TypeSensor).WithProperties(
				yandex.FacetSpec{Name: "temperature"},
				yandex.FacetSpec{Name: "devices.properties.temperature"},
			),
			err: yandex.ErrInvalidParams,
		},
		{
			name:    "unknown driver",
			builder: yandex.NewDeviceBuilder("s", yandex.TypeSensor).WithDrivers(src).WithCustomData(devices.CustomData{Driver: "zigbee"}),
			err:     drivers.ErrDriverNotFound,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.builder.Build()
			assert.ErrorIs(t, err, tc.err)
		})
	}

	_, err := yandex.NewDeviceBuilder("", yandex.TypeLight).Build()
	assert.Error(t, err)
}

func TestActionSpecs(t *testing.T) {
	configured := yandex.Facets{
		{Name: "on_off", Params: yandex.FacetParams{"split": true}},
		{Name: "range"},
	}

	specs := yandex.ActionSpecs(context.Background(), configured, []*yandex.CapabilityAction{
		{Type: "devices.capabilities.range", State: yandex.ActionState{Instance: "brightness", Value: 30}},
		nil,
		{Type: "devices.capabilities.mode", State: yandex.ActionState{Instance: "program", Value: "eco"}},
		{Type: "devices.capabilities.on_off", State: yandex.ActionState{Instance: "on", Value: true}},
	})

	require.Len(t, specs, 2)
	assert.Equal(t, "range", specs[0].Name)
	assert.Equal(t, &yandex.Request{Action: "range", Param: "brightness", Value: 30}, specs[0].Request)
	assert.Equal(t, "on_off", specs[1].Name)
	assert.Equal(t, yandex.FacetParams{"split": true}, specs[1].Params)
	assert.Equal(t, &yandex.Request{Action: "on_off", Param: "on", Value: true}, specs[1].Request)

	assert.Nil(t, configured[0].Request, "configured facets untouched")
}

func TestQuerySpecs(t *testing.T) {
	caps, props := yandex.QuerySpecs(
		yandex.Facets{
			{Name: "on_off"},
			{Name: "color_setting", Params: yandex.FacetParams{"color_model": "rgb"}},
			{Name: "range", Params: yandex.FacetParams{"instance": "volume"}},
		},
		yandex.Facets{{Name: "temperature"}},
	)

	require.Len(t, caps, 3)
	assert.Equal(t, yandex.NewQueryRequest("on"), caps[0].Request)
	assert.Equal(t, yandex.NewQueryRequest("rgb"), caps[1].Request)
	assert.Equal(t, yandex.NewQueryRequest("volume"), caps[2].Request)

	require.Len(t, props, 1)
	assert.True(t, props[0].Request.IsQuery())
	assert.Equal(t, "temperature", props[0].Request.Param)
}
