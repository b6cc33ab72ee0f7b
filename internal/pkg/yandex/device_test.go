package yandex_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/alice-bridge/internal/pkg/devices"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers/mocks"
	"github.com/jake-scott/alice-bridge/internal/pkg/yandex"
)

func newMock(t *testing.T) (*mocks.Driver, drivers.Source) {
	m := mocks.NewDriver(t, "mock")
	reg, err := drivers.NewRegistry(m)
	require.NoError(t, err)

	return m, reg
}

func lampBuilder(src drivers.Source) yandex.DeviceBuilder {
	return yandex.NewDeviceBuilder("lamp-1", "devices.types.light").
		WithName("Lamp").
		WithRoom("Kitchen").
		WithDrivers(src).
		WithCustomData(devices.CustomData{
			Driver: "mock",
			Params: drivers.Params{"topic": "home/lamp"},
			Actions: map[string]devices.ActionConfig{
				devices.ActionOnOff: {Data: devices.Payloads{"ON", "OFF"}},
				devices.ActionRange: {Data: devices.Payloads{"SET"}},
			},
		})
}

func TestSplitOnOffAction(t *testing.T) {
	m, src := newMock(t)

	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool {
		return r.Action == devices.ActionOnOff && r.Instance == "on" && r.Value == "OFF" && r.Requested == false
	})).Return(drivers.ActionResult{Status: drivers.StatusDone}, nil).Once()

	d, err := lampBuilder(src).
		WithCapabilities(yandex.FacetSpec{
			Name:    "on_off",
			Params:  yandex.FacetParams{"split": true},
			Request: yandex.NewActionRequest("devices.capabilities.on_off", "on", false),
		}).
		Build()
	require.NoError(t, err)

	require.NoError(t, d.Resolve(context.Background(), nil))

	b, err := json.Marshal(d.Capabilities()[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"devices.capabilities.on_off","state":{"instance":"on","action_result":{"status":"DONE"}}}`, string(b))
}

func TestUnresolvedPropertyDescriptor(t *testing.T) {
	_, src := newMock(t)

	d, err := yandex.NewDeviceBuilder("thermo", yandex.TypeSensor).
		WithDrivers(src).
		WithCustomData(devices.CustomData{Driver: "mock"}).
		WithProperties(yandex.FacetSpec{
			Name:    yandex.PropertyTemperature,
			Request: yandex.NewQueryRequest(yandex.PropertyTemperature),
		}).
		Build()
	require.NoError(t, err)

	require.NotNil(t, d.Properties()[0].Pending())

	b, err := json.Marshal(d.Properties()[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"devices.properties.float","retrievable":true,"reportable":false,"parameters":{"instance":"temperature","unit":"celsius"}}`, string(b))
}

func TestResolveQueryThenNoSecondCall(t *testing.T) {
	m, src := newMock(t)

	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool {
		return r.IsQuery() && r.Instance == "brightness" && r.Params["user_id"] == "u1"
	})).Return(drivers.QueryResult{Param: "brightness", Value: 40}, nil)

	d, err := lampBuilder(src).
		WithCapabilities(yandex.FacetSpec{Name: "range", Request: yandex.NewQueryRequest("brightness")}).
		Build()
	require.NoError(t, err)

	require.NoError(t, d.Resolve(context.Background(), drivers.Params{"user_id": "u1"}))
	require.NoError(t, d.Resolve(context.Background(), drivers.Params{"user_id": "u1"}))
	m.AssertNumberOfCalls(t, "Action", 1)

	c := d.Capabilities()[0]
	assert.Nil(t, c.Pending())
	assert.True(t, c.Resolved())

	v, ok := c.Value()
	assert.True(t, ok)
	assert.Equal(t, 40, v)
	assert.Nil(t, c.ActionResult())

	b, err := json.Marshal(c)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"devices.capabilities.range","state":{"instance":"brightness","value":40}}`, string(b))
}

func TestUntaggedFacetsUntouched(t *testing.T) {
	_, src := newMock(t)

	d, err := lampBuilder(src).
		WithCapabilities(yandex.FacetSpec{Name: "on_off"}, yandex.FacetSpec{Name: "color_setting", Params: yandex.FacetParams{"color_model": "rgb"}}).
		Build()
	require.NoError(t, err)

	require.NoError(t, d.Resolve(context.Background(), nil))

	for _, c := range d.Capabilities() {
		assert.False(t, c.Resolved())
		assert.Nil(t, c.State())
	}
}

func TestDriverFailuresBecomeResults(t *testing.T) {
	m, src := newMock(t)

	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool { return r.Instance == "on" })).
		Return(nil, assert.AnError).Once()
	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool { return r.Instance == "brightness" })).
		Return(nil, nil).Once()
	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool { return r.Instance == "backlight" })).
		Run(func(mock.Arguments) { panic("boom") }).Return(nil, nil).Once()

	d, err := lampBuilder(src).
		WithCapabilities(
			yandex.FacetSpec{Name: "on_off", Request: yandex.NewQueryRequest("on")},
			yandex.FacetSpec{Name: "range", Request: yandex.NewQueryRequest("brightness")},
			yandex.FacetSpec{Name: "toggle", Request: yandex.NewQueryRequest("backlight")},
		).
		Build()
	require.NoError(t, err)

	require.NoError(t, d.Resolve(context.Background(), nil))

	for _, c := range d.Capabilities() {
		ar := c.ActionResult()
		require.NotNil(t, ar, c.Name())
		assert.Equal(t, drivers.StatusError, ar.Status)
		assert.Equal(t, drivers.ErrorCodeInternal, ar.ErrorCode)

		_, ok := c.Value()
		assert.False(t, ok)
	}
}

func TestPointerResults(t *testing.T) {
	m, src := newMock(t)

	var noAction *drivers.ActionResult
	var noQuery *drivers.QueryResult
	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool { return r.Instance == "on" })).
		Return(noAction, nil).Once()
	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool { return r.Instance == "brightness" })).
		Return(noQuery, nil).Once()
	m.On("Action", mock.Anything, mock.MatchedBy(func(r drivers.Request) bool { return r.Instance == "backlight" })).
		Return(&drivers.QueryResult{Param: "backlight", Value: true}, nil).Once()

	d, err := lampBuilder(src).
		WithCapabilities(
			yandex.FacetSpec{Name: "on_off", Request: yandex.NewQueryRequest("on")},
			yandex.FacetSpec{Name: "range", Request: yandex.NewQueryRequest("brightness")},
			yandex.FacetSpec{Name: "toggle", Request: yandex.NewQueryRequest("backlight")},
		).
		Build()
	require.NoError(t, err)

	assert.NotPanics(t, func() {
		require.NoError(t, d.Resolve(context.Background(), nil))
	})

	caps := d.Capabilities()
	for _, c := range caps[:2] {
		ar := c.ActionResult()
		require.NotNil(t, ar, c.Name())
		assert.Equal(t, drivers.StatusError, ar.Status)
		assert.Equal(t, drivers.ErrorCodeInternal, ar.ErrorCode)
	}

	v, ok := caps[2].Value()
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestSetResultIgnoresNilPointers(t *testing.T) {
	var sv yandex.StatableValue

	assert.NotPanics(t, func() {
		sv.SetResult((*drivers.ActionResult)(nil))
		sv.SetResult((*drivers.QueryResult)(nil))
	})
	assert.Nil(t, sv.ActionResult())
	_, ok := sv.Value()
	assert.False(t, ok)
}

func TestCancelledContextSkipsDriver(t *testing.T) {
	_, src := newMock(t)

	d, err := lampBuilder(src).
		WithCapabilities(yandex.FacetSpec{Name: "on_off", Request: yandex.NewActionRequest("on_off", "on", true)}).
		Build()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, d.Resolve(ctx, nil))

	ar := d.Capabilities()[0].ActionResult()
	require.NotNil(t, ar)
	assert.Equal(t, drivers.ErrorCodeDeviceUnreachable, ar.ErrorCode)
}

func TestUnconfiguredActionIsConfigError(t *testing.T) {
	_, src := newMock(t)

	d, err := yandex.NewDeviceBuilder("plug", yandex.TypeSocket).
		WithDrivers(src).
		WithCustomData(devices.CustomData{Driver: "mock"}).
		WithCapabilities(yandex.FacetSpec{Name: "on_off", Request: yandex.NewActionRequest("on_off", "on", true)}).
		Build()
	require.NoError(t, err)

	assert.ErrorIs(t, d.Resolve(context.Background(), nil), devices.ErrActionNotConfigured)
}

func TestResolveWithoutDriver(t *testing.T) {
	d, err := yandex.NewDeviceBuilder("plug", yandex.TypeSocket).
		WithCapabilities(yandex.FacetSpec{Name: "on_off", Request: yandex.NewQueryRequest("on")}).
		Build()
	require.NoError(t, err)

	assert.ErrorIs(t, d.Resolve(context.Background(), nil), yandex.ErrNoDriver)
}

func TestActionThenQueryFlipsState(t *testing.T) {
	sv := &yandex.StatableValue{}
	sv.SetResult(drivers.Done("on"))
	require.NotNil(t, sv.ActionResult())

	sv.SetResult(&drivers.QueryResult{Param: "on", Value: true})
	assert.Nil(t, sv.ActionResult())
	v, ok := sv.Value()
	assert.True(t, ok)
	assert.Equal(t, true, v)

	sv.SetResult(nil)
	assert.True(t, sv.Resolved())
}

func TestDeviceJSON(t *testing.T) {
	_, src := newMock(t)

	d, err := lampBuilder(src).
		WithDescription("Ceiling").
		WithDeviceInfo(&yandex.DeviceInfo{Manufacturer: "Acme", HwVersion: "2"}).
		WithCapabilities(
			yandex.FacetSpec{Name: "on_off"},
			yandex.FacetSpec{Name: "range", Params: yandex.FacetParams{"reportable": true, "retrievable": false}},
		).
		Build()
	require.NoError(t, err)

	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"id": "lamp-1",
		"name": "Lamp",
		"type": "devices.types.light",
		"description": "Ceiling",
		"room": "Kitchen",
		"capabilities": [
			{"type": "devices.capabilities.on_off", "parameters": {"split": false}},
			{"type": "devices.capabilities.range", "retrievable": false, "reportable": true,
			 "parameters": {"instance": "brightness", "random_access": true}}
		],
		"device_info": {"manufacturer": "Acme", "hw_version": "2"},
		"custom_data": {
			"driver": "mock",
			"params": {"topic": "home/lamp"},
			"actions": {"on_off": {"data": ["ON", "OFF"]}, "range": {"data": ["SET"]}}
		}
	}`, string(b))
}
