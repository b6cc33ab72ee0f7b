package mqtt_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers/mqtt"
	"github.com/jake-scott/alice-bridge/internal/pkg/store"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	return m.Called(topic, string(payload)).Error(0)
}

func rfParams() drivers.Params {
	return drivers.Params{
		"action": "rfsend",
		"params": map[string]interface{}{"freq": 433, "payload": []interface{}{"1111", "0000"}},
	}
}

func TestTopic(t *testing.T) {
	d := mqtt.New(nil, nil).WithPrefix("bridge/")

	tests := []struct {
		params drivers.Params
		topic  string
	}{
		{drivers.Params{"topic": "custom/lamp", "action": "rfsend"}, "custom/lamp"},
		{rfParams(), "bridge/rf/433"},
		{drivers.Params{"action": "irsend", "params": map[string]interface{}{"proto": "NEC"}}, "bridge/ir/NEC"},
	}
	for _, tc := range tests {
		topic, err := d.Topic(tc.params)
		require.NoError(t, err)
		assert.Equal(t, tc.topic, topic)
	}

	for _, p := range []drivers.Params{
		{},
		{"action": "rfsend"},
		{"action": "irsend", "params": map[string]interface{}{}},
		{"action": "zwave"},
	} {
		_, err := d.Topic(p)
		assert.ErrorIs(t, err, mqtt.ErrNoTopic, "%v", p)
	}

	topic, err := mqtt.New(nil, nil).Topic(rfParams())
	require.NoError(t, err)
	assert.Equal(t, "rf/433", topic)
}

func TestActionPublishesAndRemembers(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", "rf/433", "OFF-CODE").Return(nil).Once()
	defer pub.AssertExpectations(t)

	states := store.NewMemoryStates()
	d := mqtt.New(pub, states)
	ctx := context.Background()

	res, err := d.Action(ctx, drivers.Request{
		DeviceID:  "lamp",
		Action:    "on_off",
		Instance:  "on",
		Param:     "on_off",
		Value:     "OFF-CODE",
		Requested: false,
		Params:    rfParams(),
	})
	require.NoError(t, err)
	assert.Equal(t, drivers.Done("on"), res)

	res, err = d.Action(ctx, drivers.Request{DeviceID: "lamp", Action: drivers.ActionQuery, Instance: "on", Param: "on"})
	require.NoError(t, err)
	assert.Equal(t, drivers.QueryResult{Param: "on", Value: false}, res)
}

func TestActionSenderPayloadFallback(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", "rf/433", "0000").Return(nil).Once()
	pub.On("Publish", "rf/433", "1111").Return(nil).Once()
	defer pub.AssertExpectations(t)

	d := mqtt.New(pub, store.NewMemoryStates())

	for _, v := range []interface{}{false, true} {
		res, err := d.Action(context.Background(), drivers.Request{
			DeviceID: "plug", Action: "on_off", Instance: "on", Requested: v, Params: rfParams(),
		})
		require.NoError(t, err)
		assert.True(t, res.(drivers.ActionResult).IsDone())
	}
}

func TestActionFailures(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", "home/tv", "42").Return(assert.AnError).Once()
	defer pub.AssertExpectations(t)

	d := mqtt.New(pub, store.NewMemoryStates())
	ctx := context.Background()

	res, err := d.Action(ctx, drivers.Request{DeviceID: "tv", Action: "range", Instance: "channel", Value: 42, Params: drivers.Params{"topic": "home/tv"}})
	require.NoError(t, err)
	assert.Equal(t, drivers.ErrorCodeDeviceUnreachable, res.(drivers.ActionResult).ErrorCode)

	res, err = d.Action(ctx, drivers.Request{DeviceID: "tv", Action: "range", Instance: "channel", Value: 42})
	require.NoError(t, err)
	assert.Equal(t, drivers.ErrorCodeInvalidAction, res.(drivers.ActionResult).ErrorCode)

	res, err = d.Action(ctx, drivers.Request{DeviceID: "tv", Action: "range", Instance: "channel", Params: drivers.Params{"topic": "home/tv"}})
	require.NoError(t, err)
	assert.Equal(t, drivers.ErrorCodeInvalidValue, res.(drivers.ActionResult).ErrorCode)

	res, err = d.Action(ctx, drivers.Request{DeviceID: "tv", Action: drivers.ActionQuery, Instance: "channel"})
	require.NoError(t, err)
	assert.Equal(t, drivers.ErrorCodeDeviceUnreachable, res.(drivers.ActionResult).ErrorCode, "failed publish leaves no state")
}

func TestStructuredPayload(t *testing.T) {
	pub := &mockPublisher{}
	pub.On("Publish", "home/ac", `{"mode":"cool"}`).Return(nil).Once()
	defer pub.AssertExpectations(t)

	res, err := mqtt.New(pub, nil).Action(context.Background(), drivers.Request{
		DeviceID: "ac", Action: "on_off", Instance: "on", Value: map[string]interface{}{"mode": "cool"},
		Params: drivers.Params{"topic": "home/ac"},
	})
	require.NoError(t, err)
	assert.True(t, res.(drivers.ActionResult).IsDone())
}
