// Package mqtt drives RF and IR senders that take their commands from MQTT
// topics
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
)

// Name the driver registers under
const Name = "mqtt"

// Sender actions and the topic segment they publish under
const (
	ActionRFSend = "rfsend"
	ActionIRSend = "irsend"
)

var ErrNoTopic = errors.New("no topic for device")

// Publisher sends a payload to a topic
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Driver publishes device commands and remembers the requested state so
// that queries can be answered without a read path
type Driver struct {
	pub    Publisher
	states drivers.StateStore
	prefix string
}

func New(pub Publisher, states drivers.StateStore) *Driver {
	return &Driver{
		pub:    pub,
		states: states,
	}
}

// WithPrefix returns a copy of the driver that publishes sender topics
// under prefix
func (d *Driver) WithPrefix(prefix string) *Driver {
	nd := *d
	nd.prefix = strings.TrimSuffix(prefix, "/")
	return &nd
}

func (d *Driver) Name() string {
	return Name
}

func (d *Driver) Action(ctx context.Context, req drivers.Request) (drivers.Result, error) {
	if req.IsQuery() {
		return d.query(ctx, req)
	}

	topic, err := d.Topic(req.Params)
	if err != nil {
		return drivers.Failed(req.Instance, drivers.ErrorCodeInvalidAction, err.Error()), nil
	}

	payload, err := d.payload(req)
	if err != nil {
		return drivers.Failed(req.Instance, drivers.ErrorCodeInvalidValue, err.Error()), nil
	}

	logging.Logger(ctx).Debugf("[MQTT] device %s: publishing %d bytes to %s", req.DeviceID, len(payload), topic)

	if err := d.pub.Publish(ctx, topic, payload); err != nil {
		logging.Logger(ctx).WithError(err).Warnf("[MQTT] device %s: publish to %s failed", req.DeviceID, topic)
		return drivers.Failed(req.Instance, drivers.ErrorCodeDeviceUnreachable, err.Error()), nil
	}

	if d.states != nil && req.Instance != "" {
		if err := d.states.SaveState(ctx, req.StateKey(), req.Requested); err != nil {
			logging.Logger(ctx).WithError(err).Warnf("[MQTT] device %s: saving state", req.DeviceID)
		}
	}

	return drivers.Done(req.Instance), nil
}

func (d *Driver) query(ctx context.Context, req drivers.Request) (drivers.Result, error) {
	if d.states == nil {
		return drivers.Failed(req.Instance, drivers.ErrorCodeDeviceUnreachable, "device state unknown"), nil
	}

	v, ok, err := d.states.LoadState(ctx, req.StateKey())
	if err != nil {
		return nil, err
	}
	if !ok {
		return drivers.Failed(req.Instance, drivers.ErrorCodeDeviceUnreachable, "device state unknown"), nil
	}

	return drivers.QueryResult{Param: req.Instance, Value: v}, nil
}

// Topic derives the publish topic from the device params: an explicit
// topic, or the sender action with its frequency or protocol
func (d *Driver) Topic(params drivers.Params) (string, error) {
	if t := params.String("topic"); t != "" {
		return t, nil
	}

	sender := params.Sub("params")

	switch action := params.String("action"); action {
	case ActionRFSend:
		freq, ok := sender["freq"]
		if !ok || freq == nil {
			return "", errors.Wrap(ErrNoTopic, "rfsend needs params.freq")
		}
		return d.join("rf", fmt.Sprint(freq)), nil
	case ActionIRSend:
		proto, ok := sender["proto"]
		if !ok || proto == nil {
			return "", errors.Wrap(ErrNoTopic, "irsend needs params.proto")
		}
		return d.join("ir", fmt.Sprint(proto)), nil
	case "":
		return "", errors.Wrap(ErrNoTopic, "neither topic nor action set")
	default:
		return "", errors.Wrapf(ErrNoTopic, "unknown action %q", action)
	}
}

func (d *Driver) join(parts ...string) string {
	t := strings.Join(parts, "/")
	if d.prefix == "" {
		return t
	}

	return d.prefix + "/" + t
}

// payload is the action's command.  Devices without action data fall back
// to the sender payload in their params: a single command, or an on and an
// off command picked by the requested value.
func (d *Driver) payload(req drivers.Request) ([]byte, error) {
	v := req.Value
	if v == nil {
		switch p := req.Params.Sub("params")["payload"].(type) {
		case []interface{}:
			if len(p) == 0 {
				return nil, errors.New("empty sender payload list")
			}
			v = p[0]
			if len(p) > 1 && req.Requested == false {
				v = p[1]
			}
		default:
			v = p
		}
	}

	switch t := v.(type) {
	case nil:
		return nil, errors.New("no command payload")
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case int, int64, uint64, float64, bool:
		return []byte(fmt.Sprint(t)), nil
	}

	return json.Marshal(v)
}
