package cmd

import (
	"context"

	"github.com/spf13/viper"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers/loopback"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers/mqtt"
	"github.com/jake-scott/alice-bridge/internal/pkg/history"
	"github.com/jake-scott/alice-bridge/internal/pkg/logging"
	"github.com/jake-scott/alice-bridge/internal/pkg/store"
)

func openStore(ctx context.Context) (store.Backend, error) {
	return store.Open(ctx, store.Config{
		Type: viper.GetString("store.type"),
		Path: viper.GetString("store.path"),
	})
}

// stateStoreFor keeps driver state next to the devices when the backend can
// hold it, in memory otherwise
func stateStoreFor(b store.Backend) drivers.StateStore {
	if s, ok := b.(drivers.StateStore); ok {
		return s
	}

	logging.Logger(nil).Warn("device store cannot persist state, keeping it in memory")
	return store.NewMemoryStates()
}

func mqttConfig() mqtt.Config {
	return mqtt.Config{
		Broker:         viper.GetString("mqtt.broker"),
		ClientID:       viper.GetString("mqtt.client-id"),
		Username:       viper.GetString("mqtt.username"),
		Password:       viper.GetString("mqtt.password"),
		Prefix:         viper.GetString("mqtt.prefix"),
		QoS:            byte(viper.GetUint("mqtt.qos")),
		ConnectTimeout: viper.GetDuration("mqtt.connect-timeout"),
		PublishTimeout: viper.GetDuration("mqtt.publish-timeout"),
	}
}

// startDrivers connects the transports and installs the process wide
// driver registry.  The returned func releases the connections.
func startDrivers(states drivers.StateStore) (func(), error) {
	all := []drivers.Driver{loopback.New(states)}
	closer := func() {}

	cfg := mqttConfig()
	if cfg.Broker != "" {
		client, err := mqtt.Connect(cfg)
		if err != nil {
			return nil, err
		}
		closer = client.Close

		all = append(all, mqtt.New(client, states).WithPrefix(cfg.Prefix))
	} else {
		logging.Logger(nil).Warn("mqtt.broker not set, the mqtt driver is disabled")
	}

	if err := drivers.Init(all...); err != nil {
		closer()
		return nil, err
	}

	logging.Logger(nil).Infof("drivers: %v", drivers.Default().Names())
	return closer, nil
}

// offlineDrivers knows every driver name without touching a transport, for
// validating configuration
func offlineDrivers(states drivers.StateStore) (*drivers.Registry, error) {
	return drivers.NewRegistry(
		loopback.New(states),
		mqtt.New(nil, states).WithPrefix(viper.GetString("mqtt.prefix")),
	)
}

func startHistory(ctx context.Context) (history.Recorder, error) {
	if !viper.GetBool("influxdb.enabled") {
		return history.Nop{}, nil
	}

	return history.Connect(ctx, history.Config{
		URL:           viper.GetString("influxdb.url"),
		Token:         viper.GetString("influxdb.token"),
		Org:           viper.GetString("influxdb.org"),
		Bucket:        viper.GetString("influxdb.bucket"),
		BatchSize:     viper.GetUint("influxdb.batch-size"),
		FlushInterval: viper.GetDuration("influxdb.flush-interval"),
	})
}
