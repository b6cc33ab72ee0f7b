// Package store loads users and their device records for the device API
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/jake-scott/alice-bridge/internal/pkg/devices"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/yandex"
)

var (
	ErrUnknownToken = errors.New("unknown token")
	ErrUnknownUser  = errors.New("unknown user")
	ErrUnknownStore = errors.New("unknown store type")
)

// User owns tokens and devices
type User struct {
	ID       string `json:"id" yaml:"id"`
	Nickname string `json:"nickname" yaml:"nickname"`
}

// DeviceRecord is one configured device of a user
type DeviceRecord struct {
	DeviceID     string                          `json:"device_id" yaml:"device_id"`
	Name         string                          `json:"name" yaml:"name"`
	Description  string                          `json:"description,omitempty" yaml:"description"`
	Room         string                          `json:"room,omitempty" yaml:"room"`
	DeviceType   string                          `json:"device_type" yaml:"device_type"`
	Driver       string                          `json:"driver" yaml:"driver"`
	Params       drivers.Params                  `json:"params,omitempty" yaml:"params"`
	Actions      map[string]devices.ActionConfig `json:"actions,omitempty" yaml:"actions"`
	Capabilities yandex.Facets                   `json:"capabilities,omitempty" yaml:"capabilities"`
	Properties   yandex.Facets                   `json:"properties,omitempty" yaml:"properties"`
	DeviceInfo   *yandex.DeviceInfo              `json:"device_info,omitempty" yaml:"device_info"`
}

// CustomData is the driver binding of the record
func (r DeviceRecord) CustomData() devices.CustomData {
	return devices.CustomData{
		Driver:  r.Driver,
		Params:  r.Params,
		Actions: r.Actions,
	}
}

// Builder starts a device builder with everything but the facets, which
// differ between a listing, a query and an action
func (r DeviceRecord) Builder(src drivers.Source) yandex.DeviceBuilder {
	return yandex.NewDeviceBuilder(r.DeviceID, r.DeviceType).
		WithName(r.Name).
		WithRoom(r.Room).
		WithDescription(r.Description).
		WithDeviceInfo(r.DeviceInfo).
		WithCustomData(r.CustomData()).
		WithDrivers(src)
}

// Backend is the read side of user and device persistence used by the
// handlers
type Backend interface {
	UserByToken(ctx context.Context, token string) (*User, error)
	LoadDevices(ctx context.Context, userID string) ([]DeviceRecord, error)
	UnlinkUser(ctx context.Context, userID string) error
	Close() error
}

// Seed is the YAML form of a set of users with their tokens and devices
type Seed struct {
	Users []SeedUser `yaml:"users"`
}

type SeedUser struct {
	User    `yaml:",inline"`
	Tokens  []string       `yaml:"tokens"`
	Devices []DeviceRecord `yaml:"devices"`
}

// Config selects and configures a backend
type Config struct {
	Type string
	Path string
}

// Open returns the configured backend
func Open(ctx context.Context, cfg Config) (Backend, error) {
	switch cfg.Type {
	case "sqlite", "":
		return OpenSQLite(ctx, cfg.Path)
	case "file":
		return LoadFile(cfg.Path)
	}

	return nil, errors.Wrapf(ErrUnknownStore, "%q", cfg.Type)
}
