package store

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jake-scott/alice-bridge/internal/pkg/devices"
	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
	"github.com/jake-scott/alice-bridge/internal/pkg/yandex"
)

const seedYAML = `
users:
  - id: u1
    nickname: alice
    tokens: [tok-1, tok-2]
    devices:
      - device_id: lamp
        name: Lamp
        room: Kitchen
        device_type: devices.types.light
        driver: mqtt
        params:
          action: rfsend
          params:
            freq: 433
        actions:
          on_off: [ "1111", "0000" ]
          range:
            data: SET
        capabilities:
          on_off:
            split: true
          range:
            instance: brightness
        device_info:
          manufacturer: Acme
      - device_id: thermo
        name: Thermometer
        device_type: sensor
        driver: loopback
        properties:
          temperature:
          humidity:
            reportable: true
  - id: u2
    tokens: [tok-3]
`

func parseSeed(t *testing.T) Seed {
	seed, err := ParseSeed(strings.NewReader(seedYAML))
	require.NoError(t, err)
	return seed
}

func TestParseSeed(t *testing.T) {
	seed := parseSeed(t)

	require.Len(t, seed.Users, 2)
	u := seed.Users[0]
	assert.Equal(t, User{ID: "u1", Nickname: "alice"}, u.User)
	assert.Equal(t, []string{"tok-1", "tok-2"}, u.Tokens)

	require.Len(t, u.Devices, 2)
	lamp := u.Devices[0]
	assert.Equal(t, devices.Payloads{"1111", "0000"}, lamp.Actions["on_off"].Data)
	assert.Equal(t, devices.Payloads{"SET"}, lamp.Actions["range"].Data)
	assert.Equal(t, []string{"on_off", "range"}, facetNames(lamp.Capabilities))
	assert.Equal(t, drivers.Params{"freq": 433}, lamp.Params.Sub("params"))
	assert.Equal(t, "Acme", lamp.DeviceInfo.Manufacturer)

	assert.Equal(t, []string{"temperature", "humidity"}, facetNames(u.Devices[1].Properties))

	_, err := ParseSeed(strings.NewReader("users:\n  - id: u1\n    colour: red\n"))
	assert.Error(t, err, "unknown keys are rejected")
}

func facetNames(f yandex.Facets) []string {
	var names []string
	for _, s := range f {
		names = append(names, s.Name)
	}
	return names
}

func TestRecordBuildsDevice(t *testing.T) {
	seed := parseSeed(t)
	rec := seed.Users[0].Devices[0]

	src, err := drivers.NewRegistry(namedDriver("mqtt"))
	require.NoError(t, err)

	d, err := rec.Builder(src).WithCapabilities(rec.Capabilities...).Build()
	require.NoError(t, err)
	assert.Equal(t, "lamp", d.ID())
	assert.Equal(t, "light", d.Type())
	assert.Len(t, d.Capabilities(), 2)
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(parseSeed(t))
	require.NoError(t, err)
	ctx := context.Background()

	u, err := b.UserByToken(ctx, "tok-2")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)

	_, err = b.UserByToken(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownToken)

	recs, err := b.LoadDevices(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "lamp", recs[0].DeviceID)
	assert.Equal(t, "thermo", recs[1].DeviceID)

	_, err = b.LoadDevices(ctx, "u9")
	assert.ErrorIs(t, err, ErrUnknownUser)

	require.NoError(t, b.UnlinkUser(ctx, "u1"))
	_, err = b.UserByToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrUnknownToken)
	assert.ErrorIs(t, b.UnlinkUser(ctx, "u9"), ErrUnknownUser)
}

func TestFileBackendRejectsSharedTokens(t *testing.T) {
	_, err := NewFileBackend(Seed{Users: []SeedUser{
		{User: User{ID: "a"}, Tokens: []string{"t"}},
		{User: User{ID: "b"}, Tokens: []string{"t"}},
	}})
	assert.Error(t, err)

	_, err = NewFileBackend(Seed{Users: []SeedUser{{User: User{ID: "a"}}, {User: User{ID: "a"}}}})
	assert.Error(t, err)
}

func openTestDB(t *testing.T) (*SQLiteBackend, string) {
	path := filepath.Join(t.TempDir(), "store", "devices.db")

	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db, path
}

func TestSQLiteImportAndLoad(t *testing.T) {
	db, path := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Import(ctx, parseSeed(t)))

	u, err := db.UserByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, &User{ID: "u1", Nickname: "alice"}, u)

	recs, err := db.LoadDevices(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 2)

	lamp := recs[0]
	assert.Equal(t, "lamp", lamp.DeviceID)
	assert.Equal(t, "Kitchen", lamp.Room)
	assert.Equal(t, "mqtt", lamp.Driver)
	assert.Equal(t, drivers.Params{"freq": 433.0}, lamp.Params.Sub("params"))
	assert.Equal(t, devices.Payloads{"1111", "0000"}, lamp.Actions["on_off"].Data)
	assert.Equal(t, []string{"on_off", "range"}, facetNames(lamp.Capabilities))
	assert.Equal(t, yandex.FacetParams{"split": true}, lamp.Capabilities[0].Params)
	assert.Equal(t, &yandex.DeviceInfo{Manufacturer: "Acme"}, lamp.DeviceInfo)

	assert.Equal(t, "thermo", recs[1].DeviceID)
	assert.Nil(t, recs[1].DeviceInfo)
	assert.Equal(t, []string{"temperature", "humidity"}, facetNames(recs[1].Properties))

	// reopening keeps the data and applies no migration twice
	require.NoError(t, db.Close())
	db2, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db2.Close()

	recs, err = db2.LoadDevices(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestSQLiteReimportReplacesDevices(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.Import(ctx, parseSeed(t)))
	require.NoError(t, db.Import(ctx, Seed{Users: []SeedUser{{
		User:    User{ID: "u1", Nickname: "al"},
		Devices: []DeviceRecord{{DeviceID: "plug", DeviceType: "socket", Driver: "loopback"}},
	}}}))

	recs, err := db.LoadDevices(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "plug", recs[0].DeviceID)

	u, err := db.UserByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "al", u.Nickname)
}

func TestSQLiteUnlink(t *testing.T) {
	db, _ := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Import(ctx, parseSeed(t)))

	require.NoError(t, db.UnlinkUser(ctx, "u1"))

	_, err := db.UserByToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrUnknownToken)

	recs, err := db.LoadDevices(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, recs, 2, "devices survive an unlink")

	assert.ErrorIs(t, db.UnlinkUser(ctx, "u9"), ErrUnknownUser)
}

func TestStateStores(t *testing.T) {
	db, _ := openTestDB(t)

	for name, s := range map[string]drivers.StateStore{"sqlite": db, "memory": NewMemoryStates()} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			on := drivers.StateKey{UserID: "u1", DeviceID: "lamp", Instance: "on"}
			brightness := drivers.StateKey{UserID: "u1", DeviceID: "lamp", Instance: "brightness"}

			_, ok, err := s.LoadState(ctx, on)
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, s.SaveState(ctx, on, true))
			require.NoError(t, s.SaveState(ctx, on, false))
			require.NoError(t, s.SaveState(ctx, brightness, "50"))

			v, ok, err := s.LoadState(ctx, on)
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, false, v)

			v, _, err = s.LoadState(ctx, brightness)
			require.NoError(t, err)
			assert.Equal(t, "50", v)
		})
	}
}

func TestStatesAreOwnedByUser(t *testing.T) {
	db, _ := openTestDB(t)

	for name, s := range map[string]drivers.StateStore{"sqlite": db, "memory": NewMemoryStates()} {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			alice := drivers.StateKey{UserID: "alice", DeviceID: "lamp", Instance: "on"}
			bob := drivers.StateKey{UserID: "bob", DeviceID: "lamp", Instance: "on"}

			require.NoError(t, s.SaveState(ctx, alice, true))

			_, ok, err := s.LoadState(ctx, bob)
			require.NoError(t, err)
			assert.False(t, ok, "another user's lamp has no state")

			require.NoError(t, s.SaveState(ctx, bob, false))

			v, _, err := s.LoadState(ctx, alice)
			require.NoError(t, err)
			assert.Equal(t, true, v)
		})
	}
}

func TestSQLiteOwnedStatesSurviveReopen(t *testing.T) {
	db, path := openTestDB(t)
	ctx := context.Background()
	key := drivers.StateKey{UserID: "u1", DeviceID: "lamp", Instance: "on"}
	require.NoError(t, db.SaveState(ctx, key, true))
	require.NoError(t, db.Close())

	db, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	v, ok, err := db.LoadState(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, true, v)
}

func TestOpenUnknownStore(t *testing.T) {
	_, err := Open(context.Background(), Config{Type: "redis"})
	assert.ErrorIs(t, err, ErrUnknownStore)
}

type namedDriver string

func (n namedDriver) Name() string { return string(n) }

func (n namedDriver) Action(ctx context.Context, req drivers.Request) (drivers.Result, error) {
	return drivers.Done(req.Instance), nil
}
