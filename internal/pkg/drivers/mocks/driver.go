// Package mocks provides testify mocks of driver collaborators
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/jake-scott/alice-bridge/internal/pkg/drivers"
)

// Driver is a mock drivers.Driver
type Driver struct {
	mock.Mock
	DriverName string
}

// NewDriver creates a mock driver that asserts its expectations when the
// test ends
func NewDriver(t interface {
	mock.TestingT
	Cleanup(func())
}, name string) *Driver {
	m := &Driver{DriverName: name}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}

func (m *Driver) Name() string {
	return m.DriverName
}

func (m *Driver) Action(ctx context.Context, req drivers.Request) (drivers.Result, error) {
	args := m.Called(ctx, req)

	var res drivers.Result
	if r := args.Get(0); r != nil {
		res = r.(drivers.Result)
	}

	return res, args.Error(1)
}
