// Package mocks provides test doubles for the zerobounce client.
package mocks

import (
	"context"

	zerobounce "github.com/sells-group/buyer-group-cli/pkg/zerobounce"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Validate provides a mock function with given fields: ctx, email
func (_m *MockClient) Validate(ctx context.Context, email string) (*zerobounce.Result, error) {
	ret := _m.Called(ctx, email)

	if len(ret) == 0 {
		panic("no return value specified for Validate")
	}

	var r0 *zerobounce.Result
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string) (*zerobounce.Result, error)); ok {
		return rf(ctx, email)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string) *zerobounce.Result); ok {
		r0 = rf(ctx, email)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*zerobounce.Result)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, email)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
