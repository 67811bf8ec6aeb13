package mocks

import (
	"context"

	"campaign-server/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockStatRecomputePublisher is a mock implementation of messaging.StatRecomputePublisher.
type MockStatRecomputePublisher struct {
	mock.Mock
}

func (m *MockStatRecomputePublisher) PublishStatRecompute(ctx context.Context, payload messaging.StatRecomputePayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

// MockClientUpdatePublisher is a mock implementation of messaging.ClientUpdatePublisher.
type MockClientUpdatePublisher struct {
	mock.Mock
}

func (m *MockClientUpdatePublisher) PublishTurnUpdate(ctx context.Context, payload messaging.ClientTurnUpdatePayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}
