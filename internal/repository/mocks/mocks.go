// Package mocks 提供 repository 接口的 testify mock 实现，仅用于测试。
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"collaborative-sketch/internal/domain"
)

// MockRoomRepository 是 repository.RoomRepository 的 mock 实现
type MockRoomRepository struct {
	mock.Mock
}

func (m *MockRoomRepository) FindByID(ctx context.Context, id uint) (*domain.Room, error) {
	args := m.Called(ctx, id)
	if room, ok := args.Get(0).(*domain.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomRepository) FindBySlug(ctx context.Context, slug string) (*domain.Room, error) {
	args := m.Called(ctx, slug)
	if room, ok := args.Get(0).(*domain.Room); ok {
		return room, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRoomRepository) Exists(ctx context.Context, id uint) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

// MockEventRepository 是 repository.EventRepository 的 mock 实现
type MockEventRepository struct {
	mock.Mock
}

func (m *MockEventRepository) Save(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventRepository) RecentByRoom(ctx context.Context, roomID uint, limit int) ([]domain.Event, error) {
	args := m.Called(ctx, roomID, limit)
	if events, ok := args.Get(0).([]domain.Event); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEventRepository) CountByRoom(ctx context.Context, roomID uint) (int64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockEventRepository) MaxSeqByRoom(ctx context.Context, roomID uint) (uint64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(uint64), args.Error(1)
}

// MockStateRepository 是 repository.StateRepository 的 mock 实现
type MockStateRepository struct {
	mock.Mock
}

func (m *MockStateRepository) NextSeq(ctx context.Context, roomID uint) (uint64, error) {
	args := m.Called(ctx, roomID)
	return args.Get(0).(uint64), args.Error(1)
}

func (m *MockStateRepository) AdvanceSeqTo(ctx context.Context, roomID uint, floor uint64) error {
	args := m.Called(ctx, roomID, floor)
	return args.Error(0)
}

func (m *MockStateRepository) PushEventToHistory(ctx context.Context, roomID uint, event domain.Event) error {
	args := m.Called(ctx, roomID, event)
	return args.Error(0)
}

func (m *MockStateRepository) RecentEvents(ctx context.Context, roomID uint, limit int) ([]domain.Event, error) {
	args := m.Called(ctx, roomID, limit)
	if events, ok := args.Get(0).([]domain.Event); ok {
		return events, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateRepository) RebuildHistory(ctx context.Context, roomID uint, events []domain.Event) error {
	args := m.Called(ctx, roomID, events)
	return args.Error(0)
}

func (m *MockStateRepository) TrimHistory(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockStateRepository) MarkRoomActive(ctx context.Context, roomID uint) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *MockStateRepository) DrainActiveRooms(ctx context.Context) ([]uint, error) {
	args := m.Called(ctx)
	if roomIDs, ok := args.Get(0).([]uint); ok {
		return roomIDs, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}
