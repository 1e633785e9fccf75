package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
	"collaborative-sketch/internal/repository/mocks"
)

func TestRoomService_Exists(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockRoomRepository)
	roomService := NewRoomService(mockRepo)
	ctx := context.Background()
	mockRepo.On("Exists", ctx, uint(7)).Return(true, nil)
	mockRepo.On("Exists", ctx, uint(404)).Return(false, nil)

	// Act & Assert
	exists, err := roomService.Exists(ctx, 7)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = roomService.Exists(ctx, 404)
	require.NoError(t, err)
	assert.False(t, exists)
	mockRepo.AssertExpectations(t)
}

func TestRoomService_Exists_RepoFailure(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockRoomRepository)
	roomService := NewRoomService(mockRepo)
	ctx := context.Background()
	mockRepo.On("Exists", ctx, uint(7)).Return(false, errors.New("connection refused"))

	// Act
	_, err := roomService.Exists(ctx, 7)

	// Assert: 底层错误不透传
	assert.ErrorIs(t, err, ErrInternalServer)
}

func TestRoomService_FindByID(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockRoomRepository)
	roomService := NewRoomService(mockRepo)
	ctx := context.Background()
	mockRepo.On("FindByID", ctx, uint(7)).Return(&domain.Room{ID: 7, Slug: "sketch-7"}, nil)
	mockRepo.On("FindByID", ctx, uint(404)).Return(nil, repository.ErrRoomNotFound)

	// Act & Assert
	room, err := roomService.FindByID(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, "sketch-7", room.Slug)

	_, err = roomService.FindByID(ctx, 404)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestRoomService_FindBySlug(t *testing.T) {
	// Arrange
	mockRepo := new(mocks.MockRoomRepository)
	roomService := NewRoomService(mockRepo)
	ctx := context.Background()
	mockRepo.On("FindBySlug", ctx, "sketch-7").Return(&domain.Room{ID: 7, Slug: "sketch-7"}, nil)
	mockRepo.On("FindBySlug", ctx, "nope").Return(nil, repository.ErrRoomNotFound)

	// Act & Assert
	room, err := roomService.FindBySlug(ctx, "sketch-7")
	require.NoError(t, err)
	assert.Equal(t, uint(7), room.ID)

	_, err = roomService.FindBySlug(ctx, "nope")
	assert.ErrorIs(t, err, ErrRoomNotFound)
}
