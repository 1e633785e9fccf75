package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
)

// RoomService 提供房间的只读查询。
// 房间由外部的 CRUD 服务创建，这里只校验存在性和读取元数据。
type RoomService struct {
	roomRepo repository.RoomRepository
}

// NewRoomService 创建 RoomService 实例
func NewRoomService(roomRepo repository.RoomRepository) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	return &RoomService{roomRepo: roomRepo}
}

// Exists 检查房间是否存在。
// 存储层故障映射为 ErrInternalServer，不暴露底层细节。
func (s *RoomService) Exists(ctx context.Context, roomID uint) (bool, error) {
	exists, err := s.roomRepo.Exists(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to check room existence")
		return false, ErrInternalServer
	}
	return exists, nil
}

// FindByID 根据 ID 获取房间。
func (s *RoomService) FindByID(ctx context.Context, roomID uint) (*domain.Room, error) {
	room, err := s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("room_id", roomID).Error("Failed to find room by id")
		return nil, ErrInternalServer
	}
	return room, nil
}

// FindBySlug 根据唯一别名获取房间。
func (s *RoomService) FindBySlug(ctx context.Context, slug string) (*domain.Room, error) {
	room, err := s.roomRepo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logrus.WithError(err).WithField("slug", slug).Error("Failed to find room by slug")
		return nil, ErrInternalServer
	}
	return room, nil
}
