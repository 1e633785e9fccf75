package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
	"collaborative-sketch/internal/repository"
	"collaborative-sketch/internal/service"
)

const (
	defaultEventLimit = 50
	maxEventLimit     = 500
)

// RoomHandler 封装房间与事件日志的只读 HTTP 接口。
// 房间的创建和管理属于外部管理面，这里只暴露查询。
type RoomHandler struct {
	roomService *service.RoomService
	eventLog    repository.EventLog
}

// NewRoomHandler 创建 RoomHandler 实例
func NewRoomHandler(roomService *service.RoomService, eventLog repository.EventLog) *RoomHandler {
	return &RoomHandler{roomService: roomService, eventLog: eventLog}
}

// RoomResponse 定义房间查询的响应结构体
type RoomResponse struct {
	RoomID uint   `json:"room_id"`
	Slug   string `json:"slug"`
}

// GetRoom 处理 GET /api/rooms/:roomId
func (h *RoomHandler) GetRoom(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}

	room, err := h.roomService.FindByID(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, RoomResponse{RoomID: room.ID, Slug: room.Slug})
}

// GetRoomBySlug 处理 GET /api/rooms/slug/:slug
func (h *RoomHandler) GetRoomBySlug(c *gin.Context) {
	slug := c.Param("slug")
	if slug == "" {
		ErrorResponse(c, http.StatusBadRequest, "slug is required")
		return
	}

	room, err := h.roomService.FindBySlug(c.Request.Context(), slug)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, RoomResponse{RoomID: room.ID, Slug: room.Slug})
}

// EventsResponse 定义最近事件查询的响应结构体。
// 事件按最新在前排列，与回放帧的顺序相反。
type EventsResponse struct {
	RoomID uint           `json:"room_id"`
	Events []domain.Event `json:"events"`
}

// ListRecentEvents 处理 GET /api/rooms/:roomId/events?limit=N
func (h *RoomHandler) ListRecentEvents(c *gin.Context) {
	roomID, ok := parseRoomID(c)
	if !ok {
		return
	}
	logCtx := logrus.WithField("room_id", roomID)

	limit := defaultEventLimit
	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			ErrorResponse(c, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
		if limit > maxEventLimit {
			limit = maxEventLimit
		}
	}

	// 查询前确认房间存在，区分"房间不存在"和"房间没有事件"
	exists, err := h.roomService.Exists(c.Request.Context(), roomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if !exists {
		ErrorResponse(c, http.StatusNotFound, "room not found")
		return
	}

	events, err := h.eventLog.Recent(c.Request.Context(), roomID, limit)
	if err != nil {
		logCtx.WithError(err).Error("Failed to list recent events")
		HandleServiceError(c, service.ErrStoreUnavailable)
		return
	}
	if events == nil {
		events = []domain.Event{}
	}
	SuccessResponse(c, http.StatusOK, EventsResponse{RoomID: roomID, Events: events})
}

func parseRoomID(c *gin.Context) (uint, bool) {
	roomIDStr := c.Param("roomId")
	roomID, err := strconv.ParseUint(roomIDStr, 10, 32)
	if err != nil || roomID == 0 {
		ErrorResponse(c, http.StatusBadRequest, "invalid room ID format")
		return 0, false
	}
	return uint(roomID), true
}
