package service

import "errors"

var (
	ErrUnauthenticated  = errors.New("unauthenticated")
	ErrRoomNotFound     = errors.New("room not found")
	ErrStoreUnavailable = errors.New("event store unavailable")
	ErrInvalidPayload   = errors.New("invalid event payload")
	ErrInternalServer   = errors.New("internal server error")
)
