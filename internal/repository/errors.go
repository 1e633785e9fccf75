package repository

import "errors"

// 通用的存储库错误
var (
	// ErrNotFound 表示请求的记录未找到
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示写入违反了唯一约束
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
	// ErrStoreUnavailable 表示持久化后端不可达或超时
	ErrStoreUnavailable = errors.New("repository: store unavailable")
)

// 特定资源的错误
var (
	ErrRoomNotFound = ErrNotFound
)
