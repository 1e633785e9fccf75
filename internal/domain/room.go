package domain

import "time"

// Room 表示一个协作草图房间。
// 房间由外部的 CRUD 服务创建，本子系统只读。
type Room struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                                    // 房间唯一标识符 (主键)
	AdminID   uint      `gorm:"index;not null" json:"adminId"`                           // 房间所有者的参与者 ID
	Slug      string    `gorm:"uniqueIndex:idx_room_slug;size:191;not null" json:"slug"` // 可读的唯一房间别名
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`                         // 房间创建时间 (GORM 自动填充)
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"-"`                                 // 记录最后更新时间 (GORM 自动填充)
}
