package domain

import "time"

// Participant 表示凭证验证后解析出的参与者身份。
// 在连接的整个生命周期内不可变；账户本身由外部账户服务持有。
type Participant struct {
	UserID    uint      // 稳定的参与者标识符
	IssuedAt  time.Time // 凭证签发时间
	ExpiresAt time.Time // 凭证过期时间
}
