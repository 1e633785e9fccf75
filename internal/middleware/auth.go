package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/service"
)

// ContextKeyParticipant 是存入 Gin 上下文的参与者键名。
const ContextKeyParticipant = "participant"

// Auth 返回保护只读 API 的认证中间件。
// 凭证从 Authorization: Bearer 头提取，验证统一委托给 AuthService，
// 与 WebSocket 握手使用同一套验证逻辑。
func Auth(authService *service.AuthService) gin.HandlerFunc {
	if authService == nil {
		panic("AuthService cannot be nil for Auth middleware")
	}

	return func(c *gin.Context) {
		tokenStr, ok := extractBearerToken(c)
		if !ok {
			logrus.Warn("Auth middleware: missing or malformed Authorization header")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header with Bearer token is required"})
			c.Abort()
			return
		}

		participant, err := authService.VerifyToken(tokenStr)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ContextKeyParticipant, *participant)
		logrus.WithField("user_id", participant.UserID).Debug("Auth middleware: user authenticated")
		c.Next()
	}
}

// extractBearerToken 解析 "Bearer <token>" 形式的 Authorization 头。
func extractBearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}
