package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"

	"collaborative-sketch/internal/domain"
)

// AuthService 负责连接时的凭证验证。
// 凭证由外部账户服务签发（HS256），这里只做验签和解析，没有副作用。
// 任何验证失败（格式错误、签名不符、过期）都统一返回 ErrUnauthenticated。
type AuthService struct {
	jwtSecret []byte
}

// NewAuthService 创建 AuthService 实例。
// jwtSecretKey 应从安全配置中获取，不能为空。
func NewAuthService(jwtSecretKey string) (*AuthService, error) {
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	return &AuthService{jwtSecret: []byte(jwtSecretKey)}, nil
}

// VerifyToken 验证凭证并解析出参与者身份。
// 必须在连接执行任何房间操作之前调用。
func (s *AuthService) VerifyToken(tokenStr string) (*domain.Participant, error) {
	if tokenStr == "" {
		return nil, ErrUnauthenticated
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 只接受 HMAC 签名，拒绝 alg 混淆
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		// jwt-go 把过期、签名错误等都包装在 ValidationError 中，
		// 对外统一返回认证失败，细节只进日志
		logrus.WithError(err).Debug("Token verification failed")
		return nil, ErrUnauthenticated
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrUnauthenticated
	}

	userID, err := parseUserIDClaim(claims)
	if err != nil {
		logrus.WithError(err).Warn("Token valid but user_id claim unusable")
		return nil, ErrUnauthenticated
	}

	participant := &domain.Participant{UserID: userID}
	// iat/exp 是可选 claim，能解析就带上
	if iat, ok := claims["iat"].(float64); ok {
		participant.IssuedAt = time.Unix(int64(iat), 0)
	}
	if exp, ok := claims["exp"].(float64); ok {
		participant.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return participant, nil
}

// parseUserIDClaim 从 claims 中安全地提取 user_id。
// JWT 数字默认解析为 float64，需要检查是正整数。
func parseUserIDClaim(claims jwt.MapClaims) (uint, error) {
	userIDClaim, ok := claims["user_id"]
	if !ok {
		return 0, fmt.Errorf("'user_id' claim missing in token")
	}
	userIDFloat, ok := userIDClaim.(float64)
	if !ok || userIDFloat <= 0 || userIDFloat != float64(uint(userIDFloat)) {
		return 0, fmt.Errorf("'user_id' claim is not a valid positive integer: %v", userIDClaim)
	}
	return uint(userIDFloat), nil
}
