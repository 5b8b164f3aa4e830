package middleware

import (
	"net/http"
	"strings"

	jwtutil "github.com/DIvanCode/CoDuels-Backend-sub001/pkg/jwt"
	"github.com/gin-gonic/gin"
)

const (
	ContextUserID   = "userId"
	ContextNickname = "nickname"
)

// Auth JWT 인증 미들웨어
func Auth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			c.Abort()
			return
		}

		// 토큰 검증
		claims, err := jwtManager.Verify(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			c.Abort()
			return
		}

		// 검증 성공 - 사용자 정보를 context에 저장
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextNickname, claims.Nickname)

		c.Next()
	}
}

// bearerToken "Bearer <token>" 헤더 또는 token 쿼리 파라미터 (브라우저 WebSocket은 헤더를 못 붙임)
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// UserID 인증된 사용자 ID
func UserID(c *gin.Context) (int64, bool) {
	value, exists := c.Get(ContextUserID)
	if !exists {
		return 0, false
	}
	userID, ok := value.(int64)
	return userID, ok
}
