package middleware

import (
	"net/http"
	"strings"

	jwtutil "github.com/TadeMaddonni/proceso-desarrollo-backend-sub000/pkg/jwt"
	"github.com/gin-gonic/gin"
)

// gin 컨텍스트 키
const (
	ContextUserID = "userId"
	ContextRole   = "role"
)

// Auth JWT 인증 미들웨어. 토큰 발급은 외부 인증 서비스가 한다.
func Auth(jwtManager *jwtutil.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Authorization header required",
			})
			return
		}

		// "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid authorization header format",
			})
			return
		}

		claims, err := jwtManager.Verify(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid or expired token",
			})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

// RequireAdmin Auth 다음에 사용
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Admin role required",
			})
			return
		}
		c.Next()
	}
}

// IsAdmin 요청자가 관리자 역할인지
func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextRole) == jwtutil.RoleAdmin
}

// UserID 인증된 사용자 ID
func UserID(c *gin.Context) (string, bool) {
	id := c.GetString(ContextUserID)
	return id, id != ""
}
