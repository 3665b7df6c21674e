package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// OperatorContextKey 运维身份上下文键
const OperatorContextKey = "operator"

// OperatorGuard 运维接口鉴权中间件
// jwtService 为 nil 时放行所有请求
func OperatorGuard(jwtService *JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if jwtService == nil {
			c.Next()
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "缺少认证令牌",
			})
			return
		}

		token := ExtractTokenFromBearer(authHeader)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "无效的令牌格式",
			})
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"message": "令牌验证失败",
			})
			return
		}

		c.Set(OperatorContextKey, claims.Subject)
		c.Next()
	}
}

// GetOperator 获取当前运维身份
func GetOperator(c *gin.Context) (string, bool) {
	v, ok := c.Get(OperatorContextKey)
	if !ok {
		return "", false
	}
	subject, ok := v.(string)
	return subject, ok
}
