// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/token"
)

// 上下文中保存调用方身份的键。
const (
	ClaimsKey         = "claims"
	OrganizationIDKey = "organizationID"
)

// AuthMiddleware 创建一个 Gin 中间件，用于 JWT 认证。
// 它从 Authorization 头中提取 token，验证后把 claims 与组织 ID 存入上下文。
func AuthMiddleware(jwtManager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "请求未包含授权头", "data": nil})
			return
		}

		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(authHeader, bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效的授权头格式", "data": nil})
			return
		}

		claims, err := jwtManager.VerifyToken(strings.TrimPrefix(authHeader, bearerPrefix))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": http.StatusUnauthorized, "message": "无效或已过期的 token", "data": nil})
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}

// SetClaims 把 claims 写入上下文，未携带组织的 token 归入默认组织。
func SetClaims(c *gin.Context, claims *token.CustomClaims) {
	orgID := claims.OrganizationID
	if orgID == 0 {
		orgID = model.DefaultOrganizationID
	}
	c.Set(ClaimsKey, claims)
	c.Set(OrganizationIDKey, orgID)
}

// OrganizationID 返回 AuthMiddleware 解析出的组织 ID。
func OrganizationID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(OrganizationIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}
