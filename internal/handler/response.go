// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-chatbot-go/internal/middleware"
	"rag-chatbot-go/internal/service"
)

func ok(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": message, "data": data})
}

func fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"code": status, "message": message, "data": nil})
}

// statusOf 把业务错误映射为 HTTP 状态码。
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrDocumentNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUnsupportedType):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// organizationOf 读取 AuthMiddleware 写入的组织 ID，缺失时直接返回 500。
func organizationOf(c *gin.Context) (uint, bool) {
	org, exists := middleware.OrganizationID(c)
	if !exists {
		fail(c, http.StatusInternalServerError, "无法获取用户信息")
		return 0, false
	}
	return org, true
}
