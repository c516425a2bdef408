package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/log"
)

// SearchHandler 暴露检索接口，返回按文档聚合的结果与置信度。
type SearchHandler struct {
	retrieval service.RetrievalService
}

// NewSearchHandler 创建一个新的 SearchHandler 实例。
func NewSearchHandler(retrieval service.RetrievalService) *SearchHandler {
	return &SearchHandler{retrieval: retrieval}
}

// Search 处理 GET /search?query=...
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		fail(c, http.StatusBadRequest, "无效的查询参数")
		return
	}
	org, exists := organizationOf(c)
	if !exists {
		return
	}

	results := h.retrieval.Retrieve(c.Request.Context(), query, &org)
	log.Infof("[SearchHandler] 检索完成, query: '%s', 返回 %d 个文档", query, len(results))
	ok(c, "success", gin.H{
		"results":    results,
		"confidence": service.Confidence(results),
	})
}
