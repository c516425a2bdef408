package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rag-chatbot-go/internal/index"
	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/log"
)

// IndexStatus 报告向量索引状态，由 *index.Index 实现。
type IndexStatus interface {
	Stats(ctx context.Context) index.Stats
}

// SystemHandler 提供统计、健康检查与重建索引接口。
type SystemHandler struct {
	docService service.DocumentService
	index      IndexStatus
}

// NewSystemHandler 创建一个新的 SystemHandler 实例。
func NewSystemHandler(docService service.DocumentService, idx IndexStatus) *SystemHandler {
	return &SystemHandler{docService: docService, index: idx}
}

// Stats 处理 GET /system/stats。
func (h *SystemHandler) Stats(c *gin.Context) {
	stats, err := h.docService.SystemStats(c.Request.Context())
	if err != nil {
		log.Error("SystemStats: failed", err)
		fail(c, http.StatusInternalServerError, "获取系统统计失败")
		return
	}
	ok(c, "success", stats)
}

// Health 处理 GET /health。向量索引不可用时服务仍然健康，检索会走关键词兜底。
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"vector_db": h.index.Stats(c.Request.Context()).Status,
	})
}

// Reindex 处理 POST /system/reindex，可选参数 organization_id 限定范围。
func (h *SystemHandler) Reindex(c *gin.Context) {
	var scope *uint
	if raw := c.Query("organization_id"); raw != "" {
		v, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			fail(c, http.StatusBadRequest, "无效的 organization_id")
			return
		}
		org := uint(v)
		scope = &org
	}
	report, err := h.docService.Reindex(c.Request.Context(), scope)
	if err != nil {
		log.Error("Reindex: failed", err)
		fail(c, http.StatusInternalServerError, "重建索引失败")
		return
	}
	ok(c, "success", report)
}

// Cleanup 处理 POST /system/cleanup，删除注册表中已不存在的文档留下的切块与文件。
func (h *SystemHandler) Cleanup(c *gin.Context) {
	report, err := h.docService.Cleanup(c.Request.Context())
	if err != nil {
		log.Error("Cleanup: failed", err)
		fail(c, http.StatusInternalServerError, "清理失败")
		return
	}
	ok(c, "success", report)
}
