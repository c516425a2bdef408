package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"rag-chatbot-go/internal/service"
	"rag-chatbot-go/pkg/log"
)

// maxUploadSize 是单个上传文件的大小上限。
const maxUploadSize = 50 << 20

// DocumentHandler 负责处理所有与文档管理相关的 API 请求。
type DocumentHandler struct {
	docService service.DocumentService
}

// NewDocumentHandler 创建一个新的 DocumentHandler 实例。
func NewDocumentHandler(docService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{docService: docService}
}

// Upload 处理 multipart 文件上传，表单字段名为 file。
func (h *DocumentHandler) Upload(c *gin.Context) {
	org, exists := organizationOf(c)
	if !exists {
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		fail(c, http.StatusBadRequest, "缺少上传文件")
		return
	}
	if fileHeader.Size > maxUploadSize {
		fail(c, http.StatusRequestEntityTooLarge, "文件过大")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		fail(c, http.StatusBadRequest, "无法读取上传文件")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		fail(c, http.StatusBadRequest, "无法读取上传文件")
		return
	}

	doc, err := h.docService.Upload(c.Request.Context(), org, service.UploadInput{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Data:        data,
	})
	if err != nil {
		log.Errorf("[DocumentHandler] 上传失败, 文件: %s, Error: %v", fileHeader.Filename, err)
		fail(c, statusOf(err), "Upload failed: "+err.Error())
		return
	}
	ok(c, "上传成功", doc)
}

// List 返回当前组织的文档列表。
func (h *DocumentHandler) List(c *gin.Context) {
	org, exists := organizationOf(c)
	if !exists {
		return
	}
	docs, err := h.docService.List(c.Request.Context(), org)
	if err != nil {
		log.Error("ListDocuments: failed", err)
		fail(c, http.StatusInternalServerError, "获取文件列表失败")
		return
	}
	ok(c, "获取文件列表成功", docs)
}

// Delete 删除当前组织的一个文档。
func (h *DocumentHandler) Delete(c *gin.Context) {
	org, exists := organizationOf(c)
	if !exists {
		return
	}
	id := c.Param("id")
	if err := h.docService.Delete(c.Request.Context(), org, id); err != nil {
		status := statusOf(err)
		if status == http.StatusInternalServerError {
			log.Errorf("[DocumentHandler] 删除文档失败, ID: %s, Error: %v", id, err)
		}
		fail(c, status, err.Error())
		return
	}
	ok(c, "Document deleted successfully", nil)
}

// OrganizationStats 返回当前组织的文档统计。
func (h *DocumentHandler) OrganizationStats(c *gin.Context) {
	org, exists := organizationOf(c)
	if !exists {
		return
	}
	stats, err := h.docService.OrganizationStats(c.Request.Context(), org)
	if err != nil {
		log.Error("OrganizationStats: failed", err)
		fail(c, http.StatusInternalServerError, "获取组织统计失败")
		return
	}
	ok(c, "success", stats)
}
