package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"rag-chatbot-go/internal/index"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/tasks"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrForbidden        = errors.New("access denied: document belongs to different organization")
	ErrUnsupportedType  = errors.New("file type not supported. Supported types: PDF, TXT, DOC, DOCX, CSV")
)

// allowedTypes 把支持的 MIME 类型映射到扩展名。
var allowedTypes = map[string]string{
	"application/pdf":    ".pdf",
	"text/plain":         ".txt",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"text/csv": ".csv",
}

// ObjectStore 保存上传的原始文件，由 *storage.MinioStore 实现。
type ObjectStore interface {
	Put(ctx context.Context, objectName string, r io.Reader, size int64, contentType string) error
	Remove(ctx context.Context, objectName string) error
	List(ctx context.Context) ([]string, error)
}

// TextExtractor 从二进制文档中提取纯文本，由 *tika.Client 实现。
type TextExtractor interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// TaskPublisher 发送异步索引任务，由 *kafka.Producer 实现。
type TaskPublisher interface {
	SendIndexTask(ctx context.Context, task tasks.IndexTask) error
}

// DocumentIndexer 同步索引一个文档，由 *pipeline.Processor 实现。
type DocumentIndexer interface {
	IndexDocument(ctx context.Context, doc *model.Document) error
}

// ChunkIndex 是向量索引的删除与统计端，由 *index.Index 实现。
type ChunkIndex interface {
	Delete(ctx context.Context, documentID string) bool
	DocumentIDs(ctx context.Context) ([]string, error)
	Stats(ctx context.Context) index.Stats
}

// UploadInput 是一次上传的文件内容。
type UploadInput struct {
	Filename    string
	ContentType string
	Data        []byte
}

// DocumentDTO 是返回给前端的文档信息，附带正文预览。
type DocumentDTO struct {
	*model.Document
	ContentPreview string `json:"content_preview"`
}

// ReindexReport 汇总一次重建索引的结果。
type ReindexReport struct {
	Total   int      `json:"total"`
	Indexed int      `json:"indexed"`
	Failed  []string `json:"failed"`
}

// CleanupReport 汇总一次孤儿数据清理的结果。
type CleanupReport struct {
	OrphanedChunks []string `json:"orphaned_chunks"`
	OrphanedFiles  []string `json:"orphaned_files"`
	Failed         []string `json:"failed"`
}

// DocumentService 接口定义了文档管理相关的业务操作。
type DocumentService interface {
	Upload(ctx context.Context, organizationID uint, in UploadInput) (*DocumentDTO, error)
	Delete(ctx context.Context, organizationID uint, documentID string) error
	List(ctx context.Context, organizationID uint) ([]DocumentDTO, error)
	SystemStats(ctx context.Context) (*model.SystemStats, error)
	OrganizationStats(ctx context.Context, organizationID uint) (*model.OrganizationStats, error)
	Reindex(ctx context.Context, organizationID *uint) (*ReindexReport, error)
	Cleanup(ctx context.Context) (*CleanupReport, error)
}

// DocumentServiceDeps 收集 DocumentService 的依赖。Objects、Extractor、Publisher 可以为 nil。
type DocumentServiceDeps struct {
	Repo         repository.DocumentRepository
	Objects      ObjectStore
	Extractor    TextExtractor
	Publisher    TaskPublisher
	Indexer      DocumentIndexer
	Index        ChunkIndex
	AIConfigured bool
}

type documentService struct {
	DocumentServiceDeps
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(deps DocumentServiceDeps) DocumentService {
	return &documentService{DocumentServiceDeps: deps}
}

// Upload 校验类型、保存原文件、提取文本、写入注册表并触发索引。索引失败只记录日志。
func (s *documentService) Upload(ctx context.Context, organizationID uint, in UploadInput) (*DocumentDTO, error) {
	contentType, ok := resolveContentType(in.ContentType, in.Filename)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, in.ContentType)
	}

	doc := &model.Document{
		ID:             uuid.NewString(),
		Filename:       path.Base(filepath.ToSlash(in.Filename)),
		ContentType:    contentType,
		FileSize:       int64(len(in.Data)),
		OrganizationID: organizationID,
	}
	doc.ObjectName = fmt.Sprintf("%d/%s/%s", organizationID, doc.ID, doc.Filename)
	log.Infof("[DocumentService] 开始上传文档, ID: %s, 文件名: %s, 大小: %d", doc.ID, doc.Filename, doc.FileSize)

	if s.Objects != nil {
		if err := s.Objects.Put(ctx, doc.ObjectName, bytes.NewReader(in.Data), doc.FileSize, contentType); err != nil {
			return nil, fmt.Errorf("保存原始文件失败: %w", err)
		}
	}

	doc.ExtractedText = s.extractText(ctx, doc, in.Data)
	if err := s.Repo.Create(ctx, doc); err != nil {
		if s.Objects != nil {
			_ = s.Objects.Remove(ctx, doc.ObjectName)
		}
		return nil, fmt.Errorf("写入文档记录失败: %w", err)
	}

	if doc.ExtractedText != "" {
		s.scheduleIndex(ctx, doc)
	}
	return &DocumentDTO{Document: doc, ContentPreview: preview(doc)}, nil
}

func (s *documentService) extractText(ctx context.Context, doc *model.Document, data []byte) string {
	switch doc.ContentType {
	case "text/plain", "text/csv":
		if !utf8.Valid(data) {
			return strings.ToValidUTF8(string(data), "")
		}
		return string(data)
	}
	if s.Extractor == nil {
		log.Warnf("[DocumentService] 未配置文本提取服务, 文档 %s 不会被索引", doc.ID)
		return ""
	}
	text, err := s.Extractor.ExtractText(ctx, bytes.NewReader(data), doc.Filename)
	if err != nil {
		log.Errorf("[DocumentService] 提取文本失败, 文档: %s, Error: %v", doc.ID, err)
		return ""
	}
	return strings.TrimSpace(text)
}

func (s *documentService) scheduleIndex(ctx context.Context, doc *model.Document) {
	if s.Publisher != nil {
		err := s.Publisher.SendIndexTask(ctx, tasks.IndexTask{DocumentID: doc.ID, OrganizationID: doc.Organization()})
		if err == nil {
			log.Infof("[DocumentService] 已发送索引任务, 文档: %s", doc.ID)
			return
		}
		log.Errorf("[DocumentService] 发送索引任务失败, 改为同步索引, 文档: %s, Error: %v", doc.ID, err)
	}
	if err := s.Indexer.IndexDocument(ctx, doc); err != nil {
		log.Errorf("[DocumentService] 同步索引失败, 文档仍可通过关键词检索, 文档: %s, Error: %v", doc.ID, err)
	}
}

// Delete 删除文档的原文件、注册表记录和索引切块。
func (s *documentService) Delete(ctx context.Context, organizationID uint, documentID string) error {
	doc, err := s.Repo.FindByID(ctx, documentID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("查询文档失败: %w", err)
	}
	if doc.Organization() != organizationID {
		return ErrForbidden
	}

	if s.Objects != nil && doc.ObjectName != "" {
		if err := s.Objects.Remove(ctx, doc.ObjectName); err != nil {
			log.Errorf("[DocumentService] 删除原始文件失败, 文档: %s, Error: %v", documentID, err)
		}
	}
	if err := s.Repo.Delete(ctx, documentID); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}
	if !s.Index.Delete(ctx, documentID) {
		log.Warnf("[DocumentService] 删除索引切块失败, 等待 Cleanup 清理, 文档: %s", documentID)
	}
	log.Infof("[DocumentService] 文档 %s 已删除", documentID)
	return nil
}

// List 返回组织可见的文档。
func (s *documentService) List(ctx context.Context, organizationID uint) ([]DocumentDTO, error) {
	docs, err := s.Repo.FindByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("查询文档列表失败: %w", err)
	}
	out := make([]DocumentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, DocumentDTO{Document: d, ContentPreview: preview(d)})
	}
	return out, nil
}

// SystemStats 汇总文档数量与索引状态。
func (s *documentService) SystemStats(ctx context.Context) (*model.SystemStats, error) {
	total, err := s.Repo.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计文档数量失败: %w", err)
	}
	idx := s.Index.Stats(ctx)
	return &model.SystemStats{
		TotalDocuments: total,
		TotalChunks:    idx.TotalChunks,
		VectorDBStatus: idx.Status,
		AIConfigured:   s.AIConfigured,
	}, nil
}

// OrganizationStats 返回组织的文档数量。
func (s *documentService) OrganizationStats(ctx context.Context, organizationID uint) (*model.OrganizationStats, error) {
	total, err := s.Repo.CountByOrganization(ctx, organizationID)
	if err != nil {
		return nil, fmt.Errorf("统计组织文档数量失败: %w", err)
	}
	return &model.OrganizationStats{TotalDocuments: total, OrganizationID: organizationID}, nil
}

// Reindex 把注册表中的文档重新写入向量索引，用于恢复索引不可用期间上传的文档。
func (s *documentService) Reindex(ctx context.Context, organizationID *uint) (*ReindexReport, error) {
	var (
		docs []*model.Document
		err  error
	)
	if organizationID != nil {
		docs, err = s.Repo.FindByOrganization(ctx, *organizationID)
	} else {
		docs, err = s.Repo.FindAll(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("查询文档列表失败: %w", err)
	}

	report := &ReindexReport{Total: len(docs), Failed: []string{}}
	for _, d := range docs {
		if d.ExtractedText == "" {
			continue
		}
		if err := s.Indexer.IndexDocument(ctx, d); err != nil {
			log.Errorf("[DocumentService] 重建索引失败, 文档: %s, Error: %v", d.ID, err)
			report.Failed = append(report.Failed, d.ID)
			continue
		}
		report.Indexed++
	}
	log.Infof("[DocumentService] 重建索引完成: %d/%d", report.Indexed, report.Total)
	return report, nil
}

// Cleanup 删除注册表中已不存在的文档留下的索引切块与原始文件。索引不可用时只清理文件。
func (s *documentService) Cleanup(ctx context.Context) (*CleanupReport, error) {
	docs, err := s.Repo.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("查询文档列表失败: %w", err)
	}
	registered := make(map[string]bool, len(docs))
	objects := make(map[string]bool, len(docs))
	for _, d := range docs {
		registered[d.ID] = true
		if d.ObjectName != "" {
			objects[d.ObjectName] = true
		}
	}

	report := &CleanupReport{OrphanedChunks: []string{}, OrphanedFiles: []string{}, Failed: []string{}}

	ids, err := s.Index.DocumentIDs(ctx)
	switch {
	case errors.Is(err, index.ErrDisabled):
		log.Warnf("[DocumentService] 向量索引不可用, 跳过切块清理")
	case err != nil:
		return nil, fmt.Errorf("读取索引文档列表失败: %w", err)
	}
	for _, id := range ids {
		if registered[id] {
			continue
		}
		if !s.Index.Delete(ctx, id) {
			report.Failed = append(report.Failed, id)
			continue
		}
		report.OrphanedChunks = append(report.OrphanedChunks, id)
	}

	if s.Objects != nil {
		names, err := s.Objects.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("读取原始文件列表失败: %w", err)
		}
		for _, name := range names {
			if objects[name] {
				continue
			}
			if err := s.Objects.Remove(ctx, name); err != nil {
				log.Errorf("[DocumentService] 删除孤儿文件失败, 对象: %s, Error: %v", name, err)
				report.Failed = append(report.Failed, name)
				continue
			}
			report.OrphanedFiles = append(report.OrphanedFiles, name)
		}
	}

	log.Infof("[DocumentService] 清理完成: 切块 %d 个文档, 文件 %d 个, 失败 %d 个",
		len(report.OrphanedChunks), len(report.OrphanedFiles), len(report.Failed))
	return report, nil
}

// resolveContentType 校验声明的 MIME 类型，未声明或为 octet-stream 时按扩展名推断。
func resolveContentType(declared, filename string) (string, bool) {
	declared = strings.ToLower(strings.TrimSpace(strings.SplitN(declared, ";", 2)[0]))
	if _, ok := allowedTypes[declared]; ok {
		return declared, true
	}
	if declared != "" && declared != "application/octet-stream" {
		return "", false
	}
	ext := strings.ToLower(filepath.Ext(filename))
	for ct, e := range allowedTypes {
		if e == ext {
			return ct, true
		}
	}
	return "", false
}

func preview(d *model.Document) string {
	if d.ExtractedText == "" {
		return "Uploaded " + d.ContentType + " file"
	}
	return d.ContentPreview()
}
