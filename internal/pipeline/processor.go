// Package pipeline 定义了文档写入向量索引的流程。
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/repository"
	"rag-chatbot-go/pkg/log"
	"rag-chatbot-go/pkg/tasks"
)

// ErrIndexFailed 表示向量索引拒绝或未能写入文档。
var ErrIndexFailed = errors.New("failed to add document to vector index")

// ChunkIndexer 是向量索引的写入端。
type ChunkIndexer interface {
	Add(ctx context.Context, documentID, text string, meta model.ChunkMetadata) bool
}

// DocumentLoader 按 ID 读取注册表中的文档。
type DocumentLoader interface {
	FindByID(ctx context.Context, id string) (*model.Document, error)
}

// Processor 封装了索引一个文档所需的依赖。
type Processor struct {
	docs    DocumentLoader
	indexer ChunkIndexer
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(docs DocumentLoader, indexer ChunkIndexer) *Processor {
	return &Processor{docs: docs, indexer: indexer}
}

// Process 处理来自 Kafka 的索引任务。文档已被删除时视为成功。
func (p *Processor) Process(ctx context.Context, task tasks.IndexTask) error {
	log.Infof("[Processor] 开始索引文档, DocumentID: %s", task.DocumentID)
	doc, err := p.docs.FindByID(ctx, task.DocumentID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Warnf("[Processor] 文档 %s 已不存在，跳过索引", task.DocumentID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("加载文档失败: %w", err)
	}
	return p.IndexDocument(ctx, doc)
}

// IndexDocument 把文档正文写入向量索引。
func (p *Processor) IndexDocument(ctx context.Context, doc *model.Document) error {
	if doc.ExtractedText == "" {
		log.Warnf("[Processor] 文档 %s 没有提取到文本，跳过索引", doc.ID)
		return nil
	}
	meta := model.ChunkMetadata{
		DocumentID:     doc.ID,
		Filename:       doc.Filename,
		OrganizationID: doc.Organization(),
	}
	if !p.indexer.Add(ctx, doc.ID, doc.ExtractedText, meta) {
		return fmt.Errorf("%w: %s", ErrIndexFailed, doc.ID)
	}
	log.Infof("[Processor] 文档 %s 索引完成", doc.ID)
	return nil
}
