// Package index 实现了基于向量相似度的切块索引。
package index

import (
	"context"

	"rag-chatbot-go/internal/model"
)

// Hit 是后端返回的一个近邻切块，Distance 越小越相似（1 - cosine）。
type Hit struct {
	Text     string
	Metadata model.ChunkMetadata
	Distance float64
}

// Store 是向量索引的存储后端。
// organizationID 非 nil 时，后端必须在查询内部按组织过滤候选集。
type Store interface {
	Upsert(ctx context.Context, chunks []model.IndexedChunk) error
	Query(ctx context.Context, vector []float32, n int, organizationID *uint) ([]Hit, error)
	DeleteByDocument(ctx context.Context, documentID string) error
	// DeleteStale 删除文档中 chunk_index >= keep 的切块。
	DeleteStale(ctx context.Context, documentID string, keep int) error
	// DocumentIDs 返回索引中出现过的全部文档 ID。
	DocumentIDs(ctx context.Context) ([]string, error)
	Count(ctx context.Context) (int64, error)
}
