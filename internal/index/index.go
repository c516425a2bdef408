package index

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"rag-chatbot-go/internal/chunker"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/internal/textutil"
	"rag-chatbot-go/pkg/embedding"
	"rag-chatbot-go/pkg/log"
)

// Status 描述一次向量检索的结果类型。
type Status int

const (
	StatusSuccess Status = iota
	StatusEmpty
	StatusUnavailable
)

func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusEmpty:
		return "empty"
	default:
		return "unavailable"
	}
}

// SearchOutcome 是 Search 的返回值，Err 仅在 StatusUnavailable 时可能非空。
type SearchOutcome struct {
	Status  Status
	Results []model.SearchResult
	Err     error
}

// 索引统计中的状态值。
const (
	StatsEmpty       = "empty"
	StatsOperational = "operational"
	StatsUnavailable = "unavailable"
	StatsError       = "error"
)

// Stats 是索引的统计信息。
type Stats struct {
	TotalChunks int64  `json:"total_chunks"`
	Status      string `json:"status"`
}

// Options 是 Index 的可调参数。除 NumericBoost 外，零值字段使用默认值。
type Options struct {
	MaxChunkSize     int
	MinArabicResults int
	NumericBoost     float64
	Timeout          time.Duration
}

const (
	defaultMinArabicResults = 15
	defaultTimeout          = 5 * time.Second
)

// ErrDisabled 表示索引后端在启动时不可用。
var ErrDisabled = errors.New("vector index is disabled")

// Index 把文档切块、向量化后写入 Store，并提供按组织过滤的相似度检索。
type Index struct {
	store    Store
	embedder embedding.Client
	opts     Options
	reason   string
}

// New 创建可用的 Index。
func New(store Store, embedder embedding.Client, opts Options) *Index {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = chunker.DefaultMaxChunkSize
	}
	if opts.MinArabicResults <= 0 {
		opts.MinArabicResults = defaultMinArabicResults
	}
	if opts.NumericBoost < 0 {
		opts.NumericBoost = 0
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Index{store: store, embedder: embedder, opts: opts}
}

// Disabled 创建一个后端不可用的 Index，所有操作返回空结果或 false。
func Disabled(reason string) *Index {
	log.Warnf("[VectorIndex] 向量索引已禁用: %s", reason)
	return &Index{reason: reason}
}

// Available 报告后端是否可用。
func (ix *Index) Available() bool {
	return ix.store != nil && ix.embedder != nil
}

// Add 切块、向量化并写入文档。新切块按 chunk_id 覆盖旧切块，写入成功后再删除多出的旧切块，
// 写入失败时旧切块保持不变。
func (ix *Index) Add(ctx context.Context, documentID, text string, meta model.ChunkMetadata) bool {
	if !ix.Available() {
		log.Warnf("[VectorIndex] 索引不可用，跳过文档 %s", documentID)
		return false
	}

	chunks := chunker.Split(text, ix.opts.MaxChunkSize)
	records := make([]model.IndexedChunk, 0, len(chunks))
	for i, c := range chunks {
		vec, err := ix.embedder.CreateEmbedding(ctx, c)
		if err != nil {
			log.Errorf("[VectorIndex] 文档 %s 的第 %d 个切块向量化失败: %v", documentID, i, err)
			return false
		}
		m := meta
		m.DocumentID = documentID
		m.ChunkIndex = i
		m.TotalChunks = len(chunks)
		m.ChunkID = model.ChunkID(documentID, i)
		records = append(records, model.IndexedChunk{Text: c, Vector: vec, Metadata: m})
	}

	if err := ix.store.Upsert(ctx, records); err != nil {
		log.Errorf("[VectorIndex] 写入文档 %s 的切块失败: %v", documentID, err)
		return false
	}
	if err := ix.store.DeleteStale(ctx, documentID, len(records)); err != nil {
		log.Errorf("[VectorIndex] 清理文档 %s 的旧切块失败: %v", documentID, err)
		return false
	}
	log.Infof("[VectorIndex] 文档 %s 已写入 %d 个切块", documentID, len(records))
	return true
}

// Search 返回与 query 最相似的切块。organizationID 为 nil 时不做组织过滤。
func (ix *Index) Search(ctx context.Context, query string, n int, organizationID *uint) SearchOutcome {
	if !ix.Available() {
		return SearchOutcome{Status: StatusUnavailable, Err: fmt.Errorf("%w: %s", ErrDisabled, ix.reason)}
	}

	arabic := textutil.IsArabic(query)
	if arabic && n < ix.opts.MinArabicResults {
		n = ix.opts.MinArabicResults
	}

	ctx, cancel := context.WithTimeout(ctx, ix.opts.Timeout)
	defer cancel()

	vec, err := ix.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		log.Warnf("[VectorIndex] 查询向量化失败: %v", err)
		return SearchOutcome{Status: StatusUnavailable, Err: err}
	}
	// 零向量与任何切块都不相似，交给关键词兜底。
	if zeroNorm(vec) {
		return SearchOutcome{Status: StatusEmpty}
	}
	hits, err := ix.store.Query(ctx, vec, n, organizationID)
	if err != nil {
		log.Warnf("[VectorIndex] 向量检索失败: %v", err)
		return SearchOutcome{Status: StatusUnavailable, Err: err}
	}
	if len(hits) == 0 {
		return SearchOutcome{Status: StatusEmpty}
	}

	results := make([]model.SearchResult, 0, len(hits))
	for _, h := range hits {
		score := math.Max(0, 1-h.Distance)
		if arabic && textutil.ContainsDigit(h.Text) {
			score = math.Min(1, score+ix.opts.NumericBoost)
		}
		results = append(results, model.SearchResult{
			DocumentID:     h.Metadata.DocumentID,
			Filename:       h.Metadata.Filename,
			Chunk:          h.Text,
			ChunkIndex:     h.Metadata.ChunkIndex,
			RelevanceScore: score,
		})
	}
	return SearchOutcome{Status: StatusSuccess, Results: results}
}

// Delete 删除文档的全部切块，文档不存在时同样返回 true。
func (ix *Index) Delete(ctx context.Context, documentID string) bool {
	if !ix.Available() {
		return false
	}
	if err := ix.store.DeleteByDocument(ctx, documentID); err != nil {
		log.Errorf("[VectorIndex] 删除文档 %s 的切块失败: %v", documentID, err)
		return false
	}
	return true
}

// DocumentIDs 返回索引中的全部文档 ID。
func (ix *Index) DocumentIDs(ctx context.Context) ([]string, error) {
	if !ix.Available() {
		return nil, fmt.Errorf("%w: %s", ErrDisabled, ix.reason)
	}
	return ix.store.DocumentIDs(ctx)
}

// Stats 返回切块总数与索引状态。
func (ix *Index) Stats(ctx context.Context) Stats {
	if !ix.Available() {
		return Stats{Status: StatsUnavailable}
	}
	total, err := ix.store.Count(ctx)
	if err != nil {
		log.Errorf("[VectorIndex] 统计切块数量失败: %v", err)
		return Stats{Status: StatsError}
	}
	if total == 0 {
		return Stats{Status: StatsEmpty}
	}
	return Stats{TotalChunks: total, Status: StatsOperational}
}

func zeroNorm(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
