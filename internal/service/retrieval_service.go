// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"math"
	"sort"

	"rag-chatbot-go/internal/index"
	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/log"
)

// VectorSearcher 是向量检索的读取端，由 *index.Index 实现。
type VectorSearcher interface {
	Search(ctx context.Context, query string, n int, organizationID *uint) index.SearchOutcome
}

// FallbackSearcher 是关键词兜底检索，由 *fallback.Matcher 实现。
type FallbackSearcher interface {
	Search(ctx context.Context, query string, organizationID *uint) []model.DocumentResult
}

// RetrievalService 把用户问题转换为按相关度排序的文档列表。
type RetrievalService interface {
	Retrieve(ctx context.Context, query string, organizationID *uint) []model.DocumentResult
}

type retrievalService struct {
	vector   VectorSearcher
	fallback FallbackSearcher
	nResults int
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(vector VectorSearcher, fallback FallbackSearcher, nResults int) RetrievalService {
	if nResults <= 0 {
		nResults = 5
	}
	return &retrievalService{vector: vector, fallback: fallback, nResults: nResults}
}

// Retrieve 先做向量检索，结果为空或索引不可用时改用关键词兜底，两路结果不会合并。
func (s *retrievalService) Retrieve(ctx context.Context, query string, organizationID *uint) []model.DocumentResult {
	outcome := s.vector.Search(ctx, query, s.nResults, organizationID)
	if outcome.Status == index.StatusSuccess && len(outcome.Results) > 0 {
		results := Aggregate(outcome.Results)
		log.Infof("[RetrievalService] 向量检索命中 %d 个切块，聚合为 %d 个文档", len(outcome.Results), len(results))
		return results
	}

	log.Infof("[RetrievalService] 向量检索结果为 %s，改用关键词兜底检索", outcome.Status)
	results := s.fallback.Search(ctx, query, organizationID)
	if results == nil {
		results = []model.DocumentResult{}
	}
	return results
}

// Aggregate 按文档聚合切块：相关度求和，切块保持原有顺序，文档按总相关度降序，同分保持首次出现的顺序。
func Aggregate(results []model.SearchResult) []model.DocumentResult {
	byDoc := make(map[string]int, len(results))
	docs := make([]model.DocumentResult, 0, len(results))
	for _, r := range results {
		i, ok := byDoc[r.DocumentID]
		if !ok {
			i = len(docs)
			byDoc[r.DocumentID] = i
			docs = append(docs, model.DocumentResult{DocumentID: r.DocumentID, Filename: r.Filename})
		}
		docs[i].Chunks = append(docs[i].Chunks, r.Chunk)
		docs[i].Relevance += r.RelevanceScore
	}
	sort.SliceStable(docs, func(a, b int) bool { return docs[a].Relevance > docs[b].Relevance })
	return docs
}

// Confidence 计算回答置信度：无结果为 0.1，否则为平均相关度，下限 0.3、上限 1.0。
func Confidence(results []model.DocumentResult) float64 {
	if len(results) == 0 {
		return 0.1
	}
	var sum float64
	for _, r := range results {
		sum += r.Relevance
	}
	return math.Min(1.0, math.Max(0.3, sum/float64(len(results))))
}
