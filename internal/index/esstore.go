package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"

	"rag-chatbot-go/internal/model"
	"rag-chatbot-go/pkg/es"
	"rag-chatbot-go/pkg/log"
)

// ESStore 使用 Elasticsearch dense_vector 字段存储切块。
type ESStore struct {
	client       *elasticsearch.Client
	indexName    string
	modelVersion string
}

// NewESStore 创建 ESStore。
func NewESStore(client *elasticsearch.Client, indexName, modelVersion string) *ESStore {
	return &ESStore{client: client, indexName: indexName, modelVersion: modelVersion}
}

// EnsureIndex 在索引不存在时按向量维度创建 mapping。
func (s *ESStore) EnsureIndex(ctx context.Context, dims int) error {
	return es.EnsureIndex(ctx, s.client, s.indexName, es.ChunkIndexMapping(dims))
}

// Upsert 通过 bulk API 写入切块，_id 使用 chunk_id。
func (s *ESStore) Upsert(ctx context.Context, chunks []model.IndexedChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, c := range chunks {
		action := map[string]interface{}{
			"index": map[string]interface{}{"_index": s.indexName, "_id": c.Metadata.ChunkID},
		}
		doc := model.EsChunk{
			ChunkID:        c.Metadata.ChunkID,
			DocumentID:     c.Metadata.DocumentID,
			Filename:       c.Metadata.Filename,
			OrganizationID: c.Metadata.OrganizationID,
			ChunkIndex:     c.Metadata.ChunkIndex,
			TotalChunks:    c.Metadata.TotalChunks,
			TextContent:    c.Text,
			Vector:         c.Vector,
			ModelVersion:   s.modelVersion,
		}
		if err := enc.Encode(action); err != nil {
			return fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := enc.Encode(doc); err != nil {
			return fmt.Errorf("failed to encode chunk %s: %w", c.Metadata.ChunkID, err)
		}
	}

	res, err := s.client.Bulk(
		&buf,
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithRefresh("true"),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch bulk request failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch bulk returned %s: %s", res.Status(), string(body))
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		return fmt.Errorf("elasticsearch bulk reported item errors for %d chunks", len(chunks))
	}
	return nil
}

// Query 执行 kNN 检索，组织过滤写在 knn.filter 中，由 ES 在近邻搜索内部完成。
func (s *ESStore) Query(ctx context.Context, vector []float32, n int, organizationID *uint) ([]Hit, error) {
	if n <= 0 {
		return nil, nil
	}
	numCandidates := n * 10
	if numCandidates < 100 {
		numCandidates = 100
	}
	knn := map[string]interface{}{
		"field":          "vector",
		"query_vector":   vector,
		"k":              n,
		"num_candidates": numCandidates,
	}
	if organizationID != nil {
		knn["filter"] = map[string]interface{}{
			"term": map[string]interface{}{"organization_id": *organizationID},
		}
	}
	esQuery := map[string]interface{}{
		"knn":     knn,
		"size":    n,
		"_source": map[string]interface{}{"excludes": []string{"vector"}},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode es query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch search failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return nil, fmt.Errorf("elasticsearch returned %s: %s", res.Status(), string(body))
	}

	var esResponse struct {
		Hits struct {
			Hits []struct {
				Source model.EsChunk `json:"_source"`
				Score  float64       `json:"_score"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&esResponse); err != nil {
		return nil, fmt.Errorf("failed to decode es response: %w", err)
	}

	hits := make([]Hit, 0, len(esResponse.Hits.Hits))
	for _, h := range esResponse.Hits.Hits {
		src := h.Source
		hits = append(hits, Hit{
			Text: src.TextContent,
			Metadata: model.ChunkMetadata{
				DocumentID:     src.DocumentID,
				Filename:       src.Filename,
				OrganizationID: src.OrganizationID,
				ChunkIndex:     src.ChunkIndex,
				TotalChunks:    src.TotalChunks,
				ChunkID:        src.ChunkID,
			},
			// cosine 相似度的 _score 为 (1+cos)/2，换算回 1-cos。
			Distance: 2 - 2*h.Score,
		})
	}
	return hits, nil
}

// DeleteByDocument 通过 delete_by_query 删除文档的所有切块，索引不存在视为成功。
func (s *ESStore) DeleteByDocument(ctx context.Context, documentID string) error {
	query := map[string]interface{}{
		"term": map[string]interface{}{"document_id": documentID},
	}
	return s.deleteByQuery(ctx, documentID, query)
}

// DeleteStale 删除文档中 chunk_index >= keep 的切块。
func (s *ESStore) DeleteStale(ctx context.Context, documentID string, keep int) error {
	query := map[string]interface{}{
		"bool": map[string]interface{}{
			"filter": []interface{}{
				map[string]interface{}{"term": map[string]interface{}{"document_id": documentID}},
				map[string]interface{}{"range": map[string]interface{}{"chunk_index": map[string]interface{}{"gte": keep}}},
			},
		},
	}
	return s.deleteByQuery(ctx, documentID, query)
}

func (s *ESStore) deleteByQuery(ctx context.Context, documentID string, query map[string]interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(map[string]interface{}{"query": query}); err != nil {
		return fmt.Errorf("failed to encode delete query: %w", err)
	}
	res, err := s.client.DeleteByQuery(
		[]string{s.indexName},
		&buf,
		s.client.DeleteByQuery.WithContext(ctx),
		s.client.DeleteByQuery.WithRefresh(true),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete_by_query failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return nil
	}
	if res.IsError() {
		b, _ := io.ReadAll(res.Body)
		return fmt.Errorf("elasticsearch delete_by_query returned %s: %s", res.Status(), string(b))
	}

	var delResp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.NewDecoder(res.Body).Decode(&delResp); err == nil && delResp.Deleted > 0 {
		log.Infof("[ESStore] 已删除文档 %s 的 %d 个切块", documentID, delResp.Deleted)
	}
	return nil
}

// documentIDsPageSize 是 composite 聚合每页的桶数。
const documentIDsPageSize = 1000

// DocumentIDs 用 composite 聚合分页读取全部 document_id，索引不存在时返回空。
func (s *ESStore) DocumentIDs(ctx context.Context) ([]string, error) {
	var (
		ids   []string
		after map[string]interface{}
	)
	for {
		composite := map[string]interface{}{
			"size": documentIDsPageSize,
			"sources": []interface{}{
				map[string]interface{}{"document_id": map[string]interface{}{"terms": map[string]interface{}{"field": "document_id"}}},
			},
		}
		if after != nil {
			composite["after"] = after
		}
		body := map[string]interface{}{
			"size": 0,
			"aggs": map[string]interface{}{"documents": map[string]interface{}{"composite": composite}},
		}
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode aggregation: %w", err)
		}

		res, err := s.client.Search(
			s.client.Search.WithContext(ctx),
			s.client.Search.WithIndex(s.indexName),
			s.client.Search.WithBody(&buf),
		)
		if err != nil {
			return nil, fmt.Errorf("elasticsearch aggregation failed: %w", err)
		}
		var aggResp struct {
			Aggregations struct {
				Documents struct {
					AfterKey map[string]interface{} `json:"after_key"`
					Buckets  []struct {
						Key struct {
							DocumentID string `json:"document_id"`
						} `json:"key"`
					} `json:"buckets"`
				} `json:"documents"`
			} `json:"aggregations"`
		}
		if res.StatusCode == http.StatusNotFound {
			res.Body.Close()
			return ids, nil
		}
		if res.IsError() {
			b, _ := io.ReadAll(res.Body)
			res.Body.Close()
			return nil, fmt.Errorf("elasticsearch aggregation returned %s: %s", res.Status(), string(b))
		}
		err = json.NewDecoder(res.Body).Decode(&aggResp)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode aggregation response: %w", err)
		}

		agg := aggResp.Aggregations.Documents
		for _, b := range agg.Buckets {
			ids = append(ids, b.Key.DocumentID)
		}
		if len(agg.Buckets) < documentIDsPageSize || agg.AfterKey == nil {
			return ids, nil
		}
		after = agg.AfterKey
	}
}

// Count 返回索引中的切块数量，索引不存在时为 0。
func (s *ESStore) Count(ctx context.Context) (int64, error) {
	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.indexName),
	)
	if err != nil {
		return 0, fmt.Errorf("elasticsearch count failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if res.IsError() {
		return 0, fmt.Errorf("elasticsearch count returned %s", res.Status())
	}

	var countResp struct {
		Count int64 `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&countResp); err != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", err)
	}
	return countResp.Count, nil
}

var _ Store = (*ESStore)(nil)
