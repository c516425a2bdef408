package index

import (
	"context"
	"math"
	"sort"
	"sync"

	"rag-chatbot-go/internal/model"
)

// MemoryStore 是进程内的暴力余弦检索后端。
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []model.IndexedChunk
	byID   map[string]int
}

// NewMemoryStore 创建空的 MemoryStore。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: make(map[string]int)}
}

// Upsert 按 chunk_id 插入或覆盖切块。
func (s *MemoryStore) Upsert(_ context.Context, chunks []model.IndexedChunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range chunks {
		if i, ok := s.byID[c.Metadata.ChunkID]; ok {
			s.chunks[i] = c
			continue
		}
		s.byID[c.Metadata.ChunkID] = len(s.chunks)
		s.chunks = append(s.chunks, c)
	}
	return nil
}

// Query 先按组织过滤，再返回距离最小的 n 个切块；距离相同时保持写入顺序。
func (s *MemoryStore) Query(_ context.Context, vector []float32, n int, organizationID *uint) ([]Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hits := make([]Hit, 0, len(s.chunks))
	for _, c := range s.chunks {
		if organizationID != nil && c.Metadata.OrganizationID != *organizationID {
			continue
		}
		hits = append(hits, Hit{
			Text:     c.Text,
			Metadata: c.Metadata,
			Distance: 1 - cosine(vector, c.Vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Distance < hits[j].Distance })
	if n > 0 && len(hits) > n {
		hits = hits[:n]
	}
	return hits, nil
}

// DeleteByDocument 删除该文档的全部切块，不存在时直接返回。
func (s *MemoryStore) DeleteByDocument(_ context.Context, documentID string) error {
	s.deleteWhere(func(m model.ChunkMetadata) bool { return m.DocumentID == documentID })
	return nil
}

// DeleteStale 删除该文档序号不小于 keep 的切块。
func (s *MemoryStore) DeleteStale(_ context.Context, documentID string, keep int) error {
	s.deleteWhere(func(m model.ChunkMetadata) bool {
		return m.DocumentID == documentID && m.ChunkIndex >= keep
	})
	return nil
}

func (s *MemoryStore) deleteWhere(match func(model.ChunkMetadata) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.chunks[:0]
	for _, c := range s.chunks {
		if !match(c.Metadata) {
			kept = append(kept, c)
		}
	}
	s.chunks = kept
	s.byID = make(map[string]int, len(kept))
	for i, c := range kept {
		s.byID[c.Metadata.ChunkID] = i
	}
}

// DocumentIDs 按首次写入顺序返回文档 ID。
func (s *MemoryStore) DocumentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	var ids []string
	for _, c := range s.chunks {
		if !seen[c.Metadata.DocumentID] {
			seen[c.Metadata.DocumentID] = true
			ids = append(ids, c.Metadata.DocumentID)
		}
	}
	return ids, nil
}

// Count 返回切块总数。
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.chunks)), nil
}

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var _ Store = (*MemoryStore)(nil)
