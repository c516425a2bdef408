package model

// SearchResult 是向量检索返回的单个切块命中。
type SearchResult struct {
	DocumentID     string  `json:"document_id"`
	Filename       string  `json:"filename"`
	Chunk          string  `json:"chunk"`
	ChunkIndex     int     `json:"chunk_index"`
	RelevanceScore float64 `json:"relevance_score"`
}

// DocumentResult 是按文档聚合后的检索结果。
// Relevance 是各切块得分之和，命中切块越多的文档排名越靠前。
type DocumentResult struct {
	DocumentID string   `json:"document_id"`
	Filename   string   `json:"filename"`
	Chunks     []string `json:"chunks"`
	Relevance  float64  `json:"relevance"`
}

// Source 是返回给调用方的引用来源。
type Source struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Relevance  float64 `json:"relevance"`
}

// ChatAnswer 是非流式问答接口的响应。
type ChatAnswer struct {
	Response    string   `json:"response"`
	Sources     []Source `json:"sources"`
	Confidence  float64  `json:"confidence"`
	ChunksFound int      `json:"chunks_found"`
}

// SystemStats 汇总文档注册表与向量索引的状态。
type SystemStats struct {
	TotalDocuments int64  `json:"total_documents"`
	TotalChunks    int64  `json:"total_chunks"`
	VectorDBStatus string `json:"vector_db_status"`
	AIConfigured   bool   `json:"ai_configured"`
}

// OrganizationStats 是单个组织的文档统计。
type OrganizationStats struct {
	TotalDocuments int64 `json:"total_documents"`
	OrganizationID uint  `json:"organization_id"`
}
