package model

import "fmt"

// ChunkMetadata 是随每个切块一起写入索引的元数据。
type ChunkMetadata struct {
	DocumentID     string `json:"document_id"`
	Filename       string `json:"filename"`
	OrganizationID uint   `json:"organization_id"`
	ChunkIndex     int    `json:"chunk_index"`
	TotalChunks    int    `json:"total_chunks"`
	ChunkID        string `json:"chunk_id"`
}

// ChunkID 生成 {documentID}_chunk_{index} 形式的切块 ID。
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", documentID, index)
}

// IndexedChunk 是写入向量索引的一条记录。
type IndexedChunk struct {
	Text     string
	Vector   []float32
	Metadata ChunkMetadata
}

// EsChunk 定义了存储在 Elasticsearch 中的切块文档结构。
type EsChunk struct {
	ChunkID        string    `json:"chunk_id"`
	DocumentID     string    `json:"document_id"`
	Filename       string    `json:"filename"`
	OrganizationID uint      `json:"organization_id"`
	ChunkIndex     int       `json:"chunk_index"`
	TotalChunks    int       `json:"total_chunks"`
	TextContent    string    `json:"text_content"`
	Vector         []float32 `json:"vector,omitempty"`
	ModelVersion   string    `json:"model_version,omitempty"`
}
