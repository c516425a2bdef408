// Package tasks defines the messages exchanged over the indexing topic.
package tasks

// IndexTask asks the indexer to (re)build the vector index entries of one document.
type IndexTask struct {
	DocumentID     string `json:"document_id"`
	OrganizationID uint   `json:"organization_id"`
}
