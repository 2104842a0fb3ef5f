package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ChunkMetadata holds arbitrary per-chunk attributes stored as JSON
type ChunkMetadata map[string]interface{}

// Value implements driver.Valuer for JSON columns
func (m ChunkMetadata) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for JSON columns
func (m *ChunkMetadata) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
		*m = ChunkMetadata{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", value)
	}
	if len(data) == 0 {
		*m = ChunkMetadata{}
		return nil
	}
	return json.Unmarshal(data, m)
}

// EvidenceChunk represents a retrieved piece of corpus text with its relevance
type EvidenceChunk struct {
	ID       string        `json:"id"`
	Source   string        `json:"source"`
	DocType  DocumentType  `json:"doc_type"`
	Score    *float64      `json:"score,omitempty"` // nil when the index reports no similarity
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata,omitempty"`
}

// ScoreOrZero returns the relevance score, treating a missing score as 0
func (c EvidenceChunk) ScoreOrZero() float64 {
	if c.Score == nil {
		return 0
	}
	return *c.Score
}

// Document represents an ingested chunk ready to be embedded and indexed
type Document struct {
	Text        string        `json:"text"`
	Source      string        `json:"source"`
	DocType     DocumentType  `json:"doc_type"`
	ContentHash string        `json:"content_hash"` // hash of the whole source file
	ChunkIndex  int           `json:"chunk_index"`
	Metadata    ChunkMetadata `json:"metadata,omitempty"`
}
