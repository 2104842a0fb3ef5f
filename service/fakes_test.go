package service_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"finreg-audit/models"
	"finreg-audit/service"
	"finreg-audit/storage"
)

func score(v float64) *float64 { return &v }

func strPtr(s string) *string { return &s }

func chunk(source string, docType models.DocumentType, s float64, text string) models.EvidenceChunk {
	return models.EvidenceChunk{ID: source, Source: source, DocType: docType, Score: score(s), Text: text}
}

type stubSearcher struct {
	chunks  []models.EvidenceChunk
	err     error
	queries []string
	mu      sync.Mutex
}

func (s *stubSearcher) Search(_ context.Context, query string, _ int) ([]models.EvidenceChunk, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.chunks, nil
}

// countingCompleter answers every call with the next scripted response
type countingCompleter struct {
	responses []string
	errs      []error
	calls     atomic.Int32
	lastReq   service.CompletionRequest
	mu        sync.Mutex
}

func (c *countingCompleter) Complete(_ context.Context, req service.CompletionRequest) (string, error) {
	n := int(c.calls.Add(1)) - 1
	c.mu.Lock()
	c.lastReq = req
	c.mu.Unlock()
	if n < len(c.errs) && c.errs[n] != nil {
		return "", c.errs[n]
	}
	if len(c.responses) == 0 {
		return "", nil
	}
	if n >= len(c.responses) {
		return c.responses[len(c.responses)-1], nil
	}
	return c.responses[n], nil
}

func (c *countingCompleter) Calls() int { return int(c.calls.Load()) }

type memoryStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func newMemoryStorage() *memoryStorage {
	return &memoryStorage{objects: make(map[string][]byte)}
}

func (m *memoryStorage) Put(_ context.Context, key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.puts++
	return "mem://" + key, nil
}

func (m *memoryStorage) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memoryStorage) object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

var errStorageDown = errors.New("storage down")

type failingStorage struct {
	puts atomic.Int32
}

func (f *failingStorage) Put(context.Context, string, io.Reader) (string, error) {
	f.puts.Add(1)
	return "", errStorageDown
}

func (f *failingStorage) Get(context.Context, string) (io.ReadCloser, error) {
	return nil, errStorageDown
}

func (f *failingStorage) Delete(context.Context, string) error {
	return errStorageDown
}

const conformResponse = `{
  "verdict": "conform",
  "justification": "The risk analysis was updated in March 2024 and approved by the board.",
  "cited_excerpts": ["Risk analysis approved on 2024-03-12"],
  "deficiency": null,
  "recommendations": [],
  "sources": ["risikoanalyse_2024.pdf"],
  "confidence_self": 0.9
}`

func gwgField() models.AuditField {
	return models.AuditField{
		ID:               "S01-01",
		Question:         "Is there a documented risk analysis?",
		LegalBasis:       models.LegalRefs{"§ 5 GwG"},
		ExpectedEvidence: []string{"Risikoanalyse"},
		InputTypes:       []models.DocumentType{models.DocTypePDF},
		Severity:         models.SeverityMaterial,
	}
}
