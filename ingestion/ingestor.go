package ingestion

import (
	"context"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"finreg-audit/models"
	"finreg-audit/service"

	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"
)

const (
	DefaultChunkSize    = 1024
	DefaultChunkOverlap = 128

	csvHeadRows = 30
	csvTailRows = 30
)

// folder layout of an audit corpus, in ingestion order
var folders = []struct {
	name    string
	docType models.DocumentType
	exts    []string
}{
	{"pdfs", models.DocTypePDF, []string{".txt", ".md"}},
	{"excel", models.DocTypeExcel, []string{".csv"}},
	{"interviews", models.DocTypeInterview, []string{".json", ".yaml", ".yml", ".txt"}},
	{"screenshots", models.DocTypeScreenshot, []string{".png", ".jpg", ".jpeg", ".webp"}},
	{"logs", models.DocTypeLog, []string{".txt", ".log", ".csv"}},
}

// Ingestor turns an audit corpus directory into indexable documents
type Ingestor struct {
	chunkSize int
	overlap   int
	logger    *zap.Logger
	seen      map[string]bool
}

// IngestorOption is a functional option for Ingestor
type IngestorOption func(*Ingestor)

// IngestWithChunking overrides chunk size and overlap (in runes)
func IngestWithChunking(size, overlap int) IngestorOption {
	return func(i *Ingestor) {
		i.chunkSize = size
		i.overlap = overlap
	}
}

// IngestWithLogger sets the logger
func IngestWithLogger(l *zap.Logger) IngestorOption {
	return func(i *Ingestor) {
		i.logger = l
	}
}

// NewIngestor creates an ingestor
func NewIngestor(opts ...IngestorOption) *Ingestor {
	i := &Ingestor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		logger:    zap.NewNop(),
		seen:      make(map[string]bool),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// IngestDirectory walks pdfs/, excel/, interviews/, screenshots/ and logs/ below dir.
// Files with identical content are ingested once. Unreadable files are logged and skipped.
func (i *Ingestor) IngestDirectory(ctx context.Context, dir string) ([]models.Document, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open corpus: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("corpus %s is not a directory", dir)
	}

	var docs []models.Document
	for _, f := range folders {
		folder := filepath.Join(dir, f.name)
		files, err := listFiles(folder, f.exts)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("failed to list %s: %w", folder, err)
		}
		before := len(docs)
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			fileDocs, err := i.ingestFile(path, f.docType)
			if err != nil {
				i.logger.Warn("skipping unreadable file", zap.String("path", path), zap.Error(err))
				continue
			}
			docs = append(docs, fileDocs...)
		}
		i.logger.Info("folder ingested", zap.String("folder", f.name), zap.Int("chunks", len(docs)-before))
	}

	i.logger.Info("corpus ingested", zap.Int("chunks", len(docs)), zap.Int("unique_files", len(i.seen)))
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no supported files below %s", service.ErrEmptyCorpus, dir)
	}
	return docs, nil
}

func (i *Ingestor) ingestFile(path string, docType models.DocumentType) ([]models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	hash := contentHash(data)
	name := filepath.Base(path)
	if i.seen[hash] {
		i.logger.Info("duplicate skipped", zap.String("source", name))
		return nil, nil
	}
	i.seen[hash] = true

	base := models.ChunkMetadata{"file_path": path}
	ext := strings.ToLower(filepath.Ext(path))

	switch {
	case docType == models.DocTypeScreenshot:
		sizeKB := float64(len(data)) / 1024
		base["file_size_kb"] = math.Round(sizeKB*10) / 10
		text := fmt.Sprintf("[SCREENSHOT: %s] System screenshot (%.0f KB). "+
			"Visual inspection by a human examiner required.", name, sizeKB)
		return []models.Document{newDocument(text, name, docType, hash, 0, base)}, nil

	case ext == ".csv":
		text, rows, cols, err := csvText(data, name)
		if err != nil {
			return nil, err
		}
		base["rows"] = rows
		base["columns"] = cols
		if docType == models.DocTypeExcel {
			return []models.Document{newDocument(text, name, docType, hash, 0, base)}, nil
		}
		return i.chunked(text, name, docType, hash, base), nil

	case docType == models.DocTypeInterview && ext != ".txt":
		v, err := decodeInterview(data, ext == ".yaml" || ext == ".yml")
		if err != nil {
			return nil, err
		}
		return []models.Document{newDocument(InterviewText(v, name), name, docType, hash, 0, base)}, nil

	case docType == models.DocTypeInterview:
		return []models.Document{newDocument(string(data), name, docType, hash, 0, base)}, nil

	default:
		return i.chunked(strings.ToValidUTF8(string(data), "�"), name, docType, hash, base), nil
	}
}

func (i *Ingestor) chunked(text, source string, docType models.DocumentType, hash string, base models.ChunkMetadata) []models.Document {
	parts := SplitText(text, i.chunkSize, i.overlap)
	docs := make([]models.Document, 0, len(parts))
	for idx, p := range parts {
		docs = append(docs, newDocument(p, source, docType, hash, idx, base))
	}
	return docs
}

func newDocument(text, source string, docType models.DocumentType, hash string, idx int, base models.ChunkMetadata) models.Document {
	meta := make(models.ChunkMetadata, len(base)+2)
	for k, v := range base {
		meta[k] = v
	}
	meta["source"] = source
	meta["input_type"] = string(docType)
	return models.Document{
		Text:        text,
		Source:      source,
		DocType:     docType,
		ContentHash: hash,
		ChunkIndex:  idx,
		Metadata:    meta,
	}
}

// contentHash is the BLAKE2b-256 digest of a file, hex encoded
func contentHash(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func listFiles(dir string, exts []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range exts {
			if ext == want {
				out = append(out, filepath.Join(dir, e.Name()))
				break
			}
		}
	}
	sort.Strings(out)
	return out, nil
}

// csvText renders a table as a reviewable text block: header, row count and an excerpt
func csvText(data []byte, name string) (string, int, []string, error) {
	records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	if err != nil {
		return "", 0, nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return fmt.Sprintf("=== File: %s ===\n(empty)", name), 0, []string{}, nil
	}
	header, rows := records[0], records[1:]

	var b strings.Builder
	fmt.Fprintf(&b, "=== File: %s ===\n", name)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(header, ", "))
	fmt.Fprintf(&b, "Row count: %d\n\n", len(rows))

	head := rows
	if len(head) > csvHeadRows {
		head = head[:csvHeadRows]
	}
	fmt.Fprintf(&b, "Data excerpt (first %d rows):\n", len(head))
	b.WriteString(strings.Join(header, " | "))
	b.WriteString("\n")
	for _, r := range head {
		b.WriteString(strings.Join(r, " | "))
		b.WriteString("\n")
	}
	if len(rows) > csvHeadRows+csvTailRows {
		fmt.Fprintf(&b, "\n... (%d rows omitted) ...\n\nLast %d rows:\n", len(rows)-csvHeadRows-csvTailRows, csvTailRows)
		for _, r := range rows[len(rows)-csvTailRows:] {
			b.WriteString(strings.Join(r, " | "))
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n"), len(rows), header, nil
}
