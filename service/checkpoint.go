package service

import (
	"bytes"
	"context"
	"encoding/json"
	"path"
	"sync"
	"time"

	"finreg-audit/models"
	"finreg-audit/storage"

	"go.uber.org/zap"
)

const checkpointFile = "checkpoint_latest.json"

// CheckpointWriter persists section snapshots from a single goroutine.
// Submit never blocks; when the writer falls behind only the newest snapshot is kept.
type CheckpointWriter struct {
	store   storage.Storage
	key     string
	timeout time.Duration
	logger  *zap.Logger

	mu      sync.Mutex
	pending chan []models.CheckpointSection
	done    chan struct{}
	closed  bool
}

// NewCheckpointWriter starts a writer for runID; a nil store turns every Submit into a no-op
func NewCheckpointWriter(store storage.Storage, runID string, logger *zap.Logger) *CheckpointWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &CheckpointWriter{
		store:   store,
		key:     CheckpointKey(runID),
		timeout: 30 * time.Second,
		logger:  logger,
		pending: make(chan []models.CheckpointSection, 1),
		done:    make(chan struct{}),
	}
	go w.loop()
	return w
}

// CheckpointKey returns the storage key of a run's latest checkpoint
func CheckpointKey(runID string) string {
	return path.Join("checkpoints", runID, checkpointFile)
}

// Key returns the storage key this writer overwrites
func (w *CheckpointWriter) Key() string {
	return w.key
}

// Submit queues a snapshot of the completed sections
func (w *CheckpointWriter) Submit(sections []models.SectionResult) {
	if w.store == nil {
		return
	}
	snapshot := models.NewCheckpoint(sections)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	select {
	case <-w.pending:
	default:
	}
	w.pending <- snapshot
}

// Close flushes the queued snapshot and stops the writer
func (w *CheckpointWriter) Close() {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.pending)
	}
	w.mu.Unlock()
	<-w.done
}

func (w *CheckpointWriter) loop() {
	defer close(w.done)
	for snapshot := range w.pending {
		w.write(snapshot)
	}
}

// write swallows every error; a checkpoint must never abort the audit
func (w *CheckpointWriter) write(snapshot []models.CheckpointSection) {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		w.logger.Warn("checkpoint encode failed", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	if _, err := w.store.Put(ctx, w.key, bytes.NewReader(data)); err != nil {
		w.logger.Warn("checkpoint write failed", zap.String("key", w.key), zap.Error(err))
		return
	}
	w.logger.Debug("checkpoint written", zap.String("key", w.key), zap.Int("sections", len(snapshot)))
}
