// Package indexer reconciles the upload directory with the vector
// collection: it walks the tree, extracts and chunks every supported file,
// embeds the chunks, upserts them under deterministic ids, and evicts points
// whose source file no longer exists. Only one reconciliation pass runs at a
// time; a periodic scheduler re-runs it at a configurable interval.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"llm-privacy-gateway/internal/apperr"
	"llm-privacy-gateway/internal/document"
	"llm-privacy-gateway/internal/logger"
	"llm-privacy-gateway/internal/metrics"
)

// ErrAlreadyIndexing is returned when a pass is requested while another is
// in progress.
var ErrAlreadyIndexing = apperr.New(apperr.Conflict, "Indexing already in progress")

// embedBatchSize bounds how many chunk texts go into one embedding request.
const embedBatchSize = 32

// schedulerWarmup is how long the scheduler waits before its first pass, so
// the vector store and embedder have time to come up.
const schedulerWarmup = 60 * time.Second

// Embedder produces one vector per input text.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the slice of the vector store the indexer needs.
type VectorStore interface {
	Upsert(ctx context.Context, id, text string, vector []float32, metadata map[string]any) error
	ScrollAllIDs(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, ids []string) error
}

// Status is the concurrent view of the indexing subsystem.
type Status struct {
	IsIndexing               bool       `json:"is_indexing"`
	LastIndexedAt            *time.Time `json:"last_indexed_at"`
	TotalFiles               int        `json:"total_files"`
	TotalChunks              int        `json:"total_chunks"`
	FailedFiles              []string   `json:"failed_files"`
	AutoIndexIntervalMinutes int        `json:"auto_index_interval_minutes"`
	LastError                *string    `json:"last_error"`
}

// Manager owns the index status and runs reconciliation passes.
type Manager struct {
	mu     sync.Mutex
	status Status

	uploadDir    string
	embedder     Embedder
	store        VectorStore
	maxChunkSize int
	chunkOverlap int
	metrics      *metrics.Metrics
	log          zerolog.Logger
}

// New creates a Manager over uploadDir. m may be nil to skip metrics.
func New(uploadDir string, embedder Embedder, store VectorStore, intervalMinutes, maxChunkSize, chunkOverlap int, m *metrics.Metrics) *Manager {
	return &Manager{
		status: Status{
			FailedFiles:              []string{},
			AutoIndexIntervalMinutes: intervalMinutes,
		},
		uploadDir:    uploadDir,
		embedder:     embedder,
		store:        store,
		maxChunkSize: maxChunkSize,
		chunkOverlap: chunkOverlap,
		metrics:      m,
		log:          logger.Component("indexer"),
	}
}

// FileID returns the deterministic file hash used as the point id prefix:
// the first 8 bytes of SHA-256 over the file path, hex-encoded. The prefix
// before the first "_" in a point id identifies the source file, which is
// what stale cleanup keys on.
func FileID(path string) string {
	sum := sha256.Sum256([]byte(path))
	return hex.EncodeToString(sum[:8])
}

// Status returns a copy of the current status.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.status
	s.FailedFiles = append([]string(nil), m.status.FailedFiles...)
	return s
}

// IsIndexing reports whether a pass is in progress.
func (m *Manager) IsIndexing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status.IsIndexing
}

// SetInterval updates the auto-index interval. The scheduler re-reads it
// before every sleep, so the change applies from the next cycle.
func (m *Manager) SetInterval(minutes int) {
	m.mu.Lock()
	m.status.AutoIndexIntervalMinutes = minutes
	m.mu.Unlock()
}

func (m *Manager) interval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return time.Duration(m.status.AutoIndexIntervalMinutes) * time.Minute
}

// Trigger starts a reconciliation pass in the background. Returns
// ErrAlreadyIndexing if one is running.
func (m *Manager) Trigger(ctx context.Context) error {
	if m.IsIndexing() {
		return ErrAlreadyIndexing
	}
	go func() {
		if err := m.RunIndex(ctx); err != nil {
			m.log.Error().Err(err).Msg("triggered indexing failed")
		}
	}()
	return nil
}

// RunIndex executes one reconciliation pass. It self-rejects re-entry, and
// is_indexing is reset on every exit path, panics included.
func (m *Manager) RunIndex(ctx context.Context) error {
	m.mu.Lock()
	if m.status.IsIndexing {
		m.mu.Unlock()
		return ErrAlreadyIndexing
	}
	m.status.IsIndexing = true
	m.status.LastError = nil
	m.status.FailedFiles = []string{}
	m.mu.Unlock()

	err := m.runPass(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.IsIndexing = false
	if err != nil {
		msg := err.Error()
		m.status.LastError = &msg
		return err
	}
	now := time.Now().UTC()
	m.status.LastIndexedAt = &now
	m.status.LastError = nil
	return nil
}

// runPass walks, indexes, and cleans up. A panic anywhere inside (the
// chunker on adversarial input, a misbehaving extractor) is converted into
// an error so the caller's status handling sees every outcome the same way.
func (m *Manager) runPass(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("indexing panicked: %v", r)
		}
	}()

	files := document.Walk(m.uploadDir)
	m.log.Info().Int("files", len(files)).Str("dir", m.uploadDir).Msg("indexing started")

	// Hashes of every file on disk, failures included: a failed extraction
	// is not a reason to evict the file's previous points.
	existing := make(map[string]struct{}, len(files))
	for _, f := range files {
		existing[FileID(f.Path)] = struct{}{}
	}

	successCount := 0
	totalChunks := 0
	var failedFiles []string

	for _, f := range files {
		chunkIDs, ferr := m.processFile(ctx, f)
		if ferr != nil {
			m.log.Warn().Err(ferr).Str("path", f.Path).Msg("failed to index file")
			failedFiles = append(failedFiles, filepath.Base(f.Path))
			continue
		}
		successCount++
		totalChunks += len(chunkIDs)
	}

	m.cleanupStale(ctx, existing)

	m.mu.Lock()
	m.status.TotalFiles = successCount
	m.status.TotalChunks = totalChunks
	if failedFiles == nil {
		failedFiles = []string{}
	}
	m.status.FailedFiles = failedFiles
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.IndexPasses.Inc()
		m.metrics.IndexedChunks.Add(float64(totalChunks))
	}
	m.log.Info().Int("files", successCount).Int("chunks", totalChunks).
		Int("failed", len(failedFiles)).Msg("indexing complete")
	return nil
}

// processFile extracts, chunks, embeds, and upserts one file, returning the
// point ids written. Empty extraction is a success with zero chunks.
func (m *Manager) processFile(ctx context.Context, f document.File) ([]string, error) {
	text, err := document.Extract(f.Path, f.Format)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	chunks := document.ChunkText(text, m.maxChunkSize, m.chunkOverlap)
	fileID := FileID(f.Path)
	var chunkIDs []string

	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}
		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed batch: %w", err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("embed batch: got %d vectors for %d chunks", len(vectors), len(batch))
		}

		for i, c := range batch {
			id := fmt.Sprintf("%s_%d", fileID, c.Index)
			metadata := map[string]any{
				"file_path":   f.Path,
				"chunk_index": c.Index,
				"format":      string(f.Format),
			}
			if err := m.store.Upsert(ctx, id, c.Text, vectors[i], metadata); err != nil {
				return nil, fmt.Errorf("upsert %s: %w", id, err)
			}
			chunkIDs = append(chunkIDs, id)
		}
	}
	return chunkIDs, nil
}

// cleanupStale deletes points whose source file no longer exists on disk.
// Failures are logged only; a cleanup problem must not fail the pass.
func (m *Manager) cleanupStale(ctx context.Context, existing map[string]struct{}) {
	ids, err := m.store.ScrollAllIDs(ctx)
	if err != nil {
		m.log.Error().Err(err).Msg("failed to scroll point ids for cleanup")
		return
	}

	var stale []string
	for _, id := range ids {
		fileHash, _, _ := strings.Cut(id, "_")
		if _, ok := existing[fileHash]; !ok {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return
	}

	m.log.Info().Int("points", len(stale)).Msg("cleaning up stale points")
	if err := m.store.Delete(ctx, stale); err != nil {
		m.log.Error().Err(err).Msg("failed to clean up stale points")
	}
}

// StartScheduler launches the periodic indexing goroutine: one warmup delay,
// then run-sleep cycles until ctx is cancelled. The interval is re-read from
// status each cycle so SetInterval takes effect without a restart.
func (m *Manager) StartScheduler(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-time.After(schedulerWarmup):
		}

		for {
			m.log.Info().Msg("scheduled indexing starting")
			if err := m.RunIndex(ctx); err != nil {
				m.log.Error().Err(err).Msg("scheduled indexing failed")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(m.interval()):
			}
		}
	}()
}
