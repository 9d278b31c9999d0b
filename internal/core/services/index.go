package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driving"
	"github.com/custodia-labs/drivesearch-cli/internal/executor"
	"github.com/custodia-labs/drivesearch-cli/internal/logger"
)

const (
	// defaultWorkers bounds in-run document concurrency.
	defaultWorkers = 4

	// defaultBatchSize bounds vectors per upsert call.
	defaultBatchSize = 96

	// maxMetadataNameLen keeps the per-vector metadata payload under the
	// store's 40KB ceiling for pathological display names.
	maxMetadataNameLen = 100
)

// Run executes an indexing run over a change set. Deletions are applied
// first and to completion, then new and modified documents are processed
// by a bounded worker pool. A single bad document is recorded in the
// summary and never aborts the run; the watermark advances to the run's
// start time once every document has been attempted.
func (x *Indexer) Run(ctx context.Context, changes domain.ChangeSet, opts driving.RunOptions) (domain.RunSummary, error) {
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	mode := domain.RunModeApply
	if opts.DryRun {
		mode = domain.RunModeDryRun
	}
	summary := &domain.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: x.now().UTC(),
		Mode:      mode,
	}

	logger.Section("Indexing Run")
	logger.Info("Run %s: %d new, %d modified, %d deleted (dry-run=%v)",
		summary.RunID, len(changes.New), len(changes.Modified), len(changes.Deleted), opts.DryRun)

	x.runDeletes(ctx, changes.Deleted, opts.DryRun, summary)

	docs := make([]workItem, 0, len(changes.New)+len(changes.Modified))
	for _, d := range changes.New {
		docs = append(docs, workItem{doc: d})
	}
	for _, d := range changes.Modified {
		docs = append(docs, workItem{doc: d, reindex: true})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, item := range docs {
		item := item
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			x.processDocument(gctx, item, opts.DryRun, batchSize, summary)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return *summary, err
	}

	if !opts.DryRun {
		x.finishRun(ctx, summary)
	}

	logger.Info("Run %s done: %d processed, %d chunks, %d deleted, %d skipped, %d failed",
		summary.RunID, summary.Processed, summary.Chunks, summary.Deleted,
		summary.Skipped, summary.Failed())
	return *summary, nil
}

// workItem pairs a document with whether its existing vectors must be
// removed before re-upserting.
type workItem struct {
	doc     domain.SourceDocument
	reindex bool
}

// runDeletes removes every vector of each deleted document from both
// stores. Deletes run before upserts so a rename-style delete+create of
// the same content never races its own removal.
func (x *Indexer) runDeletes(ctx context.Context, deleted []string, dryRun bool, summary *domain.RunSummary) {
	for _, id := range deleted {
		if dryRun {
			x.addDeleted(summary)
			continue
		}
		if err := x.deleteDocument(ctx, id); err != nil {
			logger.Warn("Delete %s failed: %v", id, err)
			x.addFailure(summary, domain.DocumentFailure{
				DocumentID: id,
				Reason:     fmt.Sprintf("delete: %v", err),
			})
			continue
		}
		x.addDeleted(summary)
	}
}

// deleteDocument removes a document's vectors from the dense store first,
// then the sparse store, each call going through the executor.
func (x *Indexer) deleteDocument(ctx context.Context, documentID string) error {
	for _, store := range []driven.VectorStore{x.dense, x.sparse} {
		store := store
		err := x.exec.Execute(ctx, executor.ClassUpsert, func(ctx context.Context) error {
			return store.DeleteDocument(ctx, documentID)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// processDocument fetches, chunks and writes one document. Outcomes land
// in the summary: empty or inaccessible content is a skip, write errors
// after retries are a failure.
func (x *Indexer) processDocument(ctx context.Context, item workItem, dryRun bool, batchSize int, summary *domain.RunSummary) {
	doc := item.doc

	var text string
	err := x.exec.Execute(ctx, executor.ClassFetch, func(ctx context.Context) error {
		var fetchErr error
		text, fetchErr = x.source.Fetch(ctx, doc)
		return fetchErr
	})
	if err != nil {
		if errors.Is(err, domain.ErrContentExtraction) {
			logger.Warn("Skipping %s (%s): %v", doc.Name, doc.ID, err)
			x.addSkipped(summary)
			return
		}
		x.addFailure(summary, domain.DocumentFailure{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Reason:     fmt.Sprintf("fetch: %v", err),
		})
		return
	}

	chunks := x.chunker.Chunk(doc.ID, text)
	if len(chunks) == 0 {
		logger.Debug("Skipping %s (%s): no content", doc.Name, doc.ID)
		x.addSkipped(summary)
		return
	}

	if dryRun {
		x.addProcessed(summary, len(chunks))
		return
	}

	// A modified document replaces its whole chunk sequence: the old
	// vectors go first so a shrinking document leaves no stale tail.
	if item.reindex {
		if err := x.deleteDocument(ctx, doc.ID); err != nil {
			x.addFailure(summary, domain.DocumentFailure{
				DocumentID: doc.ID,
				Name:       doc.Name,
				Reason:     fmt.Sprintf("reindex delete: %v", err),
			})
			return
		}
	}

	records := buildRecords(doc, chunks)
	if warnings, err := x.upsertRecords(ctx, records, batchSize); err != nil {
		x.addFailure(summary, domain.DocumentFailure{
			DocumentID: doc.ID,
			Name:       doc.Name,
			Reason:     fmt.Sprintf("upsert: %v", err),
		})
		x.addWarnings(summary, warnings)
		for _, w := range warnings {
			logger.Warn("%s", w)
		}
		return
	}

	logger.Debug("Indexed %s (%s): %d chunks", doc.Name, doc.ID, len(chunks))
	x.addProcessed(summary, len(chunks))
}

// buildRecords maps chunks to upsert payloads carrying the document's
// identity metadata.
func buildRecords(doc domain.SourceDocument, chunks []domain.Chunk) []driven.VectorRecord {
	records := make([]driven.VectorRecord, 0, len(chunks))
	for _, c := range chunks {
		records = append(records, driven.VectorRecord{
			Key:  c.Key(),
			Text: c.Text,
			Metadata: domain.VectorMetadata{
				FileID:       doc.ID,
				FileName:     truncateName(doc.Name),
				FileType:     doc.FileType,
				ChunkIndex:   c.Index,
				ModifiedTime: doc.ModifiedTime.UTC().Format(time.RFC3339),
				WebViewLink:  doc.WebViewLink,
			},
		})
	}
	return records
}

// upsertRecords writes the records to the dense store then the sparse
// store in batches. Both stores must hold the same keys, so a failure on
// either side fails the document; the keys the failure leaves present in
// only one store are returned as consistency warnings.
func (x *Indexer) upsertRecords(ctx context.Context, records []driven.VectorRecord, batchSize int) ([]domain.ConsistencyWarning, error) {
	written, err := x.upsertBatches(ctx, x.dense, records, batchSize)
	if err != nil {
		return orphanWarnings(records[:written]), err
	}

	written, err = x.upsertBatches(ctx, x.sparse, records, batchSize)
	if err != nil {
		return orphanWarnings(records[written:]), err
	}
	return nil, nil
}

// upsertBatches writes records to one store in batchSize slices,
// returning how many records were written before any failure.
func (x *Indexer) upsertBatches(ctx context.Context, store driven.VectorStore, records []driven.VectorRecord, batchSize int) (int, error) {
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]
		err := x.exec.Execute(ctx, executor.ClassUpsert, func(ctx context.Context) error {
			return store.Upsert(ctx, batch)
		})
		if err != nil {
			return start, err
		}
	}
	return len(records), nil
}

// orphanWarnings flags keys a partial failure left in the dense store
// without a sparse counterpart.
func orphanWarnings(records []driven.VectorRecord) []domain.ConsistencyWarning {
	if len(records) == 0 {
		return nil
	}
	warnings := make([]domain.ConsistencyWarning, 0, len(records))
	for _, r := range records {
		warnings = append(warnings, domain.ConsistencyWarning{
			Key:         r.Key,
			PresentIn:   "dense",
			MissingFrom: "sparse",
		})
	}
	return warnings
}

// finishRun advances the watermark, refreshes the stored counters and
// writes the reserved metadata record. All of it is best-effort
// bookkeeping: a failure here degrades the next run's detection but
// never fails this one.
func (x *Indexer) finishRun(ctx context.Context, summary *domain.RunSummary) {
	state := domain.SyncState{LastRefreshTime: summary.StartedAt}

	var ids []string
	err := x.exec.Execute(ctx, executor.ClassQuery, func(ctx context.Context) error {
		var listErr error
		ids, listErr = x.dense.ListDocumentIDs(ctx)
		return listErr
	})
	if err != nil {
		logger.Warn("Counter refresh failed: %v", err)
	} else {
		state.IndexedFiles = len(ids)
	}

	var stats driven.IndexStats
	err = x.exec.Execute(ctx, executor.ClassQuery, func(ctx context.Context) error {
		var statErr error
		stats, statErr = x.dense.Stats(ctx)
		return statErr
	})
	if err != nil {
		logger.Warn("Stats refresh failed: %v", err)
	} else {
		state.IndexedChunks = stats.VectorCount
	}

	if err := x.writeMetadataRecord(ctx, summary.StartedAt); err != nil {
		logger.Warn("Metadata record update failed: %v", err)
	}

	if x.syncStore == nil {
		return
	}
	if err := x.syncStore.Save(ctx, state); err != nil {
		logger.Warn("Watermark save failed: %v", err)
	}
}

// writeMetadataRecord upserts the reserved configuration record into
// both stores so the index is self-describing.
func (x *Indexer) writeMetadataRecord(ctx context.Context, refreshedAt time.Time) error {
	record := driven.VectorRecord{
		Key: domain.MetadataKey,
		Text: fmt.Sprintf("index configuration: chunk_size=%d chunk_overlap=%d last_refresh=%s",
			x.chunker.TargetSize(), x.chunker.Overlap(), refreshedAt.Format(time.RFC3339)),
		Metadata: domain.VectorMetadata{
			FileID:       domain.MetadataKey,
			FileName:     domain.MetadataKey,
			ModifiedTime: refreshedAt.Format(time.RFC3339),
		},
	}

	for _, store := range []driven.VectorStore{x.dense, x.sparse} {
		store := store
		err := x.exec.Execute(ctx, executor.ClassUpsert, func(ctx context.Context) error {
			return store.Upsert(ctx, []driven.VectorRecord{record})
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (x *Indexer) addProcessed(s *domain.RunSummary, chunks int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s.Processed++
	s.Chunks += chunks
}

func (x *Indexer) addDeleted(s *domain.RunSummary) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s.Deleted++
}

func (x *Indexer) addSkipped(s *domain.RunSummary) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s.Skipped++
}

func (x *Indexer) addFailure(s *domain.RunSummary, f domain.DocumentFailure) {
	x.mu.Lock()
	defer x.mu.Unlock()
	s.Failures = append(s.Failures, f)
}

func (x *Indexer) addWarnings(s *domain.RunSummary, warnings []domain.ConsistencyWarning) {
	if len(warnings) == 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	s.Warnings = append(s.Warnings, warnings...)
}

// truncateName bounds a display name for metadata storage, cutting at a
// rune boundary so the stored value stays valid UTF-8.
func truncateName(name string) string {
	if len(name) <= maxMetadataNameLen {
		return name
	}
	runes := []rune(name)
	if len(runes) <= maxMetadataNameLen {
		return name
	}
	return string(runes[:maxMetadataNameLen])
}
