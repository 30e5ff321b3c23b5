package services

import (
	"context"
	"crypto/md5" //nolint:gosec // change detection only, not a security boundary
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
	"github.com/quarrylabs/quarry-cli/internal/logger"
)

// Job orchestrates one ingestion run for a single source: it
// enumerates items, applies the dedup and versioning policy per item,
// builds standardised metadata, and drives the sink and tracker.
//
// A job processes items strictly sequentially. Multiple jobs for
// different sources may run concurrently; the tracker provides
// per-operation transactional isolation across them.
type Job struct {
	cfg     domain.SourceConfig
	source  driven.Source
	tracker driven.MetadataTracker
	sink    driven.ContentSink
	seen    *SeenSet
	limiter *rate.Limiter
}

// NewJob creates an ingestion job for one source.
func NewJob(
	cfg domain.SourceConfig,
	source driven.Source,
	tracker driven.MetadataTracker,
	sink driven.ContentSink,
) *Job {
	j := &Job{
		cfg:     cfg,
		source:  source,
		tracker: tracker,
		sink:    sink,
		seen:    NewSeenSet(DefaultSeenCapacity),
	}
	if cfg.RequestDelay > 0 {
		j.limiter = rate.NewLimiter(rate.Every(cfg.RequestDelay), 1)
	}
	return j
}

// Run executes one complete ingestion pass: it consumes the source's
// item sequence, pacing between items when configured, and processes
// each item in turn. A single item's failure never aborts the run; a
// failure of discovery itself stops the run early with partial totals
// recorded in the summary. Cancellation is honoured between items.
func (j *Job) Run(ctx context.Context) domain.Summary {
	summary := domain.Summary{SourceName: j.cfg.Name}

	logger.Info("[%s] Starting ingestion job", j.cfg.Name)

	items, errs := j.source.ListItems(ctx)

	for {
		select {
		case <-ctx.Done():
			summary.Err = ctx.Err()
			return summary

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				summary.Err = fmt.Errorf("list items: %w", err)
				logger.Error("%s", summary.String())
				return summary
			}

		case item, ok := <-items:
			if !ok {
				// The error channel closes after the item channel, so a
				// fatal error sent while an item was in flight may still
				// be buffered. Drain it before declaring success.
				for errs != nil {
					err, open := <-errs
					if !open {
						break
					}
					if err != nil {
						summary.Err = fmt.Errorf("list items: %w", err)
						logger.Error("%s", summary.String())
						return summary
					}
				}
				logger.Info("%s", summary.String())
				return summary
			}

			if j.limiter != nil {
				if err := j.limiter.Wait(ctx); err != nil {
					summary.Err = err
					return summary
				}
			}

			result := j.ProcessItem(ctx, item)
			if n := result.Count(); n > 0 {
				summary.Ingested += n
			} else {
				summary.Skipped++
			}
		}
	}
}

// ProcessItem runs a single item through the pipeline: fetch, hash,
// run-local dedup, name, version check, metadata build, insert,
// record. Every step resolves locally to an outcome; ProcessItem
// never returns an error and never aborts the run.
func (j *Job) ProcessItem(ctx context.Context, item domain.Item) domain.ItemResult {
	content, aux, err := j.source.FetchContent(ctx, item)
	if err != nil {
		logger.Warn("[%s] Failed to fetch %s: %v", j.cfg.Name, item.ID, err)
		return domain.ItemResult{Outcome: domain.OutcomeFailed, Err: err}
	}

	if strings.TrimSpace(content) == "" {
		logger.Debug("[%s] Skipping empty content for item: %s", j.cfg.Name, item.ID)
		return domain.ItemResult{Outcome: domain.OutcomeSkippedEmpty}
	}

	checksum := Checksum(content)

	if !j.seen.Add(checksum) {
		logger.Debug("[%s] Skipping duplicate checksum for item: %s", j.cfg.Name, item.ID)
		return domain.ItemResult{Outcome: domain.OutcomeSkippedDuplicate}
	}

	key := j.source.ItemName(item)

	latest, err := j.tracker.LatestRecord(ctx, key)
	if err != nil {
		logger.Warn("[%s] Failed to look up record for %s: %v", j.cfg.Name, key, err)
		return domain.ItemResult{Outcome: domain.OutcomeFailed, Err: err}
	}

	if latest != nil && latest.Checksum == checksum {
		logger.Debug("[%s] Skipping unchanged item: %s", j.cfg.Name, key)
		return domain.ItemResult{Outcome: domain.OutcomeSkippedUnchanged}
	}

	version := 1
	if latest != nil {
		logger.Info("[%s] Updating item %s from version %d", j.cfg.Name, key, latest.Version)
		if err := j.tracker.DeletePreviousEmbeddings(ctx, key); err != nil {
			logger.Warn("[%s] Failed to delete previous embeddings for %s: %v", j.cfg.Name, key, err)
			return domain.ItemResult{Outcome: domain.OutcomeFailed, Err: err}
		}
		version = latest.Version + 1
	}

	metadata := j.buildMetadata(item, key, checksum, version)

	// Connector extras never overwrite reserved keys.
	domain.MergeExtraMetadata(metadata, aux)
	domain.MergeExtraMetadata(metadata, j.source.ExtraMetadata(item, content, metadata))

	doc := domain.Document{Text: content, Metadata: metadata}
	if err := j.sink.InsertDocuments(ctx, []domain.Document{doc}); err != nil {
		logger.Warn("[%s] Failed to insert %s: %v", j.cfg.Name, key, err)
		return domain.ItemResult{Outcome: domain.OutcomeFailed, Err: err}
	}

	rec := domain.Record{
		Key:          key,
		Checksum:     checksum,
		Version:      version,
		ChunkCount:   1,
		LastModified: item.LastModified,
		Extra:        map[string]any{domain.MetaSourceName: j.cfg.Name},
	}
	if err := j.tracker.Record(ctx, rec); err != nil {
		logger.Warn("[%s] Failed to record metadata for %s: %v", j.cfg.Name, key, err)
		return domain.ItemResult{Outcome: domain.OutcomeFailed, Err: err}
	}

	logger.Info("[%s] Successfully ingested: %s (version %d)", j.cfg.Name, key, version)
	return domain.ItemResult{Outcome: domain.OutcomeIngested}
}

// buildMetadata constructs the reserved-key metadata map for a
// document about to be inserted.
func (j *Job) buildMetadata(item domain.Item, key, checksum string, version int) map[string]any {
	lastModified := ""
	if item.LastModified != nil {
		lastModified = item.LastModified.UTC().Format("2006-01-02T15:04:05Z07:00")
	}

	metadata := map[string]any{
		domain.MetaSource:       j.source.Type(),
		domain.MetaKey:          key,
		domain.MetaChecksum:     checksum,
		domain.MetaVersion:      version,
		domain.MetaFormat:       "markdown",
		domain.MetaSourceName:   j.cfg.Name,
		domain.MetaFileName:     key,
		domain.MetaLastModified: lastModified,
	}

	if item.URL != "" {
		metadata["url"] = item.URL
	}

	return metadata
}

// Checksum computes the hex digest used for change detection.
// Collision resistance is not a security requirement here.
func Checksum(content string) string {
	sum := md5.Sum([]byte(content)) //nolint:gosec // change detection only
	return hex.EncodeToString(sum[:])
}
