// Package services implements the ingestion core: the per-item state
// machine (Job), run-local duplicate suppression (SeenSet), the
// connector registry, the ingestor that runs jobs for configured
// sources, and the interval scheduler.
package services
