package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/quarrylabs/quarry-cli/internal/chunker"
	"github.com/quarrylabs/quarry-cli/internal/core/domain"
	"github.com/quarrylabs/quarry-cli/internal/core/ports/driven"
)

// sink implements driven.ContentSink on the shared store: documents
// are split into chunks, optionally embedded, and inserted in one
// transaction per batch.
type sink struct {
	store    *Store
	splitter *chunker.Splitter
	embedder driven.EmbeddingService
}

var _ driven.ContentSink = (*sink)(nil)

func newSink(store *Store, chunkSize, chunkOverlap int, embedder driven.EmbeddingService) *sink {
	return &sink{
		store: store,
		splitter: chunker.New(
			chunker.WithChunkSize(chunkSize),
			chunker.WithOverlap(chunkOverlap),
		),
		embedder: embedder,
	}
}

// InsertDocuments chunks, optionally embeds, and indexes each
// document. The whole batch commits or rolls back as one transaction.
func (s *sink) InsertDocuments(ctx context.Context, docs []domain.Document) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, key, position, content, embedding, metadata)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer stmt.Close()

	for i := range docs {
		if err := s.insertDocument(ctx, stmt, &docs[i]); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

func (s *sink) insertDocument(ctx context.Context, stmt *sql.Stmt, doc *domain.Document) error {
	key, _ := doc.Metadata[domain.MetaKey].(string)
	if key == "" {
		return fmt.Errorf("%w: document missing key metadata", domain.ErrInvalidInput)
	}

	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	for position, content := range s.splitter.Split(doc.Text) {
		var embeddingBlob []byte
		if s.embedder != nil {
			embedding, err := s.embedder.Embed(ctx, content)
			if err != nil {
				return fmt.Errorf("embedding chunk: %w", err)
			}
			embeddingBlob = float32SliceToBytes(embedding)
		}

		if _, err := stmt.ExecContext(ctx, uuid.New().String(), key,
			position, content, embeddingBlob, string(metadataJSON)); err != nil {
			return fmt.Errorf("saving chunk: %w", err)
		}
	}

	return nil
}

// float32SliceToBytes encodes an embedding as little-endian bytes for
// BLOB storage.
func float32SliceToBytes(floats []float32) []byte {
	if floats == nil {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice decodes an embedding BLOB.
func bytesToFloat32Slice(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	floats := make([]float32, len(buf)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return floats
}
