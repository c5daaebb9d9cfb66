package knowledge

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
)

// Document is a source text held in the knowledge base. Chunks are derived
// from it and fully replaced whenever the document is re-indexed.
type Document struct {
	ID        string
	Title     string
	Content   string
	UpdatedAt time.Time
}

// Chunk is one indexed span of a document.
type Chunk struct {
	ID         string
	DocumentID string
	Content    string
	Index      int
	Embedding  []float32
	Metadata   map[string]any
	Similarity float64
}

// insertBatchSize bounds how many chunk inserts share one round trip.
const insertBatchSize = 100

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertDocument(ctx context.Context, doc Document) error {
	if doc.ID == "" {
		return errors.New("document id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO hobi_documents (id, title, content, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, content = EXCLUDED.content, updated_at = NOW()
	`, doc.ID, doc.Title, doc.Content)
	if err != nil {
		return fmt.Errorf("upsert document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (Document, error) {
	var doc Document
	err := s.db.QueryRowContext(ctx, `
		SELECT id, title, content, updated_at FROM hobi_documents WHERE id = $1
	`, id).Scan(&doc.ID, &doc.Title, &doc.Content, &doc.UpdatedAt)
	if err != nil {
		return Document{}, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, content, updated_at FROM hobi_documents ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Content, &doc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes the document and its chunk set.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("document id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hobi_chunks WHERE document_id = $1`, id); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM hobi_documents WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return tx.Commit()
}

// DeleteChunks clears the chunk set for a document id, leaving the document
// row itself in place.
func (s *Store) DeleteChunks(ctx context.Context, documentID string) error {
	if documentID == "" {
		return errors.New("document id is required")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM hobi_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

// ReplaceChunks swaps a document's chunk set in one transaction: the old set
// is deleted and the new one inserted in fixed-size batches. Callers must
// have fully embedded every chunk before calling; the delete happens here,
// never earlier.
func (s *Store) ReplaceChunks(ctx context.Context, documentID string, chunks []Chunk) error {
	if documentID == "" {
		return errors.New("document id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM hobi_chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete existing chunks: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hobi_chunks (document_id, chunk_index, content, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for start := 0; start < len(chunks); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		for _, chunk := range chunks[start:end] {
			metadataBytes, err := json.Marshal(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("encode metadata: %w", err)
			}
			if _, err := stmt.ExecContext(
				ctx,
				documentID,
				chunk.Index,
				chunk.Content,
				pgvector.NewVector(chunk.Embedding),
				metadataBytes,
			); err != nil {
				return fmt.Errorf("insert chunk %d: %w", chunk.Index, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// VectorSearch returns the chunks closest to the embedding by cosine
// distance, best first, with cosine similarity attached.
func (s *Store) VectorSearch(ctx context.Context, embedding []float32, limit int) ([]Chunk, error) {
	if len(embedding) == 0 {
		return nil, errors.New("embedding is required")
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id,
			document_id,
			chunk_index,
			content,
			metadata,
			1 - (embedding <=> $1) AS similarity
		FROM hobi_chunks
		ORDER BY embedding <=> $1
		LIMIT $2
	`, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows, true)
}

// LexicalSearch runs Postgres full-text search over chunk contents, ranked
// by ts_rank. The 'simple' configuration keeps Korean tokens intact instead
// of stemming them with English rules.
func (s *Store) LexicalSearch(ctx context.Context, query string, limit int) ([]Chunk, error) {
	if query == "" {
		return nil, errors.New("query is required")
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id,
			document_id,
			chunk_index,
			content,
			metadata
		FROM hobi_chunks
		WHERE to_tsvector('simple', content) @@ plainto_tsquery('simple', $1)
		ORDER BY ts_rank(to_tsvector('simple', content), plainto_tsquery('simple', $1)) DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows, false)
}

// CountChunks returns the number of chunks indexed for a document.
func (s *Store) CountChunks(ctx context.Context, documentID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM hobi_chunks WHERE document_id = $1
	`, documentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count chunks: %w", err)
	}
	return count, nil
}

func scanChunks(rows *sql.Rows, withSimilarity bool) ([]Chunk, error) {
	var chunks []Chunk
	for rows.Next() {
		var chunk Chunk
		var metadataBytes []byte
		dest := []any{&chunk.ID, &chunk.DocumentID, &chunk.Index, &chunk.Content, &metadataBytes}
		if withSimilarity {
			dest = append(dest, &chunk.Similarity)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		if len(metadataBytes) > 0 {
			if err := json.Unmarshal(metadataBytes, &chunk.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return chunks, nil
}
