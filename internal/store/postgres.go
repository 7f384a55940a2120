package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/veriscan/veriscan/internal/errdefs"
)

// minCandidates is the floor on the HNSW search breadth. Recall over a
// small corpus collapses without it.
const minCandidates = 100

// Store persists documents and chunks in Postgres with pgvector.
type Store struct {
	pool *pgxpool.Pool
	dims int
}

// New connects to Postgres, registers the vector codec, and ensures
// the schema exists.
func New(ctx context.Context, dsn string, dims int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("store: parse dsn: %w", err)
	}
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}

	s := &Store{pool: pool, dims: dims}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS documents (
			id          UUID PRIMARY KEY,
			title       TEXT NOT NULL,
			content     TEXT NOT NULL DEFAULT '',
			language    TEXT NOT NULL DEFAULT 'unknown',
			metadata    JSONB NOT NULL DEFAULT '{}',
			chunk_count INT NOT NULL DEFAULT 0,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS document_chunks (
			id          TEXT PRIMARY KEY,
			document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			position    INT NOT NULL,
			text        TEXT NOT NULL,
			word_count  INT NOT NULL,
			embedding   vector(%d) NOT NULL,
			UNIQUE (document_id, position)
		)`, s.dims),
		`CREATE INDEX IF NOT EXISTS document_chunks_embedding_idx
			ON document_chunks USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS documents_created_at_idx
			ON documents (created_at DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("store: ensure schema: %w", err)
		}
	}
	return nil
}

// IndexDocument atomically replaces a document and all of its chunks.
// Concurrent writers for the same document serialize on an advisory
// lock, so a reader never observes a partially indexed document.
func (s *Store) IndexDocument(ctx context.Context, doc Document, chunks []DocumentChunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errdefs.New(errdefs.KindUnavailable, "store.index", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, doc.ID); err != nil {
		return errdefs.New(errdefs.KindInternal, "store.index", err)
	}

	metadata := doc.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, title, content, language, metadata, chunk_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			title       = EXCLUDED.title,
			content     = EXCLUDED.content,
			language    = EXCLUDED.language,
			metadata    = EXCLUDED.metadata,
			chunk_count = EXCLUDED.chunk_count,
			created_at  = now()`,
		doc.ID, doc.Title, doc.Content, doc.Language, metadata, len(chunks))
	if err != nil {
		return errdefs.New(errdefs.KindInternal, "store.index", err)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM document_chunks WHERE document_id = $1`, doc.ID); err != nil {
		return errdefs.New(errdefs.KindInternal, "store.index", err)
	}

	batch := &pgx.Batch{}
	for _, chunk := range chunks {
		batch.Queue(`
			INSERT INTO document_chunks (id, document_id, position, text, word_count, embedding)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			chunk.ID, chunk.DocumentID, chunk.Position, chunk.Text,
			chunk.WordCount, pgvector.NewVector(chunk.Embedding))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errdefs.New(errdefs.KindInternal, "store.index", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return errdefs.New(errdefs.KindInternal, "store.index", err)
	}
	return nil
}

// GetDocument fetches one document by id, content included.
func (s *Store) GetDocument(ctx context.Context, id string) (*Document, error) {
	var doc Document
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, content, language, metadata, chunk_count, created_at
		FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.Title, &doc.Content, &doc.Language, &doc.Metadata,
			&doc.ChunkCount, &doc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errdefs.Newf(errdefs.KindNotFound, "store.get", "document %s not found", id)
		}
		return nil, errdefs.New(errdefs.KindInternal, "store.get", err)
	}
	return &doc, nil
}

// GetDocumentChunks lists a document's chunks in position order,
// without embeddings.
func (s *Store) GetDocumentChunks(ctx context.Context, id string) ([]DocumentChunk, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, document_id, position, text, word_count
		FROM document_chunks WHERE document_id = $1
		ORDER BY position`, id)
	if err != nil {
		return nil, errdefs.New(errdefs.KindInternal, "store.chunks", err)
	}
	defer rows.Close()

	var chunks []DocumentChunk
	for rows.Next() {
		var chunk DocumentChunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Position,
			&chunk.Text, &chunk.WordCount); err != nil {
			return nil, errdefs.New(errdefs.KindInternal, "store.chunks", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.New(errdefs.KindInternal, "store.chunks", err)
	}
	return chunks, nil
}

// DeleteDocument removes a document and, through the foreign key, its
// chunks. It reports whether the document existed.
func (s *Store) DeleteDocument(ctx context.Context, id string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return false, errdefs.New(errdefs.KindInternal, "store.delete", err)
	}
	return tag.RowsAffected() > 0, nil
}

// SearchDocuments lists catalog entries matching the filter, newest
// first, and returns the total match count for pagination.
func (s *Store) SearchDocuments(ctx context.Context, filter SearchFilter) ([]Document, int, error) {
	where := make([]string, 0, 3)
	args := make([]any, 0, 4)

	if filter.Query != "" {
		args = append(args, "%"+filter.Query+"%")
		where = append(where, fmt.Sprintf("title ILIKE $%d", len(args)))
	}
	if filter.Language != "" {
		args = append(args, filter.Language)
		where = append(where, fmt.Sprintf("language = $%d", len(args)))
	}
	for key, value := range filter.Metadata {
		args = append(args, key, value)
		where = append(where, fmt.Sprintf("metadata->>$%d = $%d", len(args)-1, len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT count(*) FROM documents"+clause, args...).Scan(&total); err != nil {
		return nil, 0, errdefs.New(errdefs.KindInternal, "store.search", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, filter.Offset)
	query := fmt.Sprintf(`
		SELECT id, title, language, metadata, chunk_count, created_at
		FROM documents%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, clause, len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, errdefs.New(errdefs.KindInternal, "store.search", err)
	}
	defer rows.Close()

	docs := make([]Document, 0, limit)
	for rows.Next() {
		var doc Document
		if err := rows.Scan(&doc.ID, &doc.Title, &doc.Language, &doc.Metadata,
			&doc.ChunkCount, &doc.CreatedAt); err != nil {
			return nil, 0, errdefs.New(errdefs.KindInternal, "store.search", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errdefs.New(errdefs.KindInternal, "store.search", err)
	}
	return docs, total, nil
}

// SearchChunks runs a cosine kNN search for one query vector. Results
// below MinScore are dropped, each source document contributes at most
// MaxPerSource hits, and at most TopK matches return, ordered by score
// descending.
func (s *Store) SearchChunks(ctx context.Context, embedding []float32, opts SearchOptions) ([]ChunkMatch, error) {
	if opts.TopK <= 0 {
		return nil, nil
	}
	candidates := opts.TopK * 10
	if candidates < minCandidates {
		candidates = minCandidates
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, errdefs.New(errdefs.KindUnavailable, "store.knn", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL hnsw.ef_search = %d", candidates)); err != nil {
		return nil, errdefs.New(errdefs.KindInternal, "store.knn", err)
	}

	exclude := opts.ExcludeDocumentIDs
	if exclude == nil {
		exclude = []string{}
	}
	rows, err := tx.Query(ctx, `
		SELECT c.id, c.document_id, d.title, d.language, c.position, c.text, d.metadata,
		       1 - (c.embedding <=> $1) AS score
		FROM document_chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id::text <> ALL($2::text[])
		ORDER BY c.embedding <=> $1
		LIMIT $3`,
		pgvector.NewVector(embedding), exclude, candidates)
	if err != nil {
		return nil, errdefs.New(errdefs.KindInternal, "store.knn", err)
	}
	defer rows.Close()

	matches := make([]ChunkMatch, 0, opts.TopK)
	perSource := make(map[string]int)
	for rows.Next() {
		var m ChunkMatch
		if err := rows.Scan(&m.ChunkID, &m.DocumentID, &m.Title, &m.Language,
			&m.Position, &m.Text, &m.Metadata, &m.Score); err != nil {
			return nil, errdefs.New(errdefs.KindInternal, "store.knn", err)
		}
		if m.Score < opts.MinScore {
			// Rows arrive in descending score order; everything after
			// this one is below the threshold too.
			break
		}
		if opts.MaxPerSource > 0 && perSource[m.DocumentID] >= opts.MaxPerSource {
			continue
		}
		perSource[m.DocumentID]++
		matches = append(matches, m)
		if len(matches) >= opts.TopK {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errdefs.New(errdefs.KindInternal, "store.knn", err)
	}
	rows.Close()

	if err := tx.Commit(ctx); err != nil {
		return nil, errdefs.New(errdefs.KindInternal, "store.knn", err)
	}
	return matches, nil
}

// DocumentCount returns the corpus size.
func (s *Store) DocumentCount(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&n); err != nil {
		return 0, errdefs.New(errdefs.KindUnavailable, "store.count", err)
	}
	return n, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
