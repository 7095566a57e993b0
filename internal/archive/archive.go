// Package archive persists completed experiments to PostgreSQL with pgvector,
// so finals from different runs can be compared by embedding similarity.
//
// The archive is optional: nothing else in the pipeline touches Postgres, and
// all artifact files remain the source of truth. The pgvector extension must
// be available in the target database; [Migrate] installs it automatically
// via CREATE EXTENSION IF NOT EXISTS.
package archive

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/asif-amar/semdrift/internal/experiment"
)

// Store is the PostgreSQL-backed experiment archive. It holds a single
// [pgxpool.Pool]; all operations are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Store, establishes a connection pool to the PostgreSQL
// database at dsn, registers pgvector types on every connection, and runs
// [Migrate] to ensure tables and extensions exist.
//
// embeddingDimensions must match the output dimension of the embedding model
// used to score the archived rows (e.g., 1536 for text-embedding-3-small).
// Changing this value after the first migration requires a manual schema
// change.
func New(ctx context.Context, dsn string, embeddingDimensions int) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: parse dsn: %w", err)
	}

	// Register pgvector types on every new connection so vector columns can
	// be scanned into and inserted from pgvector.Vector values.
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("archive: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	if err := Migrate(ctx, pool, embeddingDimensions); err != nil {
		pool.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}

	return &Store{pool: pool}, nil
}

// Close releases all connections held by the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ddl returns the schema DDL with the embedding dimension substituted.
// The vector dimension is baked into the column type at schema creation time.
func ddl(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS experiments (
    experiment_id TEXT         PRIMARY KEY,
    timestamp     TIMESTAMPTZ  NOT NULL,
    mode          TEXT         NOT NULL DEFAULT '',
    input_file    TEXT         NOT NULL DEFAULT '',
    description   TEXT         NOT NULL DEFAULT '',
    archived_at   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS experiment_rows (
    id                 UUID              PRIMARY KEY,
    experiment_id      TEXT              NOT NULL REFERENCES experiments (experiment_id) ON DELETE CASCADE,
    case_id            TEXT              NOT NULL DEFAULT '',
    error_rate         DOUBLE PRECISION  NOT NULL,
    original           TEXT              NOT NULL,
    final              TEXT              NOT NULL,
    word_count         INTEGER           NOT NULL DEFAULT 0,
    cosine_distance    DOUBLE PRECISION  NOT NULL,
    cosine_similarity  DOUBLE PRECISION  NOT NULL,
    euclidean_distance DOUBLE PRECISION  NOT NULL,
    manhattan_distance DOUBLE PRECISION  NOT NULL,
    final_embedding    vector(%d)
);

CREATE INDEX IF NOT EXISTS idx_experiment_rows_experiment_id
    ON experiment_rows (experiment_id);

CREATE INDEX IF NOT EXISTS idx_experiment_rows_error_rate
    ON experiment_rows (error_rate);

CREATE INDEX IF NOT EXISTS idx_experiment_rows_embedding
    ON experiment_rows USING hnsw (final_embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required tables and extensions exist. It is
// idempotent and safe to call on every start.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddl(embeddingDimensions)); err != nil {
		return fmt.Errorf("archive migrate: %w", err)
	}
	return nil
}

// ExperimentRecord is one archived experiment as listed by [Store.ListExperiments].
type ExperimentRecord struct {
	ExperimentID string
	Timestamp    time.Time
	Mode         string
	InputFile    string
	Description  string
	ArchivedAt   time.Time
	NumRows      int
}

// SimilarFinal is one nearest-neighbour match from [Store.SimilarFinals].
type SimilarFinal struct {
	RowID        uuid.UUID
	ExperimentID string
	CaseID       string
	ErrorRate    float64
	Final        string
	// Distance is the cosine distance between the query vector and the
	// archived final's embedding.
	Distance float64
}

// SaveExperiment archives one scored experiment: the identity row plus one
// row per scored sentence with its final-text embedding. rows and embeddings
// must align index-for-index. Re-archiving an experiment replaces its rows.
func (s *Store) SaveExperiment(ctx context.Context, res *experiment.Results, rows []experiment.MetricsRow, embeddings [][]float64) error {
	if len(rows) != len(embeddings) {
		return fmt.Errorf("archive: %d rows but %d embeddings", len(rows), len(embeddings))
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("archive: begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertExperiment = `
		INSERT INTO experiments (experiment_id, timestamp, mode, input_file, description)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (experiment_id) DO UPDATE SET
		    timestamp   = EXCLUDED.timestamp,
		    mode        = EXCLUDED.mode,
		    input_file  = EXCLUDED.input_file,
		    description = EXCLUDED.description,
		    archived_at = now()`
	if _, err := tx.Exec(ctx, upsertExperiment,
		res.ExperimentID, res.Timestamp, res.Mode, res.InputFile, res.Description,
	); err != nil {
		return fmt.Errorf("archive: upsert experiment: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM experiment_rows WHERE experiment_id = $1`, res.ExperimentID,
	); err != nil {
		return fmt.Errorf("archive: clear previous rows: %w", err)
	}

	const insertRow = `
		INSERT INTO experiment_rows
		    (id, experiment_id, case_id, error_rate, original, final, word_count,
		     cosine_distance, cosine_similarity, euclidean_distance, manhattan_distance,
		     final_embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	for i, row := range rows {
		vec := pgvector.NewVector(toFloat32(embeddings[i]))
		if _, err := tx.Exec(ctx, insertRow,
			uuid.New(),
			res.ExperimentID,
			row.ID,
			row.ErrorRate,
			row.Original,
			row.Final,
			row.WordCount,
			row.CosineDistance,
			row.CosineSimilarity,
			row.EuclideanDistance,
			row.ManhattanDistance,
			vec,
		); err != nil {
			return fmt.Errorf("archive: insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("archive: commit: %w", err)
	}
	return nil
}

// SimilarFinals returns the limit archived finals whose embeddings are
// closest (cosine distance) to the query vector, most similar first.
func (s *Store) SimilarFinals(ctx context.Context, queryVec []float64, limit int) ([]SimilarFinal, error) {
	const q = `
		SELECT id, experiment_id, case_id, error_rate, final,
		       final_embedding <=> $1 AS distance
		FROM   experiment_rows
		ORDER  BY distance
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, pgvector.NewVector(toFloat32(queryVec)), limit)
	if err != nil {
		return nil, fmt.Errorf("archive: similar finals: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (SimilarFinal, error) {
		var sf SimilarFinal
		err := row.Scan(&sf.RowID, &sf.ExperimentID, &sf.CaseID, &sf.ErrorRate, &sf.Final, &sf.Distance)
		return sf, err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if results == nil {
		results = []SimilarFinal{}
	}
	return results, nil
}

// ListExperiments returns all archived experiments, newest first.
func (s *Store) ListExperiments(ctx context.Context) ([]ExperimentRecord, error) {
	const q = `
		SELECT e.experiment_id, e.timestamp, e.mode, e.input_file, e.description, e.archived_at,
		       count(r.id) AS num_rows
		FROM   experiments e
		LEFT   JOIN experiment_rows r ON r.experiment_id = e.experiment_id
		GROUP  BY e.experiment_id
		ORDER  BY e.timestamp DESC`

	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("archive: list experiments: %w", err)
	}

	records, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ExperimentRecord, error) {
		var rec ExperimentRecord
		err := row.Scan(&rec.ExperimentID, &rec.Timestamp, &rec.Mode, &rec.InputFile, &rec.Description, &rec.ArchivedAt, &rec.NumRows)
		return rec, err
	})
	if err != nil {
		return nil, fmt.Errorf("archive: scan rows: %w", err)
	}
	if records == nil {
		records = []ExperimentRecord{}
	}
	return records, nil
}

// toFloat32 narrows a float64 vector at the pgvector boundary. All internal
// math stays float64; only storage uses float32.
func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
