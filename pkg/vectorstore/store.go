package vectorstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// Match is one similarity search result.
type Match struct {
	ID       string
	Score    float64 // cosine similarity in [0,1], 1 = identical
	Metadata map[string]any
}

// Filter narrows Query to one kind of record and/or subject.
type Filter struct {
	Kind    string // "evidence" or "claim"; empty means no kind filter
	Subject string // empty means no subject filter
}

// Store is the best-effort embedding index. Every exported method other than
// NewStore swallows its own errors internally at the orchestrator boundary —
// here they're still returned so callers can log them, per the contract that
// failures here must never abort a pipeline stage.
type Store struct {
	db         *sql.DB
	embedder   Embedder
	vecEnabled bool
}

// NewStore opens (or creates) a sqlite database at path and attempts to
// create the vec0 virtual table. If the vec0 extension is unavailable the
// store still opens, logs once, and falls back to brute-force cosine
// comparison for Query.
func NewStore(path string, embedder Embedder) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite3 + vec0 virtual tables are not safe for concurrent writers

	s := &Store{db: db, embedder: embedder}

	if _, err := db.Exec(fmt.Sprintf(
		"CREATE VIRTUAL TABLE IF NOT EXISTS vec_items USING vec0(embedding float[%d])", Dimensions)); err == nil {
		s.vecEnabled = true
	} else {
		slog.Warn("vec0 extension unavailable, vector store falling back to brute-force cosine search", "error", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS vec_meta (
			id       TEXT PRIMARY KEY,
			rowid    INTEGER,
			kind     TEXT NOT NULL,
			subject  TEXT NOT NULL,
			metadata TEXT NOT NULL,
			embedding_json TEXT NOT NULL
		)`); err != nil {
		return nil, fmt.Errorf("create vec_meta table: %w", err)
	}

	return s, nil
}

// Close closes the underlying sqlite database.
func (s *Store) Close() error {
	return s.db.Close()
}

func encodeVector(vec []float32) string {
	b, _ := json.Marshal(vec)
	return string(b)
}

// upsert writes one id/kind/subject/metadata/embedding tuple, replacing any
// prior entry with the same id.
func (s *Store) upsert(ctx context.Context, id, kind, subject string, metadata map[string]any, vec []float32) error {
	metaJSON, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	var rowid int64 = -1
	if s.vecEnabled {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM vec_items WHERE rowid IN (SELECT rowid FROM vec_meta WHERE id = ?)`, id)
		res, err := s.db.ExecContext(ctx, `INSERT INTO vec_items (embedding) VALUES (?)`, encodeVector(vec))
		if err != nil {
			return fmt.Errorf("insert vec_items: %w", err)
		}
		rowid, _ = res.LastInsertId()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO vec_meta (id, rowid, kind, subject, metadata, embedding_json)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET rowid = excluded.rowid, kind = excluded.kind,
			subject = excluded.subject, metadata = excluded.metadata, embedding_json = excluded.embedding_json`,
		id, rowid, kind, subject, string(metaJSON), encodeVector(vec))
	if err != nil {
		return fmt.Errorf("upsert vec_meta: %w", err)
	}
	return nil
}

// UpsertEvidence indexes one evidence record under id "evidence_{id}".
func (s *Store) UpsertEvidence(ctx context.Context, evidenceID, subject, source, contentKind string, vec []float32) error {
	id := "evidence_" + evidenceID
	meta := map[string]any{"subject": subject, "source": source, "content_kind": contentKind}
	return s.upsert(ctx, id, "evidence", subject, meta, vec)
}

// UpsertClaim indexes one claim record under id "claim_{id}".
func (s *Store) UpsertClaim(ctx context.Context, claimID, subject, predicate, object string, vec []float32) error {
	id := "claim_" + claimID
	meta := map[string]any{"subject": subject, "predicate": predicate, "object": object}
	return s.upsert(ctx, id, "claim", subject, meta, vec)
}

// Query returns the topK closest matches to vec, narrowed by filter.
func (s *Store) Query(ctx context.Context, vec []float32, filter Filter, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 10
	}
	if s.vecEnabled {
		return s.queryVec(ctx, vec, filter, topK)
	}
	return s.queryBruteForce(ctx, vec, filter, topK)
}

func (s *Store) queryVec(ctx context.Context, vec []float32, filter Filter, topK int) ([]Match, error) {
	query := `
		SELECT m.id, m.metadata, vec_distance_cosine(v.embedding, ?) AS distance
		FROM vec_items v JOIN vec_meta m ON m.rowid = v.rowid
		WHERE 1=1`
	args := []any{encodeVector(vec)}
	if filter.Kind != "" {
		query += " AND m.kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Subject != "" {
		query += " AND m.subject = ?"
		args = append(args, filter.Subject)
	}
	query += " ORDER BY distance ASC LIMIT ?"
	args = append(args, topK)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("vec query: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var id, metaJSON string
		var distance float64
		if err := rows.Scan(&id, &metaJSON, &distance); err != nil {
			return nil, fmt.Errorf("scan vec match: %w", err)
		}
		var meta map[string]any
		_ = json.Unmarshal([]byte(metaJSON), &meta)
		out = append(out, Match{ID: id, Score: cosineDistanceToScore(distance), Metadata: meta})
	}
	return out, rows.Err()
}

func (s *Store) queryBruteForce(ctx context.Context, vec []float32, filter Filter, topK int) ([]Match, error) {
	query := `SELECT id, metadata, embedding_json FROM vec_meta WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		query += " AND kind = ?"
		args = append(args, filter.Kind)
	}
	if filter.Subject != "" {
		query += " AND subject = ?"
		args = append(args, filter.Subject)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("brute-force query: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var id, metaJSON, embJSON string
		if err := rows.Scan(&id, &metaJSON, &embJSON); err != nil {
			return nil, fmt.Errorf("scan brute-force row: %w", err)
		}
		var candidate []float32
		if err := json.Unmarshal([]byte(embJSON), &candidate); err != nil {
			continue
		}
		var meta map[string]any
		_ = json.Unmarshal([]byte(metaJSON), &meta)
		out = append(out, Match{ID: id, Score: cosineSimilarity(vec, candidate), Metadata: meta})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// cosineDistanceToScore converts sqlite-vec's vec_distance_cosine output
// (1 - cosine similarity, in [0,2]) into a [0,1] similarity score.
func cosineDistanceToScore(distance float64) float64 {
	score := 1 - distance
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim
}
