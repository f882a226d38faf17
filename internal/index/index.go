// Package index maintains the semantic search index over catalog records.
// Embeddings are stored in a sqlite-vec virtual table keyed by the sanitized
// record id; search embeds the lowercased query and ranks by cosine
// distance.
package index

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/bendoumahosni/intent-interpretation/internal/catalog"
	"github.com/bendoumahosni/intent-interpretation/internal/embedding"
	"github.com/bendoumahosni/intent-interpretation/internal/logging"
)

// Match is one search result.
type Match struct {
	CatalogID   string  `json:"catalog_id"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Score       float64 `json:"score"`
	Rank        int     `json:"rank"`
}

// Index is the sqlite-vec backed semantic index over catalog records.
type Index struct {
	db     *sql.DB
	engine embedding.Engine

	mu           sync.RWMutex
	vecAvailable bool
}

// Open opens (or creates) the index database at path.
func Open(path string, engine embedding.Engine) (*Index, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "index.Open")
	defer timer.Stop()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: ping %s: %w", path, err)
	}

	ix := &Index{db: db, engine: engine}
	if err := ix.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Retrieval("index opened at %s (engine=%s, vec=%v)", path, engine.Name(), ix.vecAvailable)
	return ix, nil
}

func (ix *Index) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS services (
		service_id  TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT,
		summary     TEXT NOT NULL,
		embedding   BLOB NOT NULL
	);
	`
	if _, err := ix.db.Exec(schema); err != nil {
		return fmt.Errorf("index: create services table: %w", err)
	}

	vecTable := fmt.Sprintf(`
	CREATE VIRTUAL TABLE IF NOT EXISTS vec_services USING vec0(
		embedding float[%d],
		service_id TEXT,
		name TEXT,
		description TEXT
	);
	`, ix.engine.Dimensions())

	if _, err := ix.db.Exec(vecTable); err != nil {
		// Brute-force search over the services table still works.
		logging.Get(logging.CategoryRetrieval).Warn("vec_services unavailable, falling back to brute force: %v", err)
		ix.vecAvailable = false
		return nil
	}
	ix.vecAvailable = true
	return nil
}

// Ingest embeds every record's summary and upserts it into the index.
// Returns the number of records indexed.
func (ix *Index) Ingest(ctx context.Context, records []*catalog.ServiceSpec) (int, error) {
	timer := logging.StartTimer(logging.CategoryIngest, "Index.Ingest")
	defer timer.Stop()

	if len(records) == 0 {
		return 0, nil
	}

	summaries := make([]string, len(records))
	for i, spec := range records {
		summaries[i] = catalog.Summary(spec)
	}

	vectors, err := ix.engine.EmbedBatch(ctx, summaries)
	if err != nil {
		return 0, fmt.Errorf("index: embed %d summaries: %w", len(records), err)
	}
	if len(vectors) != len(records) {
		return 0, fmt.Errorf("index: engine returned %d vectors for %d records", len(vectors), len(records))
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	tx, err := ix.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("index: begin ingest transaction: %w", err)
	}
	defer tx.Rollback()

	count := 0
	for i, spec := range records {
		id := catalog.RecordID(spec)
		blob := encodeFloat32Blob(vectors[i])

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO services (service_id, name, description, summary, embedding)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(service_id) DO UPDATE SET
				name = excluded.name,
				description = excluded.description,
				summary = excluded.summary,
				embedding = excluded.embedding
		`, id, spec.Name, spec.Description, summaries[i], blob); err != nil {
			return 0, fmt.Errorf("index: upsert %s: %w", id, err)
		}

		if ix.vecAvailable {
			if _, err := tx.ExecContext(ctx, `DELETE FROM vec_services WHERE service_id = ?`, id); err != nil {
				return 0, fmt.Errorf("index: clear vec row %s: %w", id, err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO vec_services (embedding, service_id, name, description)
				VALUES (?, ?, ?, ?)
			`, blob, id, spec.Name, spec.Description); err != nil {
				return 0, fmt.Errorf("index: insert vec row %s: %w", id, err)
			}
		}

		count++
		logging.IngestDebug("indexed %s (%d chars of summary)", id, len(summaries[i]))
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("index: commit ingest: %w", err)
	}

	logging.Ingest("indexed %d records", count)
	return count, nil
}

// Search embeds the query and returns the topK closest records by cosine
// similarity. Queries are lowercased to match how summaries are indexed.
func (ix *Index) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	timer := logging.StartTimer(logging.CategoryRetrieval, "Index.Search")
	defer timer.Stop()

	if topK <= 0 {
		topK = 5
	}

	queryVec, err := ix.engine.Embed(ctx, strings.ToLower(query))
	if err != nil {
		return nil, fmt.Errorf("index: embed query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.vecAvailable {
		matches, err := ix.searchVec(ctx, queryVec, topK)
		if err == nil {
			logging.RetrievalDebug("vec search %q returned %d matches", query, len(matches))
			return matches, nil
		}
		logging.RetrievalDebug("vec search failed, falling back to brute force: %v", err)
	}

	matches, err := ix.searchBruteForce(ctx, queryVec, topK)
	if err != nil {
		return nil, err
	}
	logging.RetrievalDebug("brute-force search %q returned %d matches", query, len(matches))
	return matches, nil
}

func (ix *Index) searchVec(ctx context.Context, queryVec []float32, topK int) ([]Match, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT
			service_id,
			name,
			description,
			vec_distance_cosine(embedding, ?) AS distance
		FROM vec_services
		ORDER BY distance ASC
		LIMIT ?
	`, encodeFloat32Blob(queryVec), topK)
	if err != nil {
		return nil, fmt.Errorf("index: vec search: %w", err)
	}
	defer rows.Close()

	var matches []Match
	rank := 1
	for rows.Next() {
		var m Match
		var distance float64
		if err := rows.Scan(&m.CatalogID, &m.Name, &m.Description, &distance); err != nil {
			return nil, fmt.Errorf("index: scan vec row: %w", err)
		}
		// Cosine distance is 1 - similarity.
		m.Score = 1.0 - distance
		m.Rank = rank
		rank++
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate vec rows: %w", err)
	}
	return matches, nil
}

func (ix *Index) searchBruteForce(ctx context.Context, queryVec []float32, topK int) ([]Match, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT service_id, name, description, embedding FROM services
	`)
	if err != nil {
		return nil, fmt.Errorf("index: brute-force scan: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		var blob []byte
		if err := rows.Scan(&m.CatalogID, &m.Name, &m.Description, &blob); err != nil {
			return nil, fmt.Errorf("index: scan services row: %w", err)
		}
		vec, err := decodeFloat32Blob(blob)
		if err != nil {
			logging.Get(logging.CategoryRetrieval).Warn("skipping %s: %v", m.CatalogID, err)
			continue
		}
		sim, err := embedding.CosineSimilarity(queryVec, vec)
		if err != nil {
			logging.Get(logging.CategoryRetrieval).Warn("skipping %s: %v", m.CatalogID, err)
			continue
		}
		m.Score = sim
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: iterate services rows: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches, nil
}

// Count returns the number of indexed records.
func (ix *Index) Count() (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var n int
	if err := ix.db.QueryRow(`SELECT COUNT(*) FROM services`).Scan(&n); err != nil {
		return 0, fmt.Errorf("index: count: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if ix.db == nil {
		return nil
	}
	err := ix.db.Close()
	ix.db = nil
	return err
}

// encodeFloat32Blob encodes a float32 slice as the little-endian blob
// sqlite-vec expects.
func encodeFloat32Blob(vec []float32) []byte {
	buf := &bytes.Buffer{}
	if err := binary.Write(buf, binary.LittleEndian, vec); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decodeFloat32Blob(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("index: embedding blob length %d not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	if err := binary.Read(bytes.NewReader(blob), binary.LittleEndian, vec); err != nil {
		return nil, fmt.Errorf("index: decode embedding blob: %w", err)
	}
	return vec, nil
}
