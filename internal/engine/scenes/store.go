package scenes

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// UpsertOutcome reports what an upsert did.
type UpsertOutcome int

const (
	Inserted UpsertOutcome = iota
	Updated
	Unchanged
)

func (o UpsertOutcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Unchanged:
		return "unchanged"
	}
	return "unknown"
}

// Store owns the persisted scene rows. All writes run inside transactions
// keyed by scene id, so concurrent workers racing on the same content
// converge without a partially written row ever becoming visible.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the SQLite scene database.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("store: mkdir %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS scenes (
		id            TEXT PRIMARY KEY,
		character     TEXT NOT NULL,
		show          TEXT NOT NULL,
		season        INTEGER,
		episode       INTEGER,
		episode_code  TEXT,
		episode_title TEXT,
		scene_text    TEXT NOT NULL,
		dialogue      TEXT NOT NULL,
		location      TEXT,
		participants  TEXT NOT NULL,
		source_url    TEXT,
		extracted_at  TEXT NOT NULL,
		word_count    INTEGER NOT NULL,
		content_hash  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_scenes_character ON scenes(character);
	CREATE INDEX IF NOT EXISTS idx_scenes_episode ON scenes(character, episode_code);`)
	return err
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// contentHash covers every stored field that may change between
// re-extractions of the same fingerprint, so Upsert can tell Updated from
// Unchanged.
func contentHash(sc *Scene) (string, error) {
	payload, err := json.Marshal(struct {
		Text         string         `json:"text"`
		Dialogue     []DialogueTurn `json:"dialogue"`
		Location     string         `json:"location"`
		Participants []string       `json:"participants"`
		EpisodeTitle string         `json:"episode_title"`
		SourceURL    string         `json:"source_url"`
	}{sc.Text, sc.Dialogue, sc.Location, sc.Participants, sc.EpisodeTitle, sc.SourceURL})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", sha256.Sum256(payload)), nil
}

// Upsert writes a scene keyed by its deterministic identifier. Identical
// content reports Unchanged without a write; differing content for an
// existing id overwrites, newest extraction wins.
func (s *Store) Upsert(ctx context.Context, sc *Scene) (UpsertOutcome, error) {
	sc.Finalize()

	hash, err := contentHash(sc)
	if err != nil {
		return Unchanged, fmt.Errorf("store: hash scene: %w", err)
	}

	dialogue, err := json.Marshal(sc.Dialogue)
	if err != nil {
		return Unchanged, fmt.Errorf("store: marshal dialogue: %w", err)
	}
	parts, err := json.Marshal(sc.Participants)
	if err != nil {
		return Unchanged, fmt.Errorf("store: marshal participants: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Unchanged, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT content_hash FROM scenes WHERE id = ?`, sc.ID).Scan(&existing)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// insert below
	case err != nil:
		return Unchanged, fmt.Errorf("store: lookup %s: %w", sc.ID, err)
	case existing == hash:
		return Unchanged, nil
	}

	outcome := Inserted
	if err == nil {
		outcome = Updated
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO scenes (
		id, character, show, season, episode, episode_code, episode_title,
		scene_text, dialogue, location, participants, source_url,
		extracted_at, word_count, content_hash
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Character, sc.Show, sc.Season, sc.Episode, sc.EpisodeCode,
		sc.EpisodeTitle, sc.Text, string(dialogue), sc.Location, string(parts),
		sc.SourceURL, sc.ExtractedAt.UTC().Format(time.RFC3339), sc.WordCount, hash,
	)
	if err != nil {
		return Unchanged, fmt.Errorf("store: write %s: %w", sc.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return Unchanged, fmt.Errorf("store: commit %s: %w", sc.ID, err)
	}
	return outcome, nil
}

// Query returns scenes filtered by character and/or episode code; empty
// arguments match everything. Rows come back ordered by episode then id
// for stable output.
func (s *Store) Query(ctx context.Context, character, episodeCode string) ([]Scene, error) {
	q := `SELECT id, character, show, season, episode, episode_code, episode_title,
		scene_text, dialogue, location, participants, source_url, extracted_at, word_count
		FROM scenes WHERE 1=1`
	var args []any
	if character != "" {
		q += ` AND character = ?`
		args = append(args, character)
	}
	if episodeCode != "" {
		q += ` AND episode_code = ?`
		args = append(args, episodeCode)
	}
	q += ` ORDER BY episode_code, id`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: query: %w", err)
	}
	defer rows.Close()

	var out []Scene
	for rows.Next() {
		sc, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanScene(rows *sql.Rows) (Scene, error) {
	var sc Scene
	var dialogue, parts, extractedAt string
	err := rows.Scan(&sc.ID, &sc.Character, &sc.Show, &sc.Season, &sc.Episode,
		&sc.EpisodeCode, &sc.EpisodeTitle, &sc.Text, &dialogue, &sc.Location,
		&parts, &sc.SourceURL, &extractedAt, &sc.WordCount)
	if err != nil {
		return sc, fmt.Errorf("store: scan: %w", err)
	}
	if err := json.Unmarshal([]byte(dialogue), &sc.Dialogue); err != nil {
		return sc, fmt.Errorf("store: decode dialogue for %s: %w", sc.ID, err)
	}
	if err := json.Unmarshal([]byte(parts), &sc.Participants); err != nil {
		return sc, fmt.Errorf("store: decode participants for %s: %w", sc.ID, err)
	}
	sc.ExtractedAt, _ = time.Parse(time.RFC3339, extractedAt)
	return sc, nil
}

// Stats returns per-character stored scene counts.
func (s *Store) Stats(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT character, COUNT(*) FROM scenes GROUP BY character`)
	if err != nil {
		return nil, fmt.Errorf("store: stats: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var ch string
		var n int
		if err := rows.Scan(&ch, &n); err != nil {
			return nil, fmt.Errorf("store: stats scan: %w", err)
		}
		out[ch] = n
	}
	return out, rows.Err()
}

// ExportJSON writes all scenes (optionally filtered by character) to the
// destination path as a JSON array.
func (s *Store) ExportJSON(ctx context.Context, path, character string) (int, error) {
	all, err := s.Query(ctx, character, "")
	if err != nil {
		return 0, err
	}
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("store: marshal export: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return 0, fmt.Errorf("store: write export: %w", err)
	}
	return len(all), nil
}
