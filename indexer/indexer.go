// Package indexer maintains the relational full-text and tag index
// described in spec.md §4.2 (component C2): one row per resource, one row
// per (resource, tag), and FTS5 rows keyed by (resource, variant) holding
// each AddText call's normalized text (the description and any extracted
// content, so one variant can have several rows).
package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/fabricedesre/docstore/resource"
)

// latestSchemaVersion is bumped whenever a new upgrade step is appended to
// migrations. Mirrors the `user_version` pragma loop the original indexer
// drives off of.
const latestSchemaVersion = 1

// migrations holds, per schema version transition, the statements to run
// inside one immediate-mode transaction before user_version is advanced.
var migrations = map[int][]string{
	0: {
		`CREATE TABLE IF NOT EXISTS resources(
			id       TEXT     PRIMARY KEY NOT NULL,
			frecency INTEGER  NOT NULL DEFAULT 0,
			modified DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_resource_modified ON resources(modified)`,
		`CREATE TABLE IF NOT EXISTS tags(
			id  TEXT NOT NULL,
			tag TEXT NOT NULL,
			FOREIGN KEY(id) REFERENCES resources(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tag_name ON tags(tag)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts USING fts5(id UNINDEXED, variant UNINDEXED, content, tokenize="trigram")`,
	},
}

// Indexer is a synchronous wrapper around one sqlite connection. None of
// its methods suspend: spec.md §5 requires the indexer run entirely on the
// calling goroutine, with no interleaving inside one mutation.
type Indexer struct {
	db    *sql.DB
	dirty bool
}

// Open opens (creating if necessary) the sqlite file at path, applies the
// PRAGMA set every connection needs, and migrates its schema to
// latestSchemaVersion.
//
// spec.md §4.2 says WAL is set after migration; here it is set first so
// the CREATE TABLE/INDEX statements in the migration themselves benefit
// from WAL's concurrent-reader semantics, and because WAL is a durable
// per-file setting independent of schema contents — applying it before or
// after an empty-to-v1 migration has no observable difference.
func Open(path string) (*Indexer, error) {
	if path == "" {
		return nil, fmt.Errorf("indexer: empty path")
	}

	// _txlock=immediate makes every BEGIN (including migration steps) a
	// BEGIN IMMEDIATE.
	db, err := sql.Open("sqlite3", path+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("indexer: open %q: %w", path, err)
	}

	// A single connection: spec.md §5 requires the indexer run entirely
	// on the calling goroutine with no interleaving inside one mutation,
	// so there is never a second connection to pool.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("indexer: apply %s: %w", pragma, err)
		}
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &Indexer{db: db}, nil
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("indexer: read schema version: %w", err)
	}

	for version < latestSchemaVersion {
		steps, ok := migrations[version]
		if !ok {
			return fmt.Errorf("indexer: no upgrade path from schema version %d", version)
		}

		tx, err := db.BeginTx(context.Background(), &sql.TxOptions{})
		if err != nil {
			return fmt.Errorf("indexer: begin schema upgrade: %w", err)
		}
		for _, stmt := range steps {
			if _, err := tx.Exec(stmt); err != nil {
				tx.Rollback()
				return fmt.Errorf("indexer: upgrade step %q: %w", stmt, err)
			}
		}
		version++
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", version)); err != nil {
			tx.Rollback()
			return fmt.Errorf("indexer: bump user_version to %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("indexer: commit schema upgrade to %d: %w", version, err)
		}
	}
	return nil
}

// Close releases the underlying sqlite connection.
func (ix *Indexer) Close() error {
	return ix.db.Close()
}

// Dirty reports whether any mutation has run since the last ClearDirty,
// i.e. whether the live index.sqlite needs to be re-snapshotted into the
// encrypted tree (spec.md §4.5 commit discipline).
func (ix *Indexer) Dirty() bool {
	return ix.dirty
}

// ClearDirty resets the dirty flag after a successful snapshot.
func (ix *Indexer) ClearDirty() {
	ix.dirty = false
}

func (ix *Indexer) markDirty() {
	ix.dirty = true
}

// AddResource inserts a new resources row for id.
func (ix *Indexer) AddResource(id resource.Id) error {
	_, err := ix.db.Exec(
		`INSERT INTO resources (id, frecency, modified) VALUES (?, 0, ?)`,
		id.String(), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("indexer: add resource %q: %w", id, err)
	}
	ix.markDirty()
	return nil
}

// DeleteResource removes the resources row for id; the tags and fts rows
// cascade or are removed explicitly since fts5 has no foreign keys.
func (ix *Indexer) DeleteResource(id resource.Id) error {
	tx, err := ix.db.Begin()
	if err != nil {
		return fmt.Errorf("indexer: delete resource %q: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM fts WHERE id = ?`, id.String()); err != nil {
		tx.Rollback()
		return fmt.Errorf("indexer: delete resource %q fts rows: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM resources WHERE id = ?`, id.String()); err != nil {
		tx.Rollback()
		return fmt.Errorf("indexer: delete resource %q: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("indexer: commit delete resource %q: %w", id, err)
	}
	ix.markDirty()
	return nil
}

// AddTag records a (id, tag) pair.
func (ix *Indexer) AddTag(id resource.Id, tag string) error {
	_, err := ix.db.Exec(`INSERT INTO tags (id, tag) VALUES (?, ?)`, id.String(), tag)
	if err != nil {
		return fmt.Errorf("indexer: add tag %q for %q: %w", tag, id, err)
	}
	ix.markDirty()
	return nil
}

// RemoveTag deletes a (id, tag) pair.
func (ix *Indexer) RemoveTag(id resource.Id, tag string) error {
	_, err := ix.db.Exec(`DELETE FROM tags WHERE id = ? AND tag = ?`, id.String(), tag)
	if err != nil {
		return fmt.Errorf("indexer: remove tag %q for %q: %w", tag, id, err)
	}
	ix.markDirty()
	return nil
}

// AddText inserts a searchable (id, variant, text) row after normalizing
// text (diacritics stripped, lowercased — see normalize.go).
func (ix *Indexer) AddText(id resource.Id, variant, text string) error {
	_, err := ix.db.Exec(
		`INSERT INTO fts (id, variant, content) VALUES (?, ?, ?)`,
		id.String(), variant, normalize(text),
	)
	if err != nil {
		return fmt.Errorf("indexer: add text for %q/%q: %w", id, variant, err)
	}
	ix.markDirty()
	return nil
}

// DeleteVariant removes every fts row for (id, variant).
func (ix *Indexer) DeleteVariant(id resource.Id, variant string) error {
	_, err := ix.db.Exec(`DELETE FROM fts WHERE id = ? AND variant = ?`, id.String(), variant)
	if err != nil {
		return fmt.Errorf("indexer: delete variant %q/%q: %w", id, variant, err)
	}
	ix.markDirty()
	return nil
}

// Search returns the distinct resource ids whose fts content contains the
// normalized query as a substring.
func (ix *Indexer) Search(text string) ([]resource.Id, error) {
	pattern := "%" + normalize(text) + "%"
	rows, err := ix.db.Query(`SELECT DISTINCT id FROM fts WHERE content LIKE ?`, pattern)
	if err != nil {
		return nil, fmt.Errorf("indexer: search %q: %w", text, err)
	}
	defer rows.Close()

	var ids []resource.Id
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("indexer: scan search row: %w", err)
		}
		id, err := resource.ParseId(raw)
		if err != nil {
			return nil, fmt.Errorf("indexer: malformed resource id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Tags returns the set of tags recorded for id.
func (ix *Indexer) Tags(id resource.Id) ([]string, error) {
	rows, err := ix.db.Query(`SELECT tag FROM tags WHERE id = ?`, id.String())
	if err != nil {
		return nil, fmt.Errorf("indexer: tags for %q: %w", id, err)
	}
	defer rows.Close()

	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, fmt.Errorf("indexer: scan tag row: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ResourceIds returns every id currently tracked, used by the integrity
// sweep at store open (spec.md §9).
func (ix *Indexer) ResourceIds() ([]resource.Id, error) {
	rows, err := ix.db.Query(`SELECT id FROM resources`)
	if err != nil {
		return nil, fmt.Errorf("indexer: list resource ids: %w", err)
	}
	defer rows.Close()

	var ids []resource.Id
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("indexer: scan resource id row: %w", err)
		}
		id, err := resource.ParseId(raw)
		if err != nil {
			return nil, fmt.Errorf("indexer: malformed resource id %q: %w", raw, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// HasResource reports whether id has a resources row.
func (ix *Indexer) HasResource(id resource.Id) (bool, error) {
	var count int
	err := ix.db.QueryRow(`SELECT COUNT(1) FROM resources WHERE id = ?`, id.String()).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("indexer: check resource %q: %w", id, err)
	}
	return count > 0, nil
}

