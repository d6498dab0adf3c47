package store

import (
	"database/sql"
	"fmt"
)

const pragmas = `
PRAGMA journal_mode=WAL;
PRAGMA foreign_keys=ON;
`

const chunksDDL = `
CREATE TABLE IF NOT EXISTS chunks (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    chunk_id    TEXT NOT NULL UNIQUE,
    doc_id      TEXT NOT NULL,
    chunk_index INTEGER NOT NULL,
    content     TEXT NOT NULL,
    metadata    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
`

const metaDDL = `
CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// vecDDL depends on the embedding dimensionality, which is fixed per
// deployment by the embedding model.
func vecDDL(dimensions int) string {
	return fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d]
);
`, dimensions)
}

// initSchema creates the schema tables if they don't exist.
func initSchema(db *sql.DB, dimensions int) error {
	if _, err := db.Exec(pragmas); err != nil {
		return err
	}
	for _, ddl := range []string{chunksDDL, vecDDL(dimensions), metaDDL} {
		if _, err := db.Exec(ddl); err != nil {
			return err
		}
	}
	return nil
}
