package eventdb

import (
	"database/sql"

	"github.com/go-errors/errors"
)

// schemaVersion tracks the applied schema generation, numbered the way
// channeldb's own syncVersions/getMigrationsToApply bookkeeping does it.
// golang-migrate drives the telemetry store's schema (telemetry/store.go);
// this package does not use it and applies createTablesSQL directly.
const schemaVersion = 1

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS events (
	id         TEXT PRIMARY KEY,
	pubkey     TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	kind       INTEGER NOT NULL,
	tags       TEXT NOT NULL,
	content    TEXT NOT NULL,
	sig        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_kind ON events(kind);
CREATE INDEX IF NOT EXISTS idx_events_pubkey ON events(pubkey);
CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);

CREATE TABLE IF NOT EXISTS event_tags (
	event_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	value    TEXT
);

CREATE INDEX IF NOT EXISTS idx_event_tags_name_value ON event_tags(name, value);
CREATE INDEX IF NOT EXISTS idx_event_tags_event_id ON event_tags(event_id);
`

func migrate(db *sql.DB) error {
	if _, err := db.Exec(createTablesSQL); err != nil {
		return errors.WrapPrefix(err, "create event tables", 0)
	}

	var count int
	row := db.QueryRow("SELECT COUNT(*) FROM schema_migrations")
	if err := row.Scan(&count); err != nil {
		return errors.WrapPrefix(err, "read schema_migrations", 0)
	}
	if count == 0 {
		if _, err := db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", schemaVersion); err != nil {
			return errors.WrapPrefix(err, "stamp schema version", 0)
		}
	}
	return nil
}
