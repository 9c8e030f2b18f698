// Package eventdb is the event database: a single-writer, multi-reader
// store of social-graph Events, queryable by id, kind, author, tag and
// time.
package eventdb

import (
	"context"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/go-errors/errors"
	_ "modernc.org/sqlite"

	"github.com/ALLiDoizCode/m2m-sub004/event"
)

// DB is the event database handle, modeled on channeldb's DB{} (a thin
// wrapper owning the underlying connection plus typed accessors).
type DB struct {
	sqlDB *sql.DB
}

// Open opens (creating if necessary) the sqlite-backed event database at
// path, corresponding to AGENT_DATABASE_PATH.
func Open(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapPrefix(err, "open event database", 0)
	}
	// The event database is single-writer, multi-reader; a
	// single connection keeps sqlite's writer serialized without us
	// needing an external mutex on top.
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{sqlDB: sqlDB}, nil
}

// Close releases the underlying connection.
func (d *DB) Close() error {
	return d.sqlDB.Close()
}

func hexID(id [32]byte) string { return hex.EncodeToString(id[:]) }

// Insert persists an event. Re-inserting the same id is a no-op success
// (idempotent, since a peer link may redeliver).
func (d *DB) Insert(ctx context.Context, ev *event.Event) error {
	tagsJSON, err := json.Marshal(ev.Tags)
	if err != nil {
		return errors.WrapPrefix(err, "marshal tags", 0)
	}

	tx, err := d.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return errors.WrapPrefix(err, "begin insert tx", 0)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO events (id, pubkey, created_at, kind, tags, content, sig)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		hexID(ev.ID), hexID(ev.PubKey), ev.CreatedAt, ev.Kind,
		string(tagsJSON), ev.Content, hex.EncodeToString(ev.Sig[:]),
	)
	if err != nil {
		return errors.WrapPrefix(err, "insert event", 0)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_tags WHERE event_id = ?`, hexID(ev.ID)); err != nil {
		return errors.WrapPrefix(err, "clear event tags", 0)
	}
	for i, tag := range ev.Tags {
		name := tag.Name()
		value := tag.Value(1)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO event_tags (event_id, position, name, value) VALUES (?, ?, ?, ?)`,
			hexID(ev.ID), i, name, value,
		); err != nil {
			return errors.WrapPrefix(err, "insert event tag", 0)
		}
	}

	return tx.Commit()
}

// Query filters events by any combination of criteria; a zero-value field
// means "don't filter on this". Results are ordered newest-first.
type Query struct {
	ID        string
	Kinds     []int
	Author    string
	TagName   string
	TagValue  string
	Since     int64
	Until     int64
	Limit     int
}

// Query returns events matching the given filter.
func (d *DB) Query(ctx context.Context, q Query) ([]*event.Event, error) {
	var (
		conds []string
		args  []interface{}
	)
	from := "events e"

	if q.ID != "" {
		conds = append(conds, "e.id = ?")
		args = append(args, q.ID)
	}
	if len(q.Kinds) > 0 {
		placeholders := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			placeholders[i] = "?"
			args = append(args, k)
		}
		conds = append(conds, "e.kind IN ("+strings.Join(placeholders, ",")+")")
	}
	if q.Author != "" {
		conds = append(conds, "e.pubkey = ?")
		args = append(args, q.Author)
	}
	if q.Since != 0 {
		conds = append(conds, "e.created_at >= ?")
		args = append(args, q.Since)
	}
	if q.Until != 0 {
		conds = append(conds, "e.created_at <= ?")
		args = append(args, q.Until)
	}
	if q.TagName != "" {
		from = "events e JOIN event_tags t ON t.event_id = e.id"
		conds = append(conds, "t.name = ?")
		args = append(args, q.TagName)
		if q.TagValue != "" {
			conds = append(conds, "t.value = ?")
			args = append(args, q.TagValue)
		}
	}

	sqlStr := "SELECT DISTINCT e.id, e.pubkey, e.created_at, e.kind, e.tags, e.content, e.sig FROM " + from
	if len(conds) > 0 {
		sqlStr += " WHERE " + strings.Join(conds, " AND ")
	}
	sqlStr += " ORDER BY e.created_at DESC"
	if q.Limit > 0 {
		sqlStr += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := d.sqlDB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.WrapPrefix(err, "query events", 0)
	}
	defer rows.Close()

	var out []*event.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return out, rows.Err()
}

// GetByID fetches a single event by id, or (nil, nil) if not found.
func (d *DB) GetByID(ctx context.Context, id [32]byte) (*event.Event, error) {
	evs, err := d.Query(ctx, Query{ID: hexID(id), Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(evs) == 0 {
		return nil, nil
	}
	return evs[0], nil
}

// Delete removes an event by id.
func (d *DB) Delete(ctx context.Context, id [32]byte) error {
	_, err := d.sqlDB.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, hexID(id))
	if err != nil {
		return errors.WrapPrefix(err, "delete event", 0)
	}
	_, err = d.sqlDB.ExecContext(ctx, `DELETE FROM event_tags WHERE event_id = ?`, hexID(id))
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEvent(row rowScanner) (*event.Event, error) {
	var (
		idHex, pubHex, tagsJSON, content, sigHex string
		createdAt                                int64
		kind                                     int
	)
	if err := row.Scan(&idHex, &pubHex, &createdAt, &kind, &tagsJSON, &content, &sigHex); err != nil {
		return nil, errors.WrapPrefix(err, "scan event row", 0)
	}

	ev := &event.Event{CreatedAt: createdAt, Kind: kind, Content: content}
	if b, err := hex.DecodeString(idHex); err == nil {
		copy(ev.ID[:], b)
	}
	if b, err := hex.DecodeString(pubHex); err == nil {
		copy(ev.PubKey[:], b)
	}
	if b, err := hex.DecodeString(sigHex); err == nil {
		copy(ev.Sig[:], b)
	}
	if err := json.Unmarshal([]byte(tagsJSON), &ev.Tags); err != nil {
		return nil, errors.WrapPrefix(err, "unmarshal tags", 0)
	}
	return ev, nil
}
