package telemetry

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-errors/errors"
	migrate "github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// defaultBufferSize bounds the in-memory ring buffer.
const defaultBufferSize = 2048

const subscriberBufferSize = 256

// Store persists telemetry events to a local sqlite database and fans them
// out to live subscribers (the external UI consumer).
type Store struct {
	nodeID string
	sqlDB  *sql.DB

	mu          sync.Mutex
	ring        []Event
	ringHead    int
	ringFilled  bool
	subscribers map[int]chan Event
	nextSubID   int
}

// NewStore opens (creating if necessary) the telemetry database at path,
// running golang-migrate's embedded schema migrations against it.
func NewStore(path, nodeID string) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.WrapPrefix(err, "open telemetry database", 0)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := runMigrations(sqlDB); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &Store{
		nodeID:      nodeID,
		sqlDB:       sqlDB,
		ring:        make([]Event, defaultBufferSize),
		subscribers: make(map[int]chan Event),
	}, nil
}

func runMigrations(db *sql.DB) error {
	srcDriver, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return errors.WrapPrefix(err, "load embedded migrations", 0)
	}

	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return errors.WrapPrefix(err, "wrap telemetry db for migrate", 0)
	}

	m, err := migrate.NewWithInstance("iofs", srcDriver, "sqlite3", dbDriver)
	if err != nil {
		return errors.WrapPrefix(err, "construct migrator", 0)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.WrapPrefix(err, "apply telemetry migrations", 0)
	}
	return nil
}

// Close releases the underlying connection and closes every subscriber
// channel.
func (s *Store) Close() error {
	s.mu.Lock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.mu.Unlock()
	return s.sqlDB.Close()
}

// Emit persists ev (stamping Timestamp/NodeID if unset) and fans it out to
// subscribers. Telemetry emission never fails upward: a persistence error
// is logged and swallowed, exactly like a subscriber panic/error would be.
func (s *Store) Emit(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}
	if ev.NodeID == "" {
		ev.NodeID = s.nodeID
	}

	if err := s.persist(ev); err != nil {
		log.Errorf("telemetry: failed to persist %s event: %v", ev.Type, err)
	}

	s.mu.Lock()
	s.appendRing(ev)
	subs := make([]chan Event, 0, len(s.subscribers))
	for _, ch := range s.subscribers {
		subs = append(subs, ch)
	}
	s.mu.Unlock()

	for _, ch := range subs {
		s.deliver(ch, ev)
	}
}

// deliver sends ev to a subscriber channel. When the subscriber's buffer
// is full, a non-terminal ev is dropped at once; events already buffered
// are kept, so it is the newest event that is shed, not the oldest. A
// terminal ev (channel close/settle) waits up to one second for room and
// is dropped, with a warning, if none frees up.
func (s *Store) deliver(ch chan Event, ev Event) {
	select {
	case ch <- ev:
		return
	default:
	}

	if !ev.Type.terminal() {
		log.Debugf("telemetry: dropping %s event for slow subscriber", ev.Type)
		return
	}

	select {
	case ch <- ev:
	case <-time.After(time.Second):
		log.Warnf("telemetry: subscriber stalled on terminal event %s", ev.Type)
	}
}

func (s *Store) appendRing(ev Event) {
	s.ring[s.ringHead] = ev
	s.ringHead = (s.ringHead + 1) % len(s.ring)
	if s.ringHead == 0 {
		s.ringFilled = true
	}
}

func (s *Store) persist(ev Event) error {
	fieldsJSON, err := json.Marshal(ev.Fields)
	if err != nil {
		return err
	}
	peerID, _ := ev.Fields["peerId"].(string)
	packetID, _ := ev.Fields["packetId"].(string)
	direction, _ := ev.Fields["direction"].(string)

	_, err = s.sqlDB.Exec(
		`INSERT INTO telemetry_events (type, timestamp, node_id, peer_id, packet_id, direction, fields)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Type), ev.Timestamp, ev.NodeID, peerID, packetID, direction, string(fieldsJSON),
	)
	return err
}

// Subscribe registers a new live listener; the returned cancel func must be
// called to release it.
func (s *Store) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBufferSize)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if existing, ok := s.subscribers[id]; ok {
			close(existing)
			delete(s.subscribers, id)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// QueryFilter mirrors the HTTP control surface's events query parameters.
type QueryFilter struct {
	Types     []Type
	Since     int64
	Until     int64
	PeerID    string
	PacketID  string
	Direction string
	Limit     int
	Offset    int
}

// Query reads a consistent snapshot of matching telemetry records, most
// recent first.
func (s *Store) Query(ctx context.Context, f QueryFilter) ([]Event, error) {
	sqlStr := `SELECT type, timestamp, node_id, fields FROM telemetry_events WHERE 1=1`
	var args []interface{}

	if len(f.Types) > 0 {
		sqlStr += " AND type IN ("
		for i, t := range f.Types {
			if i > 0 {
				sqlStr += ","
			}
			sqlStr += "?"
			args = append(args, string(t))
		}
		sqlStr += ")"
	}
	if f.Since != 0 {
		sqlStr += " AND timestamp >= ?"
		args = append(args, f.Since)
	}
	if f.Until != 0 {
		sqlStr += " AND timestamp <= ?"
		args = append(args, f.Until)
	}
	if f.PeerID != "" {
		sqlStr += " AND peer_id = ?"
		args = append(args, f.PeerID)
	}
	if f.PacketID != "" {
		sqlStr += " AND packet_id = ?"
		args = append(args, f.PacketID)
	}
	if f.Direction != "" {
		sqlStr += " AND direction = ?"
		args = append(args, f.Direction)
	}

	sqlStr += " ORDER BY seq DESC"
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	sqlStr += " LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.sqlDB.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, errors.WrapPrefix(err, "query telemetry", 0)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			typ, nodeID, fieldsJSON string
			ts                      int64
		)
		if err := rows.Scan(&typ, &ts, &nodeID, &fieldsJSON); err != nil {
			return nil, errors.WrapPrefix(err, "scan telemetry row", 0)
		}
		var fields map[string]interface{}
		if err := json.Unmarshal([]byte(fieldsJSON), &fields); err != nil {
			return nil, errors.WrapPrefix(err, "unmarshal telemetry fields", 0)
		}
		out = append(out, Event{Type: Type(typ), Timestamp: ts, NodeID: nodeID, Fields: fields})
	}
	return out, rows.Err()
}
