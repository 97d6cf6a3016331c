package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gotd/td/session"

	"tgops/internal/domain"

	_ "modernc.org/sqlite"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if err := os.MkdirAll(filepath.Dir(filepath.Clean(dbPath)), 0o700); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", filepath.Clean(dbPath))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS settings (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS peers (
	account INTEGER NOT NULL,
	identifier TEXT NOT NULL,
	kind TEXT NOT NULL,
	peer_id INTEGER NOT NULL,
	access_hash INTEGER NOT NULL DEFAULT 0,
	megagroup INTEGER NOT NULL DEFAULT 0,
	resolved_at INTEGER NOT NULL,
	PRIMARY KEY (account, identifier)
);

CREATE INDEX IF NOT EXISTS idx_peers_resolved ON peers(account, resolved_at);

CREATE TABLE IF NOT EXISTS sessions (
	name TEXT PRIMARY KEY,
	data BLOB NOT NULL,
	updated_at INTEGER NOT NULL
);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *Store) SetSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO settings(key, value) VALUES(?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value
`, key, value)
	return err
}

func (s *Store) GetSetting(ctx context.Context, key, defaultValue string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return defaultValue, nil
	}
	return value, err
}

func (s *Store) GetSettingInt64(ctx context.Context, key string, defaultValue int64) (int64, error) {
	raw, err := s.GetSetting(ctx, key, strconv.FormatInt(defaultValue, 10))
	if err != nil {
		return defaultValue, err
	}
	parsed, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		return defaultValue, nil
	}
	return parsed, nil
}

// LoadPeer returns the peer account resolved for identifier.
func (s *Store) LoadPeer(ctx context.Context, account int64, identifier string) (domain.CachedPeer, bool, error) {
	var (
		peer       = domain.CachedPeer{Identifier: identifier}
		megagroup  int
		resolvedAt int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT kind, peer_id, access_hash, megagroup, resolved_at
FROM peers
WHERE account = ? AND identifier = ?
`, account, identifier).Scan(&peer.Kind, &peer.ID, &peer.AccessHash, &megagroup, &resolvedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.CachedPeer{}, false, nil
	}
	if err != nil {
		return domain.CachedPeer{}, false, err
	}
	peer.Megagroup = megagroup == 1
	peer.ResolvedAt = time.Unix(resolvedAt, 0).UTC()
	return peer, true, nil
}

func (s *Store) SavePeer(ctx context.Context, account int64, peer domain.CachedPeer) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO peers(account, identifier, kind, peer_id, access_hash, megagroup, resolved_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(account, identifier) DO UPDATE SET
	kind = excluded.kind,
	peer_id = excluded.peer_id,
	access_hash = excluded.access_hash,
	megagroup = excluded.megagroup,
	resolved_at = excluded.resolved_at
`, account, peer.Identifier, peer.Kind, peer.ID, peer.AccessHash, boolToInt(peer.Megagroup), peer.ResolvedAt.Unix())
	return err
}

func (s *Store) DeletePeer(ctx context.Context, account int64, identifier string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM peers WHERE account = ? AND identifier = ?`, account, identifier)
	return err
}

// ListPeers returns the peers cached for account, most recently resolved
// first.
func (s *Store) ListPeers(ctx context.Context, account int64) ([]domain.CachedPeer, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT identifier, kind, peer_id, access_hash, megagroup, resolved_at
FROM peers
WHERE account = ?
ORDER BY resolved_at DESC, identifier ASC
`, account)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	peers := make([]domain.CachedPeer, 0, 16)
	for rows.Next() {
		var (
			peer       domain.CachedPeer
			megagroup  int
			resolvedAt int64
		)
		if err := rows.Scan(&peer.Identifier, &peer.Kind, &peer.ID, &peer.AccessHash, &megagroup, &resolvedAt); err != nil {
			return nil, err
		}
		peer.Megagroup = megagroup == 1
		peer.ResolvedAt = time.Unix(resolvedAt, 0).UTC()
		peers = append(peers, peer)
	}
	return peers, rows.Err()
}

// PurgePeers drops every cached peer of account and reports how many were
// removed. An account of zero purges all accounts.
func (s *Store) PurgePeers(ctx context.Context, account int64) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if account == 0 {
		res, err = s.db.ExecContext(ctx, `DELETE FROM peers`)
	} else {
		res, err = s.db.ExecContext(ctx, `DELETE FROM peers WHERE account = ?`, account)
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// SessionStorage is a gotd session.Storage kept in the sessions table.
type SessionStorage struct {
	store *Store
	name  string
}

// Session returns the session storage stored under name.
func (s *Store) Session(name string) *SessionStorage {
	return &SessionStorage{store: s, name: name}
}

func (st *SessionStorage) LoadSession(ctx context.Context) ([]byte, error) {
	var data []byte
	err := st.store.db.QueryRowContext(ctx, `SELECT data FROM sessions WHERE name = ?`, st.name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && len(data) == 0) {
		return nil, session.ErrNotFound
	}
	return data, err
}

func (st *SessionStorage) StoreSession(ctx context.Context, data []byte) error {
	_, err := st.store.db.ExecContext(ctx, `
INSERT INTO sessions(name, data, updated_at) VALUES(?, ?, ?)
ON CONFLICT(name) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at
`, st.name, data, time.Now().Unix())
	return err
}

// DeleteSession forgets the session stored under name.
func (s *Store) DeleteSession(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, name)
	return err
}

func (s *Store) Checkpoint(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE);`)
	return err
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
