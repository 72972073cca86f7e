// Package store persists the session identity so a reload can rejoin
// the same room as the same user. Load, Save and Clear are only ever
// invoked by the session lifecycle controller.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"inkboard/pkg/types"
)

// Manager is the sqlite-backed identity store.
type Manager struct {
	db *sql.DB
}

// Open creates or opens the store file and ensures the schema.
func Open(path string) (*Manager, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open identity store %s: %w", path, err)
	}

	if _, err := db.Exec(sqlitePragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return &Manager{db: db}, nil
}

// Load returns the persisted identity, or (nil, nil) when none is
// stored.
func (m *Manager) Load() (*types.Identity, error) {
	row := m.db.QueryRow(`
		SELECT room_id, user_id, token, nickname, is_admin, is_creating
		FROM session_identity WHERE id = 1`)

	var identity types.Identity
	err := row.Scan(
		&identity.RoomID,
		&identity.UserID,
		&identity.Token,
		&identity.Nickname,
		&identity.IsAdmin,
		&identity.IsCreating,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load identity: %w", err)
	}
	return &identity, nil
}

// Save upserts the single identity row.
func (m *Manager) Save(identity *types.Identity) error {
	if identity == nil {
		return ErrNilIdentity
	}

	_, err := m.db.Exec(`
		INSERT INTO session_identity (id, room_id, user_id, token, nickname, is_admin, is_creating, saved_at)
		VALUES (1, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET
			room_id = excluded.room_id,
			user_id = excluded.user_id,
			token = excluded.token,
			nickname = excluded.nickname,
			is_admin = excluded.is_admin,
			is_creating = excluded.is_creating,
			saved_at = CURRENT_TIMESTAMP`,
		identity.RoomID,
		identity.UserID,
		identity.Token,
		identity.Nickname,
		identity.IsAdmin,
		identity.IsCreating,
	)
	if err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// Clear erases the persisted identity. Safe to call when nothing is
// stored.
func (m *Manager) Clear() error {
	if _, err := m.db.Exec(`DELETE FROM session_identity`); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// ConsumeCreatingFlag returns the transient is-creating flag and
// resets it, so a reconnect after a reload joins instead of creating
// a second room.
func (m *Manager) ConsumeCreatingFlag() (bool, error) {
	var creating bool
	row := m.db.QueryRow(`SELECT is_creating FROM session_identity WHERE id = 1`)
	err := row.Scan(&creating)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read creating flag: %w", err)
	}
	if creating {
		if _, err := m.db.Exec(`UPDATE session_identity SET is_creating = 0 WHERE id = 1`); err != nil {
			return false, fmt.Errorf("reset creating flag: %w", err)
		}
	}
	return creating, nil
}

// Close releases the database handle.
func (m *Manager) Close() error {
	return m.db.Close()
}
