package store

// The identity table holds at most one row: the live session identity.
// The fixed id makes Save an upsert and Clear a full wipe.
const schema = `
CREATE TABLE IF NOT EXISTS session_identity (
	id          INTEGER PRIMARY KEY CHECK (id = 1),
	room_id     TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	token       TEXT NOT NULL,
	nickname    TEXT NOT NULL DEFAULT '',
	is_admin    INTEGER NOT NULL DEFAULT 0,
	is_creating INTEGER NOT NULL DEFAULT 0,
	saved_at    TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const sqlitePragmas = `
	PRAGMA journal_mode = WAL;
	PRAGMA synchronous = NORMAL;
	PRAGMA busy_timeout = 5000;
`
