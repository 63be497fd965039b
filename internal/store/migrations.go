package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create sessions and messages",
		SQL: `
			CREATE TABLE sessions (
				id                  TEXT PRIMARY KEY,
				consent_state       TEXT NOT NULL DEFAULT 'none',
				consent_scope       TEXT NOT NULL DEFAULT '',
				consent_granted_at  TEXT,
				created_at          TEXT NOT NULL DEFAULT (datetime('now')),
				last_active         TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_sessions_last_active ON sessions (last_active);

			CREATE TABLE messages (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
				role        TEXT NOT NULL,
				content     TEXT NOT NULL,
				call_id     TEXT NOT NULL DEFAULT '',
				tool_name   TEXT NOT NULL DEFAULT '',
				tool_calls  TEXT,
				timestamp   TEXT NOT NULL DEFAULT (datetime('now'))
			);

			CREATE INDEX idx_messages_session ON messages (session_id, id);
		`,
	},
}
