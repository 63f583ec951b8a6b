package sqlite

// schema is applied on open. Idempotent so a restart against an existing
// database is a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS rooms (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	owner_id   INTEGER REFERENCES users(id),
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS room_members (
	room_id   INTEGER NOT NULL REFERENCES rooms(id),
	user_id   INTEGER NOT NULL REFERENCES users(id),
	is_admin  BOOLEAN NOT NULL DEFAULT 0,
	joined_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (room_id, user_id)
);

CREATE TABLE IF NOT EXISTS messages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id     INTEGER NOT NULL REFERENCES rooms(id),
	sender_id   INTEGER NOT NULL REFERENCES users(id),
	sender_name TEXT NOT NULL,
	type        TEXT NOT NULL DEFAULT 'text',
	body        TEXT NOT NULL DEFAULT '',
	media_ids   TEXT NOT NULL DEFAULT '',
	poll_id     INTEGER,
	table_id    INTEGER,
	reply_to_id INTEGER REFERENCES messages(id),
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_messages_room_created
	ON messages(room_id, created_at DESC, id DESC);

CREATE TABLE IF NOT EXISTS notification_tokens (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id    INTEGER NOT NULL REFERENCES users(id),
	token      TEXT NOT NULL UNIQUE,
	platform   TEXT NOT NULL DEFAULT 'android',
	active     BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_tokens_user_active
	ON notification_tokens(user_id, active);
`
