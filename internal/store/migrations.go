package store

// migration holds a single schema migration with its target version and SQL.
type migration struct {
	version int
	sql     string
}

// migrations is the ordered list of schema migrations.
// Each migration's version must be sequential starting from 1.
var migrations = []migration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_version (
	version INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS messages (
	id          TEXT PRIMARY KEY,
	account_id  TEXT NOT NULL,
	mailbox     TEXT NOT NULL,
	uid         INTEGER NOT NULL,
	message_id  TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	from_name   TEXT NOT NULL DEFAULT '',
	from_addr   TEXT NOT NULL DEFAULT '',
	to_addrs    TEXT NOT NULL DEFAULT '[]',
	date        DATETIME NOT NULL,
	seen        INTEGER NOT NULL DEFAULT 0 CHECK(seen IN (0, 1)),
	flagged     INTEGER NOT NULL DEFAULT 0 CHECK(flagged IN (0, 1)),
	answered    INTEGER NOT NULL DEFAULT 0 CHECK(answered IN (0, 1)),
	fetched_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_account_date ON messages(account_id, date);
CREATE INDEX IF NOT EXISTS idx_messages_seen ON messages(seen);

INSERT INTO schema_version (version) VALUES (1);
`,
	},
	{
		version: 2,
		sql: `
CREATE TABLE IF NOT EXISTS drafts (
	id          TEXT PRIMARY KEY,
	reply_to    TEXT NOT NULL DEFAULT '',
	to_addr     TEXT NOT NULL DEFAULT '',
	subject     TEXT NOT NULL DEFAULT '',
	body        TEXT NOT NULL DEFAULT '',
	created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_drafts_reply_to ON drafts(reply_to);

INSERT INTO schema_version (version) VALUES (2);
`,
	},
}
