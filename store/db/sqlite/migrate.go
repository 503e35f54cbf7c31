package sqlite

// latestSchema is the idempotent LATEST schema for the context store.
const latestSchema = `
CREATE TABLE IF NOT EXISTS tenant (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	api_key TEXT NOT NULL UNIQUE,
	secondary_api_key TEXT,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	settings TEXT,
	requests_per_minute INTEGER NOT NULL DEFAULT 0,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS "user" (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL REFERENCES tenant (id) ON DELETE CASCADE,
	external_id TEXT NOT NULL,
	email TEXT,
	password_hash TEXT,
	display_name TEXT,
	default_timezone TEXT NOT NULL DEFAULT 'UTC',
	default_locale TEXT NOT NULL DEFAULT 'en-US',
	default_country TEXT NOT NULL DEFAULT '',
	allow_location BOOLEAN NOT NULL DEFAULT FALSE,
	allow_situational BOOLEAN NOT NULL DEFAULT TRUE,
	preferences TEXT,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL,
	UNIQUE (tenant_id, external_id)
);

CREATE TABLE IF NOT EXISTS context (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES "user" (id) ON DELETE CASCADE,
	type TEXT NOT NULL,
	tier TEXT NOT NULL DEFAULT 'short_term',
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	interpretation TEXT,
	confidence REAL NOT NULL DEFAULT 0.5 CHECK (confidence >= 0 AND confidence <= 1),
	source TEXT NOT NULL DEFAULT 'inference',
	source_details TEXT,
	drift_status TEXT NOT NULL DEFAULT 'stable',
	expires_ts BIGINT,
	last_confirmed_ts BIGINT,
	correction_count INTEGER NOT NULL DEFAULT 0,
	session_id TEXT,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	deleted_ts BIGINT,
	created_ts BIGINT NOT NULL,
	updated_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_context_user_type_key ON context (user_id, type, key);
CREATE INDEX IF NOT EXISTS idx_context_expires ON context (expires_ts) WHERE expires_ts IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_context_active_unique ON context (user_id, type, key) WHERE is_active;

CREATE TABLE IF NOT EXISTS context_version (
	id TEXT PRIMARY KEY,
	context_id TEXT NOT NULL REFERENCES context (id) ON DELETE CASCADE,
	version INTEGER NOT NULL,
	value TEXT NOT NULL,
	interpretation TEXT,
	confidence REAL NOT NULL,
	previous_value TEXT,
	changed_by TEXT NOT NULL,
	change_reason TEXT,
	created_ts BIGINT NOT NULL,
	UNIQUE (context_id, version)
);

CREATE TABLE IF NOT EXISTS context_session (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES "user" (id) ON DELETE CASCADE,
	session_id TEXT NOT NULL UNIQUE,
	started_ts BIGINT NOT NULL,
	last_activity_ts BIGINT NOT NULL,
	ended_ts BIGINT,
	client_info TEXT,
	context_snapshot TEXT
);

CREATE TABLE IF NOT EXISTS context_snapshot (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL REFERENCES "user" (id) ON DELETE CASCADE,
	major INTEGER NOT NULL,
	minor INTEGER NOT NULL,
	patch INTEGER NOT NULL,
	trigger_reason TEXT NOT NULL,
	parent_id TEXT,
	context_maps TEXT NOT NULL,
	checksum TEXT NOT NULL,
	description TEXT,
	tags TEXT,
	created_ts BIGINT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshot_user ON context_snapshot (user_id, created_ts DESC);
`
