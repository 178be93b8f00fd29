package store

// Schema creates every profilewatch table.
//
// timing_log is append-only and its column order (nick, scraped_at, source,
// run_number) is contractual: downstream log consumers read it positionally,
// so columns must never be reordered or inserted before run_number. Row
// order is insertion order via the implicit rowid.
const Schema = `
CREATE TABLE IF NOT EXISTS profiles (
	nick TEXT PRIMARY KEY,
	image_url TEXT NOT NULL DEFAULT '',
	tags TEXT NOT NULL DEFAULT '',
	last_post TEXT NOT NULL DEFAULT '',
	last_post_time TEXT NOT NULL DEFAULT '',
	friend INTEGER NOT NULL DEFAULT 0,
	city TEXT NOT NULL DEFAULT '',
	gender TEXT NOT NULL DEFAULT 'unknown',
	married TEXT NOT NULL DEFAULT 'unknown',
	age INTEGER NOT NULL DEFAULT 0,
	joined TEXT NOT NULL DEFAULT '',
	followers INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL DEFAULT 'unknown',
	posts INTEGER NOT NULL DEFAULT 0,
	profile_url TEXT NOT NULL DEFAULT '',
	intro TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	scraped_at INTEGER NOT NULL,
	change_note TEXT NOT NULL DEFAULT '',
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS timing_log (
	nick TEXT NOT NULL,
	scraped_at TEXT NOT NULL,
	source TEXT NOT NULL,
	run_number INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_timing_log_run ON timing_log(run_number);

CREATE TABLE IF NOT EXISTS tasks (
	nick TEXT PRIMARY KEY,
	status TEXT NOT NULL DEFAULT 'pending',
	remark TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL DEFAULT '',
	last_attempt INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS nick_frequency (
	nick TEXT PRIMARY KEY,
	times_seen INTEGER NOT NULL DEFAULT 0,
	first_seen INTEGER NOT NULL,
	last_seen INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_metrics (
	run_number INTEGER PRIMARY KEY,
	started_at INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	total INTEGER NOT NULL DEFAULT 0,
	succeeded INTEGER NOT NULL DEFAULT 0,
	failed INTEGER NOT NULL DEFAULT 0,
	new_count INTEGER NOT NULL DEFAULT 0,
	updated_count INTEGER NOT NULL DEFAULT 0,
	unchanged_count INTEGER NOT NULL DEFAULT 0,
	trigger_kind TEXT NOT NULL DEFAULT 'manual'
);
`
