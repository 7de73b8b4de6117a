package store

// Migration is one schema change, applied in version order.
type Migration struct {
	Version int
	Name    string
	SQL     string
}

var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_encounters",
		SQL: `
			CREATE TABLE encounters (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				interaction_id TEXT NOT NULL,
				state          TEXT NOT NULL,
				started_at     TEXT NOT NULL,
				ended_at       TEXT NOT NULL,
				transcript     TEXT NOT NULL DEFAULT '',
				facts_json     TEXT NOT NULL DEFAULT '[]',
				fact_count     INTEGER NOT NULL DEFAULT 0,
				credits        REAL NOT NULL DEFAULT 0,
				sent_frames    INTEGER NOT NULL DEFAULT 0
			);
			CREATE INDEX idx_encounters_started ON encounters(started_at DESC);
		`,
	},
	{
		Version: 2,
		Name:    "create_documents",
		SQL: `
			CREATE TABLE documents (
				id             INTEGER PRIMARY KEY AUTOINCREMENT,
				interaction_id TEXT NOT NULL,
				template_key   TEXT NOT NULL,
				created_at     TEXT NOT NULL,
				body_json      TEXT NOT NULL
			);
			CREATE INDEX idx_documents_interaction ON documents(interaction_id);
		`,
	},
}
