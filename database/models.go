package database

import "fmt"

func schema(d Dialect) []string {
	serial := "INTEGER PRIMARY KEY AUTOINCREMENT"
	if d == Postgres {
		serial = "BIGSERIAL PRIMARY KEY"
	}

	return []string{
		`CREATE TABLE IF NOT EXISTS users (
			email TEXT PRIMARY KEY,
			created_at TEXT NOT NULL
		)`,

		// One JSON board snapshot per user and storage key.
		`CREATE TABLE IF NOT EXISTS board_snapshots (
			email TEXT NOT NULL REFERENCES users(email),
			storage_key TEXT NOT NULL,
			data TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			PRIMARY KEY (email, storage_key)
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS customers (
			id %s,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			assigned_to TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			temperature TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL DEFAULT '',
			financing TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			trailer_type TEXT NOT NULL DEFAULT '',
			trailer_size TEXT NOT NULL DEFAULT '',
			trailer_condition TEXT NOT NULL DEFAULT '',
			has_credit_app INTEGER NOT NULL DEFAULT 0,
			follow_up_at TEXT,
			created_at TEXT NOT NULL
		)`, serial),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS customer_activities (
			id %s,
			customer_id BIGINT NOT NULL REFERENCES customers(id),
			kind TEXT NOT NULL,
			payload TEXT NOT NULL,
			occurred_at TEXT NOT NULL
		)`, serial),

		`CREATE TABLE IF NOT EXISTS saved_views (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL REFERENCES users(email),
			name TEXT NOT NULL,
			query TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (email, name)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_customers_created ON customers (created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_customer ON customer_activities (customer_id, occurred_at)`,
	}
}
