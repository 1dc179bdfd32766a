package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// LoadBoard returns the stored snapshot, or nil when the user has none yet.
func (db *DB) LoadBoard(ctx context.Context, owner, key string) ([]byte, error) {
	row := db.QueryRowContext(ctx, db.rebind(
		`SELECT data FROM board_snapshots WHERE email = ? AND storage_key = ?`), owner, key)

	var data string
	err := row.Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query board snapshot: %w", err)
	}
	return []byte(data), nil
}

// SaveBoard upserts the snapshot, creating the user row on first save.
func (db *DB) SaveBoard(ctx context.Context, owner, key string, data []byte) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.ensureUser(ctx, tx, owner); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, db.rebind(`
		INSERT INTO board_snapshots (email, storage_key, data, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(email, storage_key) DO UPDATE SET
			data = excluded.data,
			updated_at = excluded.updated_at
	`), owner, key, string(data), formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert board snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
