package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CrowderSoup/dealerdesk/crm"
	"github.com/google/uuid"
)

var ErrDuplicateView = errors.New("a view with that name already exists")

// SaveView stores a named filter for owner. The filter is normalized before it is saved.
func (db *DB) SaveView(ctx context.Context, owner, name string, f crm.FilterState) (*crm.SavedView, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("view name is required")
	}
	v := &crm.SavedView{
		ID:        uuid.NewString(),
		Owner:     owner,
		Name:      name,
		Query:     crm.Encode(f).Encode(),
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := db.ensureUser(ctx, tx, owner); err != nil {
		return nil, err
	}
	res, err := tx.ExecContext(ctx, db.rebind(`
		INSERT INTO saved_views (id, email, name, query, created_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(email, name) DO NOTHING`),
		v.ID, owner, v.Name, v.Query, formatTime(v.CreatedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert view: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, ErrDuplicateView
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return v, nil
}

func (db *DB) ListViews(ctx context.Context, owner string) ([]crm.SavedView, error) {
	rows, err := db.QueryContext(ctx, db.rebind(
		`SELECT id, name, query, created_at FROM saved_views WHERE email = ? ORDER BY name`), owner)
	if err != nil {
		return nil, fmt.Errorf("failed to query views: %w", err)
	}
	defer rows.Close()

	views := []crm.SavedView{}
	for rows.Next() {
		var (
			v       = crm.SavedView{Owner: owner}
			created string
		)
		if err := rows.Scan(&v.ID, &v.Name, &v.Query, &created); err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		if v.CreatedAt, err = parseTime(created); err != nil {
			return nil, fmt.Errorf("bad created_at %q: %w", created, err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// DeleteView removes one of owner's views.
func (db *DB) DeleteView(ctx context.Context, owner, id string) error {
	res, err := db.ExecContext(ctx, db.rebind(`DELETE FROM saved_views WHERE id = ? AND email = ?`), id, owner)
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete view: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("view %s: %w", id, ErrNotFound)
	}
	return nil
}
