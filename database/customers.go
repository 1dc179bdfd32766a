package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/CrowderSoup/dealerdesk/crm"
	"go.uber.org/zap"
)

const customerColumns = `id, name, email, phone, assigned_to, status, temperature, priority, financing,
	location, trailer_type, trailer_size, trailer_condition, has_credit_app, follow_up_at, created_at`

// CreateCustomer inserts c and fills in its id and creation time.
func (db *DB) CreateCustomer(ctx context.Context, c *crm.Customer) error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC().Truncate(time.Second)
	}

	var followUp sql.NullString
	if c.FollowUpAt != nil {
		followUp = sql.NullString{String: formatTime(*c.FollowUpAt), Valid: true}
	}

	row := db.QueryRowContext(ctx, db.rebind(`
		INSERT INTO customers (name, email, phone, assigned_to, status, temperature, priority, financing,
			location, trailer_type, trailer_size, trailer_condition, has_credit_app, follow_up_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id`),
		c.Name, c.Email, c.Phone, c.AssignedTo, c.Status, c.Temperature, c.Priority, c.Financing,
		c.Location, c.TrailerType, c.TrailerSize, c.TrailerCondition, boolToInt(c.HasCreditApp),
		followUp, formatTime(c.CreatedAt))
	if err := row.Scan(&c.ID); err != nil {
		return fmt.Errorf("failed to insert customer: %w", err)
	}
	return nil
}

func (db *DB) GetCustomer(ctx context.Context, id int64) (*crm.Customer, error) {
	row := db.QueryRowContext(ctx, db.rebind(`SELECT `+customerColumns+` FROM customers WHERE id = ?`), id)
	c, err := scanCustomer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("customer %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query customer: %w", err)
	}
	return c, nil
}

// SearchCustomers lists customers matching f, newest first.
func (db *DB) SearchCustomers(ctx context.Context, f crm.FilterState, limit int) ([]crm.Customer, error) {
	where, args := customerFilter(f, time.Now())
	query := `SELECT ` + customerColumns + ` FROM customers`
	if where != "" {
		query += ` WHERE ` + where
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.QueryContext(ctx, db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search customers: %w", err)
	}
	defer rows.Close()

	customers := []crm.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, *c)
	}
	return customers, rows.Err()
}

// customerFilter turns f into a WHERE clause with ? placeholders.
func customerFilter(f crm.FilterState, now time.Time) (string, []any) {
	var (
		conds []string
		args  []any
	)
	eq := func(col, val string) {
		if val != "" {
			conds = append(conds, col+" = ?")
			args = append(args, val)
		}
	}
	in := func(col string, vals []string) {
		if len(vals) == 0 {
			return
		}
		conds = append(conds, col+" IN ("+strings.TrimSuffix(strings.Repeat("?, ", len(vals)), ", ")+")")
		for _, v := range vals {
			args = append(args, v)
		}
	}
	between := func(col string, from, to time.Time) {
		if !from.IsZero() {
			conds = append(conds, col+" >= ?")
			args = append(args, formatTime(from))
		}
		if !to.IsZero() {
			// Date filters are inclusive of the whole "to" day.
			conds = append(conds, col+" < ?")
			args = append(args, formatTime(to.AddDate(0, 0, 1)))
		}
	}

	if f.Search != "" {
		like := "%" + likeEscaper.Replace(strings.ToLower(f.Search)) + "%"
		conds = append(conds, `(LOWER(name) LIKE ? ESCAPE '\' OR LOWER(email) LIKE ? ESCAPE '\' OR phone LIKE ? ESCAPE '\')`)
		args = append(args, like, like, like)
	}
	eq("assigned_to", f.AssignedTo)
	in("status", f.Statuses)
	in("temperature", f.Temperatures)
	in("priority", f.Priorities)
	eq("financing", f.Financing)
	eq("location", f.Location)
	eq("trailer_type", f.TrailerType)
	eq("trailer_size", f.TrailerSize)
	eq("trailer_condition", f.TrailerCondition)
	between("created_at", f.CreatedFrom, f.CreatedTo)
	between("follow_up_at", f.FollowUpFrom, f.FollowUpTo)
	if f.Unassigned {
		conds = append(conds, "assigned_to = ''")
	}
	if f.NeedsFollowUp {
		conds = append(conds, "follow_up_at IS NOT NULL AND follow_up_at <= ?")
		args = append(args, formatTime(now))
	}
	if f.HasCreditApp {
		conds = append(conds, "has_credit_app = 1")
	}
	return strings.Join(conds, " AND "), args
}

// likeEscaper makes LIKE wildcards in search text match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*crm.Customer, error) {
	var (
		c         crm.Customer
		followUp  sql.NullString
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.AssignedTo, &c.Status, &c.Temperature,
		&c.Priority, &c.Financing, &c.Location, &c.TrailerType, &c.TrailerSize, &c.TrailerCondition,
		&c.HasCreditApp, &followUp, &createdAt)
	if err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", createdAt, err)
	}
	if followUp.Valid {
		t, err := parseTime(followUp.String)
		if err != nil {
			return nil, fmt.Errorf("bad follow_up_at %q: %w", followUp.String, err)
		}
		c.FollowUpAt = &t
	}
	return &c, nil
}

// AddActivity stores a typed activity on a customer's timeline.
func (db *DB) AddActivity(ctx context.Context, customerID int64, a crm.Activity) (*crm.ActivityRecord, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if _, err := db.GetCustomer(ctx, customerID); err != nil {
		return nil, err
	}
	payload, err := crm.MarshalActivity(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal activity: %w", err)
	}

	rec := &crm.ActivityRecord{CustomerID: customerID, Activity: a}
	row := db.QueryRowContext(ctx, db.rebind(`
		INSERT INTO customer_activities (customer_id, kind, payload, occurred_at)
		VALUES (?, ?, ?, ?) RETURNING id`),
		customerID, string(a.Kind()), string(payload), formatTime(a.At()))
	if err := row.Scan(&rec.ID); err != nil {
		return nil, fmt.Errorf("failed to insert activity: %w", err)
	}
	return rec, nil
}

// ListActivities returns a customer's timeline, oldest first.
func (db *DB) ListActivities(ctx context.Context, customerID int64) ([]crm.ActivityRecord, error) {
	rows, err := db.QueryContext(ctx, db.rebind(`
		SELECT id, payload FROM customer_activities
		WHERE customer_id = ? ORDER BY occurred_at, id`), customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query activities: %w", err)
	}
	defer rows.Close()

	records := []crm.ActivityRecord{}
	for rows.Next() {
		var (
			id      int64
			payload string
		)
		if err := rows.Scan(&id, &payload); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a, err := crm.UnmarshalActivity([]byte(payload))
		if err != nil {
			db.logger.Warn("Skipping unreadable activity", zap.Int64("activity", id), zap.Error(err))
			continue
		}
		records = append(records, crm.ActivityRecord{ID: id, CustomerID: customerID, Activity: a})
	}
	return records, rows.Err()
}
