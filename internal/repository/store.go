// Package repository is the Postgres persistence collaborator. Order identity
// and status survive restarts; every status change lands in order_status_log
// within the same transaction as the change itself.
package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"kiosk-system/internal/catalog"
	"kiosk-system/internal/domain"
)

const changedBy = "queue-manager"

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// CreateOrder inserts the order, its items and the initial status log entry
// in one transaction.
func (s *Store) CreateOrder(ctx context.Context, o domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_name, status, submitted_at, estimated_completion)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.CustomerName, string(o.Status), o.SubmittedAt, o.EstimatedCompletion); err != nil {
		return errors.Wrap(err, "insert order")
	}
	for i, it := range o.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, recipe_id, quantity)
			VALUES ($1, $2, $3, $4)
		`, o.ID, i, it.RecipeID, it.Quantity); err != nil {
			return errors.Wrapf(err, "insert order item %s", it.RecipeID)
		}
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, now())
	`, o.ID, string(o.Status), changedBy); err != nil {
		return errors.Wrap(err, "insert status log")
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}

// UpdateOrder persists a status transition plus its log entry.
func (s *Store) UpdateOrder(ctx context.Context, o domain.Order) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var durationSec sql.NullFloat64
	if o.Duration > 0 {
		durationSec = sql.NullFloat64{Float64: o.Duration.Seconds(), Valid: true}
	}
	var errMsg sql.NullString
	if o.ErrorMessage != "" {
		errMsg = sql.NullString{String: o.ErrorMessage, Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status=$2, started_at=$3, completed_at=$4, duration_seconds=$5,
		    error_message=$6, estimated_completion=$7, updated_at=now()
		WHERE id=$1
	`, o.ID, string(o.Status), o.StartedAt, o.CompletedAt, durationSec, errMsg, o.EstimatedCompletion); err != nil {
		return errors.Wrap(err, "update order")
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO order_status_log (order_id, status, changed_by, changed_at)
		VALUES ($1, $2, $3, now())
	`, o.ID, string(o.Status), changedBy); err != nil {
		return errors.Wrap(err, "insert status log")
	}

	return errors.Wrap(tx.Commit(), "commit transaction")
}

// UpdateEstimates writes fresh completion estimates for active orders.
func (s *Store) UpdateEstimates(ctx context.Context, estimates map[string]time.Time) error {
	if len(estimates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	for id, at := range estimates {
		if _, err := tx.ExecContext(ctx, `
			UPDATE orders SET estimated_completion=$2, updated_at=now() WHERE id=$1
		`, id, at); err != nil {
			return errors.Wrapf(err, "update estimate for %s", id)
		}
	}
	return errors.Wrap(tx.Commit(), "commit transaction")
}

// AppendHistorySample stores one per-unit processing duration observation.
func (s *Store) AppendHistorySample(ctx context.Context, recipeID string, perUnit time.Duration) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO prep_history (recipe_id, duration_seconds, recorded_at)
		VALUES ($1, $2, now())
	`, recipeID, perUnit.Seconds())
	return errors.Wrap(err, "insert history sample")
}

// LoadActiveOrders returns pending and in_progress orders with their items,
// oldest submission first.
func (s *Store) LoadActiveOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, customer_name, status, submitted_at, started_at, estimated_completion
		FROM orders
		WHERE status IN ('pending', 'in_progress')
		ORDER BY submitted_at ASC
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query active orders")
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		var status string
		var startedAt, estimated sql.NullTime
		if err := rows.Scan(&o.ID, &o.CustomerName, &status, &o.SubmittedAt, &startedAt, &estimated); err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		o.Status = domain.OrderStatus(status)
		if startedAt.Valid {
			t := startedAt.Time
			o.StartedAt = &t
		}
		if estimated.Valid {
			t := estimated.Time
			o.EstimatedCompletion = &t
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate orders")
	}

	for i := range out {
		items, err := s.loadItems(ctx, out[i].ID)
		if err != nil {
			return nil, err
		}
		out[i].Items = items
	}
	return out, nil
}

func (s *Store) loadItems(ctx context.Context, orderID string) ([]domain.Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT recipe_id, quantity FROM order_items
		WHERE order_id=$1 ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, errors.Wrapf(err, "query items for %s", orderID)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.RecipeID, &it.Quantity); err != nil {
			return nil, errors.Wrap(err, "scan order item")
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

// ListRecipes implements catalog.Source.
func (s *Store) ListRecipes(ctx context.Context) ([]catalog.Recipe, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, price, expected_seconds, enabled FROM recipes
	`)
	if err != nil {
		return nil, errors.Wrap(err, "query recipes")
	}
	defer rows.Close()

	var out []catalog.Recipe
	for rows.Next() {
		var r catalog.Recipe
		var expectedSec float64
		if err := rows.Scan(&r.ID, &r.Name, &r.Price, &expectedSec, &r.Enabled); err != nil {
			return nil, errors.Wrap(err, "scan recipe")
		}
		r.Expected = time.Duration(expectedSec * float64(time.Second))
		out = append(out, r)
	}
	return out, rows.Err()
}
