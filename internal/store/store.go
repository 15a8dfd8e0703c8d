package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"commerce-backoffice/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// StockConflictError is returned when a conditional stock decrement matches
// no row, meaning available stock was below the requested quantity.
type StockConflictError struct {
	VariantID string
	Requested int
}

func (e *StockConflictError) Error() string {
	return fmt.Sprintf("insufficient stock for variant %s (requested %d)", e.VariantID, e.Requested)
}

// ErrDuplicateNumber is returned when an insert trips the unique constraint
// on order_number or invoice_number. Two concurrent generators drew the same
// suffix; the caller should regenerate and retry.
var ErrDuplicateNumber = errors.New("order or invoice number already taken")

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// FindStore retrieves a store by ID, nil if absent
func (s *Store) FindStore(ctx context.Context, id string) (*models.Store, error) {
	var st models.Store
	err := s.db.GetContext(ctx, &st, "SELECT * FROM stores WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// FindVariantsByIDs retrieves multiple variants in one batch lookup
func (s *Store) FindVariantsByIDs(ctx context.Context, ids []string) ([]models.Variant, error) {
	if len(ids) == 0 {
		return []models.Variant{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM variants WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var variants []models.Variant
	err = s.db.SelectContext(ctx, &variants, query, args...)
	return variants, err
}

// ListVariants retrieves every variant, used to warm the stock cache
func (s *Store) ListVariants(ctx context.Context) ([]models.Variant, error) {
	var variants []models.Variant
	err := s.db.SelectContext(ctx, &variants, "SELECT * FROM variants ORDER BY id")
	return variants, err
}

// FindLocationByPincode resolves a pincode to its delivery location, joined
// with the group's delivery estimate. DeliveryDays is 0 when the group
// carries none. Returns nil if the pincode is unknown for the store.
func (s *Store) FindLocationByPincode(ctx context.Context, storeID, pincode string) (*models.Location, error) {
	var loc models.Location
	err := s.db.GetContext(ctx, &loc, `
		SELECT l.id, l.store_id, l.pincode, l.location_group_id,
		       COALESCE(g.delivery_days, 0) AS delivery_days
		FROM locations l
		JOIN location_groups g ON g.id = l.location_group_id
		WHERE l.store_id = $1 AND l.pincode = $2`,
		storeID, pincode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// ReleaseStock restores stock for a cancelled or never-completed reservation
func (s *Store) ReleaseStock(ctx context.Context, variantID string, quantity int) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE variants SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, variantID)
	return err
}

// SetFulfilled reconciles a variant's stock once payment lands. The intake
// reservation already subtracted the sold quantity, so while the reservation
// is still held this only clamps drifted stock back to zero. When the
// reservation was released (order cancelled before a late notification) the
// sold quantity is re-applied, bounded at zero.
func (s *Store) SetFulfilled(ctx context.Context, variantID string, quantity int, reservationHeld bool) error {
	var res sql.Result
	var err error
	if reservationHeld {
		res, err = s.db.ExecContext(ctx,
			"UPDATE variants SET stock = GREATEST(stock, 0), updated_at = NOW() WHERE id = $1",
			variantID)
	} else {
		res, err = s.db.ExecContext(ctx,
			"UPDATE variants SET stock = GREATEST(stock - $1, 0), updated_at = NOW() WHERE id = $2",
			quantity, variantID)
	}
	if err != nil {
		return err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("variant not found: %s", variantID)
	}
	return nil
}

// reserveStockTx decrements stock inside the caller's transaction. The
// condition makes check-then-decrement a single atomic statement; zero rows
// affected means another reservation got there first.
func reserveStockTx(ctx context.Context, tx *sqlx.Tx, variantID string, quantity int) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE variants SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, variantID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return &StockConflictError{VariantID: variantID, Requested: quantity}
	}
	return nil
}
