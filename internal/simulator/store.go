// Package simulator is a local stand-in for the back office: product
// catalog, mobile money gateway, sales ledger and receipt printer.
package simulator

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fjod/go_pos/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrSaleNotFound    = errors.New("sale not found")
	ErrReceiptNotFound = errors.New("receipt not printed")
)

type Receipt struct {
	SaleID    string    `json:"sale_id"`
	Source    string    `json:"source"`
	PrintedAt time.Time `json:"printed_at"`
}

type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(dbPath string) (*Store, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		// wait for the single writer lock instead of failing with SQLITE_BUSY
		dsn += "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) RunMigrations(migrationsPath string) error {
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"sqlite",
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (s *Store) ListProducts(ctx context.Context, q string, inStockOnly bool, limit int) ([]domain.ProductSnapshot, error) {
	query := `SELECT id, name, sku, unit_price, stock_qty FROM products`
	var (
		where []string
		args  []any
	)
	if q = strings.TrimSpace(q); q != "" {
		where = append(where, `(name LIKE ? OR sku LIKE ?)`)
		pattern := "%" + q + "%"
		args = append(args, pattern, pattern)
	}
	if inStockOnly {
		where = append(where, `stock_qty > 0`)
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	products := []domain.ProductSnapshot{}
	for rows.Next() {
		var p domain.ProductSnapshot
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.UnitPrice, &p.StockQty); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// RecordSale stores draft and takes its quantities out of stock. A key that
// was already recorded returns the original sale id and changes nothing.
func (s *Store) RecordSale(ctx context.Context, key string, draft domain.SaleDraft) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var existing string
	err = tx.QueryRowContext(ctx, `SELECT id FROM sales WHERE idempotency_key = ?`, key).Scan(&existing)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("failed to look up idempotency key: %w", err)
	}

	for _, item := range draft.Items {
		res, err := tx.ExecContext(ctx,
			`UPDATE products SET stock_qty = MAX(stock_qty - ?, 0) WHERE id = ?`,
			item.Quantity, item.ProductID)
		if err != nil {
			return "", fmt.Errorf("failed to decrement stock: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return "", fmt.Errorf("failed to decrement stock: %w", err)
		}
		if n == 0 {
			return "", fmt.Errorf("%w: %d", ErrProductNotFound, item.ProductID)
		}
	}

	payload, err := json.Marshal(draft)
	if err != nil {
		return "", fmt.Errorf("failed to marshal sale: %w", err)
	}
	saleID := "SALE-" + uuid.NewString()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO sales (id, idempotency_key, total, payload, created_at) VALUES (?, ?, ?, ?, ?)`,
		saleID, key, draft.Totals.Total.StringFixed(2), string(payload), s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return "", fmt.Errorf("failed to insert sale: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit transaction: %w", err)
	}
	return saleID, nil
}

func (s *Store) GetSale(ctx context.Context, saleID string) (domain.Sale, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM sales WHERE id = ?`, saleID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Sale{}, ErrSaleNotFound
	}
	if err != nil {
		return domain.Sale{}, fmt.Errorf("failed to query sale: %w", err)
	}

	sale := domain.Sale{ID: saleID}
	if err := json.Unmarshal([]byte(payload), &sale.SaleDraft); err != nil {
		return domain.Sale{}, fmt.Errorf("failed to unmarshal sale: %w", err)
	}
	return sale, nil
}

// RecordReceipt marks the sale's receipt printed. Printing twice keeps the
// first record.
func (s *Store) RecordReceipt(ctx context.Context, saleID, source string) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM sales WHERE id = ?`, saleID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrSaleNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to query sale: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO receipts (sale_id, source, printed_at) VALUES (?, ?, ?) ON CONFLICT (sale_id) DO NOTHING`,
		saleID, source, s.now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to insert receipt: %w", err)
	}
	return nil
}

func (s *Store) GetReceipt(ctx context.Context, saleID string) (Receipt, error) {
	var (
		r         = Receipt{SaleID: saleID}
		printedAt string
	)
	err := s.db.QueryRowContext(ctx, `SELECT source, printed_at FROM receipts WHERE sale_id = ?`, saleID).
		Scan(&r.Source, &printedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Receipt{}, ErrReceiptNotFound
	}
	if err != nil {
		return Receipt{}, fmt.Errorf("failed to query receipt: %w", err)
	}
	r.PrintedAt, err = time.Parse(time.RFC3339Nano, printedAt)
	if err != nil {
		return Receipt{}, fmt.Errorf("invalid printed_at %q: %w", printedAt, err)
	}
	return r, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
