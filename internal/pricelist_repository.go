package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/tradeschema"
	"go.uber.org/zap"
)

type pricelistPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// PostgresPricelistRepository stores pricelist entries as JSONB rows keyed
// by SKU. Only SKUs accepted by tradeschema.IsValidSKU reach the table.
type PostgresPricelistRepository struct {
	pool    pricelistPool
	table   string
	nowFunc func() time.Time
}

var _ tradeschema.PricelistStore = (*PostgresPricelistRepository)(nil)

// NewPostgresPricelistRepository creates a repository over table.
func NewPostgresPricelistRepository(pool pricelistPool, table string) *PostgresPricelistRepository {
	return &PostgresPricelistRepository{
		pool:    pool,
		table:   table,
		nowFunc: time.Now,
	}
}

func (r *PostgresPricelistRepository) withClock(now func() time.Time) {
	if now == nil {
		return
	}
	r.nowFunc = now
}

func (r *PostgresPricelistRepository) nowUnix() int64 {
	if r.nowFunc == nil {
		return time.Now().Unix()
	}
	return r.nowFunc().Unix()
}

// EnsureTable creates the pricelist table when it does not exist.
func (r *PostgresPricelistRepository) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	sku TEXT PRIMARY KEY,
	enabled BOOLEAN NOT NULL,
	intent SMALLINT NOT NULL,
	entry JSONB NOT NULL,
	updated_at BIGINT NOT NULL
)`, sanitizeIdentifier(r.table))
	if _, err := r.pool.Exec(ctx, query); err != nil {
		return tradeschema.NewStorageError("failed to create pricelist table", err)
	}
	return nil
}

func (r *PostgresPricelistRepository) upsertQuery() string {
	return fmt.Sprintf(
		`INSERT INTO %s (sku, enabled, intent, entry, updated_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (sku)
			DO UPDATE SET enabled = EXCLUDED.enabled, intent = EXCLUDED.intent, entry = EXCLUDED.entry, updated_at = EXCLUDED.updated_at`,
		sanitizeIdentifier(r.table),
	)
}

func upsertArgs(entry *tradeschema.PriceEntry, now int64) ([]any, error) {
	if entry == nil {
		return nil, tradeschema.NewTradeError(tradeschema.ErrorTypeValidation, tradeschema.ErrCodeValidationFailed, "entry is nil")
	}
	if !tradeschema.IsValidSKU(entry.SKU) {
		_, cause := tradeschema.ParseSKU(entry.SKU)
		return nil, tradeschema.NewInvalidSKUError("sku", entry.SKU, cause)
	}
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, tradeschema.NewTradeError(tradeschema.ErrorTypeInternal, tradeschema.ErrCodeInternalError, "failed to encode entry").WithCause(err)
	}
	return []any{entry.SKU, entry.Enabled, int16(entry.Intent), payload, now}, nil
}

// Upsert inserts or replaces the entry for entry.SKU.
func (r *PostgresPricelistRepository) Upsert(ctx context.Context, entry *tradeschema.PriceEntry) error {
	args, err := upsertArgs(entry, r.nowUnix())
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, r.upsertQuery(), args...); err != nil {
		return tradeschema.NewStorageError("failed to upsert pricelist entry", err).WithDetail("sku", entry.SKU)
	}
	return nil
}

// UpsertMany writes all entries in one transaction. Nothing is written when
// any entry is rejected.
func (r *PostgresPricelistRepository) UpsertMany(ctx context.Context, entries []*tradeschema.PriceEntry) error {
	if len(entries) == 0 {
		return nil
	}

	now := r.nowUnix()
	rows := make([][]any, 0, len(entries))
	for _, entry := range entries {
		args, err := upsertArgs(entry, now)
		if err != nil {
			return err
		}
		rows = append(rows, args)
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return tradeschema.NewStorageError("failed to begin transaction", err)
	}
	defer func() {
		if err := tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			zap.S().Warnw("pricelist rollback failed", "error", err)
		}
	}()

	query := r.upsertQuery()
	for _, args := range rows {
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return tradeschema.NewStorageError("failed to upsert pricelist entry", err).WithDetail("sku", args[0])
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return tradeschema.NewStorageError("failed to commit pricelist batch", err)
	}
	return nil
}

// Get returns the entry stored for sku.
func (r *PostgresPricelistRepository) Get(ctx context.Context, sku string) (*tradeschema.PriceEntry, error) {
	if !tradeschema.IsValidSKU(sku) {
		_, cause := tradeschema.ParseSKU(sku)
		return nil, tradeschema.NewInvalidSKUError("sku", sku, cause)
	}

	query := fmt.Sprintf("SELECT entry FROM %s WHERE sku = $1", sanitizeIdentifier(r.table))
	var payload []byte
	if err := r.pool.QueryRow(ctx, query, sku).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tradeschema.NewPriceNotFoundError(sku)
		}
		return nil, tradeschema.NewStorageError("failed to load pricelist entry", err).WithDetail("sku", sku)
	}
	return decodeEntry(payload)
}

// List returns every stored entry ordered by SKU.
func (r *PostgresPricelistRepository) List(ctx context.Context) ([]*tradeschema.PriceEntry, error) {
	query := fmt.Sprintf("SELECT entry FROM %s ORDER BY sku", sanitizeIdentifier(r.table))
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, tradeschema.NewStorageError("failed to list pricelist", err)
	}
	defer rows.Close()

	entries := make([]*tradeschema.PriceEntry, 0)
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, tradeschema.NewStorageError("failed to scan pricelist row", err)
		}
		entry, err := decodeEntry(payload)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, tradeschema.NewStorageError("error iterating pricelist rows", err)
	}
	return entries, nil
}

// Delete removes the entry for sku.
func (r *PostgresPricelistRepository) Delete(ctx context.Context, sku string) error {
	if !tradeschema.IsValidSKU(sku) {
		_, cause := tradeschema.ParseSKU(sku)
		return tradeschema.NewInvalidSKUError("sku", sku, cause)
	}

	query := fmt.Sprintf("DELETE FROM %s WHERE sku = $1", sanitizeIdentifier(r.table))
	tag, err := r.pool.Exec(ctx, query, sku)
	if err != nil {
		return tradeschema.NewStorageError("failed to delete pricelist entry", err).WithDetail("sku", sku)
	}
	if tag.RowsAffected() == 0 {
		return tradeschema.NewPriceNotFoundError(sku)
	}
	return nil
}

func decodeEntry(payload []byte) (*tradeschema.PriceEntry, error) {
	var entry tradeschema.PriceEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, tradeschema.NewTradeError(tradeschema.ErrorTypeInternal, tradeschema.ErrCodeInternalError, "stored entry is not valid JSON").WithCause(err)
	}
	return &entry, nil
}
