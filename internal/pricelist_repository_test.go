package internal

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/tradeschema"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePriceEntry(sku string) *tradeschema.PriceEntry {
	return &tradeschema.PriceEntry{
		SKU:       sku,
		Enabled:   true,
		Autoprice: true,
		Min:       0,
		Max:       1,
		Intent:    tradeschema.IntentBank,
		Buy:       &tradeschema.Currencies{Keys: 0, Metal: 1.33},
		Sell:      &tradeschema.Currencies{Keys: 0, Metal: 1.44},
	}
}

func newMockRepository(t *testing.T) (*PostgresPricelistRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	mock.MatchExpectationsInOrder(true)

	repo := NewPostgresPricelistRepository(mock, "pricelist")
	fixed := time.Date(2024, 3, 4, 5, 6, 7, 0, time.UTC)
	repo.withClock(func() time.Time { return fixed })
	return repo, mock
}

func TestPricelistRepository_EnsureTable(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`^CREATE TABLE IF NOT EXISTS "pricelist"`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, repo.EnsureTable(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_Upsert(t *testing.T) {
	repo, mock := newMockRepository(t)
	entry := samplePriceEntry("5021;6")
	payload, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectExec("^"+regexp.QuoteMeta(repo.upsertQuery())+"$").
		WithArgs("5021;6", true, int16(tradeschema.IntentBank), payload, int64(1709528767)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), entry))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_UpsertRejectsInvalidSKU(t *testing.T) {
	repo, mock := newMockRepository(t)

	err := repo.Upsert(context.Background(), samplePriceEntry("5021;6;uncraftable;"))
	require.Error(t, err)
	assert.True(t, tradeschema.IsInvalidSKUError(err))

	var skuErr *tradeschema.SKUError
	assert.True(t, errors.As(err, &skuErr))
	require.NoError(t, mock.ExpectationsWereMet(), "no statement should reach the database")
}

func TestPricelistRepository_UpsertStorageFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`^INSERT INTO "pricelist"`).
		WithArgs("5021;6", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("connection reset"))

	err := repo.Upsert(context.Background(), samplePriceEntry("5021;6"))
	require.Error(t, err)
	var tradeErr *tradeschema.TradeError
	require.True(t, errors.As(err, &tradeErr))
	assert.Equal(t, tradeschema.ErrCodeStorageFailed, tradeErr.Code)
	assert.Equal(t, "5021;6", tradeErr.Details["sku"])
	assert.ErrorContains(t, err, "connection reset")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_UpsertMany(t *testing.T) {
	repo, mock := newMockRepository(t)
	entries := []*tradeschema.PriceEntry{
		samplePriceEntry("5021;6"),
		samplePriceEntry("200;11;australium;kt-3"),
	}

	mock.ExpectBegin()
	for _, entry := range entries {
		mock.ExpectExec(`^INSERT INTO "pricelist"`).
			WithArgs(entry.SKU, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), int64(1709528767)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, repo.UpsertMany(context.Background(), entries))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_UpsertManyRejectsBeforeBegin(t *testing.T) {
	repo, mock := newMockRepository(t)
	entries := []*tradeschema.PriceEntry{
		samplePriceEntry("5021;6"),
		samplePriceEntry("not-a-sku"),
	}

	err := repo.UpsertMany(context.Background(), entries)
	require.Error(t, err)
	assert.True(t, tradeschema.IsInvalidSKUError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_UpsertManyRollsBackOnFailure(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectBegin()
	mock.ExpectExec(`^INSERT INTO "pricelist"`).
		WithArgs("5021;6", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err := repo.UpsertMany(context.Background(), []*tradeschema.PriceEntry{samplePriceEntry("5021;6")})
	require.Error(t, err)
	assert.ErrorContains(t, err, "deadlock detected")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_Get(t *testing.T) {
	repo, mock := newMockRepository(t)
	entry := samplePriceEntry("5021;6")
	payload, err := json.Marshal(entry)
	require.NoError(t, err)

	mock.ExpectQuery(`^SELECT entry FROM "pricelist" WHERE sku = \$1$`).
		WithArgs("5021;6").
		WillReturnRows(pgxmock.NewRows([]string{"entry"}).AddRow(payload))

	got, err := repo.Get(context.Background(), "5021;6")
	require.NoError(t, err)
	assert.Equal(t, entry, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_GetNotFound(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`^SELECT entry FROM "pricelist"`).
		WithArgs("5021;6").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.Get(context.Background(), "5021;6")
	require.Error(t, err)
	assert.True(t, tradeschema.IsNotFoundError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_List(t *testing.T) {
	repo, mock := newMockRepository(t)
	first, err := json.Marshal(samplePriceEntry("200;11;australium"))
	require.NoError(t, err)
	second, err := json.Marshal(samplePriceEntry("5021;6"))
	require.NoError(t, err)

	mock.ExpectQuery(`^SELECT entry FROM "pricelist" ORDER BY sku$`).
		WillReturnRows(pgxmock.NewRows([]string{"entry"}).AddRow(first).AddRow(second))

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "200;11;australium", entries[0].SKU)
	assert.Equal(t, "5021;6", entries[1].SKU)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPricelistRepository_ListEmpty(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery(`^SELECT entry FROM "pricelist"`).
		WillReturnRows(pgxmock.NewRows([]string{"entry"}))

	entries, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestPricelistRepository_Delete(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectExec(`^DELETE FROM "pricelist" WHERE sku = \$1$`).
		WithArgs("5021;6").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`^DELETE FROM "pricelist"`).
		WithArgs("5002;6").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.Delete(context.Background(), "5021;6"))

	err := repo.Delete(context.Background(), "5002;6")
	require.Error(t, err)
	assert.True(t, tradeschema.IsNotFoundError(err))

	err = repo.Delete(context.Background(), "5002;16")
	assert.True(t, tradeschema.IsInvalidSKUError(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
