// internal/payments/store_test.go
package payments

import (
	"context"
	"testing"
	"time"

	"donation-payments/internal/gateway/status"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transactionRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "gateway_reference", "status", "amount", "payment_method",
		"contributor_id", "company_id", "due_date", "created_at",
	})
}

func TestPostgresTransactionStore_FindByGatewayReference(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE gateway_reference = \$1`).
		WithArgs("ref-1").
		WillReturnRows(transactionRows().
			AddRow("tx-1", "ref-1", "pending", 150.0, "credit_card", "contrib-1", "company-1", now, now))

	store := NewPostgresTransactionStore(db)
	tx, err := store.FindByGatewayReference(context.Background(), "ref-1")
	require.NoError(t, err)
	assert.Equal(t, "tx-1", tx.ID)
	assert.Equal(t, status.Pending, tx.Status)
	assert.Equal(t, 150.0, tx.Amount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransactionStore_FindByGatewayReference_NotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE gateway_reference = \$1`).
		WithArgs("missing").
		WillReturnRows(transactionRows())

	store := NewPostgresTransactionStore(db)
	_, err = store.FindByGatewayReference(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPostgresTransactionStore_FindByID(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT .+ FROM transactions WHERE id = \$1`).
		WithArgs("tx-2").
		WillReturnRows(transactionRows().
			AddRow("tx-2", "", "approved", 75.5, "pix", "contrib-2", "company-1", now, now))

	store := NewPostgresTransactionStore(db)
	tx, err := store.FindByID(context.Background(), "tx-2")
	require.NoError(t, err)
	assert.Equal(t, status.Approved, tx.Status)
	assert.Empty(t, tx.GatewayReference)
}

func TestPostgresTransactionStore_UpdateStatus(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE transactions SET status = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs("approved", "tx-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewPostgresTransactionStore(db)
	err = store.UpdateStatus(context.Background(), "tx-1", status.Approved)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransactionStore_UpdateStatus_NoRowMatched(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE transactions SET status = \$1, updated_at = NOW\(\) WHERE id = \$2`).
		WithArgs("refunded", "ghost").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewPostgresTransactionStore(db)
	err = store.UpdateStatus(context.Background(), "ghost", status.Refunded)
	assert.ErrorIs(t, err, ErrNotFound)
}
