// internal/payments/store.go
package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"donation-payments/internal/gateway/status"
)

// ErrNotFound is returned by stores when no transaction matches.
var ErrNotFound = errors.New("transaction not found")

// TransactionStore is the storage collaborator for transactions. It must
// provide atomic single-row reads and a single atomic status update.
type TransactionStore interface {
	FindByGatewayReference(ctx context.Context, reference string) (*Transaction, error)
	FindByID(ctx context.Context, id string) (*Transaction, error)
	UpdateStatus(ctx context.Context, id string, newStatus status.Status) error
}

// PostgresTransactionStore implements TransactionStore on PostgreSQL.
type PostgresTransactionStore struct {
	db *sql.DB
}

func NewPostgresTransactionStore(db *sql.DB) *PostgresTransactionStore {
	return &PostgresTransactionStore{db: db}
}

const transactionColumns = `id, COALESCE(gateway_reference, ''), status, amount, payment_method, contributor_id, company_id, due_date, created_at`

func scanTransaction(row *sql.Row) (*Transaction, error) {
	var tx Transaction
	err := row.Scan(
		&tx.ID, &tx.GatewayReference, &tx.Status, &tx.Amount,
		&tx.PaymentMethod, &tx.ContributorID, &tx.CompanyID,
		&tx.DueDate, &tx.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan transaction: %w", err)
	}
	return &tx, nil
}

func (s *PostgresTransactionStore) FindByGatewayReference(ctx context.Context, reference string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE gateway_reference = $1`
	return scanTransaction(s.db.QueryRowContext(ctx, query, reference))
}

func (s *PostgresTransactionStore) FindByID(ctx context.Context, id string) (*Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransaction(s.db.QueryRowContext(ctx, query, id))
}

// UpdateStatus overwrites the stored status. Last reconciled report wins;
// there is no merge or ordering logic on this column.
func (s *PostgresTransactionStore) UpdateStatus(ctx context.Context, id string, newStatus status.Status) error {
	query := `UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = $2`
	result, err := s.db.ExecContext(ctx, query, string(newStatus), id)
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update transaction status: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
