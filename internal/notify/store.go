// internal/notify/store.go
package notify

import (
	"context"
	"database/sql"
	"time"

	"donation-payments/internal/common/errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// RuleStore reads the externally authored notification rules.
type RuleStore interface {
	ListActive(ctx context.Context) ([]Rule, error)
}

// CandidateStore resolves the recipients a rule applies to on a given
// target date.
type CandidateStore interface {
	FindCandidates(ctx context.Context, trigger string, targetDate time.Time) ([]Candidate, error)
}

// LogStore persists delivery attempts and answers the dedup question.
type LogStore interface {
	// SentRecipients returns the contributor IDs among recipientIDs that
	// already have a sent row for notificationType. One query serves the
	// whole candidate set.
	SentRecipients(ctx context.Context, recipientIDs []string, notificationType string) (map[string]bool, error)
	Insert(ctx context.Context, log *Log) error
}

type PostgresRuleStore struct {
	db *sql.DB
}

func NewPostgresRuleStore(db *sql.DB) *PostgresRuleStore {
	return &PostgresRuleStore{db: db}
}

func (s *PostgresRuleStore) ListActive(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_trigger, message_template,
		       send_via_email, send_via_whatsapp, send_via_sms,
		       days_offset, is_active
		FROM notification_rules
		WHERE is_active = TRUE
		ORDER BY id`)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("notification_rules", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.EventTrigger, &r.MessageTemplate,
			&r.SendViaEmail, &r.SendViaWhatsapp, &r.SendViaSMS,
			&r.DaysOffset, &r.IsActive); err != nil {
			return nil, errors.NewQueryExecutionFailedError("notification_rules", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

type PostgresCandidateStore struct {
	db *sql.DB
}

func NewPostgresCandidateStore(db *sql.DB) *PostgresCandidateStore {
	return &PostgresCandidateStore{db: db}
}

// FindCandidates selects by trigger. Payment-driven triggers join the
// contributor to the transaction whose due date falls on targetDate;
// new-user matches contributors registered on that day.
func (s *PostgresCandidateStore) FindCandidates(ctx context.Context, trigger string, targetDate time.Time) ([]Candidate, error) {
	day := formatDay(targetDate)

	var query string
	switch trigger {
	case TriggerNewUser:
		query = `
			SELECT c.id, c.name, c.email, c.phone, 0, c.created_at, c.company_id
			FROM contributors c
			WHERE c.is_active = TRUE AND DATE(c.created_at) = $1`
	case TriggerPaymentReceived:
		query = `
			SELECT c.id, c.name, c.email, c.phone, t.amount, t.due_date, c.company_id
			FROM contributors c
			JOIN transactions t ON t.contributor_id = c.id
			WHERE c.is_active = TRUE AND t.status = 'approved' AND DATE(t.updated_at) = $1`
	case TriggerPaymentDueReminder, TriggerPaymentOverdue:
		query = `
			SELECT c.id, c.name, c.email, c.phone, t.amount, t.due_date, c.company_id
			FROM contributors c
			JOIN transactions t ON t.contributor_id = c.id
			WHERE c.is_active = TRUE AND t.status = 'pending' AND DATE(t.due_date) = $1`
	default:
		return nil, errors.NewInvalidPayloadError("unsupported event trigger: " + trigger)
	}

	rows, err := s.db.QueryContext(ctx, query, day)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("candidates", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ContributorID, &c.Name, &c.Email, &c.Phone,
			&c.Amount, &c.DueDate, &c.CompanyID); err != nil {
			return nil, errors.NewQueryExecutionFailedError("candidates", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

type PostgresLogStore struct {
	db *sql.DB
}

func NewPostgresLogStore(db *sql.DB) *PostgresLogStore {
	return &PostgresLogStore{db: db}
}

func (s *PostgresLogStore) SentRecipients(ctx context.Context, recipientIDs []string, notificationType string) (map[string]bool, error) {
	sent := make(map[string]bool, len(recipientIDs))
	if len(recipientIDs) == 0 {
		return sent, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT recipient_id
		FROM notification_logs
		WHERE notification_type = $1 AND status = 'sent' AND recipient_id = ANY($2)`,
		notificationType, pq.Array(recipientIDs))
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("notification_logs", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.NewQueryExecutionFailedError("notification_logs", err)
		}
		sent[id] = true
	}
	return sent, rows.Err()
}

func (s *PostgresLogStore) Insert(ctx context.Context, log *Log) error {
	if log.ID == "" {
		log.ID = uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notification_logs
			(id, recipient_id, notification_type, channel, status, recipient, message_content, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		log.ID, log.RecipientID, log.NotificationType, log.Channel, log.Status,
		log.Recipient, log.MessageContent, nullIfEmpty(log.ErrorMessage), log.CreatedAt)
	if err != nil {
		return errors.NewLogInsertFailedError(err)
	}
	return nil
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
