// internal/notify/models.go
package notify

import "time"

// Event triggers a rule can bind to.
const (
	TriggerNewUser            = "new-user"
	TriggerPaymentReceived    = "payment-received"
	TriggerPaymentDueReminder = "payment-due-reminder"
	TriggerPaymentOverdue     = "payment-overdue"
)

// Channels
const (
	ChannelEmail    = "email"
	ChannelWhatsApp = "whatsapp"
	ChannelSMS      = "sms"
)

// Log statuses
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Rule is an externally authored notification rule, read-only here.
// DaysOffset is added to today for due reminders and subtracted for
// overdue follow-ups.
type Rule struct {
	ID              string `json:"id"`
	EventTrigger    string `json:"eventTrigger"`
	MessageTemplate string `json:"messageTemplate"`
	SendViaEmail    bool   `json:"sendViaEmail"`
	SendViaWhatsapp bool   `json:"sendViaWhatsapp"`
	SendViaSMS      bool   `json:"sendViaSms"`
	DaysOffset      int    `json:"daysOffset"`
	IsActive        bool   `json:"isActive"`
}

// Candidate is a recipient matching a rule's date window.
type Candidate struct {
	ContributorID string    `json:"contributorId"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Amount        float64   `json:"amount"`
	DueDate       time.Time `json:"dueDate"`
	CompanyID     string    `json:"companyId"`
}

// Log is one notification delivery attempt. It is both the audit trail
// and the dedup record: a sent row for (recipient, notificationType)
// blocks future deliveries of the same logical notification.
type Log struct {
	ID               string    `json:"id"`
	RecipientID      string    `json:"recipientId"`
	NotificationType string    `json:"notificationType"`
	Channel          string    `json:"channel"`
	Status           string    `json:"status"`
	Recipient        string    `json:"recipient"`
	MessageContent   string    `json:"messageContent"`
	ErrorMessage     string    `json:"errorMessage,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
}

// RunSummary reports one dispatch run.
type RunSummary struct {
	RulesEvaluated    int            `json:"rulesEvaluated"`
	Candidates        int            `json:"candidates"`
	Notified          int            `json:"notified"`
	Deduped           int            `json:"deduped"`
	AllChannelsFailed int            `json:"allChannelsFailed"`
	ChannelSent       map[string]int `json:"channelSent"`
	ChannelFailed     map[string]int `json:"channelFailed"`
	StartedAt         time.Time      `json:"startedAt"`
	Duration          time.Duration  `json:"duration"`
}

func newRunSummary(startedAt time.Time) *RunSummary {
	return &RunSummary{
		ChannelSent:   map[string]int{},
		ChannelFailed: map[string]int{},
		StartedAt:     startedAt,
	}
}
