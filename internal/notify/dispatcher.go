// internal/notify/dispatcher.go
package notify

import (
	"context"
	"fmt"
	"time"

	"donation-payments/internal/common/logger"
	"donation-payments/internal/common/metrics"
)

// Dispatcher evaluates the active rules and delivers the notifications
// that are due today, deduplicating against the notification log.
type Dispatcher struct {
	rules      RuleStore
	candidates CandidateStore
	logs       LogStore
	channels   map[string]Channel
	auditor    *Auditor
	logger     logger.Logger
	now        func() time.Time
}

func NewDispatcher(rules RuleStore, candidates CandidateStore, logs LogStore, channels []Channel, log logger.Logger) *Dispatcher {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		byName[ch.Name()] = ch
	}
	return &Dispatcher{
		rules:      rules,
		candidates: candidates,
		logs:       logs,
		channels:   byName,
		logger:     log,
		now:        time.Now,
	}
}

// WithAuditor enables best-effort audit indexing of delivery logs.
func (d *Dispatcher) WithAuditor(a *Auditor) *Dispatcher {
	d.auditor = a
	return d
}

// WithClock overrides the wall clock, for tests.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// dedupKey identifies one logical notification: a rule firing on a
// calendar day. Every channel attempt for that firing shares the key.
func dedupKey(rule *Rule, day time.Time) string {
	return fmt.Sprintf("%s_%s_%s", rule.EventTrigger, rule.ID, formatDay(day))
}

// targetDate resolves the date window a rule queries. Reminders look
// DaysOffset ahead of today, overdue follow-ups the same distance back.
// The remaining triggers match events that happened today.
func targetDate(rule *Rule, today time.Time) time.Time {
	switch rule.EventTrigger {
	case TriggerPaymentDueReminder:
		return today.AddDate(0, 0, rule.DaysOffset)
	case TriggerPaymentOverdue:
		return today.AddDate(0, 0, -rule.DaysOffset)
	default:
		return today
	}
}

// Run evaluates every active rule once. Rule and recipient failures are
// isolated: a failure is logged and counted, then the run moves on.
func (d *Dispatcher) Run(ctx context.Context) (*RunSummary, error) {
	started := d.now()
	summary := newRunSummary(started)

	rules, err := d.rules.ListActive(ctx)
	if err != nil {
		return summary, err
	}

	for i := range rules {
		rule := &rules[i]
		summary.RulesEvaluated++

		if err := d.runRule(ctx, rule, started, summary); err != nil {
			d.logger.WithError(err).Error("rule evaluation failed", map[string]interface{}{
				"rule_id": rule.ID,
				"trigger": rule.EventTrigger,
			})
		}
	}

	summary.Duration = d.now().Sub(started)
	metrics.DispatchRunDuration.Observe(summary.Duration.Seconds())

	d.logger.Info("dispatch run finished", map[string]interface{}{
		"rules_evaluated":     summary.RulesEvaluated,
		"candidates":          summary.Candidates,
		"notified":            summary.Notified,
		"deduped":             summary.Deduped,
		"all_channels_failed": summary.AllChannelsFailed,
		"duration":            summary.Duration.String(),
	})
	return summary, nil
}

func (d *Dispatcher) runRule(ctx context.Context, rule *Rule, today time.Time, summary *RunSummary) error {
	window := targetDate(rule, today)
	key := dedupKey(rule, today)

	candidates, err := d.candidates.FindCandidates(ctx, rule.EventTrigger, window)
	if err != nil {
		return err
	}
	summary.Candidates += len(candidates)
	if len(candidates) == 0 {
		return nil
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ContributorID
	}
	alreadySent, err := d.logs.SentRecipients(ctx, ids, key)
	if err != nil {
		return err
	}

	for i := range candidates {
		candidate := &candidates[i]
		if alreadySent[candidate.ContributorID] {
			summary.Deduped++
			metrics.NotificationsDeduped.Inc()
			continue
		}
		d.notify(ctx, rule, candidate, key, summary)
	}
	return nil
}

// notify renders the message and attempts every enabled channel. Each
// attempt gets its own log row; a recipient with no successful channel
// stays eligible for the next run because no sent row exists.
func (d *Dispatcher) notify(ctx context.Context, rule *Rule, candidate *Candidate, key string, summary *RunSummary) {
	message := RenderTemplate(rule.MessageTemplate, templateVars(candidate))

	var anySent bool
	for _, attempt := range d.enabledChannels(rule) {
		entry := &Log{
			RecipientID:      candidate.ContributorID,
			NotificationType: key,
			Channel:          attempt.channel.Name(),
			Recipient:        attempt.address(candidate),
			MessageContent:   message,
		}

		if err := attempt.channel.Send(ctx, candidate, message); err != nil {
			entry.Status = StatusFailed
			entry.ErrorMessage = err.Error()
			summary.ChannelFailed[entry.Channel]++
			metrics.NotificationsDispatched.WithLabelValues(entry.Channel, StatusFailed).Inc()
			d.logger.WithError(err).Warn("notification delivery failed", map[string]interface{}{
				"rule_id":   rule.ID,
				"channel":   entry.Channel,
				"recipient": candidate.ContributorID,
			})
		} else {
			entry.Status = StatusSent
			anySent = true
			summary.ChannelSent[entry.Channel]++
			metrics.NotificationsDispatched.WithLabelValues(entry.Channel, StatusSent).Inc()
		}

		if err := d.logs.Insert(ctx, entry); err != nil {
			d.logger.WithError(err).Error("notification log insert failed", map[string]interface{}{
				"rule_id":   rule.ID,
				"channel":   entry.Channel,
				"recipient": candidate.ContributorID,
			})
		}

		if d.auditor != nil {
			d.auditor.IndexLog(ctx, entry)
		}
	}

	if anySent {
		summary.Notified++
	} else {
		summary.AllChannelsFailed++
	}
}

type channelAttempt struct {
	channel Channel
	address func(*Candidate) string
}

func (d *Dispatcher) enabledChannels(rule *Rule) []channelAttempt {
	var attempts []channelAttempt
	if rule.SendViaEmail {
		if ch, ok := d.channels[ChannelEmail]; ok {
			attempts = append(attempts, channelAttempt{ch, func(c *Candidate) string { return c.Email }})
		}
	}
	if rule.SendViaWhatsapp {
		if ch, ok := d.channels[ChannelWhatsApp]; ok {
			attempts = append(attempts, channelAttempt{ch, func(c *Candidate) string { return c.Phone }})
		}
	}
	if rule.SendViaSMS {
		if ch, ok := d.channels[ChannelSMS]; ok {
			attempts = append(attempts, channelAttempt{ch, func(c *Candidate) string { return c.Phone }})
		}
	}
	return attempts
}
