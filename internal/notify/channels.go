// internal/notify/channels.go
package notify

import (
	"context"
	"fmt"

	"donation-payments/internal/common/errors"
	cmnhttp "donation-payments/internal/common/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// Channel delivers one rendered message to one candidate. Implementations
// must be independent: a failure on one channel never blocks another.
type Channel interface {
	Name() string
	Send(ctx context.Context, c *Candidate, message string) error
}

// SESService is the surface of the SES client used here, kept narrow
// so tests can substitute a mock.
type SESService interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SNSService mirrors the SNS publish surface for the same reason.
type SNSService interface {
	Publish(ctx context.Context, input *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type EmailChannel struct {
	ses       SESService
	fromEmail string
	subject   string
}

func NewEmailChannel(sesClient SESService, fromEmail string) *EmailChannel {
	return &EmailChannel{
		ses:       sesClient,
		fromEmail: fromEmail,
		subject:   "Notificação de doação",
	}
}

func (e *EmailChannel) Name() string { return ChannelEmail }

func (e *EmailChannel) Send(ctx context.Context, c *Candidate, message string) error {
	if c.Email == "" {
		return errors.NewNotificationSendFailedError(ChannelEmail, fmt.Errorf("candidate %s has no email address", c.ContributorID))
	}

	input := &ses.SendEmailInput{
		Source: aws.String(e.fromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{c.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{
				Data:    aws.String(e.subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &sestypes.Body{
				Text: &sestypes.Content{
					Data:    aws.String(message),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := e.ses.SendEmail(ctx, input); err != nil {
		return errors.NewNotificationSendFailedError(ChannelEmail, err)
	}
	return nil
}

// WhatsAppChannel posts to the provider's message endpoint with a
// bearer token.
type WhatsAppChannel struct {
	http   *cmnhttp.Client
	apiURL string
	token  string
}

func NewWhatsAppChannel(httpClient *cmnhttp.Client, apiURL, token string) *WhatsAppChannel {
	return &WhatsAppChannel{http: httpClient, apiURL: apiURL, token: token}
}

func (w *WhatsAppChannel) Name() string { return ChannelWhatsApp }

type whatsAppMessage struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

func (w *WhatsAppChannel) Send(ctx context.Context, c *Candidate, message string) error {
	if c.Phone == "" {
		return errors.NewNotificationSendFailedError(ChannelWhatsApp, fmt.Errorf("candidate %s has no phone number", c.ContributorID))
	}

	headers := map[string]string{"Authorization": "Bearer " + w.token}
	status, err := w.http.PostJSON(ctx, w.apiURL, headers, whatsAppMessage{
		Phone:   c.Phone,
		Message: message,
	}, nil)
	if err != nil {
		return errors.NewNotificationSendFailedError(ChannelWhatsApp, err)
	}
	if status < 200 || status >= 300 {
		return errors.NewNotificationSendFailedError(ChannelWhatsApp, fmt.Errorf("provider responded with status %d", status))
	}
	return nil
}

type SMSChannel struct {
	sns      SNSService
	senderID string
}

func NewSMSChannel(snsClient SNSService, senderID string) *SMSChannel {
	return &SMSChannel{sns: snsClient, senderID: senderID}
}

func (s *SMSChannel) Name() string { return ChannelSMS }

func (s *SMSChannel) Send(ctx context.Context, c *Candidate, message string) error {
	if c.Phone == "" {
		return errors.NewNotificationSendFailedError(ChannelSMS, fmt.Errorf("candidate %s has no phone number", c.ContributorID))
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(c.Phone),
		Message:     aws.String(message),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(s.senderID),
			},
		},
	}

	if _, err := s.sns.Publish(ctx, input); err != nil {
		return errors.NewNotificationSendFailedError(ChannelSMS, err)
	}
	return nil
}
