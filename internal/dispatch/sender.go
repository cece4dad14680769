package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"notification-engine/internal/common/config"
	"notification-engine/internal/common/errors"
	"notification-engine/internal/common/logger"
	"notification-engine/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
)

// ============================================================================
// CAPABILITY
// ============================================================================

// Capability names the push channel resolved at startup.
type Capability string

const (
	CapabilityPush  Capability = "push"
	CapabilityEmail Capability = "email"
	CapabilityNone  Capability = "none"
)

// SendOptions carry presentation hints alongside the notification.
type SendOptions struct {
	RequireInteraction bool
	Silent             bool
	Icon               string
	Badge              string
}

// Handle represents one delivered push notification.
type Handle struct {
	Tag string
}

// Close withdraws the notification from the push channel. The SNS and
// SES channels cannot retract a delivered message, so Close is a no-op
// there; it exists for senders that can.
func (h *Handle) Close() {}

// Sender delivers a notification over one capability channel.
type Sender interface {
	Capability() Capability
	Send(ctx context.Context, n models.Notification, opts SendOptions) (*Handle, error)
}

// ============================================================================
// SNS PUSH SENDER
// ============================================================================

// SNSAPI is the slice of the SNS client the push sender uses.
type SNSAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender publishes notifications to an SNS topic that fans out to
// device push endpoints.
type SNSSender struct {
	client   SNSAPI
	topicARN string
	logger   logger.Logger
}

func NewSNSSender(client SNSAPI, topicARN string, log logger.Logger) *SNSSender {
	return &SNSSender{
		client:   client,
		topicARN: topicARN,
		logger:   log,
	}
}

func (s *SNSSender) Capability() Capability { return CapabilityPush }

func (s *SNSSender) Send(ctx context.Context, n models.Notification, opts SendOptions) (*Handle, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"id":                 n.ID,
		"tag":                n.Tag,
		"title":              n.Title,
		"body":               n.Body,
		"type":               string(n.Type),
		"priority":           string(n.Priority),
		"requireInteraction": opts.RequireInteraction,
		"silent":             opts.Silent,
		"icon":               opts.Icon,
		"badge":              opts.Badge,
		"data":               n.Data,
	})
	if err != nil {
		return nil, errors.NewNotificationSendFailedError("push", err)
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Message:  aws.String(string(payload)),
		MessageAttributes: map[string]snstypes.MessageAttributeValue{
			"tag": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.Tag),
			},
			"priority": {
				DataType:    aws.String("String"),
				StringValue: aws.String(string(n.Priority)),
			},
			"userId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.UserID),
			},
		},
	})
	if err != nil {
		return nil, errors.NewNotificationSendFailedError("push", err)
	}

	return &Handle{Tag: n.Tag}, nil
}

// ============================================================================
// SES EMAIL SENDER
// ============================================================================

// SESAPI is the slice of the SES client the email sender uses.
type SESAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// ContactResolver looks up the recipient address for a user.
type ContactResolver interface {
	Email(ctx context.Context, userID string) (string, error)
}

// SESSender is the fallback channel when no push capability is
// available.
type SESSender struct {
	client   SESAPI
	contacts ContactResolver
	from     string
	logger   logger.Logger
}

func NewSESSender(client SESAPI, contacts ContactResolver, from string, log logger.Logger) *SESSender {
	return &SESSender{
		client:   client,
		contacts: contacts,
		from:     from,
		logger:   log,
	}
}

func (s *SESSender) Capability() Capability { return CapabilityEmail }

func (s *SESSender) Send(ctx context.Context, n models.Notification, opts SendOptions) (*Handle, error) {
	to, err := s.contacts.Email(ctx, n.UserID)
	if err != nil {
		return nil, errors.NewNotificationSendFailedError("email", err)
	}

	body := n.Body
	if n.DueDate != nil {
		body = fmt.Sprintf("%s\n\nDue: %s", n.Body, n.DueDate.Format("2006-01-02"))
	}

	_, err = s.client.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(n.Title)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(body)},
			},
		},
	})
	if err != nil {
		return nil, errors.NewNotificationSendFailedError("email", err)
	}

	return &Handle{Tag: n.Tag}, nil
}

// ============================================================================
// NULL SENDER
// ============================================================================

// NullSender is used when no delivery capability is configured. The
// dispatcher still records notifications in the in-app ledger.
type NullSender struct{}

func (NullSender) Capability() Capability { return CapabilityNone }

func (NullSender) Send(ctx context.Context, n models.Notification, opts SendOptions) (*Handle, error) {
	return nil, errors.NewPermissionDeniedError("no delivery capability configured")
}

// ============================================================================
// CAPABILITY RESOLUTION
// ============================================================================

// ResolveSender checks the configured channels once at startup and
// returns the best available sender: push, then email, then none.
func ResolveSender(ctx context.Context, cfg config.SendersConfig, contacts ContactResolver, log logger.Logger) (Sender, error) {
	if cfg.Push.Enabled && cfg.Push.TopicARN != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		log.Info("push delivery enabled", map[string]interface{}{"topic": cfg.Push.TopicARN})
		return NewSNSSender(sns.NewFromConfig(awsCfg), cfg.Push.TopicARN, log), nil
	}

	if cfg.Email.Enabled && cfg.Email.FromEmail != "" && contacts != nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		log.Info("email delivery enabled", map[string]interface{}{"from": cfg.Email.FromEmail})
		return NewSESSender(ses.NewFromConfig(awsCfg), contacts, cfg.Email.FromEmail, log), nil
	}

	log.Warn("no delivery capability configured, notifications are in-app only", nil)
	return NullSender{}, nil
}
