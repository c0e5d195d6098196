// Package delivery sends security notifications out of band: email via
// SES for every security-typed notification, SMS via SNS for
// high-priority ones. Delivery is best-effort and subscribes to store
// Created events; a failed send never affects the create path.
package delivery

import (
	"context"
	"database/sql"
	"fmt"

	"notification-center/internal/common/config"
	apperrors "notification-center/internal/common/errors"
	"notification-center/internal/common/logger"
	"notification-center/internal/common/metrics"
	"notification-center/internal/models"
	"notification-center/internal/store"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
)

// EmailSender is the SES surface the dispatcher needs.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is the SNS surface the dispatcher needs.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

// Dispatcher routes notifications to out-of-band channels.
type Dispatcher struct {
	db    *sql.DB
	email EmailSender
	sms   SMSSender
	cfg   config.DeliveryConfig
	log   logger.Logger
}

func New(db *sql.DB, email EmailSender, sms SMSSender, cfg config.DeliveryConfig, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		db:    db,
		email: email,
		sms:   sms,
		cfg:   cfg,
		log:   log.WithFields(map[string]interface{}{"component": "delivery"}),
	}
}

// Attach subscribes the dispatcher to the store's change feed. The
// returned func detaches it.
func (d *Dispatcher) Attach(st store.NotificationStore) func() {
	return st.Subscribe(func(ev models.ChangeEvent) {
		if ev.Type != models.EventCreated {
			return
		}
		// Network sends must not block the event path.
		go d.Deliver(context.Background(), ev.Notification)
	})
}

// Deliver sends the notification through every applicable channel.
// Failures are logged and counted only.
func (d *Dispatcher) Deliver(ctx context.Context, n models.Notification) {
	wantEmail := d.cfg.EmailEnabled && d.email != nil && n.Type == models.TypeSecurity
	wantSMS := d.cfg.SMSEnabled && d.sms != nil && n.Priority == "high"
	if !wantEmail && !wantSMS {
		return
	}

	email, phone, err := d.recipient(ctx, n.UserID)
	if err != nil {
		d.log.Warn("recipient lookup failed", map[string]interface{}{
			"userId": n.UserID,
			"error":  err.Error(),
		})
		return
	}

	if wantEmail && email != "" {
		if err := d.sendEmail(ctx, email, n); err != nil {
			metrics.DeliveryAttempts.WithLabelValues("email", "error").Inc()
			d.log.Warn("email delivery failed", map[string]interface{}{
				"userId": n.UserID,
				"error":  apperrors.NewDeliveryFailedError("email", err).Error(),
			})
		} else {
			metrics.DeliveryAttempts.WithLabelValues("email", "ok").Inc()
		}
	}

	if wantSMS && phone != "" {
		if err := d.sendSMS(ctx, phone, n); err != nil {
			metrics.DeliveryAttempts.WithLabelValues("sms", "error").Inc()
			d.log.Warn("sms delivery failed", map[string]interface{}{
				"userId": n.UserID,
				"error":  apperrors.NewDeliveryFailedError("sms", err).Error(),
			})
		} else {
			metrics.DeliveryAttempts.WithLabelValues("sms", "ok").Inc()
		}
	}
}

// recipient looks up the user's contact points. Empty strings mean the
// user has not registered that channel.
func (d *Dispatcher) recipient(ctx context.Context, userID string) (email, phone string, err error) {
	var e, p sql.NullString
	err = d.db.QueryRowContext(ctx,
		`SELECT email, phone FROM users WHERE id = $1`, userID).Scan(&e, &p)
	if err == sql.ErrNoRows {
		return "", "", nil
	}
	if err != nil {
		return "", "", err
	}
	return e.String, p.String, nil
}

func (d *Dispatcher) sendEmail(ctx context.Context, to string, n models.Notification) error {
	subject := fmt.Sprintf("Security notice: %s", n.Title)
	_, err := d.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(d.cfg.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{to},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(n.Message)},
			},
		},
	})
	return err
}

func (d *Dispatcher) sendSMS(ctx context.Context, phone string, n models.Notification) error {
	_, err := d.sms.Publish(ctx, &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(fmt.Sprintf("%s: %s", n.Title, n.Message)),
	})
	return err
}
