package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"

	"github.com/msggate/control-plane/internal/models"
)

// NATS subjects consumed by the mail delivery worker
const (
	SubjectVerification  = "notify.email.verification"
	SubjectPasswordReset = "notify.email.password_reset"
	SubjectExpiryWarning = "notify.email.expiry_warning"
)

// EmailEvent is the wire format of an outbound notification
type EmailEvent struct {
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	Token     string    `json:"token,omitempty"`
	Plan      string    `json:"plan,omitempty"`
	ExpiresAt time.Time `json:"expiresAt,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes notification events to NATS for the mail worker.
// With a nil connection it degrades to logging only, which keeps
// standalone deployments working without a broker.
type Publisher struct {
	nc *nats.Conn
}

// NewPublisher creates a new notification publisher
func NewPublisher(nc *nats.Conn) *Publisher {
	return &Publisher{nc: nc}
}

// SendVerification publishes an email-verification notification
func (p *Publisher) SendVerification(ctx context.Context, email, username, token string) error {
	return p.publish(SubjectVerification, &EmailEvent{
		Email:    email,
		Username: username,
		Token:    token,
	})
}

// SendPasswordReset publishes a password-reset notification
func (p *Publisher) SendPasswordReset(ctx context.Context, email, username, token string) error {
	return p.publish(SubjectPasswordReset, &EmailEvent{
		Email:    email,
		Username: username,
		Token:    token,
	})
}

// SendExpiryWarning publishes a subscription-expiry warning
func (p *Publisher) SendExpiryWarning(ctx context.Context, sub *models.SubscriptionView) error {
	return p.publish(SubjectExpiryWarning, &EmailEvent{
		Email:     sub.AccountEmail,
		Username:  sub.AccountUsername,
		Plan:      string(sub.Plan),
		ExpiresAt: sub.PeriodEnd,
	})
}

func (p *Publisher) publish(subject string, event *EmailEvent) error {
	event.Timestamp = time.Now()

	if p.nc == nil {
		log.Debug().Str("subject", subject).Str("email", event.Email).
			Msg("NATS not connected, notification dropped")
		return nil
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	return nil
}
