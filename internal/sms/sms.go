// Package sms carries one-time codes to the delivery channel. The actual
// gateway is an external collaborator; this package only publishes outbound
// messages and defines the worker-side provider seam.
package sms

import (
	"context"
	"encoding/json"
	"log"

	"github.com/citizone/authserver/internal/mq"
)

// Message is the wire payload for an outbound OTP SMS.
type Message struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// Publisher sends OTP messages to the configured broker channel. It
// satisfies the auth service's OTPSender port.
type Publisher struct {
	queue   *mq.MQ
	channel string
}

func NewPublisher(queue *mq.MQ, channel string) *Publisher {
	return &Publisher{queue: queue, channel: channel}
}

// Send enqueues the code for delivery. Broker errors propagate to the
// caller, which decides whether to surface them.
func (p *Publisher) Send(ctx context.Context, phone, code string) error {
	data, err := json.Marshal(Message{Phone: phone, Code: code})
	if err != nil {
		return err
	}
	_, err = p.queue.Publish(ctx, p.channel, data, map[string]string{"type": "otp"})
	return err
}

// Provider hands a composed SMS to a gateway. The worker consumes queued
// messages and calls a Provider per message.
type Provider interface {
	Deliver(ctx context.Context, phone, body string) error
}

// LogProvider is the development provider: it logs deliveries instead of
// hitting a gateway. Codes must not land in logs, so the body is masked.
type LogProvider struct{}

func (LogProvider) Deliver(_ context.Context, phone, body string) error {
	log.Printf("INFO: sms to %s: %s", phone, maskDigits(body))
	return nil
}

// Consume runs the worker loop: decode each queued message and deliver it.
func Consume(ctx context.Context, queue *mq.MQ, channel string, provider Provider) error {
	return queue.Subscribe(ctx, channel, func(ctx context.Context, msg mq.Message) error {
		var payload Message
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			log.Printf("WARN: dropping malformed sms message %s: %v", msg.ID, err)
			return nil
		}
		body := "Your Citizone verification code is " + payload.Code + ". It expires in 5 minutes."
		return provider.Deliver(ctx, payload.Phone, body)
	})
}

func maskDigits(body string) string {
	masked := []byte(body)
	for i, c := range masked {
		if c >= '0' && c <= '9' {
			masked[i] = '*'
		}
	}
	return string(masked)
}
