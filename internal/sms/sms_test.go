package sms

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/citizone/authserver/internal/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	published  []mq.Message
	queued     []mq.Message
	publishErr error
}

func (f *fakeBackend) Publish(_ context.Context, _ string, data []byte, attrs map[string]string) (string, error) {
	if f.publishErr != nil {
		return "", f.publishErr
	}
	f.published = append(f.published, mq.Message{ID: "msg-1", Data: data, Attributes: attrs})
	return "msg-1", nil
}

func (f *fakeBackend) Subscribe(ctx context.Context, _ string, handler mq.Handler) error {
	for _, msg := range f.queued {
		if err := handler(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeBackend) Close() error { return nil }

type recordingProvider struct {
	phones []string
	bodies []string
	err    error
}

func (r *recordingProvider) Deliver(_ context.Context, phone, body string) error {
	if r.err != nil {
		return r.err
	}
	r.phones = append(r.phones, phone)
	r.bodies = append(r.bodies, body)
	return nil
}

func TestPublisher_Send(t *testing.T) {
	backend := &fakeBackend{}
	publisher := NewPublisher(mq.New(backend), "sms.otp")

	err := publisher.Send(context.Background(), "5551234567", "654321")
	require.NoError(t, err)
	require.Len(t, backend.published, 1)

	var payload Message
	require.NoError(t, json.Unmarshal(backend.published[0].Data, &payload))
	assert.Equal(t, "5551234567", payload.Phone)
	assert.Equal(t, "654321", payload.Code)
	assert.Equal(t, "otp", backend.published[0].Attributes["type"])
}

func TestPublisher_SendBrokerError(t *testing.T) {
	backend := &fakeBackend{publishErr: errors.New("broker down")}
	publisher := NewPublisher(mq.New(backend), "sms.otp")

	err := publisher.Send(context.Background(), "5551234567", "654321")
	assert.Error(t, err)
}

func TestConsume_DeliversDecodedMessages(t *testing.T) {
	data, _ := json.Marshal(Message{Phone: "5551234567", Code: "654321"})
	backend := &fakeBackend{queued: []mq.Message{{ID: "m1", Data: data}}}
	provider := &recordingProvider{}

	err := Consume(context.Background(), mq.New(backend), "sms.otp", provider)
	require.NoError(t, err)
	require.Len(t, provider.phones, 1)
	assert.Equal(t, "5551234567", provider.phones[0])
	assert.Contains(t, provider.bodies[0], "654321")
}

func TestConsume_DropsMalformedMessages(t *testing.T) {
	backend := &fakeBackend{queued: []mq.Message{{ID: "bad", Data: []byte("not-json")}}}
	provider := &recordingProvider{}

	err := Consume(context.Background(), mq.New(backend), "sms.otp", provider)
	assert.NoError(t, err)
	assert.Empty(t, provider.phones)
}

func TestConsume_ProviderErrorPropagates(t *testing.T) {
	data, _ := json.Marshal(Message{Phone: "5551234567", Code: "654321"})
	backend := &fakeBackend{queued: []mq.Message{{ID: "m1", Data: data}}}
	provider := &recordingProvider{err: errors.New("gateway rejected")}

	err := Consume(context.Background(), mq.New(backend), "sms.otp", provider)
	assert.Error(t, err)
}

func TestLogProvider_MasksDigits(t *testing.T) {
	assert.Equal(t, "code ****** sent", maskDigits("code 654321 sent"))
}
