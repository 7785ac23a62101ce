package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/you-humble/mediafanout/internal/domain"

	"github.com/nats-io/nats.go"
)

type jetStreamPublisher interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
}

type publisher struct {
	js      jetStreamPublisher
	subject string
}

func NewPublisher(js nats.JetStreamContext, subject string) *publisher {
	return newPublisher(js, subject)
}

func newPublisher(js jetStreamPublisher, subject string) *publisher {
	return &publisher{js: js, subject: subject}
}

// Publish sends ev as JSON. The upload id doubles as the JetStream message id
// so a retried publish is deduplicated by the stream.
func (p *publisher) Publish(ctx context.Context, ev domain.UploadEvent) error {
	if ev.UploadID == "" {
		return fmt.Errorf("publish upload event: empty upload id")
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish upload event %s: marshal: %w", ev.UploadID, err)
	}

	msg := &nats.Msg{
		Subject: p.subject,
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(nats.MsgIdHdr, ev.UploadID)

	ack, err := p.js.PublishMsg(msg, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("publish upload event %s: %w", ev.UploadID, err)
	}

	slog.Debug(
		"upload event published",
		slog.String("upload_id", ev.UploadID),
		slog.String("subject", p.subject),
		slog.String("stream", ack.Stream),
		slog.Uint64("seq", ack.Sequence),
	)

	return nil
}
