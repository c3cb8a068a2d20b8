package consumer

import (
	"context"
)

// Envelope carries one notification body together with the callbacks that settle it on the queue.
// Ack removes the message; Nack leaves it to reappear after its visibility timeout.
type Envelope struct {
	MessageID string
	Body      []byte
	ack       func(context.Context) error
	nack      func(context.Context) error
}

func NewEnvelope(messageID string, body []byte, ack, nack func(context.Context) error) *Envelope {
	return &Envelope{
		MessageID: messageID,
		Body:      body,
		ack:       ack,
		nack:      nack,
	}
}

// Ack settles a message whose object was fully processed
func (e *Envelope) Ack(ctx context.Context) error {
	if e.ack == nil {
		return nil
	}
	return e.ack(ctx)
}

// Nack releases a message for redelivery
func (e *Envelope) Nack(ctx context.Context) error {
	if e.nack == nil {
		return nil
	}
	return e.nack(ctx)
}
