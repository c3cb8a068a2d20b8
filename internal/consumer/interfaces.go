package consumer

import "context"

// MessageProcessor handles the body of one queue message.
// A nil error means the message is done and may be deleted.
type MessageProcessor interface {
	ProcessMessage(ctx context.Context, body []byte) error
}
