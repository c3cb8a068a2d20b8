package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testQueueURL = "https://sqs.us-east-1.amazonaws.com/123/report-conversions"

// MockQueueConsumer is a mock implementation of queue.QueueConsumer
type MockQueueConsumer struct {
	mock.Mock
}

func (m *MockQueueConsumer) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.ReceiveMessageOutput), args.Error(1)
}

func (m *MockQueueConsumer) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sqs.DeleteMessageOutput), args.Error(1)
}

func (m *MockQueueConsumer) QueueURL() string {
	args := m.Called()
	return args.String(0)
}

func testMessage(id string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		Body:          aws.String(`{"Records":[]}`),
		ReceiptHandle: aws.String("receipt-" + id),
	}
}

func testReceiverConfig() ReceiverConfig {
	return ReceiverConfig{MaxMessages: 1, WaitTimeSeconds: 20, VisibilityTimeout: 300}
}

// collect drains out until it closes or the deadline passes
func collect(out <-chan *Envelope, deadline time.Duration) []*Envelope {
	var envelopes []*Envelope
	timeout := time.After(deadline)
	for {
		select {
		case envelope, ok := <-out:
			if !ok {
				return envelopes
			}
			envelopes = append(envelopes, envelope)
		case <-timeout:
			return envelopes
		}
	}
}

func TestReceiver_Start_WrapsMessagesInEnvelopes(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, testReceiverConfig(), zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{testMessage("msg-1"), testMessage("msg-2")}}, nil).Once()
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{}, nil).Maybe()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	out := make(chan *Envelope, 10)
	go receiver.Start(ctx, out)

	envelopes := collect(out, 200*time.Millisecond)

	require.Len(t, envelopes, 2)
	assert.Equal(t, "msg-1", envelopes[0].MessageID)
	assert.Equal(t, "msg-2", envelopes[1].MessageID)
	assert.Equal(t, []byte(`{"Records":[]}`), envelopes[0].Body)
}

func TestReceiver_EnvelopeAckDeletesByReceiptHandle(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, testReceiverConfig(), zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
		return aws.ToString(in.ReceiptHandle) == "receipt-msg-1" && aws.ToString(in.QueueUrl) == testQueueURL
	})).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	envelope := receiver.envelope(testMessage("msg-1"))

	require.NoError(t, envelope.Ack(context.Background()))
	require.NoError(t, envelope.Nack(context.Background()))
	mockConsumer.AssertExpectations(t)
}

func TestReceiver_EnvelopeAckPropagatesDeleteError(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, testReceiverConfig(), zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, errors.New("receipt expired"))

	err := receiver.envelope(testMessage("msg-1")).Ack(context.Background())

	assert.EqualError(t, err, "receipt expired")
}

func TestReceiver_Start_KeepsPollingAfterReceiveError(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, testReceiverConfig(), zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(nil, errors.New("SQS connection error")).Once()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	out := make(chan *Envelope, 10)
	receiver.Start(ctx, out)

	_, ok := <-out
	assert.False(t, ok, "output should be closed once ctx is done")
	mockConsumer.AssertNumberOfCalls(t, "ReceiveMessages", 1)
}

func TestReceiver_Start_ClosesOutputWhenCancelled(t *testing.T) {
	receiver := NewReceiver(new(MockQueueConsumer), testReceiverConfig(), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan *Envelope)
	receiver.Start(ctx, out)

	_, ok := <-out
	assert.False(t, ok)
}

func TestReceiver_Start_StopsWhileBlockedOnHandoff(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, testReceiverConfig(), zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.Anything).
		Return(&sqs.ReceiveMessageOutput{Messages: []types.Message{testMessage("msg-1")}}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		// nobody reads from the unbuffered output
		receiver.Start(ctx, make(chan *Envelope))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("receiver did not stop while blocked on handoff")
	}
	mockConsumer.AssertNumberOfCalls(t, "ReceiveMessages", 1)
}

func TestReceiver_Start_PassesPollSettings(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	receiver := NewReceiver(mockConsumer, ReceiverConfig{
		MaxMessages:       1,
		WaitTimeSeconds:   20,
		VisibilityTimeout: 600,
	}, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("ReceiveMessages", mock.Anything, mock.MatchedBy(func(in *sqs.ReceiveMessageInput) bool {
		return in.MaxNumberOfMessages == 1 && in.WaitTimeSeconds == 20 && in.VisibilityTimeout == 600 &&
			aws.ToString(in.QueueUrl) == testQueueURL
	})).Return(&sqs.ReceiveMessageOutput{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	receiver.Start(ctx, make(chan *Envelope))

	mockConsumer.AssertCalled(t, "ReceiveMessages", mock.Anything, mock.Anything)
}
