package queue

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

type fakeSQS struct {
	mu sync.Mutex

	sendErr   error
	lastSend  *sqs.SendMessageInput
	messageID string

	// batches are returned one per ReceiveMessage call; once drained the
	// fake cancels the consumer's context so Run terminates.
	batches [][]types.Message
	cancel  context.CancelFunc

	deleted []string
}

func (f *fakeSQS) SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSend = params
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	return &sqs.SendMessageOutput{MessageId: aws.String(f.messageID)}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.batches) == 0 {
		f.cancel()
		return &sqs.ReceiveMessageOutput{}, nil
	}
	batch := f.batches[0]
	f.batches = f.batches[1:]
	return &sqs.ReceiveMessageOutput{Messages: batch}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, aws.ToString(params.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func TestSQSPublisher_ReturnsDeliveryID(t *testing.T) {
	fake := &fakeSQS{messageID: "msg-42"}
	p := NewSQSPublisher(fake, "https://sqs.example/q")

	id, err := p.Publish(context.Background(), []byte(`{"event":{}}`))
	if err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	if id != "msg-42" {
		t.Errorf("expected delivery id msg-42, got %s", id)
	}
	if aws.ToString(fake.lastSend.QueueUrl) != "https://sqs.example/q" {
		t.Errorf("unexpected queue url: %s", aws.ToString(fake.lastSend.QueueUrl))
	}
	if aws.ToString(fake.lastSend.MessageBody) != `{"event":{}}` {
		t.Errorf("body not forwarded verbatim: %s", aws.ToString(fake.lastSend.MessageBody))
	}
}

func TestSQSPublisher_WrapsSendFailure(t *testing.T) {
	boom := errors.New("access denied")
	p := NewSQSPublisher(&fakeSQS{sendErr: boom}, "q")

	_, err := p.Publish(context.Background(), []byte(`{}`))
	var pubErr *PublishError
	if !errors.As(err, &pubErr) {
		t.Fatalf("expected PublishError, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func sqsMessage(id, body, receipt string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		Body:          aws.String(body),
		ReceiptHandle: aws.String(receipt),
	}
}

func TestConsumer_DispatchesAndAcks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeSQS{
		cancel: cancel,
		batches: [][]types.Message{
			{
				sqsMessage("m1", "body-1", "r1"),
				sqsMessage("m2", "body-2", "r2"),
			},
		},
	}

	var mu sync.Mutex
	var handled []string
	c := NewConsumer(fake, "q", 1, 10, 2, func(ctx context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		handled = append(handled, msg.DeliveryID+":"+string(msg.Body))
		return nil
	})

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}

	if len(handled) != 2 {
		t.Fatalf("expected 2 handled messages, got %v", handled)
	}
	seen := map[string]bool{}
	for _, h := range handled {
		seen[h] = true
	}
	if !seen["m1:body-1"] || !seen["m2:body-2"] {
		t.Errorf("unexpected deliveries: %v", handled)
	}
	if len(fake.deleted) != 2 {
		t.Errorf("expected both messages acked, got %v", fake.deleted)
	}
}

// A handler error is an accepted loss for that delivery; the message is still
// deleted so the queue does not redeliver it.
func TestConsumer_HandlerErrorStillAcks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := &fakeSQS{
		cancel:  cancel,
		batches: [][]types.Message{{sqsMessage("m1", "body", "r1")}},
	}

	c := NewConsumer(fake, "q", 1, 10, 1, func(ctx context.Context, msg Message) error {
		return errors.New("ai backend down")
	})

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run returned %v", err)
	}
	if len(fake.deleted) != 1 || fake.deleted[0] != "r1" {
		t.Errorf("expected message acked despite handler error, got %v", fake.deleted)
	}
}

func TestNewConsumer_ClampsLimits(t *testing.T) {
	c := NewConsumer(&fakeSQS{}, "q", 1, 0, 0, nil)
	if c.batchSize != 1 || c.concurrency != 1 {
		t.Errorf("expected clamped limits, got batch=%d concurrency=%d", c.batchSize, c.concurrency)
	}
}
