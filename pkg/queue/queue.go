package queue

import (
	"context"
	"fmt"
)

// Message is one delivery handed to the consumer. DeliveryID is assigned by
// the transport per delivery attempt and is the unit of deduplication; it is
// distinct from anything inside the body.
type Message struct {
	DeliveryID    string
	Body          []byte
	ReceiptHandle string
}

// Publisher forwards a validated raw webhook body onto the queue, unmodified.
type Publisher interface {
	Publish(ctx context.Context, body []byte) (deliveryID string, err error)
}

// PublishError wraps a transport failure during publish. The ingestion stage
// surfaces it as a server error and does not retry; the webhook caller is
// expected to retry on 5xx.
type PublishError struct {
	Err error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("queue publish failed: %v", e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
