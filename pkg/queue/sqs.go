package queue

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"golang.org/x/sync/errgroup"

	"github.com/slackrelay/slackrelay/pkg/logger"
)

// SQSAPI is the slice of the SQS client the publisher and consumer use.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type SQSPublisher struct {
	client   SQSAPI
	queueURL string
}

func NewSQSPublisher(client SQSAPI, queueURL string) *SQSPublisher {
	return &SQSPublisher{client: client, queueURL: queueURL}
}

func (p *SQSPublisher) Publish(ctx context.Context, body []byte) (string, error) {
	out, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", &PublishError{Err: err}
	}
	return aws.ToString(out.MessageId), nil
}

// Handler processes one delivery. A non-nil error is logged; it never
// propagates past the message boundary and never prevents acknowledgement.
type Handler func(ctx context.Context, msg Message) error

// Consumer long-polls the queue and dispatches deliveries to the handler with
// bounded concurrency. Every received message is deleted after the handler
// returns; redelivery happens only when the process dies before the delete,
// governed by the queue's visibility timeout.
type Consumer struct {
	client      SQSAPI
	queueURL    string
	waitTime    int32
	batchSize   int32
	concurrency int
	handler     Handler
}

func NewConsumer(client SQSAPI, queueURL string, waitTimeSec, batchSize, concurrency int, handler Handler) *Consumer {
	if batchSize < 1 {
		batchSize = 1
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &Consumer{
		client:      client,
		queueURL:    queueURL,
		waitTime:    int32(waitTimeSec),
		batchSize:   int32(batchSize),
		concurrency: concurrency,
		handler:     handler,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	logger.InfoCF("queue", "Consumer started", map[string]interface{}{
		"wait_time_sec": c.waitTime,
		"batch_size":    c.batchSize,
		"concurrency":   c.concurrency,
	})

	g := new(errgroup.Group)
	g.SetLimit(c.concurrency)

	for {
		select {
		case <-ctx.Done():
			g.Wait()
			logger.InfoC("queue", "Consumer stopped")
			return nil
		default:
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queueURL),
			MaxNumberOfMessages: c.batchSize,
			WaitTimeSeconds:     c.waitTime,
		})
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			logger.ErrorCF("queue", "Receive failed", map[string]interface{}{
				"error": err.Error(),
			})
			time.Sleep(time.Second)
			continue
		}

		for _, raw := range out.Messages {
			msg := Message{
				DeliveryID:    aws.ToString(raw.MessageId),
				Body:          []byte(aws.ToString(raw.Body)),
				ReceiptHandle: aws.ToString(raw.ReceiptHandle),
			}
			g.Go(func() error {
				if err := c.handler(ctx, msg); err != nil {
					logger.ErrorCF("queue", "Message handler failed", map[string]interface{}{
						"delivery_id": msg.DeliveryID,
						"error":       err.Error(),
					})
				}
				c.ack(ctx, msg)
				return nil
			})
		}
	}
}

func (c *Consumer) ack(ctx context.Context, msg Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(msg.ReceiptHandle),
	})
	if err != nil {
		logger.WarnCF("queue", "Failed to delete message, queue will redeliver", map[string]interface{}{
			"delivery_id": msg.DeliveryID,
			"error":       err.Error(),
		})
	}
}
