package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/finch-technologies/storage-manager/log"
)

// API is the subset of the SQS client used by the broker.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

// SQSMessageBroker publishes to, and polls, SQS queues named after the channel.
type SQSMessageBroker struct {
	client          API
	baseURL         string
	waitTimeSeconds int32
	messageGroupId  string
}

// New loads the default AWS config. Queue URLs are built from AWS_SQS_BASE_URL.
func New(ctx context.Context) (*SQSMessageBroker, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return NewWithClient(sqs.NewFromConfig(cfg), os.Getenv("AWS_SQS_BASE_URL")), nil
}

func NewWithClient(client API, baseURL string) *SQSMessageBroker {
	return &SQSMessageBroker{
		client:          client,
		baseURL:         strings.TrimRight(baseURL, "/"),
		waitTimeSeconds: 10,
		messageGroupId:  "default",
	}
}

// getQueueURL builds the URL of the queue by name.
func (b *SQSMessageBroker) getQueueURL(queueName string) string {
	return fmt.Sprintf("%s/%s", b.baseURL, queueName)
}

func (b *SQSMessageBroker) Publish(ctx context.Context, channel string, payload any) error {
	body, ok := payload.(string)
	if !ok {
		bytes, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal payload to json: %w", err)
		}
		body = string(bytes)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(b.getQueueURL(channel)),
		MessageBody: aws.String(body),
	}

	if strings.HasSuffix(channel, ".fifo") {
		input.MessageGroupId = aws.String(b.messageGroupId)
	}

	if _, err := b.client.SendMessage(ctx, input); err != nil {
		return fmt.Errorf("failed to enqueue message: %w", err)
	}
	return nil
}

// Subscribe long-polls the queue until the returned function is called or ctx is done.
// Messages are deleted after the callback returns.
func (b *SQSMessageBroker) Subscribe(ctx context.Context, channel string, callback func(channel string, payload string)) func() error {
	pctx, cancel := context.WithCancel(ctx)
	url := b.getQueueURL(channel)

	var wg sync.WaitGroup
	wg.Add(1)

	go func() {
		defer wg.Done()
		for pctx.Err() == nil {
			resp, err := b.client.ReceiveMessage(pctx, &sqs.ReceiveMessageInput{
				QueueUrl:            aws.String(url),
				MaxNumberOfMessages: 10,
				WaitTimeSeconds:     b.waitTimeSeconds,
			})
			if err != nil {
				if pctx.Err() != nil {
					return
				}
				log.Errorf("failed to receive message from %s: %v", channel, err)
				sleep(pctx, time.Second)
				continue
			}

			for _, message := range resp.Messages {
				callback(channel, aws.ToString(message.Body))

				_, err := b.client.DeleteMessage(pctx, &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(url),
					ReceiptHandle: message.ReceiptHandle,
				})
				if err != nil && pctx.Err() == nil {
					log.Errorf("failed to delete message from %s: %v", channel, err)
				}
			}
		}
	}()

	return func() error {
		cancel()
		wg.Wait()
		return nil
	}
}

func sleep(ctx context.Context, delay time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}
