package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqstypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/hibiken/asynq"

	"github.com/signalworks/storefront/jobs"
)

// EmailEnqueuer is the subset of the jobs client used for delivery.
type EmailEnqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// QueueTransport delivers through the asynq mail:send task.
type QueueTransport struct {
	client EmailEnqueuer
}

// NewQueueTransport wraps the jobs client.
func NewQueueTransport(client EmailEnqueuer) *QueueTransport {
	return &QueueTransport{client: client}
}

// Send enqueues the message.
func (t *QueueTransport) Send(ctx context.Context, msg Message) error {
	_, err := t.client.EnqueueSendEmail(ctx, jobs.SendEmailPayload{
		To:        msg.To,
		Subject:   msg.Subject,
		Body:      msg.Body,
		Event:     string(msg.Event),
		Reference: msg.Reference,
	})
	return err
}

// SQSAPI is the subset of the SQS client used for delivery.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSTransport publishes messages to an SQS queue consumed by the mail service.
type SQSTransport struct {
	client   SQSAPI
	queueURL string
}

// NewSQSTransport binds a transport to a queue URL.
func NewSQSTransport(client SQSAPI, queueURL string) *SQSTransport {
	return &SQSTransport{client: client, queueURL: queueURL}
}

// Send publishes msg as a JSON body with the event as a message attribute.
func (t *SQSTransport) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = t.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqstypes.MessageAttributeValue{
			"event": {DataType: aws.String("String"), StringValue: aws.String(string(msg.Event))},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send message: %w", err)
	}
	return nil
}

// NewSQSClient loads the default AWS credential chain. endpoint overrides the
// service URL for local stacks such as LocalStack.
func NewSQSClient(ctx context.Context, region, endpoint string) (*sqs.Client, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return sqs.NewFromConfig(cfg, func(o *sqs.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}
