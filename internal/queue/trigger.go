// Package queue provides the SQS producer that hands inference batch
// references to the save worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// IngestMessage is the payload the save worker consumes: a pointer to
// one inference batch in the data lake.
type IngestMessage struct {
	BatchID         string    `json:"batch_id"`
	TraceID         string    `json:"trace_id"`
	InferencePrefix string    `json:"inference_prefix"`
	EnqueuedAt      time.Time `json:"enqueued_at"`
}

// IngestTrigger enqueues ingest runs onto the save worker's queue.
type IngestTrigger struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

// NewIngestTrigger creates an ingest trigger for the given queue URL.
func NewIngestTrigger(client SQSSender, queueURL string, logger *slog.Logger) *IngestTrigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestTrigger{client: client, queueURL: queueURL, logger: logger}
}

// TriggerIngest enqueues one batch reference. The reason attribute is
// free-form provenance ("scheduled", "manual", ...) for queue tooling.
func (t *IngestTrigger) TriggerIngest(ctx context.Context, inferencePrefix, reason string) (IngestMessage, error) {
	msg := IngestMessage{
		BatchID:         uuid.New().String(),
		TraceID:         uuid.New().String(),
		InferencePrefix: inferencePrefix,
		EnqueuedAt:      time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return msg, fmt.Errorf("queue: failed to marshal IngestMessage: %w", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(t.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"reason": {
				DataType:    aws.String("String"),
				StringValue: aws.String(reason),
			},
		},
	}

	if _, err := t.client.SendMessage(ctx, input); err != nil {
		return msg, fmt.Errorf("queue: failed to enqueue ingest for %q: %w", inferencePrefix, err)
	}

	t.logger.InfoContext(ctx, "ingest enqueued",
		"batch_id", msg.BatchID,
		"prefix", inferencePrefix,
		"reason", reason,
	)
	return msg, nil
}
