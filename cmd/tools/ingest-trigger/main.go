// Command ingest-trigger enqueues one ingest run for the save worker.
//
// Usage:
//
//	ingest-trigger -prefix inference/2026/08/28/06/ [-reason manual]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"awaves/internal/config"
	"awaves/internal/queue"
)

func main() {
	prefix := flag.String("prefix", "", "inference batch prefix in the data lake (required)")
	reason := flag.String("reason", "manual", "provenance attribute on the queue message")
	flag.Parse()

	if *prefix == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*prefix, *reason); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(prefix, reason string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if cfg.AWS.IngestQueueURL == "" {
		return fmt.Errorf("SQS_INGEST_QUEUE is not configured")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return fmt.Errorf("loading AWS configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	trigger := queue.NewIngestTrigger(sqs.NewFromConfig(awsCfg), cfg.AWS.IngestQueueURL, logger)

	msg, err := trigger.TriggerIngest(ctx, prefix, reason)
	if err != nil {
		return err
	}

	fmt.Printf("enqueued batch %s for %s\n", msg.BatchID, prefix)
	return nil
}
