// Package main is the entrypoint for the save worker Lambda.
//
// The worker consumes ingest trigger messages (SQS) pointing at a batch
// of inference output files, writes the forecast records, projects the
// nearest upcoming forecast per location into the distributed cache,
// flags changed saved selections, publishes run metrics, and warms the
// read caches.
//
// Direct invocation with a bare {"inference_prefix": "..."} payload is
// also supported for operational replays.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"awaves/internal/cache"
	"awaves/internal/config"
	"awaves/internal/ingest"
	"awaves/internal/queue"
	"awaves/internal/spots"
	"awaves/internal/store"
	"awaves/internal/types"
)

// directPayload is the operational replay invoke shape.
type directPayload struct {
	InferencePrefix string `json:"inference_prefix"`
}

// Handler holds the save worker's wired pipeline.
type Handler struct {
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// Handle accepts either an SQS event batch or a direct payload and runs
// the ingest pipeline once per referenced batch prefix.
func (h *Handler) Handle(ctx context.Context, raw json.RawMessage) ([]types.IngestSummary, error) {
	prefixes, err := extractPrefixes(raw)
	if err != nil {
		return nil, err
	}

	summaries := make([]types.IngestSummary, 0, len(prefixes))
	for _, prefix := range prefixes {
		summary, err := h.pipeline.Run(ctx, prefix)
		if err != nil {
			// Returning the error makes SQS redeliver the whole batch;
			// only infrastructure failures (listing, not row parsing)
			// reach this path.
			return summaries, fmt.Errorf("ingest run for %q: %w", prefix, err)
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// extractPrefixes pulls batch prefixes out of the invoke payload.
func extractPrefixes(raw json.RawMessage) ([]string, error) {
	var sqsEvent events.SQSEvent
	if err := json.Unmarshal(raw, &sqsEvent); err == nil && len(sqsEvent.Records) > 0 {
		prefixes := make([]string, 0, len(sqsEvent.Records))
		for _, record := range sqsEvent.Records {
			var msg queue.IngestMessage
			if err := json.Unmarshal([]byte(record.Body), &msg); err != nil || msg.InferencePrefix == "" {
				return nil, fmt.Errorf("malformed ingest message %s", record.MessageId)
			}
			prefixes = append(prefixes, msg.InferencePrefix)
		}
		return prefixes, nil
	}

	var direct directPayload
	if err := json.Unmarshal(raw, &direct); err != nil || direct.InferencePrefix == "" {
		return nil, fmt.Errorf("payload carries no inference prefix")
	}
	return []string{direct.InferencePrefix}, nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading configuration: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	ctx := context.Background()
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: loading AWS configuration: %v\n", err)
		os.Exit(1)
	}

	ddb, err := store.NewClient(ctx, cfg.AWS.Region, cfg.AWS.EndpointURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "fatal: creating dynamodb client: %v\n", err)
		os.Exit(1)
	}

	grades := cfg.Grades.Table()
	forecasts := store.NewForecastStore(ddb, cfg.AWS.SurfTable, grades, logger)
	saved := store.NewSavedStore(ddb, cfg.AWS.SavedTable, logger)
	locations := store.NewLocationStore(ddb, cfg.AWS.LocationsTable, logger)

	cacheClient := cache.NewClient(cfg.Cache.URL, logger)
	spotsCache := cache.NewSpotsCache(cacheClient, cfg.Cache.TTLAllSpots, cfg.Cache.TTLLatestSpot, cfg.Cache.TTLAllSpots)
	savedCache := cache.NewSavedCache(cacheClient, cfg.Cache.TTLSavedItems)
	snapshot := cache.NewSnapshot(forecasts, cfg.Cache.SnapshotTTL, types.RealClock{}, logger)
	engine := spots.NewService(forecasts, locations, snapshot, spotsCache, logger)

	reader := ingest.NewReader(s3.NewFromConfig(awsCfg), cfg.AWS.DataLakeBucket)
	writer := ingest.NewWriter(reader, forecasts, spotsCache, types.RealClock{}, logger, cfg.AWS.ModelVersion)
	detector := ingest.NewChangeDetector(saved, savedCache, logger)
	metrics := ingest.NewMetrics(cloudwatch.NewFromConfig(awsCfg), cfg.AWS.MetricNamespace, cfg.Environment, logger)

	handler := &Handler{
		pipeline: ingest.NewPipeline(writer, detector, metrics, engine, logger),
		logger:   logger,
	}

	lambda.Start(handler.Handle)
}
