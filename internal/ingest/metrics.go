package ingest

import (
	"context"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"

	"awaves/internal/types"
)

// CloudWatchClient abstracts the CloudWatch PutMetricData operation for
// testability.
type CloudWatchClient interface {
	PutMetricData(ctx context.Context, params *cloudwatch.PutMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricDataOutput, error)
}

// Metrics publishes ingest run counters to CloudWatch. Best-effort:
// publish failures are logged, never surfaced to the pipeline.
type Metrics struct {
	client      CloudWatchClient
	namespace   string
	environment string
	logger      *slog.Logger
}

// NewMetrics creates an ingest metrics publisher. A nil client disables
// publishing.
func NewMetrics(client CloudWatchClient, namespace, environment string, logger *slog.Logger) *Metrics {
	if logger == nil {
		logger = slog.Default()
	}
	return &Metrics{client: client, namespace: namespace, environment: environment, logger: logger}
}

// Publish emits the summary counters of one ingest run.
func (m *Metrics) Publish(ctx context.Context, summary types.IngestSummary) {
	if m.client == nil {
		return
	}

	dims := []cwtypes.Dimension{
		{Name: aws.String("Environment"), Value: aws.String(m.environment)},
	}
	counters := []struct {
		name  string
		value int
	}{
		{"FilesProcessed", summary.FilesProcessed},
		{"RecordsWritten", summary.Written},
		{"RowErrors", summary.Errors},
		{"CacheWritten", summary.CacheWritten},
		{"SavedFlagged", summary.SavedFlagged},
	}

	data := make([]cwtypes.MetricDatum, 0, len(counters))
	for _, c := range counters {
		data = append(data, cwtypes.MetricDatum{
			MetricName: aws.String(c.name),
			Value:      aws.Float64(float64(c.value)),
			Unit:       cwtypes.StandardUnitCount,
			Dimensions: dims,
		})
	}

	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}
	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		m.logger.WarnContext(ctx, "failed to publish ingest metrics",
			"error", err,
			"prefix", summary.InferencePrefix,
		)
	}
}
