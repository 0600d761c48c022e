// Package config defines the configuration for the awaves forecast
// service. Configuration is loaded once at process initialization and is
// immutable thereafter, following 12-Factor principles: OS environment
// first, optional .env file for local development.
//
// Any missing required value or invalid format fails the process
// immediately on startup.
package config

import (
	"time"

	"awaves/internal/types"
)

// Config is the top-level configuration struct. Sub-components receive
// only the specific subsets they require.
type Config struct {
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Server ServerConfig
	AWS    AWSConfig
	Cache  CacheConfig
	Grades GradeConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8080"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
}

// AWSConfig holds AWS resource identifiers and regional configuration.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	DataLakeBucket string `envconfig:"S3_BUCKET_DATALAKE"`
	SurfTable      string `envconfig:"DYNAMODB_SURF_DATA_TABLE" validate:"required"`
	SavedTable     string `envconfig:"DYNAMODB_SAVED_LIST_TABLE"`
	LocationsTable string `envconfig:"DYNAMODB_LOCATIONS_TABLE"`
	IngestQueueURL string `envconfig:"SQS_INGEST_QUEUE"`

	// Custom endpoint for DynamoDB Local / LocalStack in dev.
	EndpointURL string `envconfig:"DDB_ENDPOINT_URL"`

	ModelVersion    string `envconfig:"MODEL_VERSION" default:"awaves-v1"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"Awaves/Ingest"`
}

// CacheConfig holds distributed cache (ElastiCache/Redis) settings.
// An empty URL disables the distributed cache entirely; every consumer
// must degrade to the store transparently.
type CacheConfig struct {
	URL string `envconfig:"CACHE_URL"`

	TTLAllSpots   time.Duration `envconfig:"CACHE_TTL_ALL_SPOTS" default:"30m"`
	TTLLatestSpot time.Duration `envconfig:"CACHE_TTL_LATEST_SPOT" default:"3h"`
	TTLSavedItems time.Duration `envconfig:"CACHE_TTL_SAVED_ITEMS" default:"15m"`

	// Snapshot refresh window for the in-process dataset cache.
	SnapshotTTL time.Duration `envconfig:"SNAPSHOT_TTL" default:"5m"`
}

// GradeConfig holds the read-side numeric-to-letter grade thresholds.
// The cutpoints changed between platform versions, so they are
// configuration rather than constants. Values must be strictly
// descending; each threshold maps to the letter at the same index in
// Letters, with FloorLetter below the last cutpoint.
type GradeConfig struct {
	Thresholds  []float64 `envconfig:"GRADE_THRESHOLDS" default:"3.0,2.5,2.0,1.0"`
	Letters     []string  `envconfig:"GRADE_LETTERS" default:"A+,A,B,C"`
	FloorLetter string    `envconfig:"GRADE_FLOOR_LETTER" default:"D"`
}

// Table converts the configured cutpoints into the domain grade table.
func (g GradeConfig) Table() types.GradeTable {
	return types.GradeTable{
		Thresholds: g.Thresholds,
		Letters:    g.Letters,
		Floor:      g.FloorLetter,
	}
}
