package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"awaves/internal/types"
)

// batchWriteChunk is the DynamoDB BatchWriteItem request ceiling.
const batchWriteChunk = 25

// ForecastStore is the adapter for the surf_info table:
// partition key locationId, sort key surfTimestamp, TTL attribute
// expiredAt.
type ForecastStore struct {
	client DynamoAPI
	table  string
	grades types.GradeTable
	logger *slog.Logger
}

// NewForecastStore creates a forecast-table adapter. The grade table is
// applied to every decoded record so nothing above this layer sees a
// numeric grade string.
func NewForecastStore(client DynamoAPI, table string, grades types.GradeTable, logger *slog.Logger) *ForecastStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ForecastStore{client: client, table: table, grades: grades, logger: logger}
}

// ScanAll performs a full paginated scan of the forecast table. This is
// the snapshot-refresh path; interactive queries should never call it.
func (s *ForecastStore) ScanAll(ctx context.Context) ([]types.ForecastRecord, error) {
	var records []types.ForecastRecord
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(s.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, &types.AppError{
				Code:    types.ErrCodeStoreUnavailable,
				Message: fmt.Sprintf("scanning %s: %v", s.table, err),
				Err:     err,
			}
		}

		for _, item := range out.Items {
			rec, err := decodeRecord(item, s.grades)
			if err != nil {
				s.logger.WarnContext(ctx, "skipping undecodable forecast item", "error", err)
				continue
			}
			records = append(records, rec)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return records, nil
}

// QueryLocation returns the records for one location, optionally
// narrowed to timestamps beginning with datePrefix ("YYYY-MM-DD" or
// "YYYY-MM-DDTHH:mm").
func (s *ForecastStore) QueryLocation(ctx context.Context, locationID, datePrefix string) ([]types.ForecastRecord, error) {
	keyExpr := "locationId = :lid"
	values := map[string]ddbtypes.AttributeValue{
		":lid": &ddbtypes.AttributeValueMemberS{Value: locationID},
	}
	if datePrefix != "" {
		keyExpr += " AND begins_with(surfTimestamp, :d)"
		values[":d"] = &ddbtypes.AttributeValueMemberS{Value: datePrefix}
	}

	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(s.table),
		KeyConditionExpression:    aws.String(keyExpr),
		ExpressionAttributeValues: values,
	})
	if err != nil {
		return nil, &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("querying %s for %s: %v", s.table, locationID, err),
			Err:     err,
		}
	}

	records := make([]types.ForecastRecord, 0, len(out.Items))
	for _, item := range out.Items {
		rec, err := decodeRecord(item, s.grades)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable forecast item",
				"location_id", locationID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// QueryLatest returns the most recent record for a location, or nil when
// the location has no forecasts.
func (s *ForecastStore) QueryLatest(ctx context.Context, locationID string) (*types.ForecastRecord, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("locationId = :lid"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":lid": &ddbtypes.AttributeValueMemberS{Value: locationID},
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return nil, &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("querying latest for %s: %v", locationID, err),
			Err:     err,
		}
	}
	if len(out.Items) == 0 {
		return nil, nil
	}

	rec, err := decodeRecord(out.Items[0], s.grades)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// BatchPut upserts records in BatchWriteItem chunks of 25, retrying
// unprocessed items once per chunk. Re-ingestion under the same
// (locationId, surfTimestamp) key replaces the previous item.
func (s *ForecastStore) BatchPut(ctx context.Context, records []types.ForecastRecord) (written int, err error) {
	for start := 0; start < len(records); start += batchWriteChunk {
		end := min(start+batchWriteChunk, len(records))

		requests := make([]ddbtypes.WriteRequest, 0, end-start)
		for _, rec := range records[start:end] {
			item, err := encodeRecord(rec)
			if err != nil {
				return written, fmt.Errorf("encoding record %s/%s: %w", rec.LocationID, rec.SurfTimestamp, err)
			}
			requests = append(requests, ddbtypes.WriteRequest{
				PutRequest: &ddbtypes.PutRequest{Item: item},
			})
		}

		pending := map[string][]ddbtypes.WriteRequest{s.table: requests}
		for attempt := 0; len(pending[s.table]) > 0; attempt++ {
			out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: pending,
			})
			if err != nil {
				return written, &types.AppError{
					Code:    types.ErrCodeStoreUnavailable,
					Message: fmt.Sprintf("batch writing %s: %v", s.table, err),
					Err:     err,
				}
			}

			written += len(pending[s.table]) - len(out.UnprocessedItems[s.table])
			if len(out.UnprocessedItems[s.table]) == 0 || attempt >= 1 {
				if n := len(out.UnprocessedItems[s.table]); n > 0 {
					s.logger.WarnContext(ctx, "dropping unprocessed batch items", "count", n)
				}
				break
			}
			pending = out.UnprocessedItems
		}
	}

	return written, nil
}
