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

// batchGetChunk is the DynamoDB BatchGetItem key ceiling.
const batchGetChunk = 100

// LocationStore is the adapter for the locations table: partition key
// locationId, holding display metadata and localized variants.
type LocationStore struct {
	client DynamoAPI
	table  string
	logger *slog.Logger
}

// NewLocationStore creates a locations-table adapter.
func NewLocationStore(client DynamoAPI, table string, logger *slog.Logger) *LocationStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &LocationStore{client: client, table: table, logger: logger}
}

// AllLocationIDs enumerates every known location id via a projection
// scan. This is the cheap "what locations exist" query that seeds the
// latest-per-location fan-out.
func (s *LocationStore) AllLocationIDs(ctx context.Context) ([]string, error) {
	var ids []string
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:            aws.String(s.table),
			ProjectionExpression: aws.String("locationId"),
			ExclusiveStartKey:    startKey,
		})
		if err != nil {
			return nil, &types.AppError{
				Code:    types.ErrCodeStoreUnavailable,
				Message: fmt.Sprintf("scanning %s: %v", s.table, err),
				Err:     err,
			}
		}

		for _, item := range out.Items {
			if attr, ok := item["locationId"].(*ddbtypes.AttributeValueMemberS); ok {
				ids = append(ids, attr.Value)
			}
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return ids, nil
}

// BatchGet fetches display metadata for the given location ids in
// BatchGetItem chunks of at most 100 keys. Missing locations are simply
// absent from the result map.
func (s *LocationStore) BatchGet(ctx context.Context, ids []string) (map[string]types.LocationMeta, error) {
	metas := make(map[string]types.LocationMeta, len(ids))

	for start := 0; start < len(ids); start += batchGetChunk {
		end := min(start+batchGetChunk, len(ids))

		keys := make([]map[string]ddbtypes.AttributeValue, 0, end-start)
		for _, id := range ids[start:end] {
			keys = append(keys, map[string]ddbtypes.AttributeValue{
				"locationId": &ddbtypes.AttributeValueMemberS{Value: id},
			})
		}

		out, err := s.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
			RequestItems: map[string]ddbtypes.KeysAndAttributes{
				s.table: {Keys: keys},
			},
		})
		if err != nil {
			return nil, &types.AppError{
				Code:    types.ErrCodeStoreUnavailable,
				Message: fmt.Sprintf("batch getting locations: %v", err),
				Err:     err,
			}
		}

		for _, item := range out.Responses[s.table] {
			meta := decodeLocationMeta(item)
			if meta.LocationID != "" {
				metas[meta.LocationID] = meta
			}
		}
	}

	return metas, nil
}

// decodeLocationMeta reads a locations item, tolerating the attribute
// spellings of older loaders (snake_case English fields, "Kr" suffixed
// Korean fields).
func decodeLocationMeta(item map[string]ddbtypes.AttributeValue) types.LocationMeta {
	str := func(names ...string) string {
		for _, name := range names {
			if attr, ok := item[name].(*ddbtypes.AttributeValueMemberS); ok && attr.Value != "" {
				return attr.Value
			}
		}
		return ""
	}

	return types.LocationMeta{
		LocationID:  str("locationId"),
		DisplayName: str("displayName", "display_name"),
		City:        str("city"),
		Region:      str("state"),
		Country:     str("country"),
		NameKo:      str("displayNameKo", "displayNameKr", "display_name_ko"),
		CityKo:      str("cityKo", "cityKr", "city_ko"),
		RegionKo:    str("stateKo", "stateKr", "state_ko"),
		CountryKo:   str("countryKo", "countryKr", "country_ko"),
	}
}
