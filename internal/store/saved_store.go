package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"awaves/internal/types"
)

// SavedStore is the adapter for the saved_list table: partition key
// userId, sort key sortKey ("{locationId}#{surfTimestamp}").
type SavedStore struct {
	client DynamoAPI
	table  string
	logger *slog.Logger
}

// NewSavedStore creates a saved-list adapter.
func NewSavedStore(client DynamoAPI, table string, logger *slog.Logger) *SavedStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SavedStore{client: client, table: table, logger: logger}
}

// SelectionUpdate carries the refreshed metric copy written onto a
// selection when a significant change is flagged.
type SelectionUpdate struct {
	SurfScore        float64
	SurfGrade        string
	WaveHeight       float64
	WavePeriod       float64
	WindSpeed        float64
	WaterTemperature float64
	ChangeMessage    string
}

// Create stores a new selection. Creation is conditional: exactly one
// selection may exist per (userId, locationId, surfTimestamp), so an
// existing item fails with ErrCodeConflictSelectionExists.
func (s *SavedStore) Create(ctx context.Context, sel types.SavedSelection) error {
	if sel.SortKey == "" {
		sel.SortKey = types.SelectionSortKey(sel.LocationID, sel.SurfTimestamp)
	}

	item, err := attributevalue.MarshalMap(sel)
	if err != nil {
		return fmt.Errorf("encoding selection: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(userId) AND attribute_not_exists(sortKey)"),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &types.AppError{
				Code:    types.ErrCodeConflictSelectionExists,
				Message: fmt.Sprintf("selection already exists: %s/%s", sel.UserID, sel.SortKey),
			}
		}
		return &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("creating selection: %v", err),
			Err:     err,
		}
	}
	return nil
}

// Get fetches one selection, or nil when absent.
func (s *SavedStore) Get(ctx context.Context, userID, sortKey string) (*types.SavedSelection, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key:       selectionKey(userID, sortKey),
	})
	if err != nil {
		return nil, &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("getting selection: %v", err),
			Err:     err,
		}
	}
	if out.Item == nil {
		return nil, nil
	}

	var sel types.SavedSelection
	if err := attributevalue.UnmarshalMap(out.Item, &sel); err != nil {
		return nil, fmt.Errorf("decoding selection: %w", err)
	}
	return &sel, nil
}

// QueryByUser returns every selection a user has saved.
func (s *SavedStore) QueryByUser(ctx context.Context, userID string) ([]types.SavedSelection, error) {
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		KeyConditionExpression: aws.String("userId = :uid"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":uid": &ddbtypes.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("querying selections for user: %v", err),
			Err:     err,
		}
	}

	selections := make([]types.SavedSelection, 0, len(out.Items))
	for _, item := range out.Items {
		var sel types.SavedSelection
		if err := attributevalue.UnmarshalMap(item, &sel); err != nil {
			s.logger.WarnContext(ctx, "skipping undecodable selection", "error", err)
			continue
		}
		selections = append(selections, sel)
	}
	return selections, nil
}

// ScanByLocation finds every selection across all users that references
// the given location. The table is keyed by user, so this is a paginated
// filter scan; change detection is the only caller and tolerates the
// cost.
func (s *SavedStore) ScanByLocation(ctx context.Context, locationID string) ([]types.SavedSelection, error) {
	var selections []types.SavedSelection
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := s.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(s.table),
			FilterExpression: aws.String("locationId = :lid"),
			ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
				":lid": &ddbtypes.AttributeValueMemberS{Value: locationID},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, &types.AppError{
				Code:    types.ErrCodeStoreUnavailable,
				Message: fmt.Sprintf("scanning selections for %s: %v", locationID, err),
				Err:     err,
			}
		}

		for _, item := range out.Items {
			var sel types.SavedSelection
			if err := attributevalue.UnmarshalMap(item, &sel); err != nil {
				s.logger.WarnContext(ctx, "skipping undecodable selection", "error", err)
				continue
			}
			selections = append(selections, sel)
		}

		if out.LastEvaluatedKey == nil {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	return selections, nil
}

// FlagChange marks a selection changed: refreshes its metric copy, sets
// flagChange, and stores the machine-readable change message.
func (s *SavedStore) FlagChange(ctx context.Context, userID, sortKey string, upd SelectionUpdate) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.table),
		Key:       selectionKey(userID, sortKey),
		UpdateExpression: aws.String(
			"SET flagChange = :fc, changeMessage = :cm, " +
				"surfScore = :ss, surfGrade = :sg, " +
				"waveHeight = :wh, wavePeriod = :wp, " +
				"windSpeed = :ws, waterTemperature = :wt",
		),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":fc": &ddbtypes.AttributeValueMemberBOOL{Value: true},
			":cm": &ddbtypes.AttributeValueMemberS{Value: upd.ChangeMessage},
			":ss": numberAttr(upd.SurfScore),
			":sg": &ddbtypes.AttributeValueMemberS{Value: upd.SurfGrade},
			":wh": numberAttr(upd.WaveHeight),
			":wp": numberAttr(upd.WavePeriod),
			":ws": numberAttr(upd.WindSpeed),
			":wt": numberAttr(upd.WaterTemperature),
		},
	})
	if err != nil {
		return &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("flagging selection %s/%s: %v", userID, sortKey, err),
			Err:     err,
		}
	}
	return nil
}

// Acknowledge clears a selection's change flag and message.
func (s *SavedStore) Acknowledge(ctx context.Context, userID, sortKey string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:        aws.String(s.table),
		Key:              selectionKey(userID, sortKey),
		UpdateExpression: aws.String("SET flagChange = :fc REMOVE changeMessage"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":fc": &ddbtypes.AttributeValueMemberBOOL{Value: false},
		},
		ConditionExpression: aws.String("attribute_exists(userId)"),
	})
	if err != nil {
		var ccf *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return &types.AppError{
				Code:    types.ErrCodeNotFoundSelection,
				Message: fmt.Sprintf("selection not found: %s/%s", userID, sortKey),
			}
		}
		return &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("acknowledging selection %s/%s: %v", userID, sortKey, err),
			Err:     err,
		}
	}
	return nil
}

// Delete removes a selection. Deleting an absent item is a no-op.
func (s *SavedStore) Delete(ctx context.Context, userID, sortKey string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key:       selectionKey(userID, sortKey),
	})
	if err != nil {
		return &types.AppError{
			Code:    types.ErrCodeStoreUnavailable,
			Message: fmt.Sprintf("deleting selection %s/%s: %v", userID, sortKey, err),
			Err:     err,
		}
	}
	return nil
}

func selectionKey(userID, sortKey string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"userId":  &ddbtypes.AttributeValueMemberS{Value: userID},
		"sortKey": &ddbtypes.AttributeValueMemberS{Value: sortKey},
	}
}

func numberAttr(v float64) ddbtypes.AttributeValue {
	return &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%.2f", v)}
}
