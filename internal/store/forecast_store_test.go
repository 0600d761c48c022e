package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"awaves/internal/types"
)

// mockDynamo implements DynamoAPI with programmable responses.
type mockDynamo struct {
	scanPages    []*dynamodb.ScanOutput
	scanCalls    int
	scanErr      error
	queryFn      func(*dynamodb.QueryInput) (*dynamodb.QueryOutput, error)
	batchWriteFn func(*dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error)
	batchWrites  []*dynamodb.BatchWriteItemInput
}

func (m *mockDynamo) Scan(_ context.Context, params *dynamodb.ScanInput, _ ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error) {
	if m.scanErr != nil {
		return nil, m.scanErr
	}
	if m.scanCalls >= len(m.scanPages) {
		return &dynamodb.ScanOutput{}, nil
	}
	page := m.scanPages[m.scanCalls]
	m.scanCalls++
	return page, nil
}

func (m *mockDynamo) Query(_ context.Context, params *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	if m.queryFn != nil {
		return m.queryFn(params)
	}
	return &dynamodb.QueryOutput{}, nil
}

func (m *mockDynamo) PutItem(_ context.Context, _ *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamo) GetItem(_ context.Context, _ *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return &dynamodb.GetItemOutput{}, nil
}

func (m *mockDynamo) DeleteItem(_ context.Context, _ *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	return &dynamodb.DeleteItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(_ context.Context, _ *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) BatchWriteItem(_ context.Context, params *dynamodb.BatchWriteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error) {
	m.batchWrites = append(m.batchWrites, params)
	if m.batchWriteFn != nil {
		return m.batchWriteFn(params)
	}
	return &dynamodb.BatchWriteItemOutput{}, nil
}

func (m *mockDynamo) BatchGetItem(_ context.Context, _ *dynamodb.BatchGetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error) {
	return &dynamodb.BatchGetItemOutput{}, nil
}

func discardLogger() *slog.Logger { return slog.New(slog.DiscardHandler) }

func forecastItemAV(locationID, ts string) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"locationId":    &ddbtypes.AttributeValueMemberS{Value: locationID},
		"surfTimestamp": &ddbtypes.AttributeValueMemberS{Value: ts},
		"derivedMetrics": &ddbtypes.AttributeValueMemberM{
			Value: map[string]ddbtypes.AttributeValue{
				"INTERMEDIATE": &ddbtypes.AttributeValueMemberM{
					Value: map[string]ddbtypes.AttributeValue{
						"surfScore": &ddbtypes.AttributeValueMemberN{Value: "65"},
						"surfGrade": &ddbtypes.AttributeValueMemberS{Value: "B"},
					},
				},
			},
		},
	}
}

func TestScanAllFollowsPagination(t *testing.T) {
	client := &mockDynamo{scanPages: []*dynamodb.ScanOutput{
		{
			Items: []map[string]ddbtypes.AttributeValue{
				forecastItemAV("35.1#129.1", "2026-03-01T06:00:00Z"),
			},
			LastEvaluatedKey: map[string]ddbtypes.AttributeValue{
				"locationId": &ddbtypes.AttributeValueMemberS{Value: "35.1#129.1"},
			},
		},
		{
			Items: []map[string]ddbtypes.AttributeValue{
				forecastItemAV("33.5#126.5", "2026-03-01T06:00:00Z"),
			},
		},
	}}
	s := NewForecastStore(client, "surf_info", types.DefaultGradeTable(), discardLogger())

	records, err := s.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Errorf("expected 2 records across pages, got %d", len(records))
	}
	if client.scanCalls != 2 {
		t.Errorf("expected 2 scan pages, got %d", client.scanCalls)
	}
}

func TestScanAllErrorIsStoreUnavailable(t *testing.T) {
	client := &mockDynamo{scanErr: errors.New("throttled")}
	s := NewForecastStore(client, "surf_info", types.DefaultGradeTable(), discardLogger())

	_, err := s.ScanAll(context.Background())
	var appErr *types.AppError
	if !errors.As(err, &appErr) || appErr.Code != types.ErrCodeStoreUnavailable {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestQueryLatestRequestsNewestFirst(t *testing.T) {
	var captured *dynamodb.QueryInput
	client := &mockDynamo{queryFn: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		captured = in
		return &dynamodb.QueryOutput{Items: []map[string]ddbtypes.AttributeValue{
			forecastItemAV("35.1#129.1", "2026-03-05T06:00:00Z"),
		}}, nil
	}}
	s := NewForecastStore(client, "surf_info", types.DefaultGradeTable(), discardLogger())

	rec, err := s.QueryLatest(context.Background(), "35.1#129.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec == nil || rec.SurfTimestamp != "2026-03-05T06:00:00Z" {
		t.Fatalf("unexpected record: %+v", rec)
	}

	if captured.ScanIndexForward == nil || *captured.ScanIndexForward {
		t.Error("latest query must scan the sort key descending")
	}
	if captured.Limit == nil || *captured.Limit != 1 {
		t.Error("latest query must limit to 1 item")
	}
}

func TestQueryLatestAbsentLocationIsNil(t *testing.T) {
	client := &mockDynamo{}
	s := NewForecastStore(client, "surf_info", types.DefaultGradeTable(), discardLogger())

	rec, err := s.QueryLatest(context.Background(), "0.0#0.0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec != nil {
		t.Errorf("expected nil for absent location, got %+v", rec)
	}
}

func TestQueryLocationAppliesDatePrefix(t *testing.T) {
	var captured *dynamodb.QueryInput
	client := &mockDynamo{queryFn: func(in *dynamodb.QueryInput) (*dynamodb.QueryOutput, error) {
		captured = in
		return &dynamodb.QueryOutput{}, nil
	}}
	s := NewForecastStore(client, "surf_info", types.DefaultGradeTable(), discardLogger())

	if _, err := s.QueryLocation(context.Background(), "35.1#129.1", "2026-03-01"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expr := aws.ToString(captured.KeyConditionExpression)
	if expr != "locationId = :lid AND begins_with(surfTimestamp, :d)" {
		t.Errorf("unexpected key condition: %s", expr)
	}
	prefix := captured.ExpressionAttributeValues[":d"].(*ddbtypes.AttributeValueMemberS).Value
	if prefix != "2026-03-01" {
		t.Errorf("unexpected date prefix: %s", prefix)
	}
}

func TestBatchPutChunksAt25(t *testing.T) {
	client := &mockDynamo{}
	s := NewForecastStore(client, "surf_info", types.DefaultGradeTable(), discardLogger())

	records := make([]types.ForecastRecord, 60)
	for i := range records {
		records[i] = types.ForecastRecord{
			LocationID:    fmt.Sprintf("35.%d#129.1", i),
			SurfTimestamp: "2026-03-01T06:00:00Z",
		}
	}

	written, err := s.BatchPut(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if written != 60 {
		t.Errorf("written = %d, want 60", written)
	}
	if len(client.batchWrites) != 3 {
		t.Fatalf("expected 3 chunks (25+25+10), got %d", len(client.batchWrites))
	}
	if n := len(client.batchWrites[0].RequestItems["surf_info"]); n != 25 {
		t.Errorf("first chunk size = %d, want 25", n)
	}
	if n := len(client.batchWrites[2].RequestItems["surf_info"]); n != 10 {
		t.Errorf("last chunk size = %d, want 10", n)
	}
}

func TestBatchPutRetriesUnprocessedOnce(t *testing.T) {
	calls := 0
	client := &mockDynamo{}
	client.batchWriteFn = func(in *dynamodb.BatchWriteItemInput) (*dynamodb.BatchWriteItemOutput, error) {
		calls++
		if calls == 1 {
			// Leave one item unprocessed on the first attempt.
			reqs := in.RequestItems["surf_info"]
			return &dynamodb.BatchWriteItemOutput{
				UnprocessedItems: map[string][]ddbtypes.WriteRequest{
					"surf_info": reqs[:1],
				},
			}, nil
		}
		return &dynamodb.BatchWriteItemOutput{}, nil
	}
	s := NewForecastStore(client, "surf_info", types.DefaultGradeTable(), discardLogger())

	records := []types.ForecastRecord{
		{LocationID: "35.1#129.1", SurfTimestamp: "2026-03-01T06:00:00Z"},
		{LocationID: "33.5#126.5", SurfTimestamp: "2026-03-01T06:00:00Z"},
	}

	written, err := s.BatchPut(context.Background(), records)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected unprocessed retry, calls = %d", calls)
	}
	if written != 2 {
		t.Errorf("written = %d, want 2", written)
	}
}
