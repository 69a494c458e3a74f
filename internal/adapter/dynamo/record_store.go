// Package dynamo stores processing records in a DynamoDB table keyed by
// process_id.
package dynamo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"photopipe/internal/domain"
)

const keyAttribute = "process_id"

type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

type RecordStore struct {
	client dynamoAPI
	table  string
}

func NewRecordStore(client *dynamodb.Client, table string) *RecordStore {
	return &RecordStore{client: client, table: table}
}

func (s *RecordStore) Put(ctx context.Context, rec *domain.ProcessRecord) error {
	if rec == nil || rec.ProcessID == "" {
		return fmt.Errorf("record id is required: %w", domain.ErrInvalidRequest)
	}
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("dynamo: marshal record: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return s.mapError("put item", err)
	}
	return nil
}

// Get reads with strong consistency so a record is visible right after Put.
func (s *RecordStore) Get(ctx context.Context, id string) (*domain.ProcessRecord, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            map[string]types.AttributeValue{keyAttribute: &types.AttributeValueMemberS{Value: id}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, s.mapError("get item", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("record %s: %w", id, domain.ErrNotFound)
	}
	var rec domain.ProcessRecord
	if err := attributevalue.UnmarshalMap(out.Item, &rec); err != nil {
		return nil, fmt.Errorf("dynamo: unmarshal record: %w", err)
	}
	return &rec, nil
}

// List scans the table. Items are returned in table order; the cursor wraps
// the scan's LastEvaluatedKey.
func (s *RecordStore) List(ctx context.Context, opts domain.ListOptions) (*domain.RecordPage, error) {
	limit := opts.NormalizedLimit()
	startKey, err := decodeCursor(opts.Cursor)
	if err != nil {
		return nil, err
	}

	page := &domain.RecordPage{Items: []domain.ProcessRecord{}}
	paginator := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:         aws.String(s.table),
		Limit:             aws.Int32(int32(limit)),
		ExclusiveStartKey: startKey,
	})
	// Scan pages stop at 1 MB of data, so a page can come back short; keep
	// reading until the page is full or the table is exhausted.
	for paginator.HasMorePages() && len(page.Items) < limit {
		out, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s.mapError("scan", err)
		}
		var items []domain.ProcessRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &items); err != nil {
			return nil, fmt.Errorf("dynamo: unmarshal records: %w", err)
		}
		page.Items = append(page.Items, items...)
		if len(out.LastEvaluatedKey) > 0 {
			if page.NextCursor, err = encodeCursor(out.LastEvaluatedKey); err != nil {
				return nil, err
			}
		} else {
			page.NextCursor = ""
		}
	}
	return page, nil
}

func (s *RecordStore) mapError(op string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
		return fmt.Errorf("dynamo: table %s not found: %w", s.table, domain.ErrProviderFailure)
	}
	return fmt.Errorf("dynamo: %s: %w: %v", op, domain.ErrTransient, err)
}

func encodeCursor(key map[string]types.AttributeValue) (string, error) {
	plain := make(map[string]string, len(key))
	for k, v := range key {
		sv, ok := v.(*types.AttributeValueMemberS)
		if !ok {
			return "", fmt.Errorf("dynamo: unsupported key attribute %s", k)
		}
		plain[k] = sv.Value
	}
	raw, err := json.Marshal(plain)
	if err != nil {
		return "", fmt.Errorf("dynamo: encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func decodeCursor(cursor string) (map[string]types.AttributeValue, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor: %w", domain.ErrInvalidRequest)
	}
	var plain map[string]string
	if err := json.Unmarshal(raw, &plain); err != nil || plain[keyAttribute] == "" {
		return nil, fmt.Errorf("invalid cursor: %w", domain.ErrInvalidRequest)
	}
	key := make(map[string]types.AttributeValue, len(plain))
	for k, v := range plain {
		key[k] = &types.AttributeValueMemberS{Value: v}
	}
	return key, nil
}

var _ domain.RecordStore = (*RecordStore)(nil)
