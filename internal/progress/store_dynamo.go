package progress

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DefaultDynamoTable is the table the hosted deployment writes to.
const DefaultDynamoTable = "BuzzleUserProgress"

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps records in a DynamoDB table keyed by userId (hash) and
// timestamp (range, ISO 8601).
type DynamoStore struct {
	client DynamoAPI
	table  string
}

var _ Store = (*DynamoStore)(nil)

// NewDynamoStore loads the default AWS configuration for region.
func NewDynamoStore(ctx context.Context, region, table string) (*DynamoStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewDynamoStoreWithClient(dynamodb.NewFromConfig(cfg), table), nil
}

// NewDynamoStoreWithClient wraps an existing client. An empty table selects
// DefaultDynamoTable.
func NewDynamoStoreWithClient(client DynamoAPI, table string) *DynamoStore {
	if table == "" {
		table = DefaultDynamoTable
	}
	return &DynamoStore{client: client, table: table}
}

func (s *DynamoStore) Append(ctx context.Context, rec Record) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}); err != nil {
		return fmt.Errorf("put progress: %w", err)
	}
	return nil
}

func (s *DynamoStore) ListByUser(ctx context.Context, userID string) ([]Record, error) {
	var (
		out   []Record
		start map[string]types.AttributeValue
	)
	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.table),
			KeyConditionExpression: aws.String("userId = :u"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":u": &types.AttributeValueMemberS{Value: userID},
			},
			ScanIndexForward:  aws.Bool(true),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, fmt.Errorf("query progress: %w", err)
		}

		var page []Record
		if err := attributevalue.UnmarshalListOfMaps(resp.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal progress: %w", err)
		}
		out = append(out, page...)

		if len(resp.LastEvaluatedKey) == 0 {
			return out, nil
		}
		start = resp.LastEvaluatedKey
	}
}
