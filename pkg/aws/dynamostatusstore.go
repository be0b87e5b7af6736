package aws

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/storacha/cloud-mirror/pkg/statusstore"
)

// DynamoStatusStore implements statusstore.Store on a DynamoDB table keyed
// by a single partition key ("key") with a native TTL attribute ("expires").
// Grounded on the conditional-write, attributevalue-marshalled access
// pattern used throughout the AWS adapter family.
type DynamoStatusStore struct {
	tableName      string
	dynamoDbClient *dynamodb.Client
}

var _ statusstore.Store = (*DynamoStatusStore)(nil)

// NewDynamoStatusStore returns a statusstore.Store backed by the named
// DynamoDB table. The table must have TTL enabled on the "expires"
// attribute.
func NewDynamoStatusStore(cfg aws.Config, tableName string, opts ...func(*dynamodb.Options)) *DynamoStatusStore {
	return &DynamoStatusStore{
		tableName:      tableName,
		dynamoDbClient: dynamodb.NewFromConfig(cfg, opts...),
	}
}

type statusItem struct {
	Key     string            `dynamodbav:"key"`
	Fields  map[string]string `dynamodbav:"fields"`
	Expires int64             `dynamodbav:"expires"`
}

func (d *DynamoStatusStore) Get(ctx context.Context, key string) (statusstore.Fields, error) {
	res, err := d.dynamoDbClient.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting item: %w", err)
	}
	if res.Item == nil {
		return nil, statusstore.ErrNotFound
	}
	var it statusItem
	if err := attributevalue.UnmarshalMap(res.Item, &it); err != nil {
		return nil, fmt.Errorf("unmarshalling status item: %w", err)
	}
	if it.Expires != 0 && time.Unix(it.Expires, 0).Before(time.Now()) {
		return nil, statusstore.ErrNotFound
	}
	return statusstore.Fields(it.Fields), nil
}

func (d *DynamoStatusStore) Put(ctx context.Context, key string, fields statusstore.Fields, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(statusItem{
		Key:     key,
		Fields:  map[string]string(fields),
		Expires: time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshalling status item: %w", err)
	}
	_, err = d.dynamoDbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("putting item: %w", err)
	}
	return nil
}

func (d *DynamoStatusStore) PutIfAbsent(ctx context.Context, key string, fields statusstore.Fields, ttl time.Duration) error {
	item, err := attributevalue.MarshalMap(statusItem{
		Key:     key,
		Fields:  map[string]string(fields),
		Expires: time.Now().Add(ttl).Unix(),
	})
	if err != nil {
		return fmt.Errorf("marshalling status item: %w", err)
	}
	_, err = d.dynamoDbClient.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(d.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#k) OR #e < :now"),
		ExpressionAttributeNames: map[string]string{
			"#k": "key",
			"#e": "expires",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", time.Now().Unix())},
		},
	})
	if err != nil {
		var condFailed *types.ConditionalCheckFailedException
		if errors.As(err, &condFailed) {
			return statusstore.ErrAlreadyExists
		}
		return fmt.Errorf("conditionally putting item: %w", err)
	}
	return nil
}

func (d *DynamoStatusStore) Delete(ctx context.Context, key string) error {
	_, err := d.dynamoDbClient.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.tableName),
		Key:       map[string]types.AttributeValue{"key": &types.AttributeValueMemberS{Value: key}},
	})
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	return nil
}
