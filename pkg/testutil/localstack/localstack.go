// Package localstack starts a disposable localstack container offering S3,
// DynamoDB, and SQS, for integration tests that need to exercise the real
// AWS adapters in pkg/aws instead of the in-memory fakes unit tests use.
// Grounded on the teacher's testcontainers-go container-wrapper style
// (pkg/testutil/localdev), generalized from a single fixed dev-stack
// container to a parameterized localstack instance driven by the
// modules/localstack helper.
package localstack

import (
	"context"
	"fmt"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/testcontainers/testcontainers-go"
	tclocalstack "github.com/testcontainers/testcontainers-go/modules/localstack"
)

// Container wraps a running localstack instance and the endpoint every AWS
// client should be pointed at.
type Container struct {
	testcontainers.Container
	Endpoint string
}

// Run starts a localstack container with the S3, DynamoDB, and SQS
// services enabled. Callers must Terminate the returned container's
// embedded testcontainers.Container when done.
func Run(ctx context.Context) (*Container, error) {
	c, err := tclocalstack.Run(ctx, "localstack/localstack:3.5",
		testcontainers.WithEnv(map[string]string{"SERVICES": "s3,dynamodb,sqs"}),
	)
	if err != nil {
		return nil, fmt.Errorf("starting localstack: %w", err)
	}

	mappedPort, err := c.MappedPort(ctx, "4566/tcp")
	if err != nil {
		return nil, fmt.Errorf("reading localstack port: %w", err)
	}
	host, err := c.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading localstack host: %w", err)
	}

	return &Container{
		Container: c,
		Endpoint:  fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
	}, nil
}

// AWSConfig returns an aws.Config carrying the static dummy credentials
// localstack accepts from any caller, region pinned to us-east-1. Callers
// still need to point each client at c.Endpoint via its Options' BaseEndpoint
// (the same applyEndpoint hook pkg/fleet uses for a single S3-compatible
// endpoint in non-production deployments).
func (c *Container) AWSConfig(ctx context.Context) (awssdk.Config, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("us-east-1"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")),
	)
	if err != nil {
		return awssdk.Config{}, fmt.Errorf("loading aws config: %w", err)
	}
	return cfg, nil
}

// CreateStatusTable creates the DynamoDB table a DynamoStatusStore needs: a
// single "key" partition key with TTL enabled on "expires". None of the
// adapter constructors create this table themselves; DynamoStatusStore's
// doc comment requires it to already exist, so any caller standing up a
// fresh store against localstack must provision it first.
func CreateStatusTable(ctx context.Context, client *dynamodb.Client, tableName string) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: awssdk.String(tableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: awssdk.String("key"), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: awssdk.String("key"), KeyType: types.KeyTypeHash},
		},
		BillingMode: types.BillingModePayPerRequest,
	})
	if err != nil {
		return fmt.Errorf("creating table %s: %w", tableName, err)
	}

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{TableName: awssdk.String(tableName)}, 30*time.Second); err != nil {
		return fmt.Errorf("waiting for table %s to become active: %w", tableName, err)
	}

	_, err = client.UpdateTimeToLive(ctx, &dynamodb.UpdateTimeToLiveInput{
		TableName: awssdk.String(tableName),
		TimeToLiveSpecification: &types.TimeToLiveSpecification{
			AttributeName: awssdk.String("expires"),
			Enabled:       awssdk.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("enabling ttl on %s: %w", tableName, err)
	}
	return nil
}
