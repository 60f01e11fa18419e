package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/epw80/channel-chat/pkg/apperr"
	appconfig "github.com/epw80/channel-chat/pkg/config"
	"github.com/epw80/channel-chat/pkg/keyspace"
)

// API is the subset of the DynamoDB client used by DynamoDBGateway. It is
// satisfied by *dynamodb.Client and by test mocks.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoDBGateway implements Gateway on a single DynamoDB table
type DynamoDBGateway struct {
	client    API
	tableName string
	logger    *slog.Logger
}

// NewDynamoDBGateway creates a DynamoDB client from cfg and verifies that
// the configured table exists with the expected key schema.
func NewDynamoDBGateway(ctx context.Context, cfg *appconfig.Config, logger *slog.Logger) (*DynamoDBGateway, error) {
	client, err := NewDynamoDBClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	g := NewDynamoDBGatewayFromAPI(client, cfg.DynamoDBTable, logger)

	if err := g.VerifySchema(ctx); err != nil {
		return nil, err
	}

	logger.Info("DynamoDB gateway initialized",
		slog.String("table", g.tableName),
		slog.String("region", cfg.DynamoDBRegion),
		slog.String("endpoint", cfg.DynamoDBEndpoint))

	return g, nil
}

// NewDynamoDBClient loads AWS configuration for cfg. A non-empty endpoint
// selects DynamoDB Local with static credentials; otherwise the default
// credentials chain is used.
func NewDynamoDBClient(ctx context.Context, cfg *appconfig.Config) (*dynamodb.Client, error) {
	var awsCfg aws.Config
	var err error

	if cfg.DynamoDBEndpoint != "" {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.DynamoDBRegion),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AWSAccessKey,
				cfg.AWSSecretKey,
				"",
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(ctx,
			config.WithRegion(cfg.DynamoDBRegion),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.DynamoDBEndpoint != "" {
			o.BaseEndpoint = aws.String(cfg.DynamoDBEndpoint)
		}
	}), nil
}

// NewDynamoDBGatewayFromAPI wraps an existing client. Useful for tests.
func NewDynamoDBGatewayFromAPI(api API, tableName string, logger *slog.Logger) *DynamoDBGateway {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return &DynamoDBGateway{
		client:    api,
		tableName: tableName,
		logger:    logger,
	}
}

// Get retrieves a single item by key
func (g *DynamoDBGateway) Get(ctx context.Context, key keyspace.Key) (*Item, error) {
	keyAttrs, err := encodeKey(key)
	if err != nil {
		return nil, err
	}

	output, err := g.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(g.tableName),
		Key:       keyAttrs,
	})
	if err != nil {
		return nil, g.storeError("get item", key, err)
	}

	if len(output.Item) == 0 {
		return nil, nil //nolint:nilnil
	}

	return &Item{Key: key, Attributes: stripKey(output.Item)}, nil
}

// Put writes an item, overwriting any existing item with the same key
func (g *DynamoDBGateway) Put(ctx context.Context, key keyspace.Key, attrs Attributes) error {
	item, err := buildItem(key, attrs)
	if err != nil {
		return err
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(g.tableName),
		Item:      item,
	})
	if err != nil {
		return g.storeError("put item", key, err)
	}

	g.logger.Debug("item written",
		slog.String("kind", string(key.Kind())),
		slog.String("pk", getStringValue(item[AttrPartitionKey])))

	return nil
}

// Create writes an item only when no item with the same key exists
func (g *DynamoDBGateway) Create(ctx context.Context, key keyspace.Key, attrs Attributes) error {
	item, err := buildItem(key, attrs)
	if err != nil {
		return err
	}

	_, err = g.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(g.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrPartitionKey,
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			pk, sk := key.Encode()
			return fmt.Errorf("item %s/%s already exists: %w", pk, sk, apperr.ErrConflict)
		}
		return g.storeError("create item", key, err)
	}

	return nil
}

// Delete removes an item. Absent items are not an error
func (g *DynamoDBGateway) Delete(ctx context.Context, key keyspace.Key) error {
	keyAttrs, err := encodeKey(key)
	if err != nil {
		return err
	}

	_, err = g.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(g.tableName),
		Key:       keyAttrs,
	})
	if err != nil {
		return g.storeError("delete item", key, err)
	}

	return nil
}

// Query returns all items of a partition in ascending sort key order,
// following pagination until the partition is exhausted.
func (g *DynamoDBGateway) Query(ctx context.Context, partition, sortKeyPrefix string) ([]Item, error) {
	if partition == "" {
		return nil, fmt.Errorf("%w: empty partition", keyspace.ErrMalformedKey)
	}

	input := &dynamodb.QueryInput{
		TableName:              aws.String(g.tableName),
		KeyConditionExpression: aws.String("#pk = :pk"),
		ExpressionAttributeNames: map[string]string{
			"#pk": AttrPartitionKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: partition},
		},
		ScanIndexForward: aws.Bool(true), // Ascending order (oldest first)
	}

	if sortKeyPrefix != "" {
		input.KeyConditionExpression = aws.String("#pk = :pk AND begins_with(#sk, :prefix)")
		input.ExpressionAttributeNames["#sk"] = AttrSortKey
		input.ExpressionAttributeValues[":prefix"] = &types.AttributeValueMemberS{Value: sortKeyPrefix}
	}

	var items []Item

	for {
		output, err := g.client.Query(ctx, input)
		if err != nil {
			g.logger.Error("failed to query partition",
				slog.String("error", err.Error()),
				slog.String("partition", partition))
			return nil, fmt.Errorf("failed to query partition %s: %w: %w", partition, apperr.ErrStoreUnavailable, err)
		}

		for _, raw := range output.Items {
			pk := getStringValue(raw[AttrPartitionKey])
			sk := getStringValue(raw[AttrSortKey])

			key, err := keyspace.Decode(pk, sk)
			if err != nil {
				g.logger.Error("skipping undecodable item",
					slog.String("error", err.Error()),
					slog.String("pk", pk),
					slog.String("sk", sk))
				continue
			}

			items = append(items, Item{Key: key, Attributes: stripKey(raw)})
		}

		if output.LastEvaluatedKey == nil {
			break
		}

		input.ExclusiveStartKey = output.LastEvaluatedKey
	}

	g.logger.Debug("queried partition",
		slog.String("partition", partition),
		slog.Int("count", len(items)))

	return items, nil
}

// HealthCheck verifies DynamoDB is accessible
func (g *DynamoDBGateway) HealthCheck(ctx context.Context) error {
	_, err := g.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(g.tableName),
	})
	if err != nil {
		return fmt.Errorf("DynamoDB health check failed: %w: %w", apperr.ErrStoreUnavailable, err)
	}

	return nil
}

// VerifySchema checks that the table exists, is active, and is keyed by
// pk (HASH) and sk (RANGE).
func (g *DynamoDBGateway) VerifySchema(ctx context.Context) error {
	response, err := g.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(g.tableName),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return fmt.Errorf("table %s does not exist", g.tableName)
		}
		return fmt.Errorf("failed to describe table %s: %w", g.tableName, err)
	}

	table := response.Table
	if table == nil || len(table.KeySchema) != 2 {
		return fmt.Errorf("table %s must have a composite primary key", g.tableName)
	}

	for _, element := range table.KeySchema {
		name := aws.ToString(element.AttributeName)
		switch element.KeyType {
		case types.KeyTypeHash:
			if name != AttrPartitionKey {
				return fmt.Errorf("table %s has partition key %s, expected %s", g.tableName, name, AttrPartitionKey)
			}
		case types.KeyTypeRange:
			if name != AttrSortKey {
				return fmt.Errorf("table %s has sort key %s, expected %s", g.tableName, name, AttrSortKey)
			}
		}
	}

	if table.TableStatus != types.TableStatusActive {
		return fmt.Errorf("table %s is not active (status: %s)", g.tableName, table.TableStatus)
	}

	return nil
}

// Close releases resources (DynamoDB client doesn't need explicit cleanup)
func (g *DynamoDBGateway) Close() error {
	g.logger.Info("DynamoDB gateway closed")
	return nil
}

// storeError logs the underlying failure and wraps it as
// apperr.ErrStoreUnavailable.
func (g *DynamoDBGateway) storeError(op string, key keyspace.Key, err error) error {
	pk, sk := key.Encode()

	attrs := []any{
		slog.String("error", err.Error()),
		slog.String("operation", op),
		slog.String("pk", pk),
		slog.String("sk", sk),
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		attrs = append(attrs, slog.String("code", apiErr.ErrorCode()))
	}

	g.logger.Error("DynamoDB request failed", attrs...)

	return fmt.Errorf("failed to %s: %w: %w", op, apperr.ErrStoreUnavailable, err)
}

func encodeKey(key keyspace.Key) (map[string]types.AttributeValue, error) {
	pk, sk, err := keyspace.Encode(key)
	if err != nil {
		return nil, err
	}
	return map[string]types.AttributeValue{
		AttrPartitionKey: &types.AttributeValueMemberS{Value: pk},
		AttrSortKey:      &types.AttributeValueMemberS{Value: sk},
	}, nil
}

func buildItem(key keyspace.Key, attrs Attributes) (map[string]types.AttributeValue, error) {
	item, err := encodeKey(key)
	if err != nil {
		return nil, err
	}
	for name, value := range attrs {
		if name == AttrPartitionKey || name == AttrSortKey {
			continue
		}
		item[name] = value
	}
	return item, nil
}

func stripKey(raw map[string]types.AttributeValue) Attributes {
	attrs := make(Attributes, len(raw))
	for name, value := range raw {
		if name == AttrPartitionKey || name == AttrSortKey {
			continue
		}
		attrs[name] = value
	}
	return attrs
}

// getStringValue extracts the string value from a DynamoDB AttributeValue.
// It returns an empty string if the AttributeValue is not of type AttributeValueMemberS.
func getStringValue(attr types.AttributeValue) string {
	if v, ok := attr.(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
