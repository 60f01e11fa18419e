package storage

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// DefaultTableName is used when no table name is configured.
	DefaultTableName = "chat-app"

	// Key attribute names
	AttrPartitionKey = "pk"
	AttrSortKey      = "sk"
)

// TableSchema describes the key schema of the chat table
type TableSchema struct {
	TableName string
	// Primary key
	PartitionKey string
	SortKey      string
}

// GetTableSchema returns the schema configuration for the chat table
func GetTableSchema(tableName string) TableSchema {
	if tableName == "" {
		tableName = DefaultTableName
	}
	return TableSchema{
		TableName:    tableName,
		PartitionKey: AttrPartitionKey,
		SortKey:      AttrSortKey,
	}
}

// CreateTableInput returns the request that provisions the table: string
// pk (HASH) and sk (RANGE), on-demand billing, no secondary indexes.
func (s TableSchema) CreateTableInput() *dynamodb.CreateTableInput {
	return &dynamodb.CreateTableInput{
		TableName: aws.String(s.TableName),
		AttributeDefinitions: []types.AttributeDefinition{
			{
				AttributeName: aws.String(s.PartitionKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
			{
				AttributeName: aws.String(s.SortKey),
				AttributeType: types.ScalarAttributeTypeS,
			},
		},
		KeySchema: []types.KeySchemaElement{
			{
				AttributeName: aws.String(s.PartitionKey),
				KeyType:       types.KeyTypeHash,
			},
			{
				AttributeName: aws.String(s.SortKey),
				KeyType:       types.KeyTypeRange,
			},
		},
		BillingMode: types.BillingModePayPerRequest,
	}
}
