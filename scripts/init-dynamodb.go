package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	appconfig "github.com/epw80/channel-chat/pkg/config"
	"github.com/epw80/channel-chat/pkg/storage"
)

const waitTimeout = 60 * time.Second

func main() {
	recreate := flag.Bool("recreate", false, "delete and recreate the table if it already exists")
	flag.Parse()

	ctx := context.Background()

	// Load configuration
	cfg := appconfig.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Info("Initializing DynamoDB table",
		slog.String("endpoint", cfg.DynamoDBEndpoint),
		slog.String("region", cfg.DynamoDBRegion),
		slog.String("table", cfg.DynamoDBTable))

	client, err := storage.NewDynamoDBClient(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create DynamoDB client: %v", err)
	}

	schema := storage.GetTableSchema(cfg.DynamoDBTable)

	// Check if table already exists
	_, err = client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(schema.TableName),
	})

	var notFound *types.ResourceNotFoundException
	switch {
	case err == nil && !*recreate:
		logger.Info("Table already exists, leaving it in place",
			slog.String("table", schema.TableName))
		return

	case err == nil:
		logger.Info("Table already exists, deleting and recreating",
			slog.String("table", schema.TableName))

		_, err = client.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(schema.TableName),
		})
		if err != nil {
			log.Fatalf("Failed to delete existing table: %v", err)
		}

		waiter := dynamodb.NewTableNotExistsWaiter(client)
		err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
			TableName: aws.String(schema.TableName),
		}, waitTimeout)
		if err != nil {
			log.Fatalf("Failed waiting for table deletion: %v", err)
		}

		logger.Info("Existing table deleted successfully")

	case !errors.As(err, &notFound):
		log.Fatalf("Failed to describe table: %v", err)
	}

	logger.Info("Creating DynamoDB table",
		slog.String("table", schema.TableName))

	if _, err := client.CreateTable(ctx, schema.CreateTableInput()); err != nil {
		log.Fatalf("Failed to create table: %v", err)
	}

	// Wait for table to be active
	waiter := dynamodb.NewTableExistsWaiter(client)
	err = waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(schema.TableName),
	}, waitTimeout)
	if err != nil {
		log.Fatalf("Failed waiting for table creation: %v", err)
	}

	gateway := storage.NewDynamoDBGatewayFromAPI(client, schema.TableName, logger)
	if err := gateway.VerifySchema(ctx); err != nil {
		log.Fatalf("Created table does not match the expected schema: %v", err)
	}

	logger.Info("Table created successfully",
		slog.String("table", schema.TableName))

	fmt.Printf("\nTable: %s\n", schema.TableName)
	fmt.Printf("Billing: %s\n", types.BillingModePayPerRequest)
	fmt.Printf("\nPrimary Key:\n")
	fmt.Printf("  - Partition Key: %s (HASH)\n", schema.PartitionKey)
	fmt.Printf("  - Sort Key: %s (RANGE)\n", schema.SortKey)
	fmt.Println("\nReady to use!")
}
