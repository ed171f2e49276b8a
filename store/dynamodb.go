package store

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsmiddleware "github.com/aws/aws-sdk-go-v2/aws/middleware"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go/middleware"
)

// DynamoDBAPI is the subset of the DynamoDB client used by the store.
type DynamoDBAPI interface {
	BatchWriteItem(
		ctx context.Context,
		params *dynamodb.BatchWriteItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.BatchWriteItemOutput, error)
	BatchGetItem(
		ctx context.Context,
		params *dynamodb.BatchGetItemInput,
		optFns ...func(*dynamodb.Options),
	) (*dynamodb.BatchGetItemOutput, error)
}

// DynamoDB stores records in a single DynamoDB table keyed by (pk, sk).
type DynamoDB struct {
	client DynamoDBAPI
	table  string
}

// NewDynamoDB wraps an existing client.
func NewDynamoDB(client DynamoDBAPI, table string) *DynamoDB {
	return &DynamoDB{client: client, table: table}
}

// NewDynamoDBFromEnv builds a client from the default AWS credential chain.
// SDK retries are disabled so each batch call is exactly one request.
func NewDynamoDBFromEnv(ctx context.Context, table string) (*DynamoDB, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRetryer(func() aws.Retryer { return aws.NopRetryer{} }),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewDynamoDB(dynamodb.NewFromConfig(cfg), table), nil
}

// Table returns the table name.
func (d *DynamoDB) Table() string { return d.table }

// BatchPut writes all records with one BatchWriteItem call.
func (d *DynamoDB) BatchPut(ctx context.Context, records []Record) (string, error) {
	reqs := make([]types.WriteRequest, 0, len(records))

	for _, rec := range records {
		item, err := attributevalue.MarshalMap(rec)
		if err != nil {
			return "", fmt.Errorf("marshal record %s: %w", rec.PK, err)
		}

		reqs = append(reqs, types.WriteRequest{
			PutRequest: &types.PutRequest{Item: item},
		})
	}

	out, err := d.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
		RequestItems: map[string][]types.WriteRequest{d.table: reqs},
	})
	if err != nil {
		return "", fmt.Errorf("dynamodb batch write: %w", err)
	}

	return requestID(out.ResultMetadata), nil
}

// BatchGet reads the keys with one BatchGetItem call. Unprocessed keys are
// not retried.
func (d *DynamoDB) BatchGet(ctx context.Context, keys []Key) ([]Record, string, error) {
	keyItems := make([]map[string]types.AttributeValue, 0, len(keys))

	for _, k := range keys {
		item, err := attributevalue.MarshalMap(k)
		if err != nil {
			return nil, "", fmt.Errorf("marshal key %s: %w", k.PK, err)
		}

		keyItems = append(keyItems, item)
	}

	out, err := d.client.BatchGetItem(ctx, &dynamodb.BatchGetItemInput{
		RequestItems: map[string]types.KeysAndAttributes{
			d.table: {Keys: keyItems},
		},
	})
	if err != nil {
		return nil, "", fmt.Errorf("dynamodb batch read: %w", err)
	}

	var records []Record
	if err := attributevalue.UnmarshalListOfMaps(out.Responses[d.table], &records); err != nil {
		return nil, "", fmt.Errorf("unmarshal items: %w", err)
	}

	return records, requestID(out.ResultMetadata), nil
}

func requestID(md middleware.Metadata) string {
	if id, ok := awsmiddleware.GetRequestIDMetadata(md); ok && id != "" {
		return id
	}

	return UnknownRequestID
}
