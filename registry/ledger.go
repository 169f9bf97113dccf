package registry

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// Ledger is the subset of the DynamoDB API the registry drives. It is the
// durable, atomic substrate every operation commits against: conditional
// writes carry the per-entry revision guards, and TransactWriteItems carries
// multi-entry commits. *dynamodb.Client satisfies it.
type Ledger interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}
