// Package ledgertest provides an in-memory double of the DynamoDB operations
// the registry performs. It honors the exact condition forms the registry
// writes (attribute_not_exists on the address key, and revision equality) and
// reproduces DynamoDB's transaction cancellation shape, including per-item
// cancellation reasons.
package ledgertest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

var errConditionFailed = errors.New("ledgertest: condition failed")

// Memory is an in-memory ledger keyed by table name and address. Writes are
// serialized by a single lock, so transactions are atomic and isolated the
// way DynamoDB transactions are.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]map[string]map[string]types.AttributeValue
}

// New creates an empty Memory ledger. Tables spring into existence on first
// write.
func New() *Memory {
	return &Memory{
		tables: make(map[string]map[string]map[string]types.AttributeValue),
	}
}

// GetItem returns a copy of the stored item, or a nil Item when absent.
func (m *Memory) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	addr, err := itemAddress(params.Key)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	item := m.tables[aws.ToString(params.TableName)][addr]
	return &dynamodb.GetItemOutput{Item: copyItem(item)}, nil
}

// PutItem stores the item if its condition holds, otherwise returns
// ConditionalCheckFailedException.
func (m *Memory) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	addr, err := itemAddress(params.Item)
	if err != nil {
		return nil, err
	}
	table := aws.ToString(params.TableName)

	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.tables[table][addr]
	if err := evalCondition(params.ConditionExpression, params.ExpressionAttributeNames, params.ExpressionAttributeValues, current); err != nil {
		if errors.Is(err, errConditionFailed) {
			return nil, &types.ConditionalCheckFailedException{
				Message: aws.String("The conditional request failed"),
			}
		}
		return nil, err
	}

	m.store(table, addr, params.Item)
	return &dynamodb.PutItemOutput{}, nil
}

// TransactWriteItems checks every item's condition against the current state
// and applies all writes only if every condition holds. On any failure it
// returns TransactionCanceledException with one cancellation reason per item,
// in item order, and applies nothing.
func (m *Memory) TransactWriteItems(_ context.Context, params *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	reasons := make([]types.CancellationReason, len(params.TransactItems))
	cancelled := false
	for i, item := range params.TransactItems {
		reasons[i] = types.CancellationReason{Code: aws.String("None")}

		var err error
		switch {
		case item.Put != nil:
			err = m.checkPut(item.Put)
		case item.Delete != nil:
			err = m.checkDelete(item.Delete)
		case item.ConditionCheck != nil:
			err = m.checkConditionCheck(item.ConditionCheck)
		default:
			return nil, fmt.Errorf("ledgertest: unsupported transact item at index %d", i)
		}

		switch {
		case errors.Is(err, errConditionFailed):
			reasons[i] = types.CancellationReason{Code: aws.String("ConditionalCheckFailed")}
			cancelled = true
		case err != nil:
			return nil, err
		}
	}

	if cancelled {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}

	for _, item := range params.TransactItems {
		switch {
		case item.Put != nil:
			addr, _ := itemAddress(item.Put.Item)
			m.store(aws.ToString(item.Put.TableName), addr, item.Put.Item)
		case item.Delete != nil:
			addr, _ := itemAddress(item.Delete.Key)
			delete(m.tables[aws.ToString(item.Delete.TableName)], addr)
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// Seed stores an item directly, bypassing all conditions. Test setup only.
func (m *Memory) Seed(table string, item map[string]types.AttributeValue) {
	addr, err := itemAddress(item)
	if err != nil {
		panic(err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(table, addr, item)
}

// Len returns the number of items in a table.
func (m *Memory) Len(table string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tables[table])
}

func (m *Memory) checkPut(p *types.Put) error {
	addr, err := itemAddress(p.Item)
	if err != nil {
		return err
	}
	current := m.tables[aws.ToString(p.TableName)][addr]
	return evalCondition(p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues, current)
}

func (m *Memory) checkDelete(d *types.Delete) error {
	addr, err := itemAddress(d.Key)
	if err != nil {
		return err
	}
	current := m.tables[aws.ToString(d.TableName)][addr]
	return evalCondition(d.ConditionExpression, d.ExpressionAttributeNames, d.ExpressionAttributeValues, current)
}

func (m *Memory) checkConditionCheck(c *types.ConditionCheck) error {
	addr, err := itemAddress(c.Key)
	if err != nil {
		return err
	}
	current := m.tables[aws.ToString(c.TableName)][addr]
	return evalCondition(c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues, current)
}

func (m *Memory) store(table, addr string, item map[string]types.AttributeValue) {
	if m.tables[table] == nil {
		m.tables[table] = make(map[string]map[string]types.AttributeValue)
	}
	m.tables[table][addr] = copyItem(item)
}

// evalCondition evaluates the two condition forms the registry emits against
// the current item (nil when absent). Anything else is an error so tests fail
// loudly instead of silently passing an uninterpreted guard.
func evalCondition(expr *string, names map[string]string, values map[string]types.AttributeValue, current map[string]types.AttributeValue) error {
	if expr == nil {
		return nil
	}

	switch *expr {
	case "attribute_not_exists(address)":
		if current != nil {
			if _, exists := current["address"]; exists {
				return errConditionFailed
			}
		}
		return nil

	case "#rev = :rev":
		attr := names["#rev"]
		if attr == "" {
			return fmt.Errorf("ledgertest: condition %q missing #rev name", *expr)
		}
		want, ok := values[":rev"].(*types.AttributeValueMemberN)
		if !ok {
			return fmt.Errorf("ledgertest: condition %q missing :rev value", *expr)
		}
		if current == nil {
			return errConditionFailed
		}
		got, ok := current[attr].(*types.AttributeValueMemberN)
		if !ok || got.Value != want.Value {
			return errConditionFailed
		}
		return nil
	}

	return fmt.Errorf("ledgertest: unsupported condition %q", *expr)
}

// itemAddress extracts the string partition key from an item or key map.
func itemAddress(item map[string]types.AttributeValue) (string, error) {
	v, ok := item["address"].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("ledgertest: item missing string address attribute")
	}
	return v.Value, nil
}

func copyItem(item map[string]types.AttributeValue) map[string]types.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]types.AttributeValue, len(item))
	for k, v := range item {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v types.AttributeValue) types.AttributeValue {
	switch av := v.(type) {
	case *types.AttributeValueMemberB:
		return &types.AttributeValueMemberB{Value: append([]byte(nil), av.Value...)}
	case *types.AttributeValueMemberL:
		vals := make([]types.AttributeValue, len(av.Value))
		for i, lv := range av.Value {
			vals[i] = copyValue(lv)
		}
		return &types.AttributeValueMemberL{Value: vals}
	case *types.AttributeValueMemberM:
		return &types.AttributeValueMemberM{Value: copyItem(av.Value)}
	default:
		return v
	}
}
