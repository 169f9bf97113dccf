package registry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/nsmirror/internal/address"
)

// Condition expressions the registry writes with. The in-memory test ledger
// interprets exactly these forms.
const (
	// createGuardExpr fails a put when the entry already exists.
	createGuardExpr = "attribute_not_exists(address)"

	// revGuardExpr fails a write when the stored revision moved since the
	// operation's read.
	revGuardExpr = "#rev = :rev"
)

// Registry is the client for the naming registry. Every operation is a single
// read-validate-commit round: validation errors surface before anything is
// written, and all writes of one operation commit atomically or not at all.
//
// Callers arrive pre-authenticated; the caller Identity on each operation is
// trusted to be verified by the host.
type Registry struct {
	ledger   Ledger
	config   Config
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
	seq      func() uint64
}

// Option configures a Registry client.
type Option func(*Registry)

// WithNotifier sets the post-commit notification sink.
func WithNotifier(n Notifier) Option {
	return func(r *Registry) {
		if n != nil {
			r.notifier = n
		}
	}
}

// WithClock overrides the time source used for expiration checks.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithSequence overrides the ledger sequence source stamped on record writes.
// The sequence is a freshness marker only; it carries no ordering guarantee
// across operations.
func WithSequence(seq func() uint64) Option {
	return func(r *Registry) {
		if seq != nil {
			r.seq = seq
		}
	}
}

// WithLogger sets the logger for operation traces. Mutations log at Debug.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Registry client on the given ledger.
func New(ledger Ledger, config Config, opts ...Option) *Registry {
	config.validate()
	r := &Registry{
		ledger:   ledger,
		config:   config,
		notifier: nopNotifier{},
		logger:   slog.Default(),
		clock:    time.Now,
	}
	r.seq = func() uint64 { return uint64(r.clock().UnixMilli()) }
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize creates the registry singleton with the caller as authority and
// the given conflict policy. It can succeed exactly once per table; later
// calls return ErrAlreadyInitialized. The policy and authority are fixed for
// the lifetime of the registry.
func (r *Registry) Initialize(ctx context.Context, caller Identity, externalRegistry ExternalAddress, policy ConflictPolicy) error {
	if !policy.valid() {
		return fmt.Errorf("registry: invalid conflict policy %d", uint8(policy))
	}

	entry := RegistryEntry{
		Address:          address.Registry(),
		Authority:        caller,
		ExternalRegistry: externalRegistry,
		ConflictPolicy:   policy,
		SchemaVersion:    SchemaVersion,
		Rev:              1,
	}
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal registry entry: %w", err)
	}

	_, err = r.ledger.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.config.Table),
		Item:                item,
		ConditionExpression: aws.String(createGuardExpr),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return ErrAlreadyInitialized
		}
		return err
	}

	r.logger.Debug("registry initialized",
		"authority", caller,
		"policy", policy,
	)
	return nil
}

// GetRegistry returns the registry singleton, or ErrNotFound before Initialize.
func (r *Registry) GetRegistry(ctx context.Context) (*RegistryEntry, error) {
	var entry RegistryEntry
	if err := r.getEntry(ctx, address.Registry(), &entry); err != nil {
		return nil, err
	}
	if entry.SchemaVersion != SchemaVersion {
		return nil, fmt.Errorf("registry: unsupported schema version %d", entry.SchemaVersion)
	}
	return &entry, nil
}

// GetDomain returns the domain entry for a name hash, or ErrNotFound.
func (r *Registry) GetDomain(ctx context.Context, nameHash NameHash) (*DomainEntry, error) {
	if nameHash.IsZero() {
		return nil, ErrInvalidName
	}
	var entry DomainEntry
	if err := r.getEntry(ctx, address.Domain(nameHash), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetRecord returns the record entry for a field under a domain, or ErrNotFound.
func (r *Registry) GetRecord(ctx context.Context, nameHash NameHash, fieldHash FieldHash) (*RecordEntry, error) {
	if nameHash.IsZero() {
		return nil, ErrInvalidName
	}
	var entry RecordEntry
	addr := address.Record(address.Domain(nameHash), fieldHash)
	if err := r.getEntry(ctx, addr, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// getEntry loads one entry with a consistent read and unmarshals it into out.
func (r *Registry) getEntry(ctx context.Context, addr string, out any) error {
	result, err := r.ledger.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.config.Table),
		Key:            entryKey(addr),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return err
	}
	if result.Item == nil {
		return ErrNotFound
	}
	if err := attributevalue.UnmarshalMap(result.Item, out); err != nil {
		return fmt.Errorf("unmarshal entry %s: %w", addr, err)
	}
	return nil
}

// requireAuthority loads the registry and checks the caller against its
// authority. Authority is write-once, so no commit-time recheck is needed.
func (r *Registry) requireAuthority(ctx context.Context, caller Identity) (*RegistryEntry, error) {
	reg, err := r.GetRegistry(ctx)
	if err != nil {
		return nil, err
	}
	if caller != reg.Authority {
		return nil, ErrUnauthorized
	}
	return reg, nil
}

// now returns the clock reading as unix seconds.
func (r *Registry) now() uint64 {
	return uint64(r.clock().Unix())
}

// putEntry commits a single entry guarded by its prior revision.
func (r *Registry) putEntry(ctx context.Context, entry any, prevRev uint64) error {
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	_, err = r.ledger.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.config.Table),
		Item:                      item,
		ConditionExpression:       aws.String(revGuardExpr),
		ExpressionAttributeNames:  map[string]string{"#rev": "rev"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":rev": revValue(prevRev)},
	})
	return mapConditionError(err)
}

// transactPut builds a transactional put guarded by the entry's prior
// revision. prevRev zero means the entry must not exist yet.
func (r *Registry) transactPut(entry any, prevRev uint64) (types.TransactWriteItem, error) {
	item, err := attributevalue.MarshalMap(entry)
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("marshal entry: %w", err)
	}
	put := &types.Put{
		TableName: aws.String(r.config.Table),
		Item:      item,
	}
	if prevRev == 0 {
		put.ConditionExpression = aws.String(createGuardExpr)
	} else {
		put.ConditionExpression = aws.String(revGuardExpr)
		put.ExpressionAttributeNames = map[string]string{"#rev": "rev"}
		put.ExpressionAttributeValues = map[string]types.AttributeValue{":rev": revValue(prevRev)}
	}
	return types.TransactWriteItem{Put: put}, nil
}

// transactCheck builds a revision condition on an entry the operation read
// but does not write, so its validation still holds at commit time.
func (r *Registry) transactCheck(addr string, rev uint64) types.TransactWriteItem {
	return types.TransactWriteItem{
		ConditionCheck: &types.ConditionCheck{
			TableName:                 aws.String(r.config.Table),
			Key:                       entryKey(addr),
			ConditionExpression:       aws.String(revGuardExpr),
			ExpressionAttributeNames:  map[string]string{"#rev": "rev"},
			ExpressionAttributeValues: map[string]types.AttributeValue{":rev": revValue(rev)},
		},
	}
}

// transactDelete builds an unconditional transactional delete.
func (r *Registry) transactDelete(addr string) types.TransactWriteItem {
	return types.TransactWriteItem{
		Delete: &types.Delete{
			TableName: aws.String(r.config.Table),
			Key:       entryKey(addr),
		},
	}
}

// commit executes one atomic multi-entry write.
func (r *Registry) commit(ctx context.Context, items ...types.TransactWriteItem) error {
	_, err := r.ledger.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err)
}

// entryKey builds the primary key for an entry address.
func entryKey(addr string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"address": &types.AttributeValueMemberS{Value: addr},
	}
}

func revValue(rev uint64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatUint(rev, 10)}
}

// mapConditionError maps a single-item conditional failure to the concurrent
// modification error.
func mapConditionError(err error) error {
	if err == nil {
		return nil
	}
	var condErr *types.ConditionalCheckFailedException
	if errors.As(err, &condErr) {
		return ErrConcurrentModification
	}
	return err
}

// mapTransactionError maps transaction cancellation to the concurrent
// modification error. Every condition in a registry transaction is a guard
// that the state read by the operation is still current, so any failed
// condition means the operation must be resubmitted against fresh state.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}
	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for _, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				return ErrConcurrentModification
			}
		}
	}
	return err
}
