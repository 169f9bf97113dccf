package registry

import (
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	// SchemaVersion tags registry entries written with the current layout.
	// Reads reject entries written by a different generation.
	SchemaVersion = 2

	// MaxRecordPayload is the hard cap on record payload size in bytes.
	MaxRecordPayload = 512

	// MaxTerm caps a single registration or renewal period at ten years.
	MaxTerm = 10 * 365 * 24 * time.Hour
)

// Identity is a 32-byte account identity on the local chain. The zero value
// marks an unset field: a domain whose delegate is zero was never claimed.
type Identity [32]byte

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool { return id == Identity{} }

// String returns the identity as lowercase hex.
func (id Identity) String() string { return hex.EncodeToString(id[:]) }

// MarshalDynamoDBAttributeValue encodes the identity as a binary attribute.
func (id Identity) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return marshalFixed(id[:])
}

// UnmarshalDynamoDBAttributeValue decodes the identity from a binary attribute.
func (id *Identity) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	return unmarshalFixed(av, id[:], "identity")
}

// ExternalAddress is a 20-byte account address on the external chain.
type ExternalAddress [20]byte

// String returns the address as lowercase hex.
func (a ExternalAddress) String() string { return hex.EncodeToString(a[:]) }

// MarshalDynamoDBAttributeValue encodes the address as a binary attribute.
func (a ExternalAddress) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return marshalFixed(a[:])
}

// UnmarshalDynamoDBAttributeValue decodes the address from a binary attribute.
func (a *ExternalAddress) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	return unmarshalFixed(av, a[:], "external address")
}

// NameHash is the 32-byte hash of a fully-qualified name. Callers compute it;
// the registry only ever sees the hash.
type NameHash [32]byte

// IsZero reports whether the name hash is unset.
func (n NameHash) IsZero() bool { return n == NameHash{} }

// String returns the name hash as lowercase hex.
func (n NameHash) String() string { return hex.EncodeToString(n[:]) }

// MarshalDynamoDBAttributeValue encodes the name hash as a binary attribute.
func (n NameHash) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return marshalFixed(n[:])
}

// UnmarshalDynamoDBAttributeValue decodes the name hash from a binary attribute.
func (n *NameHash) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	return unmarshalFixed(av, n[:], "name hash")
}

// FieldHash is the 32-byte hash of a record's logical field key.
type FieldHash [32]byte

// String returns the field hash as lowercase hex.
func (f FieldHash) String() string { return hex.EncodeToString(f[:]) }

// MarshalDynamoDBAttributeValue encodes the field hash as a binary attribute.
func (f FieldHash) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return marshalFixed(f[:])
}

// UnmarshalDynamoDBAttributeValue decodes the field hash from a binary attribute.
func (f *FieldHash) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	return unmarshalFixed(av, f[:], "field hash")
}

// TxRef is a 32-byte external transaction reference, kept for audit only.
type TxRef [32]byte

// IsZero reports whether the reference is unset. Domains written only through
// the legacy path carry a zero reference.
func (tx TxRef) IsZero() bool { return tx == TxRef{} }

// String returns the reference as lowercase hex.
func (tx TxRef) String() string { return hex.EncodeToString(tx[:]) }

// MarshalDynamoDBAttributeValue encodes the reference as a binary attribute.
func (tx TxRef) MarshalDynamoDBAttributeValue() (types.AttributeValue, error) {
	return marshalFixed(tx[:])
}

// UnmarshalDynamoDBAttributeValue decodes the reference from a binary attribute.
func (tx *TxRef) UnmarshalDynamoDBAttributeValue(av types.AttributeValue) error {
	return unmarshalFixed(av, tx[:], "tx ref")
}

func marshalFixed(b []byte) (types.AttributeValue, error) {
	return &types.AttributeValueMemberB{Value: append([]byte(nil), b...)}, nil
}

func unmarshalFixed(av types.AttributeValue, dst []byte, what string) error {
	bv, ok := av.(*types.AttributeValueMemberB)
	if !ok {
		return fmt.Errorf("registry: %s attribute is %T, want binary", what, av)
	}
	if len(bv.Value) != len(dst) {
		return fmt.Errorf("registry: %s is %d bytes, want %d", what, len(bv.Value), len(dst))
	}
	copy(dst, bv.Value)
	return nil
}

// ConflictPolicy governs how local record writes interact with mirrored ones.
// It is fixed at Initialize.
type ConflictPolicy uint8

const (
	// PolygonPriority rejects local-chain record writes whose version is
	// older than the stored one. External-chain writes always pass.
	PolygonPriority ConflictPolicy = iota

	// LatestWriteWins lets any authorized write overwrite unconditionally.
	LatestWriteWins
)

func (p ConflictPolicy) valid() bool { return p <= LatestWriteWins }

// String implements fmt.Stringer.
func (p ConflictPolicy) String() string {
	switch p {
	case PolygonPriority:
		return "polygon_priority"
	case LatestWriteWins:
		return "latest_write_wins"
	}
	return fmt.Sprintf("ConflictPolicy(%d)", uint8(p))
}

// RecordType classifies what a record payload resolves to.
type RecordType uint8

const (
	RecordAddress RecordType = iota
	RecordText
	RecordContentHash
	RecordCustom
)

func (t RecordType) valid() bool { return t <= RecordCustom }

// String implements fmt.Stringer.
func (t RecordType) String() string {
	switch t {
	case RecordAddress:
		return "address"
	case RecordText:
		return "text"
	case RecordContentHash:
		return "content_hash"
	case RecordCustom:
		return "custom"
	}
	return fmt.Sprintf("RecordType(%d)", uint8(t))
}

// ChainSource names the chain a record write originated on.
type ChainSource uint8

const (
	// SourceExternal marks writes mirrored from the external chain.
	SourceExternal ChainSource = iota

	// SourceLocal marks writes made directly on this chain.
	SourceLocal
)

func (s ChainSource) valid() bool { return s <= SourceLocal }

// String implements fmt.Stringer.
func (s ChainSource) String() string {
	switch s {
	case SourceExternal:
		return "external"
	case SourceLocal:
		return "local"
	}
	return fmt.Sprintf("ChainSource(%d)", uint8(s))
}

// WrapState locates a domain's custody token: nowhere, on the external chain,
// or on the local chain.
type WrapState uint8

const (
	WrapNone WrapState = iota
	WrapExternal
	WrapLocal
)

func (w WrapState) valid() bool { return w <= WrapLocal }

// String implements fmt.Stringer.
func (w WrapState) String() string {
	switch w {
	case WrapNone:
		return "none"
	case WrapExternal:
		return "external"
	case WrapLocal:
		return "local"
	}
	return fmt.Sprintf("WrapState(%d)", uint8(w))
}

// RegistryEntry is the singleton holding the authority, the conflict policy,
// and the lifetime domain counter. It is created once and never destroyed.
type RegistryEntry struct {
	Address          string          `dynamodbav:"address"`
	Authority        Identity        `dynamodbav:"authority"`
	ExternalRegistry ExternalAddress `dynamodbav:"external_registry"`
	DomainCount      uint64          `dynamodbav:"domain_count"`
	ConflictPolicy   ConflictPolicy  `dynamodbav:"conflict_policy"`
	SchemaVersion    uint8           `dynamodbav:"schema_version"`

	// Rev is the ledger-managed revision guarding optimistic commits.
	Rev uint64 `dynamodbav:"rev"`
}

// DomainEntry holds one name's delegation, expiry, and mirrored state.
// Entries are never destroyed; an expired entry is overwritten in place by
// the next registration.
type DomainEntry struct {
	Address        string          `dynamodbav:"address"`
	NameHash       NameHash        `dynamodbav:"name_hash"`
	Delegate       Identity        `dynamodbav:"delegate"`
	ExternalOwner  ExternalAddress `dynamodbav:"external_owner"`
	Resolver       Identity        `dynamodbav:"resolver"`
	Expiration     uint64          `dynamodbav:"expiration"`
	LastExternalTx TxRef           `dynamodbav:"last_external_tx"`
	WrapState      WrapState       `dynamodbav:"wrap_state"`
	CustodyToken   Identity        `dynamodbav:"custody_token"`
	RecordCount    uint16          `dynamodbav:"record_count"`

	// Rev is the ledger-managed revision guarding optimistic commits.
	Rev uint64 `dynamodbav:"rev"`
}

// Expired reports whether the domain's term has lapsed at the given unix time.
func (d *DomainEntry) Expired(nowUnix uint64) bool {
	return nowUnix >= d.Expiration
}

// RecordEntry holds one resolution record under a domain. Unlike domain
// entries, record entries are destroyed on delete.
type RecordEntry struct {
	Address string `dynamodbav:"address"`

	// Domain is the owning domain's address. A zero value means the entry
	// was never populated.
	Domain string `dynamodbav:"domain"`

	NameHash       NameHash    `dynamodbav:"name_hash"`
	FieldHash      FieldHash   `dynamodbav:"field_hash"`
	Type           RecordType  `dynamodbav:"record_type"`
	Source         ChainSource `dynamodbav:"source_chain"`
	Version        uint64      `dynamodbav:"version"`
	LastUpdatedSeq uint64      `dynamodbav:"last_updated_seq"`
	Payload        []byte      `dynamodbav:"payload"`

	// Rev is the ledger-managed revision guarding optimistic commits.
	Rev uint64 `dynamodbav:"rev"`
}

// satAdd64 adds without wrapping, pinning at the uint64 ceiling.
func satAdd64(a, b uint64) uint64 {
	if a > math.MaxUint64-b {
		return math.MaxUint64
	}
	return a + b
}

// satAdd16 adds without wrapping, pinning at the uint16 ceiling.
func satAdd16(a, b uint16) uint16 {
	if a > math.MaxUint16-b {
		return math.MaxUint16
	}
	return a + b
}

// satSub16 subtracts without wrapping, pinning at zero.
func satSub16(a, b uint16) uint16 {
	if b > a {
		return 0
	}
	return a - b
}
