package registry

import "context"

// Notification is the closed set of facts emitted after a mirror-path or
// record mutation commits. Legacy-path domain operations emit nothing.
type Notification interface {
	notification()
}

// DomainMirrored reports an authoritative snapshot applied to a domain.
type DomainMirrored struct {
	NameHash      NameHash
	Delegate      Identity
	ExternalOwner ExternalAddress
	Expiration    uint64
}

// RecordUpdated reports a record created or overwritten under a domain.
type RecordUpdated struct {
	NameHash  NameHash
	FieldHash FieldHash
	Type      RecordType
	Source    ChainSource
	Version   uint64
}

// RecordDeleted reports a record destroyed under a domain.
type RecordDeleted struct {
	NameHash  NameHash
	FieldHash FieldHash
}

// WrapStateChanged reports a custody move for a domain's token.
type WrapStateChanged struct {
	NameHash     NameHash
	WrapState    WrapState
	CustodyToken Identity
}

// DelegateUpdated reports an authority-driven delegate replacement.
type DelegateUpdated struct {
	NameHash NameHash
	Delegate Identity
}

func (DomainMirrored) notification()   {}
func (RecordUpdated) notification()    {}
func (RecordDeleted) notification()    {}
func (WrapStateChanged) notification() {}
func (DelegateUpdated) notification()  {}

// Notifier receives notifications after the owning mutation has committed.
// Delivery is fire-and-forget: the registry never blocks on or retries a
// notification, and a failed operation emits nothing.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Notification) {}
