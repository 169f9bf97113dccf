package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jacentio/nsmirror/internal/address"
)

// RegisterDomain claims a name directly on the local chain, making the caller
// its delegate. The term must be positive and at most MaxTerm. A name whose
// entry is live and unexpired is not available; an expired entry is
// overwritten in place, resetting every mirror-only field. Each successful
// registration counts against the registry's lifetime domain counter, whether
// or not the name was registered before.
func (r *Registry) RegisterDomain(ctx context.Context, caller Identity, nameHash NameHash, duration time.Duration, resolver Identity) error {
	if nameHash.IsZero() {
		return ErrInvalidName
	}
	secs, err := durationSeconds(duration)
	if err != nil {
		return err
	}

	reg, err := r.GetRegistry(ctx)
	if err != nil {
		return err
	}

	now := r.now()
	addr := address.Domain(nameHash)

	var prevRev uint64
	var existing DomainEntry
	switch err := r.getEntry(ctx, addr, &existing); {
	case err == nil:
		if !existing.Delegate.IsZero() && !existing.Expired(now) {
			return ErrDomainNotAvailable
		}
		prevRev = existing.Rev
	case errors.Is(err, ErrNotFound):
		// first registration of this name
	default:
		return err
	}

	entry := DomainEntry{
		Address:    addr,
		NameHash:   nameHash,
		Delegate:   caller,
		Resolver:   resolver,
		Expiration: satAdd64(now, secs),
		Rev:        prevRev + 1,
	}
	domainPut, err := r.transactPut(entry, prevRev)
	if err != nil {
		return err
	}

	regNext := *reg
	regNext.DomainCount = satAdd64(reg.DomainCount, 1)
	regNext.Rev = reg.Rev + 1
	regPut, err := r.transactPut(regNext, reg.Rev)
	if err != nil {
		return err
	}

	if err := r.commit(ctx, domainPut, regPut); err != nil {
		return err
	}

	r.logger.Debug("domain registered",
		"name", nameHash,
		"delegate", caller,
		"expiration", entry.Expiration,
	)
	return nil
}

// RenewDomain extends a domain's term. Only the current delegate may renew,
// and the new expiration is the stored one plus the term, saturating at the
// uint64 ceiling. An already-expired domain can still be renewed as long as
// the caller remains its delegate.
func (r *Registry) RenewDomain(ctx context.Context, caller Identity, nameHash NameHash, duration time.Duration) error {
	if nameHash.IsZero() {
		return ErrInvalidName
	}
	secs, err := durationSeconds(duration)
	if err != nil {
		return err
	}

	domain, err := r.GetDomain(ctx, nameHash)
	if err != nil {
		return err
	}
	if caller != domain.Delegate {
		return ErrUnauthorized
	}

	prevRev := domain.Rev
	domain.Expiration = satAdd64(domain.Expiration, secs)
	domain.Rev = prevRev + 1
	if err := r.putEntry(ctx, domain, prevRev); err != nil {
		return err
	}

	r.logger.Debug("domain renewed",
		"name", nameHash,
		"expiration", domain.Expiration,
	)
	return nil
}

// TransferDomain hands the delegate role to another identity. The domain must
// have been claimed, must not be expired, and the caller must be the current
// delegate.
func (r *Registry) TransferDomain(ctx context.Context, caller Identity, nameHash NameHash, newDelegate Identity) error {
	if nameHash.IsZero() {
		return ErrInvalidName
	}

	domain, err := r.GetDomain(ctx, nameHash)
	if err != nil {
		return err
	}
	if domain.Delegate.IsZero() {
		return ErrDomainNotAvailable
	}
	if domain.Expired(r.now()) {
		return ErrDomainExpired
	}
	if caller != domain.Delegate {
		return ErrUnauthorized
	}

	prevRev := domain.Rev
	domain.Delegate = newDelegate
	domain.Rev = prevRev + 1
	if err := r.putEntry(ctx, domain, prevRev); err != nil {
		return err
	}

	r.logger.Debug("domain transferred",
		"name", nameHash,
		"delegate", newDelegate,
	)
	return nil
}

// SetResolver replaces the domain's resolver. Only the delegate may set it; a
// zero identity clears it.
func (r *Registry) SetResolver(ctx context.Context, caller Identity, nameHash NameHash, resolver Identity) error {
	if nameHash.IsZero() {
		return ErrInvalidName
	}

	domain, err := r.GetDomain(ctx, nameHash)
	if err != nil {
		return err
	}
	if caller != domain.Delegate {
		return ErrUnauthorized
	}

	prevRev := domain.Rev
	domain.Resolver = resolver
	domain.Rev = prevRev + 1
	if err := r.putEntry(ctx, domain, prevRev); err != nil {
		return err
	}

	r.logger.Debug("resolver updated", "name", nameHash)
	return nil
}

// MirrorDomainInput carries one authoritative snapshot from the external
// registry. Expiration is the absolute unix timestamp read off the external
// chain. A zero Delegate selects the registry authority.
type MirrorDomainInput struct {
	NameHash      NameHash
	ExternalOwner ExternalAddress
	Delegate      Identity
	Expiration    uint64
	Resolver      Identity
	ExternalTx    TxRef
}

// MirrorDomain applies an authoritative snapshot to a domain entry. Mirrored
// fields are overwritten unconditionally and expiry never blocks the write.
// A domain that was never claimed gets its wrap state and record count reset
// and counts against the lifetime domain counter; one that was, keeps them.
// Only the registry authority may mirror.
func (r *Registry) MirrorDomain(ctx context.Context, caller Identity, input MirrorDomainInput) error {
	if input.NameHash.IsZero() {
		return ErrInvalidName
	}

	reg, err := r.requireAuthority(ctx, caller)
	if err != nil {
		return err
	}

	addr := address.Domain(input.NameHash)

	var prevRev uint64
	var existing DomainEntry
	fresh := false
	switch err := r.getEntry(ctx, addr, &existing); {
	case err == nil:
		prevRev = existing.Rev
	case errors.Is(err, ErrNotFound):
		fresh = true
	default:
		return err
	}
	wasUnclaimed := fresh || existing.Delegate.IsZero()

	delegate := input.Delegate
	if delegate.IsZero() {
		delegate = reg.Authority
	}

	entry := DomainEntry{
		Address:        addr,
		NameHash:       input.NameHash,
		Delegate:       delegate,
		ExternalOwner:  input.ExternalOwner,
		Resolver:       input.Resolver,
		Expiration:     input.Expiration,
		LastExternalTx: input.ExternalTx,
		Rev:            prevRev + 1,
	}
	if !wasUnclaimed {
		entry.WrapState = existing.WrapState
		entry.CustodyToken = existing.CustodyToken
		entry.RecordCount = existing.RecordCount
	}

	if wasUnclaimed {
		domainPut, err := r.transactPut(entry, prevRev)
		if err != nil {
			return err
		}
		regNext := *reg
		regNext.DomainCount = satAdd64(reg.DomainCount, 1)
		regNext.Rev = reg.Rev + 1
		regPut, err := r.transactPut(regNext, reg.Rev)
		if err != nil {
			return err
		}
		if err := r.commit(ctx, domainPut, regPut); err != nil {
			return err
		}
	} else if err := r.putEntry(ctx, entry, prevRev); err != nil {
		return err
	}

	r.notifier.Notify(ctx, DomainMirrored{
		NameHash:      input.NameHash,
		Delegate:      delegate,
		ExternalOwner: input.ExternalOwner,
		Expiration:    input.Expiration,
	})
	r.logger.Debug("domain mirrored",
		"name", input.NameHash,
		"delegate", delegate,
		"expiration", input.Expiration,
	)
	return nil
}

// UpdateDelegate replaces a domain's delegate without touching any other
// field. Only the registry authority may call it.
func (r *Registry) UpdateDelegate(ctx context.Context, caller Identity, nameHash NameHash, newDelegate Identity) error {
	if nameHash.IsZero() {
		return ErrInvalidName
	}
	if _, err := r.requireAuthority(ctx, caller); err != nil {
		return err
	}

	domain, err := r.GetDomain(ctx, nameHash)
	if err != nil {
		return err
	}

	prevRev := domain.Rev
	domain.Delegate = newDelegate
	domain.Rev = prevRev + 1
	if err := r.putEntry(ctx, domain, prevRev); err != nil {
		return err
	}

	r.notifier.Notify(ctx, DelegateUpdated{
		NameHash: nameHash,
		Delegate: newDelegate,
	})
	r.logger.Debug("delegate updated",
		"name", nameHash,
		"delegate", newDelegate,
	)
	return nil
}

// SetWrapState records where the domain's custody token lives. Both fields
// are set together and neither is cross-validated; the authority is trusted
// to keep them coherent. Only the registry authority may call it.
func (r *Registry) SetWrapState(ctx context.Context, caller Identity, nameHash NameHash, custodyToken Identity, state WrapState) error {
	if nameHash.IsZero() {
		return ErrInvalidName
	}
	if !state.valid() {
		return fmt.Errorf("registry: invalid wrap state %d", uint8(state))
	}
	if _, err := r.requireAuthority(ctx, caller); err != nil {
		return err
	}

	domain, err := r.GetDomain(ctx, nameHash)
	if err != nil {
		return err
	}

	prevRev := domain.Rev
	domain.WrapState = state
	domain.CustodyToken = custodyToken
	domain.Rev = prevRev + 1
	if err := r.putEntry(ctx, domain, prevRev); err != nil {
		return err
	}

	r.notifier.Notify(ctx, WrapStateChanged{
		NameHash:     nameHash,
		WrapState:    state,
		CustodyToken: custodyToken,
	})
	r.logger.Debug("wrap state changed",
		"name", nameHash,
		"state", state,
	)
	return nil
}

// durationSeconds converts a term to whole seconds, rejecting terms that
// round to zero or exceed MaxTerm.
func durationSeconds(d time.Duration) (uint64, error) {
	if d <= 0 {
		return 0, ErrInvalidDuration
	}
	secs := uint64(d / time.Second)
	if secs == 0 || secs > uint64(MaxTerm/time.Second) {
		return 0, ErrInvalidDuration
	}
	return secs, nil
}
