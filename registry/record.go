package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jacentio/nsmirror/internal/address"
)

// UpsertRecordInput carries one record write from either path. Version is the
// caller's conflict counter; the registry never generates versions itself.
type UpsertRecordInput struct {
	NameHash  NameHash
	FieldHash FieldHash
	Type      RecordType
	Payload   []byte
	Source    ChainSource
	Version   uint64
}

// UpsertRecord creates or overwrites one record under a domain. The caller
// must be the registry authority or the domain's delegate. Under the
// PolygonPriority policy a local-chain write loses to a stored record with a
// greater version; external-chain writes and first writes always land. Every
// field of the record is replaced, and the write is stamped with the current
// ledger sequence.
func (r *Registry) UpsertRecord(ctx context.Context, caller Identity, input UpsertRecordInput) error {
	if input.NameHash.IsZero() {
		return ErrInvalidName
	}
	if !input.Type.valid() {
		return fmt.Errorf("registry: invalid record type %d", uint8(input.Type))
	}
	if !input.Source.valid() {
		return fmt.Errorf("registry: invalid chain source %d", uint8(input.Source))
	}
	if len(input.Payload) > MaxRecordPayload {
		return ErrRecordTooLarge
	}

	reg, err := r.GetRegistry(ctx)
	if err != nil {
		return err
	}
	domain, err := r.GetDomain(ctx, input.NameHash)
	if err != nil {
		return err
	}
	if caller != reg.Authority && caller != domain.Delegate {
		return ErrUnauthorized
	}

	recordAddr := address.Record(domain.Address, input.FieldHash)

	var prevRev, storedVersion uint64
	var existing RecordEntry
	present := false
	switch err := r.getEntry(ctx, recordAddr, &existing); {
	case err == nil:
		present = true
		prevRev = existing.Rev
		storedVersion = existing.Version
	case errors.Is(err, ErrNotFound):
		// first write to this field
	default:
		return err
	}
	wasEmpty := !present || existing.Domain == ""

	if recordConflict(reg.ConflictPolicy, storedVersion, input.Source, input.Version) {
		return ErrConflictViolation
	}

	entry := RecordEntry{
		Address:        recordAddr,
		Domain:         domain.Address,
		NameHash:       input.NameHash,
		FieldHash:      input.FieldHash,
		Type:           input.Type,
		Source:         input.Source,
		Version:        input.Version,
		LastUpdatedSeq: r.seq(),
		Payload:        input.Payload,
		Rev:            prevRev + 1,
	}
	recordPut, err := r.transactPut(entry, prevRev)
	if err != nil {
		return err
	}

	if wasEmpty {
		domainNext := *domain
		domainNext.RecordCount = satAdd16(domain.RecordCount, 1)
		domainNext.Rev = domain.Rev + 1
		domainPut, err := r.transactPut(domainNext, domain.Rev)
		if err != nil {
			return err
		}
		if err := r.commit(ctx, recordPut, domainPut); err != nil {
			return err
		}
	} else {
		// The domain is read for authorization only; pin its revision so the
		// check still holds when the record lands.
		if err := r.commit(ctx, recordPut, r.transactCheck(domain.Address, domain.Rev)); err != nil {
			return err
		}
	}

	r.notifier.Notify(ctx, RecordUpdated{
		NameHash:  input.NameHash,
		FieldHash: input.FieldHash,
		Type:      input.Type,
		Source:    input.Source,
		Version:   input.Version,
	})
	r.logger.Debug("record upserted",
		"name", input.NameHash,
		"field", input.FieldHash,
		"type", input.Type,
		"source", input.Source,
		"version", input.Version,
	)
	return nil
}

// DeleteRecord destroys one record under a domain and frees its storage. The
// caller must be the registry authority or the domain's delegate. The
// domain's record count is decremented saturating at zero; the count is not
// cross-checked against the entry being destroyed.
func (r *Registry) DeleteRecord(ctx context.Context, caller Identity, nameHash NameHash, fieldHash FieldHash) error {
	if nameHash.IsZero() {
		return ErrInvalidName
	}

	reg, err := r.GetRegistry(ctx)
	if err != nil {
		return err
	}
	domain, err := r.GetDomain(ctx, nameHash)
	if err != nil {
		return err
	}
	if caller != reg.Authority && caller != domain.Delegate {
		return ErrUnauthorized
	}

	recordAddr := address.Record(domain.Address, fieldHash)
	var existing RecordEntry
	if err := r.getEntry(ctx, recordAddr, &existing); err != nil {
		return err
	}

	domainNext := *domain
	domainNext.RecordCount = satSub16(domain.RecordCount, 1)
	domainNext.Rev = domain.Rev + 1
	domainPut, err := r.transactPut(domainNext, domain.Rev)
	if err != nil {
		return err
	}

	if err := r.commit(ctx, r.transactDelete(recordAddr), domainPut); err != nil {
		return err
	}

	r.notifier.Notify(ctx, RecordDeleted{
		NameHash:  nameHash,
		FieldHash: fieldHash,
	})
	r.logger.Debug("record deleted",
		"name", nameHash,
		"field", fieldHash,
	)
	return nil
}

// recordConflict reports whether a write must be rejected in favor of the
// stored record. Only local-chain writes can lose, only under the
// PolygonPriority policy, and only to a stored version greater than theirs.
func recordConflict(policy ConflictPolicy, storedVersion uint64, source ChainSource, version uint64) bool {
	if policy != PolygonPriority {
		return false
	}
	if storedVersion == 0 {
		return false
	}
	if source != SourceLocal {
		return false
	}
	return version < storedVersion
}
