// Package registry implements a naming registry that mirrors an external
// authoritative name system into a DynamoDB-backed ledger while still
// accepting a legacy set of direct local mutations on the same entries.
//
// Two write paths share one data model. The mirror path is driven by the
// registry authority and applies authoritative snapshots unconditionally; the
// legacy path is driven by per-domain delegates and enforces availability and
// expiry. Records sit under domains and are written by either path, with
// cross-path conflicts resolved by the policy fixed at Initialize.
//
// # Key Features
//
//   - Deterministic entry addressing from name and field hashes
//   - Atomic single-operation commits (conditional writes and transactions)
//   - Authority/delegate authorization checked per operation
//   - PolygonPriority or LatestWriteWins record conflict resolution
//   - Wrap-state tracking for domain custody tokens
//   - Post-commit notifications for mirror and record mutations
//
// # Entries
//
// Three entry kinds live in one table, distinguished by address prefix:
//
//   - [RegistryEntry]: the singleton authority, policy, and domain counter
//   - [DomainEntry]: one per name, keyed by the 32-byte name hash
//   - [RecordEntry]: one per (domain, field hash), destroyed on delete
//
// # Concurrency
//
// Operations hold no locks and spawn no goroutines. Each one reads the
// entries it needs, validates against that snapshot, and commits with the
// entries' revisions as conditions. A revision that moved in between
// surfaces as [ErrConcurrentModification]; the operation had no effect and
// can be resubmitted as-is.
//
// # Errors
//
// Validation failures are returned before anything is written:
//
//   - [ErrUnauthorized] - caller is neither authority nor delegate
//   - [ErrDomainExpired] - operation requires a live domain
//   - [ErrDomainNotAvailable] - name is held, or was never claimed
//   - [ErrInvalidDuration] - term is zero or beyond MaxTerm
//   - [ErrInvalidName] - zero name hash
//   - [ErrRecordTooLarge] - payload beyond MaxRecordPayload
//   - [ErrConflictViolation] - stale local write under PolygonPriority
//   - [ErrNotFound] - a required entry does not exist
//   - [ErrAlreadyInitialized] - repeated Initialize
//   - [ErrConcurrentModification] - revision guard lost, resubmit
package registry
