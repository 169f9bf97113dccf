// Package address derives deterministic ledger addresses for registry entries.
package address

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Entry kinds, used as derivation seeds and as address prefixes.
const (
	KindRegistry = "registry"
	KindDomain   = "domain"
	KindRecord   = "record"
)

// Registry returns the address of the registry singleton.
// The derivation has no variable input, so every deployment shares it.
func Registry() string {
	return derive(KindRegistry)
}

// Domain returns the address of the domain entry for a name hash.
func Domain(nameHash [32]byte) string {
	return derive(KindDomain, nameHash[:])
}

// Record returns the address of a record entry, scoped to its owning domain.
// The domain address (not the name hash) is part of the seed, so records can
// never alias across domains.
func Record(domainAddr string, fieldHash [32]byte) string {
	return derive(KindRecord, []byte(domainAddr), fieldHash[:])
}

// Kind returns the entry kind encoded in an address, or "" if the address is
// not in the kind#digest form.
func Kind(addr string) string {
	kind, _, ok := strings.Cut(addr, "#")
	if !ok {
		return ""
	}
	switch kind {
	case KindRegistry, KindDomain, KindRecord:
		return kind
	}
	return ""
}

// derive hashes the kind tag and seed components into a kind-prefixed address.
// Identical inputs always produce identical addresses.
func derive(kind string, seeds ...[]byte) string {
	h := sha256.New()
	h.Write([]byte(kind))
	for _, seed := range seeds {
		h.Write(seed)
	}
	return kind + "#" + hex.EncodeToString(h.Sum(nil))
}
