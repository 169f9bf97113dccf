// Package stream decodes entries-table change streams back into registry
// notifications, for observers that follow mirrored state out of process.
package stream

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/aws/aws-lambda-go/events"

	"github.com/jacentio/nsmirror/internal/address"
	"github.com/jacentio/nsmirror/registry"
)

// Handler turns DynamoDB stream records from the entries table into the
// notification types the owning operations emit in process. Decoding is
// best-effort field diffing: domains written only through the legacy path
// carry a zero external transaction reference and produce nothing, matching
// the silence of the legacy operations themselves.
type Handler struct {
	notifier registry.Notifier
	logger   *slog.Logger
}

// NewHandler creates a stream handler delivering to the given notifier.
func NewHandler(n registry.Notifier, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		notifier: n,
		logger:   logger,
	}
}

// HandleEntryChanges processes one batch of DynamoDB stream events. This
// function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleEntryChanges(ctx context.Context, event events.DynamoDBEvent) error {
	emitted := 0
	for _, record := range event.Records {
		for _, n := range decodeRecord(record) {
			h.notifier.Notify(ctx, n)
			emitted++
		}
	}
	h.logger.Debug("entry changes processed",
		"records", len(event.Records),
		"notifications", emitted,
	)
	return nil
}

// EntryAddress returns the ledger address of the entry a stream record is
// about.
func EntryAddress(record events.DynamoDBEventRecord) string {
	return getStringAttr(record.Change.Keys, "address")
}

// decodeRecord maps one stream record to the notifications it implies.
func decodeRecord(record events.DynamoDBEventRecord) []registry.Notification {
	switch address.Kind(EntryAddress(record)) {
	case address.KindDomain:
		return decodeDomainChange(record)
	case address.KindRecord:
		return decodeRecordChange(record)
	}
	// Registry counter updates and foreign rows carry no notification.
	return nil
}

func decodeDomainChange(record events.DynamoDBEventRecord) []registry.Notification {
	newImage := record.Change.NewImage
	oldImage := record.Change.OldImage

	newTx := registry.TxRef(get32(newImage, "last_external_tx"))

	switch record.EventName {
	case "INSERT":
		if newTx.IsZero() {
			// Legacy registration; the operation emitted nothing.
			return nil
		}
		return []registry.Notification{domainMirrored(newImage)}

	case "MODIFY":
		oldTx := registry.TxRef(get32(oldImage, "last_external_tx"))
		if newTx != oldTx && !newTx.IsZero() {
			return []registry.Notification{domainMirrored(newImage)}
		}
		if newTx.IsZero() {
			// Domain not under mirror custody; legacy writes are silent.
			return nil
		}

		var ns []registry.Notification
		if get32(newImage, "delegate") != get32(oldImage, "delegate") {
			ns = append(ns, registry.DelegateUpdated{
				NameHash: registry.NameHash(get32(newImage, "name_hash")),
				Delegate: registry.Identity(get32(newImage, "delegate")),
			})
		}
		if getUintAttr(newImage, "wrap_state") != getUintAttr(oldImage, "wrap_state") ||
			get32(newImage, "custody_token") != get32(oldImage, "custody_token") {
			ns = append(ns, registry.WrapStateChanged{
				NameHash:     registry.NameHash(get32(newImage, "name_hash")),
				WrapState:    registry.WrapState(getUintAttr(newImage, "wrap_state")),
				CustodyToken: registry.Identity(get32(newImage, "custody_token")),
			})
		}
		return ns
	}

	// Domain entries are never removed.
	return nil
}

func decodeRecordChange(record events.DynamoDBEventRecord) []registry.Notification {
	switch record.EventName {
	case "INSERT", "MODIFY":
		newImage := record.Change.NewImage
		return []registry.Notification{registry.RecordUpdated{
			NameHash:  registry.NameHash(get32(newImage, "name_hash")),
			FieldHash: registry.FieldHash(get32(newImage, "field_hash")),
			Type:      registry.RecordType(getUintAttr(newImage, "record_type")),
			Source:    registry.ChainSource(getUintAttr(newImage, "source_chain")),
			Version:   getUintAttr(newImage, "version"),
		}}

	case "REMOVE":
		oldImage := record.Change.OldImage
		return []registry.Notification{registry.RecordDeleted{
			NameHash:  registry.NameHash(get32(oldImage, "name_hash")),
			FieldHash: registry.FieldHash(get32(oldImage, "field_hash")),
		}}
	}
	return nil
}

func domainMirrored(image map[string]events.DynamoDBAttributeValue) registry.DomainMirrored {
	return registry.DomainMirrored{
		NameHash:      registry.NameHash(get32(image, "name_hash")),
		Delegate:      registry.Identity(get32(image, "delegate")),
		ExternalOwner: registry.ExternalAddress(get20(image, "external_owner")),
		Expiration:    getUintAttr(image, "expiration"),
	}
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok {
		return v.String()
	}
	return ""
}

// getUintAttr extracts an unsigned number attribute from a stream image.
func getUintAttr(image map[string]events.DynamoDBAttributeValue, key string) uint64 {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeNumber {
			n, _ := strconv.ParseUint(v.Number(), 10, 64)
			return n
		}
	}
	return 0
}

// getBinaryAttr extracts a binary attribute from a stream image.
func getBinaryAttr(image map[string]events.DynamoDBAttributeValue, key string) []byte {
	if v, ok := image[key]; ok {
		if v.DataType() == events.DataTypeBinary {
			return v.Binary()
		}
	}
	return nil
}

// get32 extracts a 32-byte binary attribute, zero-padding short values.
func get32(image map[string]events.DynamoDBAttributeValue, key string) [32]byte {
	var out [32]byte
	copy(out[:], getBinaryAttr(image, key))
	return out
}

// get20 extracts a 20-byte binary attribute, zero-padding short values.
func get20(image map[string]events.DynamoDBAttributeValue, key string) [20]byte {
	var out [20]byte
	copy(out[:], getBinaryAttr(image, key))
	return out
}
