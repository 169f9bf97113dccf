package stream

import (
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

// --- getStringAttr Tests ---

func TestGetStringAttr_ExistingString(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"address": events.NewStringAttribute("domain#abc123"),
	}

	result := getStringAttr(image, "address")
	if result != "domain#abc123" {
		t.Errorf("expected 'domain#abc123', got %q", result)
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}

	result := getStringAttr(image, "address")
	if result != "" {
		t.Errorf("expected empty string for missing key, got %q", result)
	}
}

func TestGetStringAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getStringAttr(image, "address")
	if result != "" {
		t.Errorf("expected empty string for nil image, got %q", result)
	}
}

// --- getUintAttr Tests ---

func TestGetUintAttr_ValidNumber(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"expiration": events.NewNumberAttribute("1700000000"),
	}

	result := getUintAttr(image, "expiration")
	if result != 1700000000 {
		t.Errorf("expected 1700000000, got %d", result)
	}
}

func TestGetUintAttr_Zero(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"version": events.NewNumberAttribute("0"),
	}

	result := getUintAttr(image, "version")
	if result != 0 {
		t.Errorf("expected 0, got %d", result)
	}
}

func TestGetUintAttr_MaxUint64(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"expiration": events.NewNumberAttribute("18446744073709551615"),
	}

	result := getUintAttr(image, "expiration")
	if result != 18446744073709551615 {
		t.Errorf("expected max uint64, got %d", result)
	}
}

func TestGetUintAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewNumberAttribute("42"),
	}

	result := getUintAttr(image, "expiration")
	if result != 0 {
		t.Errorf("expected 0 for missing key, got %d", result)
	}
}

func TestGetUintAttr_NilImage(t *testing.T) {
	var image map[string]events.DynamoDBAttributeValue

	result := getUintAttr(image, "expiration")
	if result != 0 {
		t.Errorf("expected 0 for nil image, got %d", result)
	}
}

func TestGetUintAttr_StringAttribute(t *testing.T) {
	// When attribute exists but is wrong type (string instead of number)
	image := map[string]events.DynamoDBAttributeValue{
		"expiration": events.NewStringAttribute("not-a-number"),
	}

	result := getUintAttr(image, "expiration")
	if result != 0 {
		t.Errorf("expected 0 for string attribute, got %d", result)
	}
}

// --- getBinaryAttr Tests ---

func TestGetBinaryAttr_ValidBinary(t *testing.T) {
	data := []byte{0x01, 0x02, 0x03}
	image := map[string]events.DynamoDBAttributeValue{
		"name_hash": events.NewBinaryAttribute(data),
	}

	result := getBinaryAttr(image, "name_hash")
	if len(result) != 3 || result[0] != 0x01 || result[2] != 0x03 {
		t.Errorf("expected %v, got %v", data, result)
	}
}

func TestGetBinaryAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{}

	result := getBinaryAttr(image, "name_hash")
	if result != nil {
		t.Errorf("expected nil for missing key, got %v", result)
	}
}

func TestGetBinaryAttr_StringAttribute(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"name_hash": events.NewStringAttribute("not-binary"),
	}

	result := getBinaryAttr(image, "name_hash")
	if result != nil {
		t.Errorf("expected nil for string attribute, got %v", result)
	}
}

// --- Fixed-Width Extraction Tests ---

func TestGet32_FullWidth(t *testing.T) {
	data := make([]byte, 32)
	data[0] = 0xAA
	data[31] = 0xBB
	image := map[string]events.DynamoDBAttributeValue{
		"name_hash": events.NewBinaryAttribute(data),
	}

	result := get32(image, "name_hash")
	if result[0] != 0xAA || result[31] != 0xBB {
		t.Errorf("expected first/last bytes 0xAA/0xBB, got 0x%02X/0x%02X", result[0], result[31])
	}
}

func TestGet32_ShortValueZeroPadded(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"name_hash": events.NewBinaryAttribute([]byte{0x01, 0x02}),
	}

	result := get32(image, "name_hash")
	if result[0] != 0x01 || result[1] != 0x02 {
		t.Errorf("expected leading bytes preserved, got %v", result[:2])
	}
	if result[2] != 0 || result[31] != 0 {
		t.Error("expected remaining bytes zero")
	}
}

func TestGet32_Missing(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{}

	if result := get32(image, "name_hash"); result != [32]byte{} {
		t.Errorf("expected zero value for missing key, got %v", result)
	}
}

func TestGet20_FullWidth(t *testing.T) {
	data := make([]byte, 20)
	data[0] = 0xCC
	data[19] = 0xDD
	image := map[string]events.DynamoDBAttributeValue{
		"external_owner": events.NewBinaryAttribute(data),
	}

	result := get20(image, "external_owner")
	if result[0] != 0xCC || result[19] != 0xDD {
		t.Errorf("expected first/last bytes 0xCC/0xDD, got 0x%02X/0x%02X", result[0], result[19])
	}
}

func TestGet20_Missing(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{}

	if result := get20(image, "external_owner"); result != [20]byte{} {
		t.Errorf("expected zero value for missing key, got %v", result)
	}
}

// --- Benchmark Tests ---

func BenchmarkGetUintAttr(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"expiration": events.NewNumberAttribute("1704067200"),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		getUintAttr(image, "expiration")
	}
}

func BenchmarkGet32(b *testing.B) {
	image := map[string]events.DynamoDBAttributeValue{
		"name_hash": events.NewBinaryAttribute(make([]byte, 32)),
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		get32(image, "name_hash")
	}
}
