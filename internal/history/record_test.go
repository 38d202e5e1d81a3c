package history

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	records := []Record{
		{
			ID:             "1717243200000",
			Input:          map[string]any{"area": 1500.0, "bedrooms": 3.0, "mainroad": "yes"},
			PredictedPrice: 250000.5,
			Timestamp:      base,
			IsFavorite:     true,
		},
		{
			ID:             "1717243100000",
			Input:          map[string]any{"area": 900.0},
			PredictedPrice: 120000.0,
			Timestamp:      base.Add(-time.Minute),
			IsFavorite:     false,
		},
	}

	encoded, err := encodeRecords(records)
	if err != nil {
		t.Fatalf("encodeRecords: %v", err)
	}

	decoded, err := decodeRecords(encoded, time.Now().UTC())
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}

	if !reflect.DeepEqual(records, decoded) {
		t.Errorf("round-trip mismatch:\n got %#v\nwant %#v", decoded, records)
	}
}

func TestEncodeEmptyList(t *testing.T) {
	encoded, err := encodeRecords(nil)
	if err != nil {
		t.Fatalf("encodeRecords: %v", err)
	}
	if encoded != "[]" {
		t.Errorf("encoded = %q, want %q", encoded, "[]")
	}
}

// TestDecodeLegacyPriceField verifies the old "price" field is accepted when
// "predictedPrice" is absent.
func TestDecodeLegacyPriceField(t *testing.T) {
	doc := `[{"id":"abc","input":{},"price":42.5,"timestamp":"2025-01-01T00:00:00Z","isFavorite":false}]`

	records, err := decodeRecords(doc, time.Now().UTC())
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("len(records) = %d, want 1", len(records))
	}
	if records[0].PredictedPrice != 42.5 {
		t.Errorf("PredictedPrice = %v, want 42.5", records[0].PredictedPrice)
	}
}

// TestDecodePredictedPriceWinsOverLegacy verifies "predictedPrice" takes
// precedence when both fields are present.
func TestDecodePredictedPriceWinsOverLegacy(t *testing.T) {
	doc := `[{"id":"abc","predictedPrice":100.0,"price":42.5}]`

	records, err := decodeRecords(doc, time.Now().UTC())
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if records[0].PredictedPrice != 100.0 {
		t.Errorf("PredictedPrice = %v, want 100.0", records[0].PredictedPrice)
	}
}

func TestDecodeMissingOptionalFields(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	doc := `[{"id":"only-id"}]`

	records, err := decodeRecords(doc, now)
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	r := records[0]

	if r.Input == nil || len(r.Input) != 0 {
		t.Errorf("Input = %v, want empty non-nil map", r.Input)
	}
	if !r.Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want decode-time now %v", r.Timestamp, now)
	}
	if r.IsFavorite {
		t.Error("IsFavorite = true, want default false")
	}
	if r.PredictedPrice != 0 {
		t.Errorf("PredictedPrice = %v, want 0", r.PredictedPrice)
	}
}

func TestDecodeInvalidTimestampFallsBackToNow(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC)
	doc := `[{"id":"x","timestamp":"yesterday-ish"}]`

	records, err := decodeRecords(doc, now)
	if err != nil {
		t.Fatalf("decodeRecords: %v", err)
	}
	if !records[0].Timestamp.Equal(now) {
		t.Errorf("Timestamp = %v, want %v", records[0].Timestamp, now)
	}
}

func TestDecodeMalformedJSON(t *testing.T) {
	if _, err := decodeRecords("{not json", time.Now().UTC()); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestDecodeNonArrayTopLevel(t *testing.T) {
	if _, err := decodeRecords(`{"id":"abc"}`, time.Now().UTC()); err == nil {
		t.Error("expected error for non-array top level")
	}
}

func TestDecodeWrongShapeElement(t *testing.T) {
	_, err := decodeRecords(`["just a string"]`, time.Now().UTC())
	if err == nil {
		t.Fatal("expected error for non-object element")
	}
	if !strings.Contains(err.Error(), "decoding records") {
		t.Errorf("error = %v, want wrapped decode error", err)
	}
}
