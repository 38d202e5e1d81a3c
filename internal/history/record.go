package history

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record is one stored prediction: the submitted property attributes, the
// price the model returned, and the user's favorite flag. The input map is
// an opaque echo of the form submission and is never validated here.
type Record struct {
	ID             string
	Input          map[string]any
	PredictedPrice float64
	Timestamp      time.Time
	IsFavorite     bool
}

// recordWire is the persisted JSON shape of a Record.
type recordWire struct {
	ID             string         `json:"id"`
	Input          map[string]any `json:"input"`
	PredictedPrice float64        `json:"predictedPrice"`
	Timestamp      string         `json:"timestamp"`
	IsFavorite     bool           `json:"isFavorite"`
}

// recordDoc is the permissive decode shape. Older versions of the app wrote
// the price under "price"; that field is accepted as a fallback when
// "predictedPrice" is absent.
type recordDoc struct {
	ID             string         `json:"id"`
	Input          map[string]any `json:"input"`
	PredictedPrice *float64       `json:"predictedPrice"`
	Price          *float64       `json:"price"`
	Timestamp      string         `json:"timestamp"`
	IsFavorite     bool           `json:"isFavorite"`
}

// encodeRecords serializes records, in order, as a single JSON array.
func encodeRecords(records []Record) (string, error) {
	docs := make([]recordWire, len(records))
	for i, r := range records {
		input := r.Input
		if input == nil {
			input = map[string]any{}
		}
		docs[i] = recordWire{
			ID:             r.ID,
			Input:          input,
			PredictedPrice: r.PredictedPrice,
			Timestamp:      r.Timestamp.UTC().Format(time.RFC3339Nano),
			IsFavorite:     r.IsFavorite,
		}
	}
	b, err := json.Marshal(docs)
	if err != nil {
		return "", fmt.Errorf("encoding records: %w", err)
	}
	return string(b), nil
}

// decodeRecords parses a persisted JSON array of record documents. Missing
// optional fields never fail the decode: input defaults to an empty map,
// timestamp to now, isFavorite to false, and the legacy "price" field is used
// when "predictedPrice" is absent. Only malformed JSON or a non-array top
// level is an error.
func decodeRecords(data string, now time.Time) ([]Record, error) {
	var docs []recordDoc
	if err := json.Unmarshal([]byte(data), &docs); err != nil {
		return nil, fmt.Errorf("decoding records: %w", err)
	}

	records := make([]Record, len(docs))
	for i, d := range docs {
		price := 0.0
		switch {
		case d.PredictedPrice != nil:
			price = *d.PredictedPrice
		case d.Price != nil:
			price = *d.Price
		}

		ts := now
		if d.Timestamp != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, d.Timestamp); err == nil {
				ts = parsed
			}
		}

		input := d.Input
		if input == nil {
			input = map[string]any{}
		}

		records[i] = Record{
			ID:             d.ID,
			Input:          input,
			PredictedPrice: price,
			Timestamp:      ts,
			IsFavorite:     d.IsFavorite,
		}
	}
	return records, nil
}
