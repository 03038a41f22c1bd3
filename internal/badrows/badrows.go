// Package badrows shapes dead-lettered records. Every bad row is emitted as
// a self-describing JSON document so the dead-letter stream can be replayed
// through the same decode pipeline later.
package badrows

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/meridian-data/streamloader/internal/decode"
)

// SchemaURI tags every emitted bad row.
const SchemaURI = "io.meridian/bad_row/jsonschema/1-0-0"

// Row is the dead-letter payload for one failed record.
type Row struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Payload    string    `json:"payload"`
	Reason     string    `json:"reason"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Wrap assigns the bad record a row identity.
func Wrap(bad *decode.BadRecord, now time.Time) Row {
	return Row{
		ID:         uuid.New().String(),
		Kind:       string(bad.Kind),
		Payload:    bad.Payload,
		Reason:     bad.Reason,
		RecordedAt: now.UTC(),
	}
}

// Encode renders the row as a self-describing JSON document.
func Encode(row Row) ([]byte, error) {
	doc := struct {
		Schema string `json:"schema"`
		Data   Row    `json:"data"`
	}{Schema: SchemaURI, Data: row}

	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode bad row %s: %w", row.ID, err)
	}
	return out, nil
}
