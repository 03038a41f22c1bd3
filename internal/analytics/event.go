// Package analytics implements the tab-separated structured-event encoding
// used by collectors upstream of the loader. One line is one event; fields
// are positional and the count is fixed.
package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/meridian-data/streamloader/internal/schemaid"
)

// FieldCount is the exact number of tab-separated fields per event line.
const FieldCount = 10

// Columns names the positional fields, in wire order.
var Columns = [FieldCount]string{
	"app_id",
	"platform",
	"collector_tstamp",
	"event_id",
	"event_vendor",
	"event_name",
	"event_format",
	"event_version",
	"user_id",
	"payload",
}

// Event is one decoded structured event.
type Event struct {
	AppID           string
	Platform        string
	CollectorTstamp time.Time
	EventID         string
	EventVendor     string
	EventName       string
	EventFormat     string
	EventVersion    string
	UserID          string
	Payload         string
}

// Parse decodes one TSV line. Field count, a non-empty event_id and an
// RFC 3339 collector timestamp are required; everything else passes through.
func Parse(line string) (*Event, error) {
	fields := strings.Split(line, "\t")
	if len(fields) != FieldCount {
		return nil, fmt.Errorf("expected %d tab-separated fields, got %d", FieldCount, len(fields))
	}
	if fields[3] == "" {
		return nil, fmt.Errorf("field event_id is empty")
	}
	tstamp, err := time.Parse(time.RFC3339, fields[2])
	if err != nil {
		return nil, fmt.Errorf("field collector_tstamp: %w", err)
	}

	return &Event{
		AppID:           fields[0],
		Platform:        fields[1],
		CollectorTstamp: tstamp,
		EventID:         fields[3],
		EventVendor:     fields[4],
		EventName:       fields[5],
		EventFormat:     fields[6],
		EventVersion:    fields[7],
		UserID:          fields[8],
		Payload:         fields[9],
	}, nil
}

// SchemaIdentifier derives the identifier of the schema the event claims to
// conform to, from the event_vendor/name/format/version fields.
func (e *Event) SchemaIdentifier() (schemaid.Identifier, error) {
	return schemaid.Parse(fmt.Sprintf("%s/%s/%s/%s",
		e.EventVendor, e.EventName, e.EventFormat, e.EventVersion))
}

// TSV encodes the event back to its wire form.
func (e *Event) TSV() string {
	return strings.Join([]string{
		e.AppID,
		e.Platform,
		e.CollectorTstamp.UTC().Format(time.RFC3339),
		e.EventID,
		e.EventVendor,
		e.EventName,
		e.EventFormat,
		e.EventVersion,
		e.UserID,
		e.Payload,
	}, "\t")
}
