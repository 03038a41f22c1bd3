// Package decode turns raw transport bytes into typed events or classified
// bad records. Decoding is pure and total: every byte sequence yields exactly
// one Event or one BadRecord, never an error.
package decode

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"unicode/utf8"

	"github.com/meridian-data/streamloader/internal/analytics"
	"github.com/meridian-data/streamloader/internal/schemaid"
)

// Purpose is the process-wide ingestion mode, fixed at configuration time.
type Purpose string

const (
	PurposeStructured     Purpose = "structured-event"
	PurposeSelfDescribing Purpose = "self-describing"
)

// reasonNotUTF8 is the fixed reason attached to undecodable payloads.
const reasonNotUTF8 = "payload is not valid UTF-8, b64-encoded original attached"

// SelfDescribing is a JSON document tagged with its own schema identifier.
type SelfDescribing struct {
	Schema schemaid.Identifier
	Data   json.RawMessage
}

// Event is the decoded record. Exactly one field is populated, matching the
// configured purpose.
type Event struct {
	Structured     *analytics.Event
	SelfDescribing *SelfDescribing
}

// BadKind discriminates bad records by the purpose under which they failed.
type BadKind string

const (
	BadStructured     BadKind = "bad_structured"
	BadSelfDescribing BadKind = "bad_self_describing"
)

// BadRecord preserves a malformed input for replay. Payload is the original
// text, or base64 of the original bytes when they were not valid UTF-8.
type BadRecord struct {
	Kind    BadKind
	Payload string
	Reason  string
}

// Outcome carries exactly one of Event or Bad.
type Outcome struct {
	Event *Event
	Bad   *BadRecord
}

// Decoder maps one raw payload to its outcome.
type Decoder func(data []byte) Outcome

// envelope is the self-describing wire shape.
type envelope struct {
	Schema string          `json:"schema"`
	Data   json.RawMessage `json:"data"`
}

// NewDecoder resolves the purpose into a fixed decode strategy.
func NewDecoder(purpose Purpose) (Decoder, error) {
	switch purpose {
	case PurposeStructured:
		return decodeStructured, nil
	case PurposeSelfDescribing:
		return decodeSelfDescribing, nil
	default:
		return nil, fmt.Errorf("unknown ingestion purpose %q", purpose)
	}
}

func decodeStructured(data []byte) Outcome {
	if !utf8.Valid(data) {
		return bad(BadStructured, base64.StdEncoding.EncodeToString(data), reasonNotUTF8)
	}
	text := string(data)

	evt, err := analytics.Parse(text)
	if err != nil {
		return bad(BadStructured, text, err.Error())
	}
	return Outcome{Event: &Event{Structured: evt}}
}

func decodeSelfDescribing(data []byte) Outcome {
	if !utf8.Valid(data) {
		return bad(BadSelfDescribing, base64.StdEncoding.EncodeToString(data), reasonNotUTF8)
	}
	text := string(data)

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return bad(BadSelfDescribing, text, fmt.Sprintf("invalid JSON: %v", err))
	}
	if env.Schema == "" {
		return bad(BadSelfDescribing, text, "envelope has no schema key")
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return bad(BadSelfDescribing, text, "envelope has no data key")
	}
	id, err := schemaid.Parse(env.Schema)
	if err != nil {
		return bad(BadSelfDescribing, text, fmt.Sprintf("envelope schema key: %v", err))
	}

	return Outcome{Event: &Event{SelfDescribing: &SelfDescribing{Schema: id, Data: env.Data}}}
}

func bad(kind BadKind, payload, reason string) Outcome {
	return Outcome{Bad: &BadRecord{Kind: kind, Payload: payload, Reason: reason}}
}
