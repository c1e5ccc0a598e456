package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// requiredFields lists, per type, the fields that must be present and
// non-empty in an inbound payload. Order matters: rejection messages list
// missing fields in declaration order.
var requiredFields = map[Type][]string{
	TypePageview:     {"url", "user_agent"},
	TypeEvent:        {"url", "user_agent", "event_name", "event_category"},
	TypePageviewAnon: {"url", "user_agent"},
}

// ValidationError reports why a payload was rejected. Its message is safe to
// return to the caller verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func reject(reason string) (Normalized, error) {
	return Normalized{}, &ValidationError{Reason: reason}
}

// Normalized holds the sanitized fields of an accepted payload. Only the
// fields relevant to Type are populated.
type Normalized struct {
	Type             Type
	URL              string
	UserAgent        string
	PageLoadTime     *int64
	ScreenResolution *string
	EventName        string
	EventCategory    string
	EventLabel       *string
	Payload          []byte
}

// Validate checks a decoded request body of arbitrary shape against the
// per-type field requirements and returns the normalized, truncated fields.
// It is pure: no network, no database, no logging.
func Validate(raw map[string]any) (Normalized, error) {
	typ, _ := raw["type"].(string)
	fields, ok := requiredFields[Type(typ)]
	if !ok {
		return reject("Invalid event type")
	}

	var missing []string
	for _, f := range fields {
		if stringField(raw, f) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return reject(fmt.Sprintf("Missing fields: %s", strings.Join(missing, ", ")))
	}

	url := stringField(raw, "url")
	if len(url) > MaxURLLen {
		return reject("URL exceeds maximum length")
	}

	loadTime, err := numericField(raw, "page_load_time")
	if err != nil {
		return reject("Invalid page load time format")
	}

	n := Normalized{
		Type:      Type(typ),
		URL:       truncate(url, MaxURLLen),
		UserAgent: truncate(stringField(raw, "user_agent"), MaxUserAgentLen),
	}

	switch n.Type {
	case TypePageview:
		n.PageLoadTime = loadTime
		if res := stringField(raw, "screen_resolution"); res != "" {
			trimmed := truncate(res, MaxResolutionLen)
			n.ScreenResolution = &trimmed
		}
	case TypeEvent:
		n.EventName = truncate(stringField(raw, "event_name"), MaxNameLen)
		n.EventCategory = truncate(stringField(raw, "event_category"), MaxNameLen)
		if label := stringField(raw, "event_label"); label != "" {
			trimmed := truncate(label, MaxNameLen)
			n.EventLabel = &trimmed
		}
		payload, err := payloadField(raw)
		if err != nil {
			return Normalized{}, err
		}
		n.Payload = payload
	case TypePageviewAnon:
		// Minimal-data path: nothing beyond url/user_agent is kept.
	}

	return n, nil
}

// stringField coerces a payload field to its string form. Non-string scalars
// are stringified the way the original wire format allowed; absent and null
// values collapse to "".
func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

// numericField extracts an optional numeric field. A present non-numeric
// value is an error; a zero value is treated as absent, matching the
// original collector's coercion.
func numericField(raw map[string]any, key string) (*int64, error) {
	v, ok := raw[key]
	if !ok || v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("field %s is not numeric", key)
	}
	if f == 0 {
		return nil, nil
	}
	ms := int64(f)
	return &ms, nil
}

// payloadField serializes an optional structured payload. Payloads that are
// not JSON-serializable or whose serialized form exceeds MaxPayloadBytes are
// rejected rather than silently truncated: truncation would corrupt the
// structure.
func payloadField(raw map[string]any) ([]byte, error) {
	v, ok := raw["payload"]
	if !ok || v == nil {
		return nil, nil
	}
	switch v.(type) {
	case map[string]any, []any:
	default:
		return nil, &ValidationError{Reason: "Invalid payload format"}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, &ValidationError{Reason: "Invalid payload format"}
	}
	if len(data) > MaxPayloadBytes {
		return nil, &ValidationError{Reason: "Payload exceeds maximum size"}
	}
	return data, nil
}

// truncate caps s at max bytes without splitting a multibyte character:
// a cut mid-rune would produce invalid UTF-8 that Postgres rejects at insert.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
