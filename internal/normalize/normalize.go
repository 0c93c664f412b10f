package normalize

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// ErrMissingCallID marks a delivery that carries no resolvable call identity.
// It is the only unrecoverable normalization outcome: the caller should audit
// the raw payload and skip structured processing.
var ErrMissingCallID = errors.New("normalize: payload has no call id")

// Direction is the normalized call direction.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
	DirectionUnknown  Direction = "unknown"
)

// TranscriptTurn is one normalized utterance of the call transcript.
type TranscriptTurn struct {
	Speaker       string `json:"speaker"`
	Text          string `json:"text"`
	OffsetSeconds int    `json:"offset_seconds"`
}

// Event is the canonical record extracted from one webhook delivery.
// Pointer and nil-able fields distinguish "absent in the payload" from a
// zero value, so downstream patches never regress populated call state.
type Event struct {
	Type    string
	CallID  string
	AgentID string

	From      string
	To        string
	Direction *Direction

	StartedAt           *time.Time
	EndedAt             *time.Time
	DisconnectionReason *string

	Transcript     *string
	TranscriptJSON []TranscriptTurn
	Summary        *string
	AudioURL       *string

	DynamicVariables map[string]any
	BusinessName     string
	BusinessID       string
}

// Field alias chains. Order is significant: providers renamed keys across
// payload versions and the earliest listed name wins.
var (
	callIDKeys  = []string{"call_id", "id"}
	fromKeys    = []string{"from_number", "from"}
	toKeys      = []string{"to_number", "to"}
	startedKeys = []string{"start_timestamp", "started_at"}
	endedKeys   = []string{"end_timestamp", "ended_at"}
	audioKeys   = []string{"audio_url", "recording_url"}
	dynVarKeys  = []string{"retell_llm_dynamic_variables", "dynamic_variables"}

	businessNameContainers = []string{"retell_llm_dynamic_variables", "dynamic_variables", "metadata"}
	businessNameKeys       = []string{"business_name", "business", "company_name"}
)

// ParseWebhook splits the provider envelope {event, call} and normalizes the
// call object. A missing event name defaults to "call_event"; a missing call
// object is treated as empty, which surfaces as ErrMissingCallID.
func ParseWebhook(body []byte) (Event, error) {
	var envelope struct {
		Event string          `json:"event"`
		Call  json.RawMessage `json:"call"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return Event{}, err
	}
	eventType := envelope.Event
	if eventType == "" {
		eventType = "call_event"
	}
	return Parse(eventType, envelope.Call)
}

// Parse extracts the canonical event record from an arbitrarily shaped call
// object. Every field tries its alias chain in order; absent fields stay nil.
// Malformed sub-objects degrade to absent rather than failing the delivery.
func Parse(eventType string, raw json.RawMessage) (Event, error) {
	evt := Event{Type: eventType, BusinessName: "Unknown"}

	var call map[string]any
	if len(raw) > 0 {
		// A non-object call value is treated like a missing one.
		_ = json.Unmarshal(raw, &call)
	}

	evt.CallID = firstString(call, callIDKeys)
	if evt.CallID == "" {
		return evt, ErrMissingCallID
	}
	evt.AgentID = firstString(call, []string{"agent_id"})
	evt.From = firstString(call, fromKeys)
	evt.To = firstString(call, toKeys)

	if rawDir, ok := call["direction"]; ok {
		dir := NormalizeDirection(asString(rawDir))
		evt.Direction = &dir
	}

	evt.StartedAt = firstTime(call, startedKeys)
	evt.EndedAt = firstTime(call, endedKeys)

	if reason := firstString(call, []string{"disconnection_reason"}); reason != "" {
		evt.DisconnectionReason = &reason
	}
	if transcript := firstString(call, []string{"transcript"}); transcript != "" {
		evt.Transcript = &transcript
	}
	evt.TranscriptJSON = extractTranscript(call)

	if summary := firstString(call, []string{"summary"}); summary != "" {
		evt.Summary = &summary
	} else if analysis, ok := call["call_analysis"].(map[string]any); ok {
		if s := asString(analysis["summary"]); s != "" {
			evt.Summary = &s
		}
	}
	if audio := firstString(call, audioKeys); audio != "" {
		evt.AudioURL = &audio
	}

	for _, key := range dynVarKeys {
		if vars, ok := call[key].(map[string]any); ok {
			evt.DynamicVariables = vars
			break
		}
	}
	evt.BusinessName = extractBusinessName(call)
	if meta, ok := call["metadata"].(map[string]any); ok {
		evt.BusinessID = asString(meta["business_id"])
	}

	return evt, nil
}

// NormalizeDirection maps free-form direction strings onto the enum.
// Matching is a case-insensitive prefix check and never fails.
func NormalizeDirection(raw string) Direction {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.HasPrefix(v, "in"):
		return DirectionInbound
	case strings.HasPrefix(v, "out"):
		return DirectionOutbound
	default:
		return DirectionUnknown
	}
}

// DurationSeconds derives the call duration in whole seconds, clamped to >= 0.
// Returns nil when either timestamp is absent.
func (e Event) DurationSeconds() *int {
	if e.StartedAt == nil || e.EndedAt == nil {
		return nil
	}
	secs := int(e.EndedAt.Sub(*e.StartedAt) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return &secs
}

// CustomerNumber selects the caller-side phone number: the destination for
// outbound calls, the origin otherwise, with the opposite leg as fallback.
func (e Event) CustomerNumber() string {
	if e.Direction != nil && *e.Direction == DirectionOutbound {
		if e.To != "" {
			return e.To
		}
		return e.From
	}
	if e.From != "" {
		return e.From
	}
	return e.To
}

func extractBusinessName(call map[string]any) string {
	for _, key := range businessNameKeys {
		for _, container := range businessNameContainers {
			nested, ok := call[container].(map[string]any)
			if !ok {
				continue
			}
			if name := asString(nested[key]); name != "" {
				return name
			}
		}
	}
	return "Unknown"
}

func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if s := asString(v); s != "" {
				return s
			}
		}
	}
	return ""
}

func firstTime(m map[string]any, keys []string) *time.Time {
	for _, key := range keys {
		if v, ok := m[key]; ok {
			if t := asTime(v); t != nil {
				return t
			}
		}
	}
	return nil
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return ""
	}
}

// asTime accepts epoch milliseconds (JSON numbers or numeric strings) and
// RFC3339-style timestamps.
func asTime(v any) *time.Time {
	switch t := v.(type) {
	case float64:
		ms := int64(t)
		if ms <= 0 {
			return nil
		}
		value := time.UnixMilli(ms).UTC()
		return &value
	case string:
		t = strings.TrimSpace(t)
		if t == "" {
			return nil
		}
		if ms, err := strconv.ParseInt(t, 10, 64); err == nil {
			value := time.UnixMilli(ms).UTC()
			return &value
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
			if parsed, err := time.Parse(layout, t); err == nil {
				value := parsed.UTC()
				return &value
			}
		}
	}
	return nil
}
