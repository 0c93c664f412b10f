package calls

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callboardhq/callboard/internal/normalize"
)

// Status is the derived call lifecycle state. The provider never supplies it
// directly; it is recomputed from ended_at and the disconnection reason.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusMissed     Status = "missed"
	StatusFailed     Status = "failed"
)

// Authoritative lifecycle events are the only ones allowed to set status.
// Advisory events (post-call analysis) may only add enrichment fields.
var authoritativeEvents = map[string]bool{
	"call_started":         true,
	"call_ended":           true,
	"call_session_started": true,
	"call_session_ended":   true,
}

// IsAuthoritative reports whether the event type may set call status.
func IsAuthoritative(eventType string) bool {
	return authoritativeEvents[eventType]
}

// DeriveStatus recomputes the lifecycle status from the end timestamp and
// the provider's free-text disconnection reason.
func DeriveStatus(endedAt *time.Time, reason *string) Status {
	if endedAt == nil {
		return StatusInProgress
	}
	r := ""
	if reason != nil {
		r = strings.ToLower(*reason)
	}
	switch {
	case strings.Contains(r, "no_answer"), strings.Contains(r, "busy"), strings.Contains(r, "dial_no_answer"):
		return StatusMissed
	case strings.Contains(r, "error"), strings.Contains(r, "fail"):
		return StatusFailed
	default:
		return StatusCompleted
	}
}

// Patch is the sparse field set one normalized event contributes to a call
// record. Nil fields were absent from the payload and are never written, so
// a redelivered or thinner event cannot regress previously stored data.
type Patch struct {
	CallID     string
	BusinessID uuid.UUID

	From      *string
	To        *string
	Direction *string

	StartedAt           *time.Time
	EndedAt             *time.Time
	DisconnectionReason *string

	Transcript       *string
	TranscriptJSON   []byte
	Summary          *string
	AudioURL         *string
	DynamicVariables []byte

	// Status is only populated for authoritative lifecycle events.
	Status *Status

	// Projection inputs for the per-phone call summary row.
	BusinessName  string
	CustomerPhone string
}

// BuildPatch converts a normalized event into a sparse patch for the tenant.
func BuildPatch(businessID uuid.UUID, evt normalize.Event) (Patch, error) {
	if evt.CallID == "" {
		return Patch{}, fmt.Errorf("calls: patch requires a call id")
	}
	p := Patch{
		CallID:        evt.CallID,
		BusinessID:    businessID,
		BusinessName:  evt.BusinessName,
		CustomerPhone: evt.CustomerNumber(),
	}
	if evt.From != "" {
		p.From = &evt.From
	}
	if evt.To != "" {
		p.To = &evt.To
	}
	if evt.Direction != nil {
		dir := string(*evt.Direction)
		p.Direction = &dir
	}
	p.StartedAt = evt.StartedAt
	p.EndedAt = evt.EndedAt
	p.DisconnectionReason = evt.DisconnectionReason
	p.Transcript = evt.Transcript
	p.Summary = evt.Summary
	p.AudioURL = evt.AudioURL

	if len(evt.TranscriptJSON) > 0 {
		data, err := json.Marshal(evt.TranscriptJSON)
		if err != nil {
			return Patch{}, fmt.Errorf("calls: marshal transcript: %w", err)
		}
		p.TranscriptJSON = data
	}
	if len(evt.DynamicVariables) > 0 {
		data, err := json.Marshal(evt.DynamicVariables)
		if err != nil {
			return Patch{}, fmt.Errorf("calls: marshal dynamic variables: %w", err)
		}
		p.DynamicVariables = data
	}

	if IsAuthoritative(evt.Type) {
		status := DeriveStatus(evt.EndedAt, evt.DisconnectionReason)
		p.Status = &status
	}
	return p, nil
}

// SummaryStatus picks the status string shown in the per-phone listing:
// the raw disconnection reason when present, else the derived status.
func (p Patch) SummaryStatus() string {
	if p.DisconnectionReason != nil && *p.DisconnectionReason != "" {
		return *p.DisconnectionReason
	}
	if p.Status != nil {
		return string(*p.Status)
	}
	return string(DeriveStatus(p.EndedAt, p.DisconnectionReason))
}

// SummaryDate picks the listing date: call start when known, else now.
func (p Patch) SummaryDate(now time.Time) time.Time {
	if p.StartedAt != nil {
		return *p.StartedAt
	}
	return now
}
