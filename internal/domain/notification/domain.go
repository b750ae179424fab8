package notification

// Payload is the message handed to a channel adapter. Immutable once
// built, never persisted.
type Payload struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Link  string            `json:"link,omitempty"`
	Tag   string            `json:"tag,omitempty"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Kind discriminates payloads for preference gating and dedup keys.
// Stored in Meta under MetaType.
const (
	MetaType = "type"

	KindMealReminder = "meal_reminder"
	KindDietReady    = "diet_ready"
	KindBirthday     = "birthday"
	KindMessage      = "message"
)

func (p *Payload) Kind() string {
	if p.Meta == nil {
		return ""
	}
	return p.Meta[MetaType]
}

// DeliveryStatus is the adapter-level outcome taxonomy. Dead means the
// provider confirmed the endpoint will never accept another message and
// the subscription must be pruned; TransientFailure leaves it intact for
// the next cycle.
type DeliveryStatus int

const (
	StatusSent DeliveryStatus = iota
	StatusTransientFailure
	StatusDead
)

func (s DeliveryStatus) String() string {
	switch s {
	case StatusSent:
		return "sent"
	case StatusTransientFailure:
		return "transient_failure"
	case StatusDead:
		return "dead"
	default:
		return "unknown"
	}
}

type DeliveryResult struct {
	Status DeliveryStatus
	Reason string
}

func Sent() DeliveryResult { return DeliveryResult{Status: StatusSent} }

func Transient(reason string) DeliveryResult {
	return DeliveryResult{Status: StatusTransientFailure, Reason: reason}
}

func Dead(reason string) DeliveryResult {
	return DeliveryResult{Status: StatusDead, Reason: reason}
}

// Summary aggregates delivery outcomes over one dispatch or trigger run.
type Summary struct {
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
}
