package event

import (
	"fmt"
	"time"
)

// ValidationKind classifies why a raw event was rejected.
type ValidationKind string

const (
	MissingField     ValidationKind = "missing_field"
	InvalidEventType ValidationKind = "invalid_event_type"
	InvalidRating    ValidationKind = "invalid_rating"
	InvalidTimestamp ValidationKind = "invalid_timestamp"
)

// ValidationError marks a malformed raw event. Such events are dropped at the
// adapter boundary and logged; they never propagate into the pipeline.
type ValidationError struct {
	Kind   ValidationKind
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid event (%s): %s", e.Kind, e.Detail)
}

// Raw is a decoded but not yet validated chain event. Adapters fill in the
// fields their chain exposes and leave the rest zero.
type Raw struct {
	Name        string
	ProjectID   string
	Timestamp   int64 // milliseconds; 0 means the producer did not supply one
	TxHash      string
	BlockNumber uint64

	Student     string
	Title       string
	Description string
	GithubURL   string
	DemoURL     string
	Skills      []string

	Reviewer string
	Amount   string

	Rating  int
	Comment string
}

// Normalize builds a canonical Event from a decoded raw event.
//
// A missing timestamp is filled with the current time. This is a fallback,
// not a correction: two indexers observing the same chain event at different
// times will assign different timestamps. ProjectID is never invented; its
// absence is a validation error.
func Normalize(raw Raw, chain Chain) (Event, error) {
	typ, ok := parseType(raw.Name)
	if !ok {
		return Event{}, &ValidationError{Kind: InvalidEventType, Detail: fmt.Sprintf("unknown event %q", raw.Name)}
	}
	if raw.ProjectID == "" {
		return Event{}, &ValidationError{Kind: MissingField, Detail: "projectId is required"}
	}
	if raw.Timestamp < 0 {
		return Event{}, &ValidationError{Kind: InvalidTimestamp, Detail: fmt.Sprintf("negative timestamp %d", raw.Timestamp)}
	}

	ts := raw.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}

	ev := Event{
		Type:        typ,
		ProjectID:   raw.ProjectID,
		Timestamp:   ts,
		Chain:       chain,
		TxHash:      raw.TxHash,
		BlockNumber: raw.BlockNumber,
	}

	switch typ {
	case TypeProjectCreated:
		ev.Student = raw.Student
		ev.Title = raw.Title
		ev.Description = raw.Description
		ev.GithubURL = raw.GithubURL
		ev.DemoURL = raw.DemoURL
		ev.Skills = raw.Skills
		if ev.Skills == nil {
			ev.Skills = []string{}
		}
	case TypeProjectUnlocked:
		ev.Reviewer = raw.Reviewer
		ev.Student = raw.Student
		ev.Amount = raw.Amount
		if ev.Amount == "" {
			ev.Amount = "0"
		}
	case TypeReviewSubmitted:
		if raw.Rating < 1 || raw.Rating > 5 {
			return Event{}, &ValidationError{Kind: InvalidRating, Detail: fmt.Sprintf("rating %d outside 1..5", raw.Rating)}
		}
		ev.Reviewer = raw.Reviewer
		ev.Rating = raw.Rating
		ev.Comment = raw.Comment
	}

	return ev, nil
}

func parseType(name string) (Type, bool) {
	for _, t := range KnownTypes {
		if string(t) == name {
			return t, true
		}
	}
	return "", false
}
