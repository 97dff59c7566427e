package substrate

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dotgo-labs/dotgo-indexer/internal/event"
)

// ArgSpec declares one typed event argument. Supported types: u8, u32,
// u64, u128, string, vec<string>, account.
type ArgSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// EventSpec declares one contract event. Its position in the schema is the
// SCALE variant index the contract encodes as the first payload byte.
type EventSpec struct {
	Name string    `json:"name"`
	Args []ArgSpec `json:"args"`
}

// Schema is the declared event metadata for a contract, the ABI-equivalent
// descriptor used to decode ContractEmitted payloads.
type Schema struct {
	Events []EventSpec `json:"events"`
}

// DefaultSchema describes the portfolio contract's events.
func DefaultSchema() Schema {
	return Schema{Events: []EventSpec{
		{Name: "ProjectCreated", Args: []ArgSpec{
			{Name: "projectId", Type: "u64"},
			{Name: "student", Type: "account"},
			{Name: "title", Type: "string"},
			{Name: "description", Type: "string"},
			{Name: "githubUrl", Type: "string"},
			{Name: "demoUrl", Type: "string"},
			{Name: "skills", Type: "vec<string>"},
		}},
		{Name: "ProjectUnlocked", Args: []ArgSpec{
			{Name: "projectId", Type: "u64"},
			{Name: "reviewer", Type: "account"},
			{Name: "student", Type: "account"},
			{Name: "amountPaid", Type: "u128"},
		}},
		{Name: "ReviewSubmitted", Args: []ArgSpec{
			{Name: "projectId", Type: "u64"},
			{Name: "reviewer", Type: "account"},
			{Name: "rating", Type: "u8"},
			{Name: "comment", Type: "string"},
		}},
	}}
}

// LoadSchema reads a schema descriptor from a JSON file.
func LoadSchema(path string) (Schema, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Schema{}, fmt.Errorf("read event schema: %w", err)
	}
	var s Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return Schema{}, fmt.Errorf("parse event schema: %w", err)
	}
	if len(s.Events) == 0 {
		return Schema{}, fmt.Errorf("event schema %s declares no events", path)
	}
	return s, nil
}

// Decode recovers the event name and typed arguments from a ContractEmitted
// payload. The first byte selects the event variant; the remaining bytes
// are the SCALE-encoded arguments in declaration order.
func (s Schema) Decode(data []byte) (event.Raw, error) {
	r := newReader(data)

	variant, err := r.byte()
	if err != nil {
		return event.Raw{}, fmt.Errorf("read event variant: %w", err)
	}
	if int(variant) >= len(s.Events) {
		return event.Raw{}, fmt.Errorf("unknown event variant %d", variant)
	}
	spec := s.Events[variant]

	raw := event.Raw{Name: spec.Name}
	for _, arg := range spec.Args {
		if err := decodeArg(r, arg, &raw); err != nil {
			return event.Raw{}, fmt.Errorf("%s.%s: %w", spec.Name, arg.Name, err)
		}
	}
	if r.remaining() != 0 {
		return event.Raw{}, fmt.Errorf("%s: %d trailing bytes", spec.Name, r.remaining())
	}
	return raw, nil
}

func decodeArg(r *reader, arg ArgSpec, raw *event.Raw) error {
	switch arg.Type {
	case "u8":
		v, err := r.u8()
		if err != nil {
			return err
		}
		assign(raw, arg.Name, fmt.Sprintf("%d", v), int(v))
	case "u32":
		v, err := r.u32()
		if err != nil {
			return err
		}
		assign(raw, arg.Name, fmt.Sprintf("%d", v), int(v))
	case "u64":
		v, err := r.u64()
		if err != nil {
			return err
		}
		assign(raw, arg.Name, fmt.Sprintf("%d", v), 0)
	case "u128":
		v, err := r.u128()
		if err != nil {
			return err
		}
		assign(raw, arg.Name, v.String(), 0)
	case "string":
		v, err := r.string()
		if err != nil {
			return err
		}
		assign(raw, arg.Name, v, 0)
	case "vec<string>":
		v, err := r.stringVec()
		if err != nil {
			return err
		}
		if arg.Name == "skills" {
			raw.Skills = v
		}
	case "account":
		v, err := r.account()
		if err != nil {
			return err
		}
		assign(raw, arg.Name, v, 0)
	default:
		return fmt.Errorf("unsupported arg type %q", arg.Type)
	}
	return nil
}

// assign routes a decoded value into the raw event by argument name.
func assign(raw *event.Raw, name, str string, num int) {
	switch name {
	case "projectId":
		raw.ProjectID = str
	case "student":
		raw.Student = str
	case "reviewer":
		raw.Reviewer = str
	case "title":
		raw.Title = str
	case "description":
		raw.Description = str
	case "githubUrl":
		raw.GithubURL = str
	case "demoUrl":
		raw.DemoURL = str
	case "amountPaid", "amount":
		raw.Amount = str
	case "rating":
		raw.Rating = num
	case "comment":
		raw.Comment = str
	}
}
