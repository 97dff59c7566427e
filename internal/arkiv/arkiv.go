// Package arkiv is a thin client for the Arkiv entity store. Records are
// immutable creates with string attributes and a TTL; the store's native
// query language supports and/eq/gte predicate trees over indexed attributes.
package arkiv

import "context"

// Attribute is one key/value pair indexed by the store. Keys may repeat
// within a record (multi-valued attributes, e.g. skill).
type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Create describes a new immutable record.
type Create struct {
	Payload     []byte      `json:"payload"`
	ContentType string      `json:"contentType"`
	Attributes  []Attribute `json:"attributes"`
	ExpiresIn   int64       `json:"expiresIn"` // seconds from write time
}

// Predicate is a node in the store's query tree. Either And is set (a
// conjunction of children) or Key/Op/Value form a leaf comparison.
type Predicate struct {
	And   []Predicate `json:"and,omitempty"`
	Key   string      `json:"key,omitempty"`
	Op    string      `json:"op,omitempty"` // "eq" or "gte"
	Value string      `json:"value,omitempty"`
}

// Eq builds an equality leaf.
func Eq(key, value string) Predicate {
	return Predicate{Key: key, Op: "eq", Value: value}
}

// And builds a conjunction of the given predicates.
func And(preds ...Predicate) *Predicate {
	if len(preds) == 0 {
		return nil
	}
	return &Predicate{And: preds}
}

// Query selects entities by predicate tree. Limit caps the returned page;
// the store applies it before any client-side post-filtering.
type Query struct {
	Where *Predicate `json:"where,omitempty"`
	Limit int        `json:"limit"`
}

// Entity is a stored record as returned by queries.
type Entity struct {
	Key        string      `json:"key"`
	Payload    []byte      `json:"payload"`
	Attributes []Attribute `json:"attributes"`
}

// Attribute returns the first value for key, if present.
func (e Entity) Attribute(key string) (string, bool) {
	for _, a := range e.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// MutateResult reports the keys of records created by a mutation.
type MutateResult struct {
	Keys []string `json:"keys"`
}

// Client is the put/query contract the pipeline consumes. The production
// implementation talks JSON-RPC to an Arkiv node; tests inject fakes.
type Client interface {
	// MutateEntities writes the given creates in one store transaction.
	// The transaction is all-or-nothing.
	MutateEntities(ctx context.Context, creates []Create) (*MutateResult, error)
	// GetEntities returns entities matching the query, up to q.Limit.
	GetEntities(ctx context.Context, q Query) ([]Entity, error)
}
