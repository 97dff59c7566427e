package event

// Chain identifies which blockchain an event originated from.
type Chain string

const (
	ChainBase     Chain = "base"
	ChainPolkadot Chain = "polkadot"
)

// Type is the canonical event type tag.
type Type string

const (
	TypeProjectCreated  Type = "ProjectCreated"
	TypeProjectUnlocked Type = "ProjectUnlocked"
	TypeReviewSubmitted Type = "ReviewSubmitted"
)

// KnownTypes lists all canonical event types.
var KnownTypes = []Type{TypeProjectCreated, TypeProjectUnlocked, TypeReviewSubmitted}

// Event is the chain-agnostic representation of a portfolio event. It is a
// tagged union over the three event types: Type determines which of the
// variant fields are populated. The JSON encoding is the payload stored in
// Arkiv, so field names must stay stable.
type Event struct {
	Type        Type   `json:"eventType"`
	ProjectID   string `json:"projectId"`
	Timestamp   int64  `json:"timestamp"` // milliseconds since epoch
	Chain       Chain  `json:"chain"`
	TxHash      string `json:"txHash,omitempty"` // block hash on substrate chains
	BlockNumber uint64 `json:"blockNumber,omitempty"`
	IndexedAt   int64  `json:"indexedAt,omitempty"` // stamped by the indexer at write time

	// ProjectCreated
	Student     string   `json:"student,omitempty"` // also set for ProjectUnlocked
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	GithubURL   string   `json:"githubUrl,omitempty"`
	DemoURL     string   `json:"demoUrl,omitempty"`
	Skills      []string `json:"skills,omitempty"`

	// ProjectUnlocked
	Reviewer string `json:"reviewer,omitempty"` // also set for ReviewSubmitted
	Amount   string `json:"amount,omitempty"`   // smallest-unit integer as decimal text

	// ReviewSubmitted
	Rating  int    `json:"rating,omitempty"` // 1..5
	Comment string `json:"comment,omitempty"`
}

// Key returns the composite identity used for cross-chain correlation and
// dedupe. ProjectID alone is not unique across chains.
func (e Event) Key() string {
	return string(e.Chain) + "/" + string(e.Type) + "/" + e.ProjectID + "/" + e.TxHash
}
