package playlist

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
)

// RequirementType tags the Requirement union. The values are the wire names
// the model uses in terminal payloads.
type RequirementType string

const (
	// RequirementByContract acquires specific tokens from a contract.
	RequirementByContract RequirementType = "build_playlist"
	// RequirementByOwner acquires tokens held by an address or domain name.
	RequirementByOwner RequirementType = "query_address"
	// RequirementByFeedName acquires items from a named feed playlist.
	RequirementByFeedName RequirementType = "fetch_feed"
)

// Quantity is either an exact positive count or the literal "all".
// The string/number ambiguity coming from the model is normalized here, at the
// ingestion boundary; downstream code never sees the raw form.
type Quantity struct {
	All bool
	N   int
}

// Exact returns a Quantity for a fixed positive count.
func Exact(n int) Quantity { return Quantity{N: n} }

// AllQuantity returns the "all" Quantity.
func AllQuantity() Quantity { return Quantity{All: true} }

// IsZero reports whether the quantity was left unset.
func (q Quantity) IsZero() bool { return !q.All && q.N == 0 }

func (q Quantity) String() string {
	if q.All {
		return "all"
	}
	return strconv.Itoa(q.N)
}

// Limit converts the quantity to a fetch limit, using max for "all".
func (q Quantity) Limit(max int) int {
	if q.All || q.N <= 0 {
		return max
	}
	if q.N < max {
		return q.N
	}
	return max
}

// JSONSchema makes reflected operation schemas present a quantity as the wire
// form the model produces, not as the normalized struct.
func (Quantity) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "integer", Minimum: json.Number("1")},
			{Type: "string", Enum: []any{"all"}},
			{Type: "null"},
		},
		Description: "positive item count, \"all\", or null when unset",
	}
}

// MarshalJSON emits the wire form. An unset quantity marshals as null so a
// serialized requirement always round-trips through UnmarshalJSON.
func (q Quantity) MarshalJSON() ([]byte, error) {
	if q.All {
		return json.Marshal("all")
	}
	if q.N <= 0 {
		return []byte("null"), nil
	}
	return json.Marshal(q.N)
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*q = Quantity{}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		if n <= 0 {
			return errors.Errorf("quantity must be positive, got %d", n)
		}
		*q = Quantity{N: n}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Errorf("quantity must be a positive integer or \"all\", got %s", string(data))
	}
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "all" {
		*q = Quantity{All: true}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return errors.Errorf("quantity must be a positive integer or \"all\", got %q", s)
	}
	*q = Quantity{N: n}
	return nil
}

// Requirement is one unit of requested data acquisition. Exactly one variant
// applies, selected by Type; the per-variant required fields are enforced by
// Validate before a requirement set is accepted.
type Requirement struct {
	Type RequirementType `json:"type"`

	// RequirementByContract
	Chain           string   `json:"chain,omitempty"`
	ContractAddress string   `json:"contractAddress,omitempty"`
	TokenIDs        []string `json:"tokenIds,omitempty"`

	// RequirementByOwner: raw chain address or human-readable domain name
	OwnerAddress string `json:"ownerAddress,omitempty"`

	// RequirementByFeedName
	PlaylistName string `json:"playlistName,omitempty"`

	Quantity Quantity `json:"quantity,omitempty"`
}

// Validate enforces the per-variant required fields.
func (r Requirement) Validate() error {
	switch r.Type {
	case RequirementByContract:
		if r.Chain == "" {
			return errors.Errorf("%s requirement missing chain", r.Type)
		}
		if r.ContractAddress == "" {
			return errors.Errorf("%s requirement missing contractAddress", r.Type)
		}
		if len(r.TokenIDs) == 0 && r.Quantity.IsZero() {
			return errors.Errorf("%s requirement needs tokenIds or quantity", r.Type)
		}
	case RequirementByOwner:
		if r.OwnerAddress == "" {
			return errors.Errorf("%s requirement missing ownerAddress", r.Type)
		}
	case RequirementByFeedName:
		if r.PlaylistName == "" {
			return errors.Errorf("%s requirement missing playlistName", r.Type)
		}
	case "":
		return errors.New("requirement missing type")
	default:
		return errors.Errorf("unknown requirement type %q", r.Type)
	}
	return nil
}

// ApplyDefaults fills the per-variant default quantity: 5 for feed fetches,
// "all" for owner queries. Contract requirements with explicit tokenIds need
// no quantity.
func (r *Requirement) ApplyDefaults() {
	if !r.Quantity.IsZero() {
		return
	}
	switch r.Type {
	case RequirementByFeedName:
		r.Quantity = Exact(5)
	case RequirementByOwner:
		r.Quantity = AllQuantity()
	}
}

// IsDomainName reports whether the owner address looks like a human-readable
// domain rather than a raw chain address.
func (r Requirement) IsDomainName() bool {
	return r.Type == RequirementByOwner &&
		strings.Contains(r.OwnerAddress, ".") &&
		!strings.HasPrefix(r.OwnerAddress, "0x") &&
		!strings.HasPrefix(r.OwnerAddress, "tz")
}

// CanonicalKey returns a stable identity for the requirement, used by the
// orchestrator to serve verbatim repeated resolve calls from its in-run cache.
func (r Requirement) CanonicalKey(duration int) string {
	b, _ := json.Marshal(r)
	return fmt.Sprintf("%s|%d", string(b), duration)
}
