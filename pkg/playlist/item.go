package playlist

import (
	"fmt"
	"net/url"
)

// License classifies how an item may be displayed.
type License string

const (
	LicenseOpen         License = "open"
	LicenseToken        License = "token"
	LicenseSubscription License = "subscription"
)

// Item is an acquired media unit. Items are created by acquisition operations,
// owned by the run registry until consumed by a build, and never mutated.
type Item struct {
	ID         string  `json:"id"`
	Title      string  `json:"title,omitempty"`
	Source     string  `json:"source"`
	Duration   int     `json:"duration"`
	License    License `json:"license"`
	Provenance string  `json:"provenance,omitempty"`
}

// Projection is the minimal view of an Item handed to the model. The model
// never holds full items: only opaque ids plus enough context to talk about
// them. This bounds conversation size and keeps the model from fabricating or
// truncating source URIs that matter for correctness.
type Projection struct {
	ID              string `json:"id"`
	Title           string `json:"title,omitempty"`
	TruncatedSource string `json:"source"`
	Duration        int    `json:"duration"`
	Provenance      string `json:"provenance,omitempty"`
}

// Project returns the minimal projection of the item.
func (it Item) Project() Projection {
	return Projection{
		ID:              it.ID,
		Title:           it.Title,
		TruncatedSource: TruncateSource(it.Source),
		Duration:        it.Duration,
		Provenance:      it.Provenance,
	}
}

// TruncateSource shortens a source URI to "host/…abcdef" so the model can
// recognize it without ever holding a complete address it could corrupt.
func TruncateSource(source string) string {
	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return shortenMiddle(source, 18)
	}
	return u.Host + shortenMiddle(u.Path, 14)
}

// shortenMiddle keeps the first 8 and last 6 runes of s when it exceeds max
// runes. Slicing on runes keeps non-ASCII source URIs valid UTF-8.
func shortenMiddle(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return fmt.Sprintf("%s…%s", string(r[:8]), string(r[len(r)-6:]))
}
