// Package collab declares the narrow interfaces through which the engine
// talks to its external collaborators. The collaborators themselves (indexer
// clients, domain resolvers, device and feed HTTP clients) live outside this
// module; the engine only depends on these contracts.
package collab

import (
	"context"

	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
)

// TokenRef identifies one token on a chain.
type TokenRef struct {
	Chain    string
	Contract string
	TokenID  string
}

// Acquirer fetches media items from the token metadata indexer.
type Acquirer interface {
	// GetByContract resolves specific tokens into items, each with the given
	// display duration.
	GetByContract(ctx context.Context, tokens []TokenRef, duration int) ([]playlist.Item, error)
	// GetByOwner lists tokens held by a raw chain address, up to limit.
	GetByOwner(ctx context.Context, address string, limit int) ([]TokenRef, error)
	// ListContractTokens enumerates tokens minted by a contract, up to limit.
	ListContractTokens(ctx context.Context, chain, contract string, limit int) ([]TokenRef, error)
}

// DomainResolver translates human-readable domain names into chain addresses.
type DomainResolver interface {
	// Resolve returns the address for name, or "" when the domain does not
	// resolve (not an error: the caller decides what an unresolved domain means).
	Resolve(ctx context.Context, name string) (string, error)
}

// FeedMatch is one fuzzy-search candidate returned by a feed source.
type FeedMatch struct {
	DisplayName string
	LookupKey   string
	Score       float64
}

// FeedClient searches and fetches items from configured feed sources.
type FeedClient interface {
	// Search returns candidate playlists across all configured sources; the
	// caller ranks them against the requested name.
	Search(ctx context.Context, name string) ([]FeedMatch, error)
	// FetchItems returns all items of a playlist with the given display
	// duration; the caller samples down to the requested quantity.
	FetchItems(ctx context.Context, lookupKey string, duration int) ([]playlist.Item, error)
}

// DeviceClient forwards a built playlist document to a display device.
type DeviceClient interface {
	Send(ctx context.Context, artifact *playlist.Artifact, deviceName string) error
}

// Publisher pushes a playlist document to a feed server.
type Publisher interface {
	// Publish returns the server-assigned playlist id on success.
	Publish(ctx context.Context, artifact *playlist.Artifact, server playlist.FeedServer) (string, error)
}
