package operations

import (
	"context"

	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/tools"
)

// Wire names of the operation set. These are the tool names the model calls;
// renaming one is a breaking change to every prompt that mentions it.
const (
	OpResolveRequirement = "resolve_requirement"
	OpSearchFeed         = "search_feed_by_name"
	OpFetchFeedItems     = "fetch_feed_items"
	OpBuild              = "build"
	OpVerify             = "verify"
	OpSendToDevice       = "send_to_device"
	OpPublish            = "publish"
	OpResolveDomains     = "resolve_domains"
	OpValidateAddresses  = "validate_addresses"
	OpListDevices        = "list_configured_devices"
	OpListFeedServers    = "list_feed_servers"
)

type resolveRequirementArgs struct {
	Requirement playlist.Requirement `json:"requirement" jsonschema:"description=the data acquisition requirement to resolve"`
	Duration    int                  `json:"duration,omitempty" jsonschema:"description=display duration per item in seconds"`
}

type searchFeedArgs struct {
	Name string `json:"name" jsonschema:"description=playlist name to search for"`
}

type fetchFeedItemsArgs struct {
	Name     string            `json:"name" jsonschema:"description=playlist name from an earlier search"`
	Quantity playlist.Quantity `json:"quantity,omitempty"`
	Duration int               `json:"duration,omitempty" jsonschema:"description=display duration per item in seconds"`
}

type buildArgs struct {
	ItemIDs []string `json:"itemIds" jsonschema:"description=registry item ids to include"`
	Title   string   `json:"title,omitempty"`
	Slug    string   `json:"slug,omitempty"`
	Shuffle bool     `json:"shuffle,omitempty" jsonschema:"description=randomize item order"`
}

type verifyArgs struct {
	ArtifactID string `json:"artifactId"`
}

type sendToDeviceArgs struct {
	ArtifactID string `json:"artifactId"`
	DeviceName string `json:"deviceName,omitempty" jsonschema:"description=configured device name; optional when exactly one device is configured"`
}

type publishArgs struct {
	FilePath   string `json:"filePath" jsonschema:"description=path of the persisted playlist document"`
	FeedServer string `json:"feedServer,omitempty" jsonschema:"description=configured feed server name; optional when exactly one server is configured"`
}

type resolveDomainsArgs struct {
	Names []string `json:"names" jsonschema:"description=domain names to resolve to chain addresses"`
}

type validateAddressesArgs struct {
	Addresses []string `json:"addresses" jsonschema:"description=chain addresses or domain names to check"`
}

type emptyArgs struct{}

// RegisterOrchestratorOps registers the full operation set the orchestration
// loop exposes to the model.
func RegisterOrchestratorOps(c *tools.Catalog, s *Service) {
	c.MustRegister(tools.NewDefinition(OpResolveRequirement,
		"Resolve one acquisition requirement into playlist items. Returns minimal item projections; full items stay server-side.",
		func(ctx context.Context, args resolveRequirementArgs) (any, error) {
			return s.ResolveRequirement(ctx, args.Requirement, args.Duration)
		}))
	c.MustRegister(tools.NewDefinition(OpSearchFeed,
		"Fuzzy-search configured feed sources for a playlist by name. Returns the best match and a candidate map.",
		func(ctx context.Context, args searchFeedArgs) (any, error) {
			return s.SearchFeedByName(ctx, args.Name)
		}))
	c.MustRegister(tools.NewDefinition(OpFetchFeedItems,
		"Fetch items from a named feed playlist, randomly sampled down to the requested quantity.",
		func(ctx context.Context, args fetchFeedItemsArgs) (any, error) {
			return s.FetchFeedItems(ctx, args.Name, args.Quantity, args.Duration)
		}))
	c.MustRegister(tools.NewDefinition(OpBuild,
		"Build the playlist document from acquired item ids. Unknown ids are dropped. Returns a minimal summary with the artifact id.",
		func(ctx context.Context, args buildArgs) (any, error) {
			return s.Build(ctx, args.ItemIDs, args.Title, args.Slug, args.Shuffle)
		}))
	c.MustRegister(tools.NewDefinition(OpVerify,
		"Validate a built playlist document against the document schema. Call this after every build.",
		func(ctx context.Context, args verifyArgs) (any, error) {
			return s.Verify(ctx, args.ArtifactID)
		}))
	c.MustRegister(tools.NewDefinition(OpSendToDevice,
		"Send a verified playlist document to a display device.",
		func(ctx context.Context, args sendToDeviceArgs) (any, error) {
			return s.SendToDevice(ctx, args.ArtifactID, args.DeviceName)
		}))
	c.MustRegister(tools.NewDefinition(OpPublish,
		"Publish a persisted playlist document to a feed server.",
		func(ctx context.Context, args publishArgs) (any, error) {
			return s.Publish(ctx, args.FilePath, args.FeedServer)
		}))
	c.MustRegister(tools.NewDefinition(OpResolveDomains,
		"Batch-resolve domain names to chain addresses. Partial failure is reported per name.",
		func(ctx context.Context, args resolveDomainsArgs) (any, error) {
			return s.ResolveDomains(ctx, args.Names)
		}))
	RegisterLookupOps(c, s)
}

// RegisterLookupOps registers the pure lookup operations. The intent resolver
// exposes only these, so a resolution conversation can disambiguate devices,
// servers and addresses but cannot trigger acquisition.
func RegisterLookupOps(c *tools.Catalog, s *Service) {
	c.MustRegister(tools.NewDefinition(OpValidateAddresses,
		"Structurally validate chain addresses and domain names. Returns per-entry detail.",
		func(ctx context.Context, args validateAddressesArgs) (any, error) {
			return s.ValidateAddresses(args.Addresses), nil
		}))
	c.MustRegister(tools.NewDefinition(OpListDevices,
		"List the configured display devices.",
		func(ctx context.Context, args emptyArgs) (any, error) {
			return s.ListDevices(), nil
		}))
	c.MustRegister(tools.NewDefinition(OpListFeedServers,
		"List the configured feed servers.",
		func(ctx context.Context, args emptyArgs) (any, error) {
			return s.ListFeedServers(), nil
		}))
}
