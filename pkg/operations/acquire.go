package operations

import (
	"context"
	"math/rand"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/mangiafuoco/pkg/collab"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/registry"
)

const (
	// acquireBatchSize is how many tokens one indexer request resolves.
	acquireBatchSize = 10
	// maxTokenEnumeration caps "all" quantities when enumerating owner or
	// contract tokens.
	maxTokenEnumeration = 500
)

// ResolveRequirement dispatches on the requirement variant, acquires the
// items, stores them in the run registry and returns minimal projections.
// Unresolvable domains and empty acquisitions fail with *AcquisitionError,
// which fails the requirement rather than the run.
func (s *Service) ResolveRequirement(ctx context.Context, req playlist.Requirement, duration int) ([]playlist.Projection, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if duration <= 0 {
		duration = 30
	}

	var items []playlist.Item
	var err error
	switch req.Type {
	case playlist.RequirementByContract:
		items, err = s.resolveByContract(ctx, req, duration)
	case playlist.RequirementByOwner:
		items, err = s.resolveByOwner(ctx, req, duration)
	case playlist.RequirementByFeedName:
		items, err = s.resolveByFeedName(ctx, req, duration)
	default:
		return nil, errors.Errorf("unknown requirement type %q", req.Type)
	}
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &AcquisitionError{Requirement: req, Reason: "no items acquired"}
	}

	projections := make([]playlist.Projection, 0, len(items))
	for _, it := range items {
		if putErr := s.reg.Put(registry.KindItem, it.ID, it); putErr != nil {
			return nil, errors.Wrap(putErr, "store acquired item")
		}
		projections = append(projections, it.Project())
	}
	log.Debug().
		Str("requirement_type", string(req.Type)).
		Int("items", len(projections)).
		Msg("requirement resolved")
	return projections, nil
}

func (s *Service) resolveByContract(ctx context.Context, req playlist.Requirement, duration int) ([]playlist.Item, error) {
	if s.acquirer == nil {
		return nil, errors.New("no acquisition collaborator configured")
	}
	var tokens []collab.TokenRef
	if len(req.TokenIDs) > 0 {
		tokens = make([]collab.TokenRef, 0, len(req.TokenIDs))
		for _, id := range req.TokenIDs {
			tokens = append(tokens, collab.TokenRef{
				Chain:    req.Chain,
				Contract: req.ContractAddress,
				TokenID:  id,
			})
		}
	} else {
		limit := req.Quantity.Limit(maxTokenEnumeration)
		listed, err := s.acquirer.ListContractTokens(ctx, req.Chain, req.ContractAddress, limit)
		if err != nil {
			return nil, &AcquisitionError{Requirement: req, Reason: "contract token enumeration failed", Err: err}
		}
		tokens = listed
	}
	items, err := s.acquireTokens(ctx, tokens, duration)
	if err != nil {
		return nil, &AcquisitionError{Requirement: req, Reason: "token acquisition failed", Err: err}
	}
	return items, nil
}

func (s *Service) resolveByOwner(ctx context.Context, req playlist.Requirement, duration int) ([]playlist.Item, error) {
	if s.acquirer == nil {
		return nil, errors.New("no acquisition collaborator configured")
	}
	address := req.OwnerAddress
	if req.IsDomainName() {
		if s.domains == nil {
			return nil, errors.New("no domain resolver configured")
		}
		resolved, err := s.domains.Resolve(ctx, address)
		if err != nil {
			return nil, &AcquisitionError{Requirement: req, Reason: "domain resolution failed", Err: err}
		}
		if resolved == "" {
			return nil, &AcquisitionError{Requirement: req, Reason: "domain did not resolve to an address"}
		}
		log.Debug().Str("domain", address).Str("address", resolved).Msg("owner domain resolved")
		address = resolved
	}
	tokens, err := s.acquirer.GetByOwner(ctx, address, req.Quantity.Limit(maxTokenEnumeration))
	if err != nil {
		return nil, &AcquisitionError{Requirement: req, Reason: "owner token lookup failed", Err: err}
	}
	items, err := s.acquireTokens(ctx, tokens, duration)
	if err != nil {
		return nil, &AcquisitionError{Requirement: req, Reason: "token acquisition failed", Err: err}
	}
	return items, nil
}

func (s *Service) resolveByFeedName(ctx context.Context, req playlist.Requirement, duration int) ([]playlist.Item, error) {
	quantity := req.Quantity
	if quantity.IsZero() {
		quantity = playlist.Exact(5)
	}
	items, err := s.fetchFeedItems(ctx, req.PlaylistName, quantity, duration)
	if err != nil {
		var ae *AcquisitionError
		if errors.As(err, &ae) {
			return nil, err
		}
		return nil, &AcquisitionError{Requirement: req, Reason: "feed fetch failed", Err: err}
	}
	return items, nil
}

// acquireTokens resolves tokens into items in batches with a bounded
// concurrency window. Batch order is preserved in the aggregated result; any
// batch failure fails the whole acquisition.
func (s *Service) acquireTokens(ctx context.Context, tokens []collab.TokenRef, duration int) ([]playlist.Item, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	numBatches := (len(tokens) + acquireBatchSize - 1) / acquireBatchSize
	results := make([][]playlist.Item, numBatches)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for i := 0; i < numBatches; i++ {
		i := i
		start := i * acquireBatchSize
		end := start + acquireBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]
		g.Go(func() error {
			items, err := s.acquirer.GetByContract(gctx, batch, duration)
			if err != nil {
				return errors.Wrapf(err, "acquire batch %d/%d", i+1, numBatches)
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var items []playlist.Item
	for _, batch := range results {
		items = append(items, batch...)
	}
	return items, nil
}

// sampleItems randomly samples up to quantity items, keeping relative order of
// the chosen ones. "all" returns the input unchanged.
func sampleItems(items []playlist.Item, quantity playlist.Quantity) []playlist.Item {
	if quantity.All || quantity.IsZero() || quantity.N >= len(items) {
		return items
	}
	chosen := rand.Perm(len(items))[:quantity.N]
	picked := make(map[int]bool, len(chosen))
	for _, idx := range chosen {
		picked[idx] = true
	}
	out := make([]playlist.Item, 0, quantity.N)
	for i, it := range items {
		if picked[i] {
			out = append(out, it)
		}
	}
	return out
}
