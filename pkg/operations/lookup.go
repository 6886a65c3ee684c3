package operations

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// DomainResults is the outcome of a batch domain resolution. Partial failure
// is not fatal: DomainMap holds the successes, Errors the per-name failures.
type DomainResults struct {
	DomainMap map[string]string `json:"domainMap"`
	Errors    map[string]string `json:"errors,omitempty"`
}

// ResolveDomains resolves name to address pairs in parallel with a bounded
// window. Names that resolve to nothing land in Errors; only a fully empty
// input is an error.
func (s *Service) ResolveDomains(ctx context.Context, names []string) (*DomainResults, error) {
	if s.domains == nil {
		return nil, errors.New("no domain resolver configured")
	}
	if len(names) == 0 {
		return nil, errors.New("no domain names given")
	}

	results := &DomainResults{
		DomainMap: map[string]string{},
		Errors:    map[string]string{},
	}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxParallel)
	for _, name := range names {
		name := name
		g.Go(func() error {
			address, err := s.domains.Resolve(gctx, name)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				results.Errors[name] = err.Error()
			case address == "":
				results.Errors[name] = "domain did not resolve"
			default:
				results.DomainMap[name] = address
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Debug().
		Int("resolved", len(results.DomainMap)).
		Int("failed", len(results.Errors)).
		Msg("batch domain resolution")
	return results, nil
}

// AddressCheck is the per-address outcome of structural validation.
type AddressCheck struct {
	Address string `json:"address"`
	Valid   bool   `json:"valid"`
	// Form is "evm", "tezos" or "domain" for valid addresses.
	Form   string `json:"form,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// AddressResults aggregates a batch of address checks. Per-item detail is
// returned even when the batch as a whole is invalid, so the caller can re-ask
// only for the bad entries.
type AddressResults struct {
	Valid   bool           `json:"valid"`
	Results []AddressCheck `json:"results"`
	Errors  []string       `json:"errors,omitempty"`
}

var domainNameRe = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)+$`)

var tezosAddressRe = regexp.MustCompile(`^(tz1|tz2|tz3|KT1)[1-9A-HJ-NP-Za-km-z]{33}$`)

// ValidateAddresses structurally validates each entry as a chain address or a
// domain name. Purely syntactic; it never touches the network.
func (s *Service) ValidateAddresses(addresses []string) *AddressResults {
	out := &AddressResults{Valid: true}
	for _, raw := range addresses {
		check := classifyAddress(raw)
		if !check.Valid {
			out.Valid = false
			out.Errors = append(out.Errors, check.Address+": "+check.Reason)
		}
		out.Results = append(out.Results, check)
	}
	return out
}

func classifyAddress(raw string) AddressCheck {
	addr := strings.TrimSpace(raw)
	check := AddressCheck{Address: addr}
	switch {
	case addr == "":
		check.Reason = "empty address"
	case common.IsHexAddress(addr):
		check.Valid = true
		check.Form = "evm"
	case tezosAddressRe.MatchString(addr):
		check.Valid = true
		check.Form = "tezos"
	case domainNameRe.MatchString(strings.ToLower(addr)):
		check.Valid = true
		check.Form = "domain"
	default:
		check.Reason = "not a chain address or domain name"
	}
	return check
}

// ListDevices returns the configured display devices.
func (s *Service) ListDevices() []DeviceInfo {
	out := make([]DeviceInfo, len(s.cfg.Devices))
	copy(out, s.cfg.Devices)
	return out
}

// FeedServerInfo is the configuration view of a feed server handed to the
// model. API keys never leave the configuration.
type FeedServerInfo struct {
	Name    string `json:"name"`
	BaseURL string `json:"baseUrl"`
}

// ListFeedServers returns the configured feed servers without credentials.
func (s *Service) ListFeedServers() []FeedServerInfo {
	out := make([]FeedServerInfo, 0, len(s.cfg.FeedServers))
	for _, srv := range s.cfg.FeedServers {
		out = append(out, FeedServerInfo{Name: srv.Name, BaseURL: srv.BaseURL})
	}
	return out
}
