// Package operations implements the deterministic operation set the model
// orchestrates. Every operation is stateless with respect to the conversation:
// full objects go into the run registry, minimal projections go back to the
// model. The operations themselves never talk to the model.
package operations

import (
	"crypto/ed25519"
	"fmt"
	"sync"

	"github.com/go-go-golems/mangiafuoco/pkg/collab"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/registry"
)

// DeviceInfo is one configured display device.
type DeviceInfo struct {
	Name     string `json:"name" mapstructure:"name"`
	Location string `json:"location,omitempty" mapstructure:"location"`
}

// Config carries the static configuration the operations read. All fields are
// set once at construction and never mutated.
type Config struct {
	Devices     []DeviceInfo
	FeedServers []playlist.FeedServer
	// OutputPath is where built artifacts are persisted. Empty disables
	// persistence (tests mostly run without it).
	OutputPath string
	// SigningKey signs built artifacts when present.
	SigningKey ed25519.PrivateKey
	// MaxParallel bounds the fan-out window for batch acquisition and domain
	// resolution.
	MaxParallel int
}

// Service exposes the operation set over a run registry and the external
// collaborators. One Service instance is owned by one run.
type Service struct {
	cfg       Config
	reg       *registry.Registry
	acquirer  collab.Acquirer
	domains   collab.DomainResolver
	feeds     collab.FeedClient
	device    collab.DeviceClient
	publisher collab.Publisher

	mu sync.Mutex
	// candidates maps lowercased feed display names to lookup keys, filled by
	// search and consulted by fetch for the duration of the run.
	candidates map[string]string
}

type Option func(*Service)

func WithAcquirer(a collab.Acquirer) Option {
	return func(s *Service) { s.acquirer = a }
}

func WithDomainResolver(r collab.DomainResolver) Option {
	return func(s *Service) { s.domains = r }
}

func WithFeedClient(f collab.FeedClient) Option {
	return func(s *Service) { s.feeds = f }
}

func WithDeviceClient(d collab.DeviceClient) Option {
	return func(s *Service) { s.device = d }
}

func WithPublisher(p collab.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// New creates the operation service for one run.
func New(cfg Config, reg *registry.Registry, opts ...Option) *Service {
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 4
	}
	s := &Service{
		cfg:        cfg,
		reg:        reg,
		candidates: map[string]string{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Registry returns the run registry the service stores objects in.
func (s *Service) Registry() *registry.Registry { return s.reg }

// AcquisitionError marks a requirement whose acquisition failed. The run
// continues with partial results; only zero items across all requirements is
// fatal, and that decision belongs to the orchestrator.
type AcquisitionError struct {
	Requirement playlist.Requirement
	Reason      string
	Err         error
}

func (e *AcquisitionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("acquisition failed for %s requirement: %s: %v", e.Requirement.Type, e.Reason, e.Err)
	}
	return fmt.Sprintf("acquisition failed for %s requirement: %s", e.Requirement.Type, e.Reason)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }
