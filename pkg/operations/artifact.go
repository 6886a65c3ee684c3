package operations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/registry"
)

// BuildSummary is the minimal build result handed to the model. The full
// artifact stays in the registry under ArtifactID.
type BuildSummary struct {
	ArtifactID   string `json:"artifactId"`
	Title        string `json:"title"`
	ItemCount    int    `json:"itemCount"`
	DroppedCount int    `json:"droppedCount,omitempty"`
	HasSignature bool   `json:"hasSignature"`
	Path         string `json:"path,omitempty"`
}

// Build constructs an artifact from registry item ids. Ids missing from the
// registry are dropped silently (the model occasionally invents or repeats
// ids; dropping keeps the build usable), with a warn log and a dropped count
// in the summary. The artifact is stored in the registry and, when an output
// path is configured, persisted to disk.
func (s *Service) Build(ctx context.Context, itemIDs []string, title, slug string, shuffle bool) (*BuildSummary, error) {
	items := make([]playlist.Item, 0, len(itemIDs))
	dropped := 0
	for _, id := range itemIDs {
		v, err := s.reg.Get(registry.KindItem, id)
		if err != nil {
			dropped++
			log.Warn().Str("item_id", id).Msg("build: unknown item id dropped")
			continue
		}
		item, ok := v.(playlist.Item)
		if !ok {
			dropped++
			log.Warn().Str("item_id", id).Msg("build: registry entry is not an item, dropped")
			continue
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return nil, errors.New("no known items to build from")
	}

	artifact := playlist.BuildArtifact(items, title, slug, shuffle)
	if len(s.cfg.SigningKey) > 0 {
		if err := artifact.Sign(s.cfg.SigningKey); err != nil {
			return nil, errors.Wrap(err, "sign artifact")
		}
	}
	if err := s.reg.Put(registry.KindArtifact, artifact.ID, artifact); err != nil {
		return nil, errors.Wrap(err, "store artifact")
	}
	if s.cfg.OutputPath != "" {
		if err := artifact.WriteFile(s.cfg.OutputPath); err != nil {
			return nil, err
		}
	}

	log.Info().
		Str("artifact_id", artifact.ID).
		Int("items", len(items)).
		Int("dropped", dropped).
		Bool("signed", artifact.Signature != "").
		Msg("artifact built")
	return &BuildSummary{
		ArtifactID:   artifact.ID,
		Title:        artifact.Title,
		ItemCount:    len(artifact.Items),
		DroppedCount: dropped,
		HasSignature: artifact.Signature != "",
		Path:         s.cfg.OutputPath,
	}, nil
}

// VerifyResult reports schema validation of a built artifact. On failure,
// Details carries at most the first few violations.
type VerifyResult struct {
	Valid     bool                   `json:"valid"`
	ItemCount int                    `json:"itemCount,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Details   []playlist.ErrorDetail `json:"details,omitempty"`
}

// Verify validates the registry artifact against the playlist document
// schema. A schema violation is a result, not an error: the caller feeds it
// back into the conversation for a rebuild.
func (s *Service) Verify(ctx context.Context, artifactID string) (*VerifyResult, error) {
	artifact, err := s.getArtifact(artifactID)
	if err != nil {
		return nil, err
	}
	if err := playlist.ValidateDocument(artifact); err != nil {
		var verr *playlist.SchemaValidationError
		if errors.As(err, &verr) {
			log.Warn().
				Str("artifact_id", artifactID).
				Int("violations", len(verr.Details)).
				Msg("artifact failed schema validation")
			return &VerifyResult{
				Valid:   false,
				Error:   verr.Error(),
				Details: verr.Details,
			}, nil
		}
		return nil, err
	}
	return &VerifyResult{Valid: true, ItemCount: len(artifact.Items)}, nil
}

// DeliveryError marks a failed send or publish. Deliveries are side effects
// and are never retried automatically.
type DeliveryError struct {
	Target string
	Err    error
}

func (e *DeliveryError) Error() string {
	return errors.Wrapf(e.Err, "delivery to %s failed", e.Target).Error()
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// SendResult reports a device send.
type SendResult struct {
	Success    bool   `json:"success"`
	DeviceName string `json:"deviceName,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SendToDevice forwards the registry artifact to a display device. An empty
// device name is accepted only when exactly one device is configured.
func (s *Service) SendToDevice(ctx context.Context, artifactID, deviceName string) (*SendResult, error) {
	if s.device == nil {
		return nil, errors.New("no device collaborator configured")
	}
	artifact, err := s.getArtifact(artifactID)
	if err != nil {
		return nil, err
	}
	device, err := s.resolveDevice(deviceName)
	if err != nil {
		return nil, err
	}
	if err := s.device.Send(ctx, artifact, device.Name); err != nil {
		return &SendResult{Success: false, DeviceName: device.Name, Error: err.Error()},
			&DeliveryError{Target: "device " + device.Name, Err: err}
	}
	log.Info().Str("artifact_id", artifactID).Str("device", device.Name).Msg("artifact sent to device")
	return &SendResult{Success: true, DeviceName: device.Name}, nil
}

// PublishResult reports a feed server publish.
type PublishResult struct {
	Success    bool   `json:"success"`
	PlaylistID string `json:"playlistId,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Publish reads a persisted artifact document from disk and pushes it to the
// named feed server. Working from the file rather than the registry lets a
// separate invocation publish a previously built playlist.
func (s *Service) Publish(ctx context.Context, filePath, serverName string) (*PublishResult, error) {
	if s.publisher == nil {
		return nil, errors.New("no publish collaborator configured")
	}
	artifact, err := playlist.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	server, err := s.resolveFeedServer(serverName)
	if err != nil {
		return nil, err
	}
	playlistID, err := s.publisher.Publish(ctx, artifact, server)
	if err != nil {
		return &PublishResult{Success: false, Error: err.Error()},
			&DeliveryError{Target: "feed server " + server.Name, Err: err}
	}
	log.Info().
		Str("artifact_id", artifact.ID).
		Str("server", server.Name).
		Str("playlist_id", playlistID).
		Msg("artifact published")
	return &PublishResult{Success: true, PlaylistID: playlistID}, nil
}

func (s *Service) getArtifact(artifactID string) (*playlist.Artifact, error) {
	v, err := s.reg.Get(registry.KindArtifact, artifactID)
	if err != nil {
		return nil, errors.Wrapf(err, "artifact %s", artifactID)
	}
	artifact, ok := v.(*playlist.Artifact)
	if !ok {
		return nil, errors.Errorf("registry entry %s is not an artifact", artifactID)
	}
	return artifact, nil
}

func (s *Service) resolveDevice(name string) (DeviceInfo, error) {
	if name == "" {
		if len(s.cfg.Devices) == 1 {
			return s.cfg.Devices[0], nil
		}
		return DeviceInfo{}, errors.Errorf("device name required, %d devices configured", len(s.cfg.Devices))
	}
	for _, d := range s.cfg.Devices {
		if d.Name == name {
			return d, nil
		}
	}
	return DeviceInfo{}, errors.Errorf("unknown device %q", name)
}

func (s *Service) resolveFeedServer(name string) (playlist.FeedServer, error) {
	if name == "" {
		if len(s.cfg.FeedServers) == 1 {
			return s.cfg.FeedServers[0], nil
		}
		return playlist.FeedServer{}, errors.Errorf("feed server name required, %d servers configured", len(s.cfg.FeedServers))
	}
	for _, srv := range s.cfg.FeedServers {
		if srv.Name == name || srv.BaseURL == name {
			return srv, nil
		}
	}
	return playlist.FeedServer{}, errors.Errorf("unknown feed server %q", name)
}
