package operations

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/mangiafuoco/pkg/collab"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/registry"
)

type fakeAcquirer struct {
	ownerTokens map[string][]collab.TokenRef
	failBatch   bool
}

func (f *fakeAcquirer) GetByContract(ctx context.Context, tokens []collab.TokenRef, duration int) ([]playlist.Item, error) {
	if f.failBatch {
		return nil, errors.New("indexer down")
	}
	items := make([]playlist.Item, 0, len(tokens))
	for _, tok := range tokens {
		items = append(items, playlist.Item{
			ID:       fmt.Sprintf("%s-%s-%s", tok.Chain, tok.Contract, tok.TokenID),
			Title:    "Token " + tok.TokenID,
			Source:   "https://media.example.com/" + tok.TokenID,
			Duration: duration,
			License:  playlist.LicenseToken,
		})
	}
	return items, nil
}

func (f *fakeAcquirer) GetByOwner(ctx context.Context, address string, limit int) ([]collab.TokenRef, error) {
	tokens := f.ownerTokens[address]
	if limit < len(tokens) {
		tokens = tokens[:limit]
	}
	return tokens, nil
}

func (f *fakeAcquirer) ListContractTokens(ctx context.Context, chain, contract string, limit int) ([]collab.TokenRef, error) {
	out := make([]collab.TokenRef, 0, limit)
	for i := 0; i < limit && i < 3; i++ {
		out = append(out, collab.TokenRef{Chain: chain, Contract: contract, TokenID: fmt.Sprintf("%d", i)})
	}
	return out, nil
}

type fakeDomains struct {
	table map[string]string
}

func (f *fakeDomains) Resolve(ctx context.Context, name string) (string, error) {
	return f.table[name], nil
}

type fakeFeed struct {
	playlists map[string][]playlist.Item
}

func (f *fakeFeed) Search(ctx context.Context, name string) ([]collab.FeedMatch, error) {
	var out []collab.FeedMatch
	for display := range f.playlists {
		out = append(out, collab.FeedMatch{DisplayName: display, LookupKey: "key:" + display})
	}
	return out, nil
}

func (f *fakeFeed) FetchItems(ctx context.Context, lookupKey string, duration int) ([]playlist.Item, error) {
	for display, items := range f.playlists {
		if lookupKey == "key:"+display {
			return items, nil
		}
	}
	return nil, errors.Errorf("unknown lookup key %s", lookupKey)
}

type fakeDevice struct {
	sent []string
	fail bool
}

func (f *fakeDevice) Send(ctx context.Context, artifact *playlist.Artifact, deviceName string) error {
	if f.fail {
		return errors.New("device unreachable")
	}
	f.sent = append(f.sent, deviceName)
	return nil
}

type fakePublisher struct {
	fail bool
}

func (f *fakePublisher) Publish(ctx context.Context, artifact *playlist.Artifact, server playlist.FeedServer) (string, error) {
	if f.fail {
		return "", errors.New("server rejected document")
	}
	return "pub-" + artifact.ID, nil
}

func feedItems(n int) []playlist.Item {
	items := make([]playlist.Item, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, playlist.Item{
			ID:       fmt.Sprintf("feed-item-%d", i),
			Title:    fmt.Sprintf("Feed Item %d", i),
			Source:   fmt.Sprintf("https://feed.example.com/items/%d", i),
			Duration: 30,
			License:  playlist.LicenseOpen,
		})
	}
	return items
}

func newTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	cfg := Config{
		Devices:     []DeviceInfo{{Name: "living-room"}},
		FeedServers: []playlist.FeedServer{{Name: "main", BaseURL: "https://feed.example.com"}},
		OutputPath:  filepath.Join(t.TempDir(), "playlist.json"),
	}
	return New(cfg, registry.New(), opts...)
}

func TestResolveRequirementByContract(t *testing.T) {
	svc := newTestService(t, WithAcquirer(&fakeAcquirer{}))
	req := playlist.Requirement{
		Type:            playlist.RequirementByContract,
		Chain:           "ethereum",
		ContractAddress: "0xabc",
		TokenIDs:        []string{"1", "2", "3"},
	}
	projections, err := svc.ResolveRequirement(context.Background(), req, 45)
	require.NoError(t, err)
	require.Len(t, projections, 3)
	assert.Equal(t, 45, projections[0].Duration)
	// Full items are in the registry; the model only got projections.
	assert.Equal(t, 3, svc.Registry().Count(registry.KindItem))
	assert.NotContains(t, projections[0].TruncatedSource, "https://")
}

func TestResolveRequirementByOwnerDomain(t *testing.T) {
	acq := &fakeAcquirer{ownerTokens: map[string][]collab.TokenRef{
		"0xowner": {
			{Chain: "ethereum", Contract: "0xabc", TokenID: "7"},
			{Chain: "ethereum", Contract: "0xabc", TokenID: "8"},
		},
	}}
	svc := newTestService(t,
		WithAcquirer(acq),
		WithDomainResolver(&fakeDomains{table: map[string]string{"alice.eth": "0xowner"}}),
	)
	req := playlist.Requirement{
		Type:         playlist.RequirementByOwner,
		OwnerAddress: "alice.eth",
		Quantity:     playlist.AllQuantity(),
	}
	projections, err := svc.ResolveRequirement(context.Background(), req, 30)
	require.NoError(t, err)
	assert.Len(t, projections, 2)
}

func TestResolveRequirementUnresolvedDomainFailsRequirement(t *testing.T) {
	svc := newTestService(t,
		WithAcquirer(&fakeAcquirer{}),
		WithDomainResolver(&fakeDomains{table: map[string]string{}}),
	)
	req := playlist.Requirement{
		Type:         playlist.RequirementByOwner,
		OwnerAddress: "nobody.eth",
	}
	_, err := svc.ResolveRequirement(context.Background(), req, 30)
	var ae *AcquisitionError
	require.ErrorAs(t, err, &ae)
	assert.Contains(t, ae.Reason, "did not resolve")
}

func TestResolveRequirementBatchFailure(t *testing.T) {
	svc := newTestService(t, WithAcquirer(&fakeAcquirer{failBatch: true}))
	req := playlist.Requirement{
		Type:            playlist.RequirementByContract,
		Chain:           "ethereum",
		ContractAddress: "0xabc",
		TokenIDs:        []string{"1"},
	}
	_, err := svc.ResolveRequirement(context.Background(), req, 30)
	var ae *AcquisitionError
	require.ErrorAs(t, err, &ae)
}

func TestSearchFeedByName(t *testing.T) {
	feed := &fakeFeed{playlists: map[string][]playlist.Item{
		"Social Codes":    feedItems(3),
		"Generative Days": feedItems(2),
	}}
	svc := newTestService(t, WithFeedClient(feed))

	result, err := svc.SearchFeedByName(context.Background(), "social codes")
	require.NoError(t, err)
	assert.Equal(t, "Social Codes", result.BestMatch)
	assert.Contains(t, result.CandidateMap, "Social Codes")

	_, err = svc.SearchFeedByName(context.Background(), "zzzzzzzz qqqq")
	assert.Error(t, err)
}

func TestFetchFeedItemsSamplesQuantity(t *testing.T) {
	feed := &fakeFeed{playlists: map[string][]playlist.Item{
		"Social Codes": feedItems(10),
	}}
	svc := newTestService(t, WithFeedClient(feed))

	projections, err := svc.FetchFeedItems(context.Background(), "Social Codes", playlist.Exact(4), 30)
	require.NoError(t, err)
	assert.Len(t, projections, 4)
	assert.Equal(t, 4, svc.Registry().Count(registry.KindItem))
}

func TestBuildDropsUnknownIDs(t *testing.T) {
	svc := newTestService(t)
	for _, it := range feedItems(3) {
		require.NoError(t, svc.Registry().Put(registry.KindItem, it.ID, it))
	}
	ids := []string{"feed-item-0", "feed-item-1", "feed-item-2", "ghost-1", "ghost-2"}

	summary, err := svc.Build(context.Background(), ids, "Evening Mix", "", false)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.ItemCount)
	assert.Equal(t, 2, summary.DroppedCount)
	assert.NotEmpty(t, summary.ArtifactID)

	// The artifact was persisted alongside the registry copy.
	onDisk, err := playlist.ReadFile(summary.Path)
	require.NoError(t, err)
	assert.Equal(t, summary.ArtifactID, onDisk.ID)
}

func TestBuildAllUnknownFails(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Build(context.Background(), []string{"ghost"}, "", "", false)
	assert.Error(t, err)
}

func TestVerifyReportsFirstDetailsOnly(t *testing.T) {
	svc := newTestService(t)
	bad := &playlist.Artifact{
		DocVersion: "1.0.0",
		ID:         "bad-artifact",
		Items: []playlist.Item{
			{ID: "", Source: "", Duration: 0, License: "bogus"},
			{ID: "", Source: "", Duration: 0, License: "bogus"},
		},
	}
	require.NoError(t, svc.Registry().Put(registry.KindArtifact, bad.ID, bad))

	result, err := svc.Verify(context.Background(), bad.ID)
	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.NotEmpty(t, result.Error)
	assert.LessOrEqual(t, len(result.Details), 3)
}

func TestSendToDeviceDefaultsToSingleDevice(t *testing.T) {
	device := &fakeDevice{}
	svc := newTestService(t, WithDeviceClient(device))
	for _, it := range feedItems(1) {
		require.NoError(t, svc.Registry().Put(registry.KindItem, it.ID, it))
	}
	summary, err := svc.Build(context.Background(), []string{"feed-item-0"}, "Solo", "", false)
	require.NoError(t, err)

	result, err := svc.SendToDevice(context.Background(), summary.ArtifactID, "")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "living-room", result.DeviceName)
	assert.Equal(t, []string{"living-room"}, device.sent)
}

func TestSendToDeviceFailureIsDeliveryError(t *testing.T) {
	svc := newTestService(t, WithDeviceClient(&fakeDevice{fail: true}))
	artifact := playlist.BuildArtifact(feedItems(1), "X", "", false)
	require.NoError(t, svc.Registry().Put(registry.KindArtifact, artifact.ID, artifact))

	result, err := svc.SendToDevice(context.Background(), artifact.ID, "living-room")
	var de *DeliveryError
	require.ErrorAs(t, err, &de)
	assert.False(t, result.Success)
}

func TestPublishFromFile(t *testing.T) {
	svc := newTestService(t, WithPublisher(&fakePublisher{}))
	artifact := playlist.BuildArtifact(feedItems(2), "Published", "", false)
	path := filepath.Join(t.TempDir(), "out.json")
	require.NoError(t, artifact.WriteFile(path))

	result, err := svc.Publish(context.Background(), path, "main")
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "pub-"+artifact.ID, result.PlaylistID)
}

func TestResolveDomainsPartialSuccess(t *testing.T) {
	svc := newTestService(t, WithDomainResolver(&fakeDomains{table: map[string]string{
		"alice.eth": "0xalice",
	}}))
	results, err := svc.ResolveDomains(context.Background(), []string{"alice.eth", "nobody.eth"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"alice.eth": "0xalice"}, results.DomainMap)
	assert.Contains(t, results.Errors, "nobody.eth")
}

func TestValidateAddresses(t *testing.T) {
	svc := newTestService(t)
	out := svc.ValidateAddresses([]string{
		"0x8ba1f109551bD432803012645Ac136ddd64DBA72",
		"tz1VSUr8wwNhLAzempoch5d6hLRiTh8Cjcjb",
		"alice.eth",
		"not an address",
	})
	assert.False(t, out.Valid)
	require.Len(t, out.Results, 4)
	assert.Equal(t, "evm", out.Results[0].Form)
	assert.Equal(t, "tezos", out.Results[1].Form)
	assert.Equal(t, "domain", out.Results[2].Form)
	assert.False(t, out.Results[3].Valid)
	assert.Len(t, out.Errors, 1)
}

func TestMatchScore(t *testing.T) {
	assert.Equal(t, 1.0, matchScore("Social Codes", "social codes"))
	assert.Greater(t, matchScore("social", "Social Codes"), minFeedMatchScore)
	assert.Less(t, matchScore("qqqq", "Social Codes"), minFeedMatchScore)
	assert.Greater(t, matchScore("socal codes", "Social Codes"), 0.7)
}
