package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/go-go-golems/mangiafuoco/pkg/collab"
	"github.com/go-go-golems/mangiafuoco/pkg/operations"
	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
)

// Thin HTTP collaborators for the CLI. The engine itself only depends on the
// collab interfaces; richer integrations (token indexers, domain resolvers)
// are supplied by library consumers.

var httpClient = &http.Client{Timeout: 30 * time.Second}

// feedClient talks to the configured feed servers' playlist API.
type feedClient struct {
	servers []playlist.FeedServer
}

type feedListEntry struct {
	ID    string `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
}

func (f *feedClient) Search(ctx context.Context, name string) ([]collab.FeedMatch, error) {
	var matches []collab.FeedMatch
	for _, srv := range f.servers {
		entries, err := f.listPlaylists(ctx, srv)
		if err != nil {
			return nil, errors.Wrapf(err, "list playlists on %s", srv.Name)
		}
		for _, e := range entries {
			display := e.Title
			if display == "" {
				display = e.Slug
			}
			matches = append(matches, collab.FeedMatch{
				DisplayName: display,
				LookupKey:   srv.BaseURL + "|" + e.ID,
			})
		}
	}
	return matches, nil
}

func (f *feedClient) FetchItems(ctx context.Context, lookupKey string, duration int) ([]playlist.Item, error) {
	base, id, ok := strings.Cut(lookupKey, "|")
	if !ok {
		return nil, errors.Errorf("malformed lookup key %q", lookupKey)
	}
	var doc playlist.Artifact
	if err := f.getJSON(ctx, fmt.Sprintf("%s/api/v1/playlists/%s", base, id), "", &doc); err != nil {
		return nil, err
	}
	items := doc.Items
	for i := range items {
		items[i].Duration = duration
	}
	return items, nil
}

func (f *feedClient) listPlaylists(ctx context.Context, srv playlist.FeedServer) ([]feedListEntry, error) {
	var entries []feedListEntry
	err := f.getJSON(ctx, srv.BaseURL+"/api/v1/playlists", srv.APIKey, &entries)
	return entries, err
}

func (f *feedClient) getJSON(ctx context.Context, url, apiKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// deviceClient pushes a playlist document to a display device over its local
// HTTP endpoint. Device locations come from configuration.
type deviceClient struct {
	devices []operations.DeviceInfo
}

func (d *deviceClient) Send(ctx context.Context, artifact *playlist.Artifact, deviceName string) error {
	var location string
	for _, dev := range d.devices {
		if dev.Name == deviceName {
			location = dev.Location
			break
		}
	}
	if location == "" {
		return errors.Errorf("device %q has no configured location", deviceName)
	}
	body, err := json.Marshal(artifact)
	if err != nil {
		return errors.Wrap(err, "marshal playlist document")
	}
	url := fmt.Sprintf("http://%s/api/v1/playlist", location)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return errors.Errorf("device %s rejected playlist: status %d", deviceName, resp.StatusCode)
	}
	return nil
}

// feedPublisher pushes a playlist document to a feed server.
type feedPublisher struct{}

func (p *feedPublisher) Publish(ctx context.Context, artifact *playlist.Artifact, server playlist.FeedServer) (string, error) {
	body, err := json.Marshal(artifact)
	if err != nil {
		return "", errors.Wrap(err, "marshal playlist document")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server.BaseURL+"/api/v1/playlists", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if server.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+server.APIKey)
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return "", errors.Errorf("feed server %s rejected playlist: status %d", server.Name, resp.StatusCode)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return artifact.ID, nil
	}
	if created.ID == "" {
		return artifact.ID, nil
	}
	return created.ID, nil
}
