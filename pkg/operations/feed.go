package operations

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/mangiafuoco/pkg/playlist"
	"github.com/go-go-golems/mangiafuoco/pkg/registry"
)

// minFeedMatchScore is the lowest fuzzy score still considered a match.
const minFeedMatchScore = 0.35

// maxFeedCandidates bounds how many candidates go back to the model.
const maxFeedCandidates = 8

// FeedSearchResult is the outcome of a fuzzy feed search. CandidateMap maps
// display names to internal lookup keys; it is also cached in the service so a
// later fetch can resolve names without re-searching.
type FeedSearchResult struct {
	BestMatch    string            `json:"bestMatch,omitempty"`
	Score        float64           `json:"score,omitempty"`
	CandidateMap map[string]string `json:"candidateMap"`
}

// SearchFeedByName fuzzy-matches name against the playlists of all configured
// feed sources. Zero matches above the threshold is an error; the model is
// expected to surface it rather than invent a playlist.
func (s *Service) SearchFeedByName(ctx context.Context, name string) (*FeedSearchResult, error) {
	if s.feeds == nil {
		return nil, errors.New("no feed collaborator configured")
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("empty playlist name")
	}
	matches, err := s.feeds.Search(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "feed search")
	}

	type scored struct {
		display string
		key     string
		score   float64
	}
	ranked := make([]scored, 0, len(matches))
	for _, m := range matches {
		sc := matchScore(name, m.DisplayName)
		if m.Score > sc {
			sc = m.Score
		}
		if sc < minFeedMatchScore {
			continue
		}
		ranked = append(ranked, scored{display: m.DisplayName, key: m.LookupKey, score: sc})
	}
	if len(ranked) == 0 {
		return nil, errors.Errorf("no feed playlist matches %q", name)
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	if len(ranked) > maxFeedCandidates {
		ranked = ranked[:maxFeedCandidates]
	}

	result := &FeedSearchResult{
		BestMatch:    ranked[0].display,
		Score:        ranked[0].score,
		CandidateMap: map[string]string{},
	}
	s.mu.Lock()
	for _, c := range ranked {
		result.CandidateMap[c.display] = c.key
		s.candidates[strings.ToLower(c.display)] = c.key
	}
	s.mu.Unlock()

	log.Debug().
		Str("query", name).
		Str("best_match", result.BestMatch).
		Float64("score", result.Score).
		Int("candidates", len(result.CandidateMap)).
		Msg("feed search")
	return result, nil
}

// FetchFeedItems resolves a playlist name through the cached candidate map
// (searching first if the name is unknown), randomly samples up to quantity
// items, stores full items in the registry and returns projections.
func (s *Service) FetchFeedItems(ctx context.Context, name string, quantity playlist.Quantity, duration int) ([]playlist.Projection, error) {
	if duration <= 0 {
		duration = 30
	}
	items, err := s.fetchFeedItems(ctx, name, quantity, duration)
	if err != nil {
		return nil, err
	}
	projections := make([]playlist.Projection, 0, len(items))
	for _, it := range items {
		if putErr := s.reg.Put(registry.KindItem, it.ID, it); putErr != nil {
			return nil, errors.Wrap(putErr, "store feed item")
		}
		projections = append(projections, it.Project())
	}
	return projections, nil
}

func (s *Service) fetchFeedItems(ctx context.Context, name string, quantity playlist.Quantity, duration int) ([]playlist.Item, error) {
	if s.feeds == nil {
		return nil, errors.New("no feed collaborator configured")
	}
	key, ok := s.lookupCandidate(name)
	if !ok {
		if _, err := s.SearchFeedByName(ctx, name); err != nil {
			return nil, err
		}
		key, ok = s.lookupCandidate(name)
		if !ok {
			return nil, errors.Errorf("playlist %q not found in any configured feed source", name)
		}
	}
	items, err := s.feeds.FetchItems(ctx, key, duration)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch playlist %q", name)
	}
	sampled := sampleItems(items, quantity)
	log.Debug().
		Str("playlist", name).
		Int("available", len(items)).
		Int("sampled", len(sampled)).
		Msg("feed items fetched")
	return sampled, nil
}

// lookupCandidate resolves a display name through the cached candidate map.
// Exact lowercased match first, then best fuzzy match over the cached names.
func (s *Service) lookupCandidate(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lowered := strings.ToLower(strings.TrimSpace(name))
	if key, ok := s.candidates[lowered]; ok {
		return key, true
	}
	bestScore := 0.0
	bestKey := ""
	for display, key := range s.candidates {
		if sc := matchScore(lowered, display); sc > bestScore {
			bestScore = sc
			bestKey = key
		}
	}
	if bestScore >= minFeedMatchScore {
		return bestKey, true
	}
	return "", false
}
