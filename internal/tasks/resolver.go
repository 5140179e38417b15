package tasks

import (
	"cmp"
	"context"
	"io"
	"regexp"
	"slices"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/radiosync/internal/models"
	"github.com/desertthunder/radiosync/internal/services"
)

// specialChars matches anything other than ASCII word characters, space, '+', '-' and '.'.
var specialChars = regexp.MustCompile(`[^ \w+\-.]`)

// HasSpecialChars reports whether s contains a character the catalog search tends to choke on.
func HasSpecialChars(s string) bool {
	return specialChars.MatchString(s)
}

// StripSpecialChars removes every special character from s.
func StripSpecialChars(s string) string {
	return specialChars.ReplaceAllString(s, "")
}

// BestMatch picks the most popular candidate; ties go to the lexicographically greatest id.
// It returns nil for an empty slice.
func BestMatch(candidates []models.Track) *models.Track {
	if len(candidates) == 0 {
		return nil
	}

	ranked := slices.Clone(candidates)
	slices.SortStableFunc(ranked, func(a, b models.Track) int {
		if c := cmp.Compare(b.Popularity, a.Popularity); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	best := ranked[0]
	return &best
}

// Resolver maps scraped mentions to catalog tracks.
type Resolver struct {
	catalog services.Catalog
	key     models.KeyFunc
	logger  *log.Logger
}

// NewResolver creates a Resolver. key decides which resolved tracks count as duplicates in [Resolver.ResolveAll].
func NewResolver(catalog services.Catalog, key models.KeyFunc, logger *log.Logger) *Resolver {
	if key == nil {
		key = models.ByID
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Resolver{catalog: catalog, key: key, logger: logger}
}

// Resolve searches for mention and returns the best match, or nil when nothing matches even after
// retrying without special characters. Catalog errors are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, mention models.ScrapedMention) (*models.Track, error) {
	candidates, err := r.catalog.SearchTracks(ctx, mention.Artist, mention.Name)
	if err != nil {
		return nil, err
	}

	if len(candidates) == 0 && (HasSpecialChars(mention.Artist) || HasSpecialChars(mention.Name)) {
		artist, name := StripSpecialChars(mention.Artist), StripSpecialChars(mention.Name)
		r.logger.Info("retrying search without special characters", "artist", artist, "track", name)

		candidates, err = r.catalog.SearchTracks(ctx, artist, name)
		if err != nil {
			return nil, err
		}
	}

	track := BestMatch(candidates)
	if track == nil {
		r.logger.Warn("no match", "artist", mention.Artist, "track", mention.Name)
		return nil, nil
	}

	r.logger.Debug("resolved", "mention", mention.String(), "track", track.Label(), "id", track.ID, "popularity", track.Popularity, "candidates", len(candidates))
	return track, nil
}

// ResolveAll resolves every mention into a deduplicated set and returns the mentions that found no match.
func (r *Resolver) ResolveAll(ctx context.Context, mentions []models.ScrapedMention) (*models.TrackSet, []models.ScrapedMention, error) {
	return r.resolveEach(ctx, mentions, nil)
}

// resolveEach is [Resolver.ResolveAll] with a hook called after every mention; track is nil on a miss.
func (r *Resolver) resolveEach(
	ctx context.Context, mentions []models.ScrapedMention, visit func(i int, mention models.ScrapedMention, track *models.Track),
) (*models.TrackSet, []models.ScrapedMention, error) {
	current := models.NewTrackSet(r.key)
	misses := []models.ScrapedMention{}

	for i, mention := range mentions {
		track, err := r.Resolve(ctx, mention)
		if err != nil {
			return nil, nil, err
		}

		if track == nil {
			misses = append(misses, mention)
		} else if !current.Add(*track) {
			r.logger.Debug("duplicate mention", "mention", mention.String(), "track", track.Label())
		}

		if visit != nil {
			visit(i, mention, track)
		}
	}

	return current, misses, nil
}
